package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CreateGracefulShutdownChannel returns a channel that receives SIGTERM
// and SIGINT.
func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdownNotifier := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdownNotifier, syscall.SIGTERM, syscall.SIGINT)
	return gracefulShutdownNotifier
}

// ListenForShutdown blocks until a shutdown signal arrives, runs the
// handler, then waits out the grace period before signaling done.
func ListenForShutdown(
	notifier chan os.Signal,
	done chan bool,
	handler func(),
	gracePeriod time.Duration,
	logger *zap.Logger,
) {
	sig := <-notifier
	logger.Sugar().Infow("Received shutdown signal", "signal", sig.String())
	handler()
	time.Sleep(gracePeriod)
	done <- true
}
