// Package server exposes the marketplace over HTTP: public task lifecycle
// routes and the x402-gated premium routes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/config"
	"github.com/csschan/agent-a2a-marketplace/pkg/contractCaller"
	"github.com/csschan/agent-a2a-marketplace/pkg/taskTracker"
	"github.com/csschan/agent-a2a-marketplace/pkg/x402"
)

type ServerConfig struct {
	Port    int
	ChainId config.ChainId
}

type Server struct {
	config         *ServerConfig
	contractCaller contractCaller.IContractCaller
	taskTracker    *taskTracker.TaskTracker
	paymentGate    *x402.PaymentGate
	accessResolver *x402.AccessResolver
	logger         *zap.Logger

	httpServer *http.Server
}

func NewServer(
	cfg *ServerConfig,
	cc contractCaller.IContractCaller,
	tracker *taskTracker.TaskTracker,
	gate *x402.PaymentGate,
	resolver *x402.AccessResolver,
	logger *zap.Logger,
) *Server {
	s := &Server{
		config:         cfg,
		contractCaller: cc,
		taskTracker:    tracker,
		paymentGate:    gate,
		accessResolver: resolver,
		logger:         logger,
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.Router(),
	}
	return s
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/ping", s.handlePing)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Get("/info", s.handleInfo)
		api.Get("/wallet", s.handleWallet)
		api.Get("/agent/{address}/earnings", s.handleAgentEarnings)

		api.Route("/tasks", func(tasks chi.Router) {
			tasks.Get("/", s.handleListTasks)
			tasks.Post("/", s.handlePostTask)
			tasks.Get("/status/open", s.handleListOpenTasks)
			tasks.Get("/{taskId}", s.handleGetTask)
			tasks.Post("/{taskId}/accept", s.handleAcceptTask)
			tasks.Post("/{taskId}/submit", s.handleSubmitProof)
			tasks.Post("/{taskId}/complete", s.handleCompleteTask)
			tasks.Post("/{taskId}/cancel", s.handleCancelTask)
		})

		api.Route("/x402", func(premium chi.Router) {
			premium.Get("/pricing", s.handlePricing)
			premium.Get("/balance/{address}", s.handleBalance)
			premium.Post("/deposit", s.handleDeposit)
			premium.Post("/withdraw", s.handleWithdraw)
			premium.With(s.requirePayment(x402.PriceClassBulkQuery)).Get("/tasks/bulk", s.handleBulkTasks)
			premium.With(s.requireTaskAccess).Get("/tasks/{taskId}/premium", s.handlePremiumTask)
			premium.Post("/tasks/{taskId}/purchase-access", s.handlePurchaseAccess)
			premium.With(s.requirePayment(x402.PriceClassApiCall)).Get("/analytics/{address}", s.handleAnalytics)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.logger.Info("marketplace API listening",
		zap.Int("port", s.config.Port),
		zap.String("network", s.config.ChainId.Name()),
		zap.String("marketplace", s.contractCaller.MarketplaceAddress().Hex()),
		zap.String("usdc", s.contractCaller.UsdcAddress().Hex()),
		zap.String("wallet", s.contractCaller.SignerAddress().Hex()),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down marketplace API")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pong":      true,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"network":     s.config.ChainId.Name(),
		"marketplace": s.contractCaller.MarketplaceAddress().Hex(),
		"usdc":        s.contractCaller.UsdcAddress().Hex(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	total, err := s.contractCaller.TaskCounter(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	blockNumber, err := s.contractCaller.BlockNumber(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"marketplace": s.contractCaller.MarketplaceAddress().Hex(),
		"usdc":        s.contractCaller.UsdcAddress().Hex(),
		"network":     fmt.Sprintf("%s (%d)", s.config.ChainId.Name(), s.config.ChainId),
		"totalTasks":  strconv.FormatUint(total, 10),
		"blockNumber": blockNumber,
		"explorerUrl": fmt.Sprintf("%s/address/%s", s.config.ChainId.ExplorerBaseUrl(), s.contractCaller.MarketplaceAddress().Hex()),
	})
}

func taskIdFromURL(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "taskId")
	return strconv.ParseUint(raw, 10, 64)
}

func purchaseEndpoint(taskId uint64) string {
	return fmt.Sprintf("/api/x402/tasks/%d/purchase-access", taskId)
}

func (s *Server) explorerTxUrl(txHash string) string {
	return fmt.Sprintf("%s/tx/%s", s.config.ChainId.ExplorerBaseUrl(), txHash)
}
