package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/clients/ethereum"
	"github.com/csschan/agent-a2a-marketplace/pkg/config"
	"github.com/csschan/agent-a2a-marketplace/pkg/contractCaller/caller"
	"github.com/csschan/agent-a2a-marketplace/pkg/contracts"
	"github.com/csschan/agent-a2a-marketplace/pkg/logger"
	"github.com/csschan/agent-a2a-marketplace/pkg/marketplaceConfig"
	"github.com/csschan/agent-a2a-marketplace/pkg/server"
	"github.com/csschan/agent-a2a-marketplace/pkg/shutdown"
	"github.com/csschan/agent-a2a-marketplace/pkg/taskTracker"
	"github.com/csschan/agent-a2a-marketplace/pkg/transactionLogParser"
	"github.com/csschan/agent-a2a-marketplace/pkg/transactionSigner"
	"github.com/csschan/agent-a2a-marketplace/pkg/x402"

	"github.com/ethereum/go-ethereum/common"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the marketplace API",
	RunE: func(cmd *cobra.Command, args []string) error {
		initRunCmd(cmd)

		log, _ := logger.NewLogger(&logger.LoggerConfig{Debug: Config.Debug})
		sugar := log.Sugar()

		if err := Config.Validate(); err != nil {
			sugar.Errorw("Invalid configuration", "error", err)
			return err
		}

		sugar.Infow("Starting marketplace API...")

		return runWithShutdown(func(ctx context.Context) error {
			return startMarketplace(ctx, Config, log)
		}, log)
	},
}

func initRunCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s': %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s': %+v\n", f.Name, err)
		}
	})
}

func runWithShutdown(startFunc func(ctx context.Context) error, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := startFunc(ctx); err != nil {
		return err
	}

	gracefulShutdownNotifier := shutdown.CreateGracefulShutdownChannel()
	done := make(chan bool)

	go shutdown.ListenForShutdown(gracefulShutdownNotifier, done, func() {
		logger.Sugar().Info("Shutting down marketplace API...")
		cancel()
	}, 5*time.Second, logger)

	<-done
	return nil
}

func startMarketplace(ctx context.Context, cfg *marketplaceConfig.MarketplaceConfig, log *zap.Logger) error {
	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl: cfg.Chain.RpcUrl,
	}, log)

	client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return fmt.Errorf("failed to connect to rpc endpoint: %w", err)
	}

	signer, err := transactionSigner.NewTransactionSigner(cfg.Signer.PrivateKey, client, log)
	if err != nil {
		return fmt.Errorf("failed to create transaction signer: %w", err)
	}

	cc, err := caller.NewContractCaller(
		client,
		signer,
		common.HexToAddress(cfg.Contracts.Marketplace),
		common.HexToAddress(cfg.Contracts.Usdc),
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create contract caller: %w", err)
	}

	marketplaceAbi, err := contracts.GetContractAbi(contracts.ContractName_AgentMarketplace)
	if err != nil {
		return fmt.Errorf("failed to load marketplace abi: %w", err)
	}
	logParser := transactionLogParser.NewTransactionLogParser(marketplaceAbi, log)

	tracker := taskTracker.NewTaskTracker(cc, logParser, log)
	pricing := x402.DefaultPricingTable()
	gate := x402.NewPaymentGate(cc, pricing, log)
	resolver := x402.NewAccessResolver(cc, pricing, log)

	srv := server.NewServer(&server.ServerConfig{
		Port:    cfg.ServerConfig.Port,
		ChainId: cfg.Chain.ChainId,
	}, cc, tracker, gate, resolver, log)

	go func() {
		if err := srv.Start(); err != nil {
			log.Sugar().Fatalw("Marketplace API start failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Sugar().Errorw("Marketplace API shutdown failed", zap.Error(err))
		}
	}()

	return nil
}
