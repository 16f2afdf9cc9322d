package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

type EthereumClientConfig struct {
	BaseUrl string
}

// EthereumClient wraps a lazily dialed JSON-RPC connection to the chain
// node. The underlying connection is shared by every component that calls
// the ledger.
type EthereumClient struct {
	config *EthereumClientConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *ethclient.Client
}

func NewEthereumClient(cfg *EthereumClientConfig, logger *zap.Logger) *EthereumClient {
	return &EthereumClient{
		config: cfg,
		logger: logger,
	}
}

// GetEthereumContractCaller returns the shared ethclient connection,
// dialing the configured RPC endpoint on first use.
func (ec *EthereumClient) GetEthereumContractCaller() (*ethclient.Client, error) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if ec.client != nil {
		return ec.client, nil
	}

	client, err := ethclient.Dial(ec.config.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum rpc at %s: %w", ec.config.BaseUrl, err)
	}

	ec.logger.Sugar().Infow("connected to ethereum rpc",
		zap.String("baseUrl", ec.config.BaseUrl),
	)
	ec.client = client
	return ec.client, nil
}

func (ec *EthereumClient) ChainID(ctx context.Context) (*big.Int, error) {
	client, err := ec.GetEthereumContractCaller()
	if err != nil {
		return nil, err
	}
	return client.ChainID(ctx)
}
