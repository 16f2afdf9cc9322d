package transactionSigner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// fallbackGasTipCap is used when the backend does not support
// eth_maxPriorityFeePerGas.
var fallbackGasTipCap = big.NewInt(15000000000)

// SigningContext provides common functionality for transaction signing
type SigningContext struct {
	ethClient *ethclient.Client
	logger    *zap.Logger
	chainID   *big.Int
}

// NewSigningContext creates a new signing context
func NewSigningContext(ethClient *ethclient.Client, logger *zap.Logger) (*SigningContext, error) {
	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &SigningContext{
		ethClient: ethClient,
		logger:    logger,
		chainID:   chainID,
	}, nil
}

// EstimateGasPriceAndLimit estimates the fee cap and gas limit for a
// transaction, overestimating the basefee by 3/2 to survive short-term
// basefee movement between estimation and inclusion.
func (sc *SigningContext) EstimateGasPriceAndLimit(ctx context.Context, fromAddress common.Address, tx *types.Transaction) (*big.Int, uint64, error) {
	gasTipCap, err := sc.ethClient.SuggestGasTipCap(ctx)
	if err != nil {
		sc.logger.Sugar().Debugw("EstimateGasPriceAndLimit: cannot get gasTipCap",
			"error", err.Error(),
		)
		gasTipCap = fallbackGasTipCap
	}

	header, err := sc.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	overestimatedBasefee := new(big.Int).Div(new(big.Int).Mul(header.BaseFee, big.NewInt(3)), big.NewInt(2))
	gasFeeCap := new(big.Int).Add(overestimatedBasefee, gasTipCap)

	gasLimit, err := sc.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From:      fromAddress,
		To:        tx.To(),
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Value:     nil,
		Data:      tx.Data(),
	})
	if err != nil {
		return nil, 0, err
	}

	return gasFeeCap, gasLimit, nil
}
