package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// PrivateKeySigner implements TransactionSigner using a local private key
type PrivateKeySigner struct {
	*SigningContext
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address
}

// NewTransactionSigner creates a private key signer bound to the given
// ethclient connection.
func NewTransactionSigner(privateKeyHex string, ethClient *ethclient.Client, logger *zap.Logger) (TransactionSigner, error) {
	signingContext, err := NewSigningContext(ethClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create signing context: %w", err)
	}
	return NewPrivateKeySigner(privateKeyHex, signingContext)
}

// NewPrivateKeySigner creates a new private key signer
func NewPrivateKeySigner(privateKeyHex string, signingContext *SigningContext) (*PrivateKeySigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKey := privateKey.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key ECDSA")
	}

	fromAddress := crypto.PubkeyToAddress(*publicKeyECDSA)

	return &PrivateKeySigner{
		SigningContext: signingContext,
		privateKey:     privateKey,
		fromAddress:    fromAddress,
	}, nil
}

// GetTransactOpts returns no-send transaction options for building
// unsigned transactions
func (pks *PrivateKeySigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(pks.privateKey, pks.SigningContext.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.NoSend = true
	opts.Context = ctx
	return opts, nil
}

// SignAndSendTransaction signs a transaction, sends it to the network and
// waits for its receipt
func (pks *PrivateKeySigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return pks.estimateGasPriceAndLimitAndSendTx(ctx, pks.fromAddress, tx, "SignAndSendTransaction")
}

// GetFromAddress returns the address that will be used for signing
func (pks *PrivateKeySigner) GetFromAddress() common.Address {
	return pks.fromAddress
}

// EstimateGasPriceAndLimit estimates gas price and limit for a transaction
func (pks *PrivateKeySigner) EstimateGasPriceAndLimit(ctx context.Context, tx *types.Transaction) (*big.Int, uint64, error) {
	return pks.SigningContext.EstimateGasPriceAndLimit(ctx, pks.fromAddress, tx)
}

func (pks *PrivateKeySigner) estimateGasPriceAndLimitAndSendTx(ctx context.Context, fromAddress common.Address, tx *types.Transaction, tag string) (*types.Receipt, error) {
	gasTipCap, err := pks.SigningContext.ethClient.SuggestGasTipCap(ctx)
	if err != nil {
		// If the backend does not support eth_maxPriorityFeePerGas,
		// fall back to the default constant.
		pks.SigningContext.logger.Sugar().Debugw("estimateGasPriceAndLimitAndSendTx: cannot get gasTipCap",
			"error", err.Error(),
		)
		gasTipCap = fallbackGasTipCap
	}

	header, err := pks.SigningContext.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	overestimatedBasefee := new(big.Int).Div(new(big.Int).Mul(header.BaseFee, big.NewInt(3)), big.NewInt(2))
	gasFeeCap := new(big.Int).Add(overestimatedBasefee, gasTipCap)

	// The gas limits estimated internally by RawTransact fail
	// semi-regularly with out of gas exceptions, so estimation happens
	// here with a buffer added for network variability.
	gasLimit, err := pks.SigningContext.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From:      fromAddress,
		To:        tx.To(),
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Value:     nil,
		Data:      tx.Data(),
	})
	if err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(pks.privateKey, pks.SigningContext.chainID)
	if err != nil {
		return nil, fmt.Errorf("estimateGasPriceAndLimitAndSendTx: cannot create transactOpts: %w", err)
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(tx.Nonce())
	opts.GasTipCap = gasTipCap
	opts.GasFeeCap = gasFeeCap
	opts.GasLimit = addGasBuffer(gasLimit)

	contract := bind.NewBoundContract(*tx.To(), abi.ABI{}, pks.SigningContext.ethClient, pks.SigningContext.ethClient, pks.SigningContext.ethClient)

	pks.SigningContext.logger.Sugar().Infof("estimateGasPriceAndLimitAndSendTx: sending txn (%s) with gasTipCap=%v gasFeeCap=%v gasLimit=%v", tag, gasTipCap, gasFeeCap, opts.GasLimit)

	tx, err = contract.RawTransact(opts, tx.Data())
	if err != nil {
		return nil, fmt.Errorf("estimateGasPriceAndLimitAndSendTx: failed to send txn (%s): %w", tag, err)
	}

	pks.SigningContext.logger.Sugar().Infof("estimateGasPriceAndLimitAndSendTx: sent txn (%s) with hash=%s", tag, tx.Hash().Hex())

	return pks.ensureTransactionEvaled(ctx, tx, tag)
}

// ensureTransactionEvaled waits for transaction to be mined and checks status
func (pks *PrivateKeySigner) ensureTransactionEvaled(ctx context.Context, tx *types.Transaction, tag string) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, pks.SigningContext.ethClient, tx)
	if err != nil {
		return nil, fmt.Errorf("ensureTransactionEvaled: failed to wait for transaction (%s) to mine: %w", tag, err)
	}
	if receipt.Status != 1 {
		pks.SigningContext.logger.Sugar().Errorf("ensureTransactionEvaled: transaction (%s) failed: %v", tag, receipt)
		return nil, fmt.Errorf("transaction failed")
	}
	pks.SigningContext.logger.Sugar().Infof("ensureTransactionEvaled: transaction (%s) succeeded: %v", tag, receipt.TxHash.Hex())
	return receipt, nil
}

// addGasBuffer adds a buffer to the gas limit
func addGasBuffer(gasLimit uint64) uint64 {
	return 6 * gasLimit / 5 // add 20% buffer to gas limit
}
