package transactionSigner

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransactionSigner provides methods for signing marketplace transactions.
//
// SignAndSendTransaction blocks until the transaction is mined and the
// receipt observed. It does not retry: a submitted write is not safe to
// blindly resubmit, since the first attempt may have landed even when the
// receipt was never seen. Callers that lose a receipt must reconcile by
// reading ledger state for the expected post-condition before trying again.
type TransactionSigner interface {
	// GetTransactOpts returns no-send transaction options for building
	// unsigned transactions
	GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error)

	// SignAndSendTransaction signs a transaction, sends it to the network
	// and waits for its receipt
	SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	// GetFromAddress returns the address that will be used for signing
	GetFromAddress() common.Address

	// EstimateGasPriceAndLimit estimates gas price and limit for a transaction
	EstimateGasPriceAndLimit(ctx context.Context, tx *types.Transaction) (*big.Int, uint64, error)
}
