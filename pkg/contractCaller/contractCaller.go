package contractCaller

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/csschan/agent-a2a-marketplace/pkg/types"
)

// ErrLedgerCallFailed wraps any transport or ledger-level failure of a
// contract call. A revert and a network fault both surface through it,
// distinguished only by message. Reads are idempotent and safe to retry;
// writes are not safe to blindly retry: the prior attempt may have landed,
// so callers must re-read ledger state before resubmitting.
var ErrLedgerCallFailed = errors.New("ledger call failed")

// UnsignedTransaction is a calldata descriptor for a transaction the
// requesting agent executes with its own wallet. The service never spends
// agent keys.
type UnsignedTransaction struct {
	To          common.Address
	Data        []byte
	Description string
}

// IContractCaller is the typed boundary to the marketplace settlement
// contract and its USDC escrow token. Write operations block until the
// transaction receipt is observed and return it for event extraction; the
// gateway does not retry on the caller's behalf.
type IContractCaller interface {
	// Reads. Idempotent, never mutate local state.
	GetTask(ctx context.Context, taskId uint64) (*types.Task, error)
	TaskCounter(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context, agent common.Address) (*big.Int, error)
	ApiCallCount(ctx context.Context, agent common.Address) (uint64, error)
	AgentEarnings(ctx context.Context, agent common.Address) (*big.Int, error)
	GetAgentStats(ctx context.Context, agent common.Address) (*types.AgentStats, error)
	CheckTaskAccess(ctx context.Context, taskId uint64, agent common.Address) (bool, error)
	DefaultAccessFee(ctx context.Context) (*big.Int, error)
	ApiCallCost(ctx context.Context) (*big.Int, error)
	UsdcBalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	EthBalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)

	// Writes. Each one is a single ledger transaction.
	ApproveEscrow(ctx context.Context, amount *big.Int) (*ethtypes.Receipt, error)
	PostTask(ctx context.Context, description string, reward *big.Int, deadline uint64) (*ethtypes.Receipt, error)
	AcceptTask(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error)
	SubmitProof(ctx context.Context, taskId uint64, proofURI string) (*ethtypes.Receipt, error)
	CompleteTask(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error)
	CancelTask(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error)
	DepositBalance(ctx context.Context, amount *big.Int) (*ethtypes.Receipt, error)
	WithdrawBalance(ctx context.Context, amount *big.Int) (*ethtypes.Receipt, error)
	ChargeApiCall(ctx context.Context, agent common.Address, cost *big.Int) (*ethtypes.Receipt, error)
	PurchaseTaskAccess(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error)

	// Calldata encoders for agent-executed transactions.
	EncodeApproveCalldata(amount *big.Int) (*UnsignedTransaction, error)
	EncodeDepositCalldata(amount *big.Int) (*UnsignedTransaction, error)
	EncodeWithdrawCalldata(amount *big.Int) (*UnsignedTransaction, error)
	EncodePurchaseAccessCalldata(taskId uint64) (*UnsignedTransaction, error)

	MarketplaceAddress() common.Address
	UsdcAddress() common.Address
	SignerAddress() common.Address
}
