package x402

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/contractCaller"
)

// AccessResolver answers whether an agent holds purchased premium access
// to a task. Grants are rare, per-task and must reflect ledger truth
// exactly, so nothing here is cached.
type AccessResolver struct {
	contractCaller contractCaller.IContractCaller
	pricing        PricingTable
	logger         *zap.Logger
}

func NewAccessResolver(
	cc contractCaller.IContractCaller,
	pricing PricingTable,
	logger *zap.Logger,
) *AccessResolver {
	return &AccessResolver{
		contractCaller: cc,
		pricing:        pricing,
		logger:         logger,
	}
}

// AccessQuote is returned when access is denied, so the caller can decide
// to purchase.
type AccessQuote struct {
	TaskId         uint64
	AccessFee      *big.Int
	CurrentBalance *big.Int
}

// HasAccess delegates entirely to the ledger's access registry.
func (ar *AccessResolver) HasAccess(ctx context.Context, taskId uint64, agent common.Address) (bool, error) {
	granted, err := ar.contractCaller.CheckTaskAccess(ctx, taskId, agent)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check access for task %d", taskId)
	}
	return granted, nil
}

// Quote returns the premium access fee and the agent's current balance.
func (ar *AccessResolver) Quote(ctx context.Context, taskId uint64, agent common.Address) (*AccessQuote, error) {
	fee, err := ar.pricing.PriceFor(PriceClassPremiumTaskAccess)
	if err != nil {
		return nil, err
	}
	balance, err := ar.contractCaller.GetBalance(ctx, agent)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read balance for %s", agent.Hex())
	}
	return &AccessQuote{
		TaskId:         taskId,
		AccessFee:      fee,
		CurrentBalance: balance,
	}, nil
}

// PurchaseCalldata builds the unsigned purchaseTaskAccess transaction for
// the agent to execute with its own wallet.
func (ar *AccessResolver) PurchaseCalldata(taskId uint64) (*contractCaller.UnsignedTransaction, error) {
	return ar.contractCaller.EncodePurchaseAccessCalldata(taskId)
}
