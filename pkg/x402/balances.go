package x402

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/contractCaller"
	"github.com/csschan/agent-a2a-marketplace/pkg/types"
)

// BalanceReader is a read-through view over per-agent prepaid balances.
// Every figure is fetched fresh from the ledger at check time: balances
// move through both this service's charges and the agent's own wallet
// activity, so any memoized staleness window would lie.
type BalanceReader struct {
	contractCaller contractCaller.IContractCaller
	logger         *zap.Logger
}

func NewBalanceReader(cc contractCaller.IContractCaller, logger *zap.Logger) *BalanceReader {
	return &BalanceReader{
		contractCaller: cc,
		logger:         logger,
	}
}

// CheckAffordable reports whether the agent's prepaid balance covers the
// amount.
func (br *BalanceReader) CheckAffordable(ctx context.Context, agent common.Address, amount *big.Int) (bool, error) {
	balance, err := br.contractCaller.GetBalance(ctx, agent)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read balance for %s", agent.Hex())
	}
	return balance.Cmp(amount) >= 0, nil
}

// GetDeficit returns amount minus the agent's balance, floored at zero.
func (br *BalanceReader) GetDeficit(ctx context.Context, agent common.Address, amount *big.Int) (*big.Int, error) {
	balance, err := br.contractCaller.GetBalance(ctx, agent)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read balance for %s", agent.Hex())
	}
	deficit := new(big.Int).Sub(amount, balance)
	if deficit.Sign() < 0 {
		deficit.SetInt64(0)
	}
	return deficit, nil
}

// Snapshot fetches the agent's prepaid balance and api call counter.
func (br *BalanceReader) Snapshot(ctx context.Context, agent common.Address) (*types.AgentBalance, error) {
	balance, err := br.contractCaller.GetBalance(ctx, agent)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read balance for %s", agent.Hex())
	}
	apiCalls, err := br.contractCaller.ApiCallCount(ctx, agent)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read api call count for %s", agent.Hex())
	}
	return &types.AgentBalance{
		Agent:          agent,
		PrepaidBalance: balance,
		ApiCallCount:   apiCalls,
	}, nil
}
