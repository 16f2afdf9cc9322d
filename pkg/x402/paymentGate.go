package x402

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/contractCaller"
)

// ErrInvalidAgent indicates a malformed agent identity, rejected before
// any ledger call.
var ErrInvalidAgent = errors.New("invalid agent address")

// IsInvalidAgent reports whether an error stems from a malformed agent
// identity.
func IsInvalidAgent(err error) bool {
	return errors.Is(err, ErrInvalidAgent)
}

// Outcome names the terminal result of an authorization attempt.
type Outcome string

const (
	OutcomeAuthorized      Outcome = "authorized"
	OutcomePaymentRequired Outcome = "payment_required"
	OutcomeChargeFailed    Outcome = "charge_failed"
)

// AuthorizationResult is the outcome of Authorize. PaymentRequired is a
// first-class protocol outcome, not an error: it carries everything the
// 402 response needs. ChargeFailed means the agent passed the balance
// check but the ledger rejected the charge, which maps to a 5xx-class
// response because the agent believed they were solvent.
type AuthorizationResult struct {
	Outcome        Outcome
	Agent          common.Address
	RequiredAmount *big.Int
	CurrentBalance *big.Int

	// Deficit is set on PaymentRequired: required minus balance, never
	// negative.
	Deficit *big.Int

	// RemainingBalance is set on Authorized, from a balance read after the
	// charge confirmed.
	RemainingBalance *big.Int

	// ChargeErr is set on ChargeFailed.
	ChargeErr error
}

// PaymentGate enforces the x402 pay-per-operation policy.
type PaymentGate struct {
	contractCaller contractCaller.IContractCaller
	balances       *BalanceReader
	pricing        PricingTable
	logger         *zap.Logger

	// agentLocks serializes check+charge per agent within this process.
	// This narrows the double-spend window for concurrent requests hitting
	// one replica but cannot close it: the agent's wallet can move the
	// balance externally and other replicas race independently. The ledger
	// stays the final arbiter, and the loser of a residual race surfaces
	// as ChargeFailed.
	mu         sync.Mutex
	agentLocks map[common.Address]*sync.Mutex
}

func NewPaymentGate(
	cc contractCaller.IContractCaller,
	pricing PricingTable,
	logger *zap.Logger,
) *PaymentGate {
	return &PaymentGate{
		contractCaller: cc,
		balances:       NewBalanceReader(cc, logger),
		pricing:        pricing,
		logger:         logger,
		agentLocks:     make(map[common.Address]*sync.Mutex),
	}
}

func (pg *PaymentGate) Pricing() PricingTable {
	return pg.pricing
}

func (pg *PaymentGate) Balances() *BalanceReader {
	return pg.balances
}

// ParseAgentAddress validates and normalizes an agent identity string.
func ParseAgentAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Wrapf(ErrInvalidAgent, "%q", raw)
	}
	return common.HexToAddress(raw), nil
}

// Authorize charges the agent for one operation of the given class.
//
// The returned error is non-nil only for failures outside the protocol:
// a malformed agent (ErrInvalidAgent), an unknown price class, or a ledger
// read failing. Underfunding and charge rejection are outcomes, not
// errors.
func (pg *PaymentGate) Authorize(ctx context.Context, rawAgent string, class PriceClass) (*AuthorizationResult, error) {
	agent, err := ParseAgentAddress(rawAgent)
	if err != nil {
		return nil, err
	}

	price, err := pg.pricing.PriceFor(class)
	if err != nil {
		return nil, err
	}

	lock := pg.lockFor(agent)
	lock.Lock()
	defer lock.Unlock()

	balance, err := pg.contractCaller.GetBalance(ctx, agent)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read balance for %s", agent.Hex())
	}

	if balance.Cmp(price) < 0 {
		deficit := new(big.Int).Sub(price, balance)
		pg.logger.Sugar().Infow("payment required",
			zap.String("agent", agent.Hex()),
			zap.String("priceClass", string(class)),
			zap.String("required", price.String()),
			zap.String("balance", balance.String()),
		)
		return &AuthorizationResult{
			Outcome:        OutcomePaymentRequired,
			Agent:          agent,
			RequiredAmount: price,
			CurrentBalance: balance,
			Deficit:        deficit,
		}, nil
	}

	if _, err := pg.contractCaller.ChargeApiCall(ctx, agent, price); err != nil {
		// The balance check passed but the ledger rejected the charge:
		// either a concurrent spend won the race or the transaction
		// failed in transit.
		pg.logger.Sugar().Errorw("charge failed after passing balance check",
			zap.String("agent", agent.Hex()),
			zap.String("priceClass", string(class)),
			zap.Error(err),
		)
		return &AuthorizationResult{
			Outcome:        OutcomeChargeFailed,
			Agent:          agent,
			RequiredAmount: price,
			CurrentBalance: balance,
			ChargeErr:      err,
		}, nil
	}

	remaining, err := pg.contractCaller.GetBalance(ctx, agent)
	if err != nil {
		// The charge landed; only the confirmation read failed. Report
		// authorized with the pre-charge figures rather than failing a
		// paid request.
		pg.logger.Sugar().Warnw("failed to read remaining balance after charge",
			zap.String("agent", agent.Hex()),
			zap.Error(err),
		)
		remaining = new(big.Int).Sub(balance, price)
	}

	pg.logger.Sugar().Infow("agent charged",
		zap.String("agent", agent.Hex()),
		zap.String("priceClass", string(class)),
		zap.String("charged", price.String()),
		zap.String("remaining", remaining.String()),
	)

	return &AuthorizationResult{
		Outcome:          OutcomeAuthorized,
		Agent:            agent,
		RequiredAmount:   price,
		CurrentBalance:   balance,
		RemainingBalance: remaining,
	}, nil
}

func (pg *PaymentGate) lockFor(agent common.Address) *sync.Mutex {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	lock, ok := pg.agentLocks[agent]
	if !ok {
		lock = &sync.Mutex{}
		pg.agentLocks[agent] = lock
	}
	return lock
}
