// Package testUtils provides shared fixtures for package tests. The fake
// contract caller is a thread-safe in-memory ledger that honors the same
// atomicity guarantees the real settlement contract provides.
package testUtils

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/csschan/agent-a2a-marketplace/pkg/contractCaller"
	"github.com/csschan/agent-a2a-marketplace/pkg/contracts"
	"github.com/csschan/agent-a2a-marketplace/pkg/types"
)

const (
	FakeMarketplaceAddress = "0x833F8f973786c040698509F203866029026CEfF6"
	FakeUsdcAddress        = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	FakeSignerAddress      = "0x1111111111111111111111111111111111111111"
)

type accessKey struct {
	taskId uint64
	agent  common.Address
}

// FakeContractCaller implements contractCaller.IContractCaller against
// in-memory state. Charges are atomic under an internal lock, so
// concurrent double-spend attempts lose exactly like they would on chain.
type FakeContractCaller struct {
	mu sync.Mutex

	tasks    map[uint64]*types.Task
	counter  uint64
	balances map[common.Address]*big.Int
	wallets  map[common.Address]*big.Int
	apiCalls map[common.Address]uint64
	stats    map[common.Address]*types.AgentStats
	access   map[accessKey]bool

	txCounter uint64

	// Error injection. A non-nil entry makes the corresponding call fail.
	GetTaskErr     map[uint64]error
	GetBalanceErr  error
	ChargeErr      error
	TaskCounterErr error

	// OmitPostedEvent drops the TaskPosted log from postTask receipts.
	OmitPostedEvent bool
}

func NewFakeContractCaller() *FakeContractCaller {
	return &FakeContractCaller{
		tasks:      make(map[uint64]*types.Task),
		balances:   make(map[common.Address]*big.Int),
		wallets:    make(map[common.Address]*big.Int),
		apiCalls:   make(map[common.Address]uint64),
		stats:      make(map[common.Address]*types.AgentStats),
		access:     make(map[accessKey]bool),
		GetTaskErr: make(map[uint64]error),
	}
}

var _ contractCaller.IContractCaller = (*FakeContractCaller)(nil)

// SeedBalance sets an agent's prepaid balance directly.
func (f *FakeContractCaller) SeedBalance(agent common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[agent] = new(big.Int).Set(amount)
}

// SeedWalletUsdc sets an agent's token wallet balance directly.
func (f *FakeContractCaller) SeedWalletUsdc(agent common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallets[agent] = new(big.Int).Set(amount)
}

// SeedTask inserts a task directly, advancing the counter if needed.
func (f *FakeContractCaller) SeedTask(task *types.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.Id] = task
	if task.Id > f.counter {
		f.counter = task.Id
	}
}

// SeedStats sets an agent's earnings record directly.
func (f *FakeContractCaller) SeedStats(stats *types.AgentStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[stats.Agent] = stats
}

// GrantAccess marks a premium access grant directly.
func (f *FakeContractCaller) GrantAccess(taskId uint64, agent common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access[accessKey{taskId, agent}] = true
}

func (f *FakeContractCaller) GetTask(ctx context.Context, taskId uint64) (*types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.GetTaskErr[taskId]; err != nil {
		return nil, err
	}
	task, ok := f.tasks[taskId]
	if !ok {
		return nil, errors.Errorf("task %d does not exist", taskId)
	}
	copied := *task
	return &copied, nil
}

func (f *FakeContractCaller) TaskCounter(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TaskCounterErr != nil {
		return 0, f.TaskCounterErr
	}
	return f.counter, nil
}

func (f *FakeContractCaller) GetBalance(ctx context.Context, agent common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetBalanceErr != nil {
		return nil, f.GetBalanceErr
	}
	return new(big.Int).Set(f.balanceOf(agent)), nil
}

func (f *FakeContractCaller) ApiCallCount(ctx context.Context, agent common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apiCalls[agent], nil
}

func (f *FakeContractCaller) AgentEarnings(ctx context.Context, agent common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stats, ok := f.stats[agent]; ok {
		return new(big.Int).Set(stats.TotalEarnings), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeContractCaller) GetAgentStats(ctx context.Context, agent common.Address) (*types.AgentStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stats, ok := f.stats[agent]; ok {
		copied := *stats
		return &copied, nil
	}
	return &types.AgentStats{Agent: agent, TotalEarnings: big.NewInt(0)}, nil
}

func (f *FakeContractCaller) CheckTaskAccess(ctx context.Context, taskId uint64, agent common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access[accessKey{taskId, agent}], nil
}

func (f *FakeContractCaller) DefaultAccessFee(ctx context.Context) (*big.Int, error) {
	return big.NewInt(100000), nil
}

func (f *FakeContractCaller) ApiCallCost(ctx context.Context) (*big.Int, error) {
	return big.NewInt(10000), nil
}

func (f *FakeContractCaller) UsdcBalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount, ok := f.wallets[account]; ok {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeContractCaller) EthBalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *FakeContractCaller) BlockNumber(ctx context.Context) (uint64, error) {
	return 1000, nil
}

func (f *FakeContractCaller) ApproveEscrow(ctx context.Context, amount *big.Int) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt(nil), nil
}

func (f *FakeContractCaller) PostTask(ctx context.Context, description string, reward *big.Int, deadline uint64) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.counter++
	poster := common.HexToAddress(FakeSignerAddress)
	task := &types.Task{
		Id:          f.counter,
		Poster:      poster,
		Description: description,
		Reward:      new(big.Int).Set(reward),
		Status:      types.TaskStatusOpen,
		CreatedAt:   time.Now(),
		Deadline:    time.Unix(int64(deadline), 0),
	}
	f.tasks[task.Id] = task

	var logs []*ethtypes.Log
	if !f.OmitPostedEvent {
		logs = append(logs, taskPostedLog(task.Id, poster, reward))
	}
	return f.receipt(logs), nil
}

func (f *FakeContractCaller) AcceptTask(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error) {
	return f.transition(taskId, types.TaskStatusOpen, func(task *types.Task) {
		task.Status = types.TaskStatusAssigned
		task.Worker = common.HexToAddress(FakeSignerAddress)
	})
}

func (f *FakeContractCaller) SubmitProof(ctx context.Context, taskId uint64, proofURI string) (*ethtypes.Receipt, error) {
	return f.transition(taskId, types.TaskStatusAssigned, func(task *types.Task) {
		task.Status = types.TaskStatusSubmitted
		task.ProofURI = proofURI
	})
}

func (f *FakeContractCaller) CompleteTask(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error) {
	return f.transition(taskId, types.TaskStatusSubmitted, func(task *types.Task) {
		task.Status = types.TaskStatusCompleted
	})
}

func (f *FakeContractCaller) CancelTask(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskId]
	if !ok {
		return nil, errors.Errorf("task %d does not exist", taskId)
	}
	if task.Status != types.TaskStatusOpen && task.Status != types.TaskStatusAssigned {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "execution reverted: Cannot cancel")
	}
	task.Status = types.TaskStatusCancelled
	return f.receipt(nil), nil
}

func (f *FakeContractCaller) DepositBalance(ctx context.Context, amount *big.Int) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	signer := common.HexToAddress(FakeSignerAddress)
	f.balances[signer] = new(big.Int).Add(f.balanceOf(signer), amount)
	return f.receipt(nil), nil
}

func (f *FakeContractCaller) WithdrawBalance(ctx context.Context, amount *big.Int) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	signer := common.HexToAddress(FakeSignerAddress)
	balance := f.balanceOf(signer)
	if balance.Cmp(amount) < 0 {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "execution reverted: Insufficient balance")
	}
	f.balances[signer] = new(big.Int).Sub(balance, amount)
	return f.receipt(nil), nil
}

// ChargeApiCall debits atomically: the balance re-check and the debit hold
// the same lock, mirroring the contract's transactional guarantee.
func (f *FakeContractCaller) ChargeApiCall(ctx context.Context, agent common.Address, cost *big.Int) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChargeErr != nil {
		return nil, f.ChargeErr
	}
	balance := f.balanceOf(agent)
	if balance.Cmp(cost) < 0 {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "execution reverted: Insufficient balance")
	}
	f.balances[agent] = new(big.Int).Sub(balance, cost)
	f.apiCalls[agent]++
	return f.receipt(nil), nil
}

func (f *FakeContractCaller) PurchaseTaskAccess(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access[accessKey{taskId, common.HexToAddress(FakeSignerAddress)}] = true
	return f.receipt(nil), nil
}

func (f *FakeContractCaller) EncodeApproveCalldata(amount *big.Int) (*contractCaller.UnsignedTransaction, error) {
	return &contractCaller.UnsignedTransaction{
		To:          common.HexToAddress(FakeUsdcAddress),
		Data:        []byte{0x09, 0x5e, 0xa7, 0xb3},
		Description: "approve",
	}, nil
}

func (f *FakeContractCaller) EncodeDepositCalldata(amount *big.Int) (*contractCaller.UnsignedTransaction, error) {
	return &contractCaller.UnsignedTransaction{
		To:          common.HexToAddress(FakeMarketplaceAddress),
		Data:        []byte{0x01},
		Description: "depositBalance",
	}, nil
}

func (f *FakeContractCaller) EncodeWithdrawCalldata(amount *big.Int) (*contractCaller.UnsignedTransaction, error) {
	return &contractCaller.UnsignedTransaction{
		To:          common.HexToAddress(FakeMarketplaceAddress),
		Data:        []byte{0x02},
		Description: "withdrawBalance",
	}, nil
}

func (f *FakeContractCaller) EncodePurchaseAccessCalldata(taskId uint64) (*contractCaller.UnsignedTransaction, error) {
	return &contractCaller.UnsignedTransaction{
		To:          common.HexToAddress(FakeMarketplaceAddress),
		Data:        []byte{0x03},
		Description: "purchaseTaskAccess",
	}, nil
}

func (f *FakeContractCaller) MarketplaceAddress() common.Address {
	return common.HexToAddress(FakeMarketplaceAddress)
}

func (f *FakeContractCaller) UsdcAddress() common.Address {
	return common.HexToAddress(FakeUsdcAddress)
}

func (f *FakeContractCaller) SignerAddress() common.Address {
	return common.HexToAddress(FakeSignerAddress)
}

func (f *FakeContractCaller) balanceOf(agent common.Address) *big.Int {
	if balance, ok := f.balances[agent]; ok {
		return balance
	}
	return big.NewInt(0)
}

func (f *FakeContractCaller) transition(taskId uint64, required types.TaskStatus, apply func(*types.Task)) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskId]
	if !ok {
		return nil, errors.Errorf("task %d does not exist", taskId)
	}
	if task.Status != required {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "execution reverted: wrong status")
	}
	apply(task)
	return f.receipt(nil), nil
}

func (f *FakeContractCaller) receipt(logs []*ethtypes.Log) *ethtypes.Receipt {
	f.txCounter++
	return &ethtypes.Receipt{
		Status: ethtypes.ReceiptStatusSuccessful,
		TxHash: common.BigToHash(new(big.Int).SetUint64(f.txCounter)),
		Logs:   logs,
	}
}

// taskPostedLog builds a TaskPosted log exactly as the contract emits it:
// taskId and poster indexed in the topics, reward in the data word.
func taskPostedLog(taskId uint64, poster common.Address, reward *big.Int) *ethtypes.Log {
	marketplaceAbi, err := contracts.GetContractAbi(contracts.ContractName_AgentMarketplace)
	if err != nil {
		panic(err)
	}
	event := marketplaceAbi.Events["TaskPosted"]
	return &ethtypes.Log{
		Address: common.HexToAddress(FakeMarketplaceAddress),
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(new(big.Int).SetUint64(taskId)),
			common.BytesToHash(poster.Bytes()),
		},
		Data: common.LeftPadBytes(reward.Bytes(), 32),
	}
}
