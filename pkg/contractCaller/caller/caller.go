package caller

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/clients/ethereum"
	"github.com/csschan/agent-a2a-marketplace/pkg/contractCaller"
	"github.com/csschan/agent-a2a-marketplace/pkg/contracts"
	"github.com/csschan/agent-a2a-marketplace/pkg/transactionSigner"
	"github.com/csschan/agent-a2a-marketplace/pkg/types"
)

// marketplaceTask mirrors the getTask tuple layout on the contract.
type marketplaceTask struct {
	Id          *big.Int
	Poster      common.Address
	AssignedTo  common.Address
	Description string
	Reward      *big.Int
	Status      uint8
	ProofURI    string
	CreatedAt   *big.Int
	Deadline    *big.Int
}

type ContractCaller struct {
	marketplace        *bind.BoundContract
	usdc               *bind.BoundContract
	marketplaceAbi     *abi.ABI
	usdcAbi            *abi.ABI
	marketplaceAddress common.Address
	usdcAddress        common.Address
	ethclient          *ethclient.Client
	signer             transactionSigner.TransactionSigner
	logger             *zap.Logger
}

func NewContractCallerFromEthereumClient(
	ethClient *ethereum.EthereumClient,
	signer transactionSigner.TransactionSigner,
	marketplaceAddress common.Address,
	usdcAddress common.Address,
	logger *zap.Logger,
) (*ContractCaller, error) {
	client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return nil, err
	}

	return NewContractCaller(client, signer, marketplaceAddress, usdcAddress, logger)
}

func NewContractCaller(
	client *ethclient.Client,
	signer transactionSigner.TransactionSigner,
	marketplaceAddress common.Address,
	usdcAddress common.Address,
	logger *zap.Logger,
) (*ContractCaller, error) {
	logger.Sugar().Debugw("Creating contract caller",
		zap.String("marketplaceAddress", marketplaceAddress.Hex()),
		zap.String("usdcAddress", usdcAddress.Hex()),
	)

	marketplaceAbi, err := contracts.GetContractAbi(contracts.ContractName_AgentMarketplace)
	if err != nil {
		return nil, fmt.Errorf("failed to load marketplace ABI: %w", err)
	}

	usdcAbi, err := contracts.GetContractAbi(contracts.ContractName_ERC20)
	if err != nil {
		return nil, fmt.Errorf("failed to load ERC20 ABI: %w", err)
	}

	return &ContractCaller{
		marketplace:        bind.NewBoundContract(marketplaceAddress, *marketplaceAbi, client, client, client),
		usdc:               bind.NewBoundContract(usdcAddress, *usdcAbi, client, client, client),
		marketplaceAbi:     marketplaceAbi,
		usdcAbi:            usdcAbi,
		marketplaceAddress: marketplaceAddress,
		usdcAddress:        usdcAddress,
		ethclient:          client,
		signer:             signer,
		logger:             logger,
	}, nil
}

// ------- reads -------

func (cc *ContractCaller) GetTask(ctx context.Context, taskId uint64) (*types.Task, error) {
	var out []interface{}
	err := cc.marketplace.Call(&bind.CallOpts{Context: ctx}, &out, "getTask", new(big.Int).SetUint64(taskId))
	if err != nil {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "getTask(%d): %v", taskId, err)
	}

	raw := *abi.ConvertType(out[0], new(marketplaceTask)).(*marketplaceTask)

	status := types.TaskStatus(raw.Status)
	if !status.IsValid() {
		return nil, errors.Errorf("task %d has unknown status ordinal %d", taskId, raw.Status)
	}

	return &types.Task{
		Id:          raw.Id.Uint64(),
		Poster:      raw.Poster,
		Worker:      raw.AssignedTo,
		Description: raw.Description,
		Reward:      raw.Reward,
		Status:      status,
		ProofURI:    raw.ProofURI,
		CreatedAt:   time.Unix(raw.CreatedAt.Int64(), 0).UTC(),
		Deadline:    time.Unix(raw.Deadline.Int64(), 0).UTC(),
	}, nil
}

func (cc *ContractCaller) TaskCounter(ctx context.Context) (uint64, error) {
	count, err := cc.callUint(ctx, cc.marketplace, "taskCounter")
	if err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}

func (cc *ContractCaller) GetBalance(ctx context.Context, agent common.Address) (*big.Int, error) {
	return cc.callUint(ctx, cc.marketplace, "getBalance", agent)
}

func (cc *ContractCaller) ApiCallCount(ctx context.Context, agent common.Address) (uint64, error) {
	count, err := cc.callUint(ctx, cc.marketplace, "apiCallCount", agent)
	if err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}

func (cc *ContractCaller) AgentEarnings(ctx context.Context, agent common.Address) (*big.Int, error) {
	return cc.callUint(ctx, cc.marketplace, "agentEarnings", agent)
}

func (cc *ContractCaller) GetAgentStats(ctx context.Context, agent common.Address) (*types.AgentStats, error) {
	var out []interface{}
	err := cc.marketplace.Call(&bind.CallOpts{Context: ctx}, &out, "getAgentStats", agent)
	if err != nil {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "getAgentStats(%s): %v", agent.Hex(), err)
	}

	totalEarnings := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	tasksCompleted := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)

	return &types.AgentStats{
		Agent:          agent,
		TotalEarnings:  totalEarnings,
		TasksCompleted: tasksCompleted.Uint64(),
	}, nil
}

func (cc *ContractCaller) CheckTaskAccess(ctx context.Context, taskId uint64, agent common.Address) (bool, error) {
	var out []interface{}
	err := cc.marketplace.Call(&bind.CallOpts{Context: ctx}, &out, "checkTaskAccess", new(big.Int).SetUint64(taskId), agent)
	if err != nil {
		return false, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "checkTaskAccess(%d, %s): %v", taskId, agent.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (cc *ContractCaller) DefaultAccessFee(ctx context.Context) (*big.Int, error) {
	return cc.callUint(ctx, cc.marketplace, "defaultAccessFee")
}

func (cc *ContractCaller) ApiCallCost(ctx context.Context) (*big.Int, error) {
	return cc.callUint(ctx, cc.marketplace, "apiCallCost")
}

func (cc *ContractCaller) UsdcBalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return cc.callUint(ctx, cc.usdc, "balanceOf", account)
}

func (cc *ContractCaller) EthBalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := cc.ethclient.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "balanceAt(%s): %v", account.Hex(), err)
	}
	return balance, nil
}

func (cc *ContractCaller) BlockNumber(ctx context.Context) (uint64, error) {
	blockNumber, err := cc.ethclient.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "blockNumber: %v", err)
	}
	return blockNumber, nil
}

func (cc *ContractCaller) callUint(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) (*big.Int, error) {
	var out []interface{}
	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	if err != nil {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "%s: %v", method, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// ------- writes -------

func (cc *ContractCaller) ApproveEscrow(ctx context.Context, amount *big.Int) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.usdc, "approve", "ApproveEscrow", cc.marketplaceAddress, amount)
}

func (cc *ContractCaller) PostTask(ctx context.Context, description string, reward *big.Int, deadline uint64) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.marketplace, "postTask", "PostTask", description, reward, new(big.Int).SetUint64(deadline))
}

func (cc *ContractCaller) AcceptTask(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.marketplace, "acceptTask", "AcceptTask", new(big.Int).SetUint64(taskId))
}

func (cc *ContractCaller) SubmitProof(ctx context.Context, taskId uint64, proofURI string) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.marketplace, "submitProof", "SubmitProof", new(big.Int).SetUint64(taskId), proofURI)
}

func (cc *ContractCaller) CompleteTask(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.marketplace, "completeTask", "CompleteTask", new(big.Int).SetUint64(taskId))
}

func (cc *ContractCaller) CancelTask(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.marketplace, "cancelTask", "CancelTask", new(big.Int).SetUint64(taskId))
}

func (cc *ContractCaller) DepositBalance(ctx context.Context, amount *big.Int) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.marketplace, "depositBalance", "DepositBalance", amount)
}

func (cc *ContractCaller) WithdrawBalance(ctx context.Context, amount *big.Int) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.marketplace, "withdrawBalance", "WithdrawBalance", amount)
}

func (cc *ContractCaller) ChargeApiCall(ctx context.Context, agent common.Address, cost *big.Int) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.marketplace, "chargeApiCall", "ChargeApiCall", agent, cost)
}

func (cc *ContractCaller) PurchaseTaskAccess(ctx context.Context, taskId uint64) (*ethtypes.Receipt, error) {
	return cc.transact(ctx, cc.marketplace, "purchaseTaskAccess", "PurchaseTaskAccess", new(big.Int).SetUint64(taskId))
}

func (cc *ContractCaller) transact(ctx context.Context, contract *bind.BoundContract, method string, tag string, args ...interface{}) (*ethtypes.Receipt, error) {
	noSendTxOpts, err := cc.buildTransactionOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction options: %w", err)
	}

	tx, err := contract.Transact(noSendTxOpts, method, args...)
	if err != nil {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "%s: failed to create transaction: %v", tag, err)
	}

	receipt, err := cc.signer.SignAndSendTransaction(ctx, tx)
	if err != nil {
		return nil, errors.Wrapf(contractCaller.ErrLedgerCallFailed, "%s: %v", tag, err)
	}

	cc.logger.Sugar().Infow("transaction confirmed",
		zap.String("method", tag),
		zap.String("transactionHash", receipt.TxHash.Hex()),
	)
	return receipt, nil
}

func (cc *ContractCaller) buildTransactionOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return cc.signer.GetTransactOpts(ctx)
}

// ------- calldata encoders -------

func (cc *ContractCaller) EncodeApproveCalldata(amount *big.Int) (*contractCaller.UnsignedTransaction, error) {
	data, err := cc.usdcAbi.Pack("approve", cc.marketplaceAddress, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve calldata: %w", err)
	}
	return &contractCaller.UnsignedTransaction{
		To:          cc.usdcAddress,
		Data:        data,
		Description: "Approve USDC for marketplace escrow",
	}, nil
}

func (cc *ContractCaller) EncodeDepositCalldata(amount *big.Int) (*contractCaller.UnsignedTransaction, error) {
	data, err := cc.marketplaceAbi.Pack("depositBalance", amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack depositBalance calldata: %w", err)
	}
	return &contractCaller.UnsignedTransaction{
		To:          cc.marketplaceAddress,
		Data:        data,
		Description: "Deposit USDC for x402 payments",
	}, nil
}

func (cc *ContractCaller) EncodeWithdrawCalldata(amount *big.Int) (*contractCaller.UnsignedTransaction, error) {
	data, err := cc.marketplaceAbi.Pack("withdrawBalance", amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack withdrawBalance calldata: %w", err)
	}
	return &contractCaller.UnsignedTransaction{
		To:          cc.marketplaceAddress,
		Data:        data,
		Description: "Withdraw prepaid USDC balance",
	}, nil
}

func (cc *ContractCaller) EncodePurchaseAccessCalldata(taskId uint64) (*contractCaller.UnsignedTransaction, error) {
	data, err := cc.marketplaceAbi.Pack("purchaseTaskAccess", new(big.Int).SetUint64(taskId))
	if err != nil {
		return nil, fmt.Errorf("failed to pack purchaseTaskAccess calldata: %w", err)
	}
	return &contractCaller.UnsignedTransaction{
		To:          cc.marketplaceAddress,
		Data:        data,
		Description: fmt.Sprintf("Purchase access to task #%d", taskId),
	}, nil
}

// ------- addresses -------

func (cc *ContractCaller) MarketplaceAddress() common.Address {
	return cc.marketplaceAddress
}

func (cc *ContractCaller) UsdcAddress() common.Address {
	return cc.usdcAddress
}

func (cc *ContractCaller) SignerAddress() common.Address {
	return cc.signer.GetFromAddress()
}
