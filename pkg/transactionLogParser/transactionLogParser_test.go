package transactionLogParser

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csschan/agent-a2a-marketplace/pkg/contracts"
	"github.com/csschan/agent-a2a-marketplace/pkg/logger"
)

func newTestParser(t *testing.T) *TransactionLogParser {
	t.Helper()
	marketplaceAbi, err := contracts.GetContractAbi(contracts.ContractName_AgentMarketplace)
	require.NoError(t, err)
	return NewTransactionLogParser(marketplaceAbi, logger.NewNoopLogger())
}

func taskPostedLog(t *testing.T, taskId uint64, poster common.Address, reward *big.Int) *ethtypes.Log {
	t.Helper()
	marketplaceAbi, err := contracts.GetContractAbi(contracts.ContractName_AgentMarketplace)
	require.NoError(t, err)
	event, ok := marketplaceAbi.Events["TaskPosted"]
	require.True(t, ok)

	return &ethtypes.Log{
		Address: common.HexToAddress("0x833F8f973786c040698509F203866029026CEfF6"),
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(new(big.Int).SetUint64(taskId)),
			common.BytesToHash(poster.Bytes()),
		},
		Data: common.LeftPadBytes(reward.Bytes(), 32),
	}
}

// foreignLog mimics an event from another contract sharing the receipt,
// e.g. the USDC Transfer emitted by the escrow pull.
func foreignLog() *ethtypes.Log {
	return &ethtypes.Log{
		Address: common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		Topics: []common.Hash{
			common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"),
			common.BytesToHash(common.HexToAddress("0x1111111111111111111111111111111111111111").Bytes()),
			common.BytesToHash(common.HexToAddress("0x2222222222222222222222222222222222222222").Bytes()),
		},
		Data: common.LeftPadBytes(big.NewInt(10000000).Bytes(), 32),
	}
}

func TestDecodeTaskPostedLog(t *testing.T) {
	parser := newTestParser(t)
	poster := common.HexToAddress("0x3333333333333333333333333333333333333333")

	decoded, err := parser.DecodeLog(taskPostedLog(t, 7, poster, big.NewInt(10000000)))
	require.NoError(t, err)
	assert.Equal(t, "TaskPosted", decoded.EventName)

	taskIdArg := decoded.ArgumentByName("taskId")
	require.NotNil(t, taskIdArg)
	taskId, ok := taskIdArg.Value.(*big.Int)
	require.True(t, ok)
	assert.Equal(t, uint64(7), taskId.Uint64())

	posterArg := decoded.ArgumentByName("poster")
	require.NotNil(t, posterArg)
	assert.Equal(t, poster, posterArg.Value)
}

// The event's position in the receipt log is not guaranteed; a scan must
// find it behind unrelated events from other contracts.
func TestScanForEventSkipsForeignLogs(t *testing.T) {
	parser := newTestParser(t)
	poster := common.HexToAddress("0x3333333333333333333333333333333333333333")

	receipt := &ethtypes.Receipt{
		TxHash: common.HexToHash("0xabc"),
		Logs: []*ethtypes.Log{
			foreignLog(),
			taskPostedLog(t, 42, poster, big.NewInt(5000000)),
		},
	}

	decoded, err := parser.ScanForEvent(receipt, "TaskPosted")
	require.NoError(t, err)
	assert.Equal(t, "TaskPosted", decoded.EventName)

	taskId := decoded.ArgumentByName("taskId").Value.(*big.Int)
	assert.Equal(t, uint64(42), taskId.Uint64())
}

func TestScanForEventNotFound(t *testing.T) {
	parser := newTestParser(t)

	receipt := &ethtypes.Receipt{
		TxHash: common.HexToHash("0xabc"),
		Logs:   []*ethtypes.Log{foreignLog()},
	}

	_, err := parser.ScanForEvent(receipt, "TaskPosted")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestScanForEventNilReceipt(t *testing.T) {
	parser := newTestParser(t)
	_, err := parser.ScanForEvent(nil, "TaskPosted")
	assert.Error(t, err)
}
