package transactionLogParser

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrEventNotFound indicates a confirmed receipt did not carry the event a
// caller depends on. This is a protocol violation, not a transient fault:
// retrying the read will not make the event appear.
var ErrEventNotFound = errors.New("expected event not found in receipt logs")

// TransactionLogParser handles the parsing and decoding of transaction
// receipt logs using a contract ABI.
type TransactionLogParser struct {
	abi    *abi.ABI
	logger *zap.Logger
}

func NewTransactionLogParser(abi *abi.ABI, logger *zap.Logger) *TransactionLogParser {
	return &TransactionLogParser{
		abi:    abi,
		logger: logger,
	}
}

// ScanForEvent walks a receipt's ordered log and returns the first entry
// matching the given event name. The position of an event in the log is
// not guaranteed, so callers must never index into the log directly;
// unrelated events may co-occur in the same receipt. Returns
// ErrEventNotFound when no log matches.
func (tlp *TransactionLogParser) ScanForEvent(receipt *ethtypes.Receipt, eventName string) (*DecodedLog, error) {
	if receipt == nil {
		return nil, errors.New("nil receipt")
	}

	for _, lg := range receipt.Logs {
		decoded, err := tlp.DecodeLog(lg)
		if err != nil {
			// Logs emitted by other contracts in the same receipt will not
			// decode against our ABI; skip them.
			tlp.logger.Sugar().Debugw("skipping undecodable log",
				zap.String("transactionHash", receipt.TxHash.Hex()),
				zap.Uint("logIndex", lg.Index),
				zap.Error(err),
			)
			continue
		}
		if decoded.EventName == eventName {
			return decoded, nil
		}
	}

	return nil, errors.Wrapf(ErrEventNotFound, "event %s, transaction %s", eventName, receipt.TxHash.Hex())
}

// DecodeLog decodes a single receipt log using the configured ABI.
// It extracts the event name, its indexed arguments from the topics and
// its remaining arguments from the data payload.
func (tlp *TransactionLogParser) DecodeLog(lg *ethtypes.Log) (*DecodedLog, error) {
	if tlp.abi == nil {
		return nil, errors.New("no ABI provided for decoding log")
	}

	topicHash := common.Hash{}
	if len(lg.Topics) > 0 {
		topicHash = lg.Topics[0]
	}

	decodedLog := &DecodedLog{
		Address:  lg.Address.String(),
		LogIndex: uint64(lg.Index),
	}

	event, err := tlp.abi.EventByID(topicHash)
	if err != nil {
		return decodedLog, errors.Wrapf(err, "failed to find event by ID '%s'", topicHash.Hex())
	}

	decodedLog.EventName = event.RawName
	decodedLog.Arguments = make([]Argument, len(event.Inputs))

	for i, input := range event.Inputs {
		decodedLog.Arguments[i] = Argument{
			Name:    input.Name,
			Type:    input.Type.String(),
			Indexed: input.Indexed,
		}
	}

	if len(lg.Topics) > 1 {
		indexed := indexedInputs(event.Inputs)
		for i, topic := range lg.Topics[1:] {
			if i >= len(indexed) {
				break
			}
			value, err := parseLogValueForType(indexed[i], topic)
			if err != nil {
				tlp.logger.Sugar().Errorw("failed to parse log topic value",
					zap.String("eventName", event.RawName),
					zap.Error(err),
				)
				continue
			}
			setArgumentValue(decodedLog.Arguments, indexed[i].Name, value)
		}
	}

	if len(lg.Data) > 0 {
		outputDataMap := make(map[string]interface{})
		if err := tlp.abi.UnpackIntoMap(outputDataMap, event.Name, lg.Data); err != nil {
			tlp.logger.Sugar().Errorw("failed to unpack event data",
				zap.Error(err),
				zap.String("address", lg.Address.String()),
				zap.String("eventName", event.Name),
			)
			return nil, errors.New("failed to unpack event data")
		}
		decodedLog.OutputData = outputDataMap
	}

	return decodedLog, nil
}

func indexedInputs(inputs abi.Arguments) abi.Arguments {
	out := make(abi.Arguments, 0, len(inputs))
	for _, input := range inputs {
		if input.Indexed {
			out = append(out, input)
		}
	}
	return out
}

func setArgumentValue(args []Argument, name string, value interface{}) {
	for i := range args {
		if args[i].Name == name {
			args[i].Value = value
			return
		}
	}
}

// parseLogValueForType converts an indexed topic word to an appropriate Go
// type based on the ABI argument type. Dynamic types (string, bytes) are
// stored hashed in topics and cannot be recovered, so their hash is
// returned hex-encoded.
func parseLogValueForType(argument abi.Argument, topic common.Hash) (interface{}, error) {
	switch argument.Type.T {
	case abi.IntTy, abi.UintTy:
		return abi.ReadInteger(argument.Type, topic.Bytes())
	case abi.BoolTy:
		return readBool(topic.Bytes())
	case abi.AddressTy:
		return common.BytesToAddress(topic.Bytes()), nil
	default:
		return hexutil.Encode(topic.Bytes()), nil
	}
}

var errBadBool = fmt.Errorf("abi: improperly encoded boolean value")

func readBool(word []byte) (bool, error) {
	for _, b := range word[:31] {
		if b != 0 {
			return false, errBadBool
		}
	}
	switch word[31] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errBadBool
	}
}
