// Package taskTracker derives task lifecycle state from the settlement
// ledger. It holds no task store of its own: every query is a fresh
// projection over ledger reads, so there is no cache to drift out of sync.
package taskTracker

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/contractCaller"
	"github.com/csschan/agent-a2a-marketplace/pkg/transactionLogParser"
	"github.com/csschan/agent-a2a-marketplace/pkg/types"
	"github.com/csschan/agent-a2a-marketplace/pkg/util"
)

const taskPostedEventName = "TaskPosted"

type TaskTracker struct {
	contractCaller contractCaller.IContractCaller
	logParser      *transactionLogParser.TransactionLogParser
	logger         *zap.Logger
}

func NewTaskTracker(
	cc contractCaller.IContractCaller,
	logParser *transactionLogParser.TransactionLogParser,
	logger *zap.Logger,
) *TaskTracker {
	return &TaskTracker{
		contractCaller: cc,
		logParser:      logParser,
		logger:         logger,
	}
}

// PostedTask is the confirmation of a successful postTask write. The task
// id comes from the TaskPosted event on the receipt; the write's return
// value is not trustworthy for id extraction.
type PostedTask struct {
	TaskId          uint64
	TransactionHash common.Hash
}

// TransitionResult is the confirmation of a lifecycle transition write.
// Callers that need to see their own write must treat this receipt as the
// success signal: a read immediately after may still observe stale state.
type TransitionResult struct {
	TaskId          uint64
	TransactionHash common.Hash
}

// PostTask escrows the reward and creates a new task. The escrow approval
// and the post are two ledger writes; if the process dies between them the
// approval stands but no task exists, which is recoverable by reposting.
func (tt *TaskTracker) PostTask(ctx context.Context, description string, reward *big.Int, deadline time.Time) (*PostedTask, error) {
	if description == "" {
		return nil, errors.Wrap(ErrInvalidInput, "description is required")
	}
	if reward == nil || reward.Sign() <= 0 {
		return nil, errors.Wrap(ErrInvalidInput, "reward must be positive")
	}
	if !deadline.After(time.Now()) {
		return nil, errors.Wrap(ErrInvalidInput, "deadline must be in the future")
	}

	if _, err := tt.contractCaller.ApproveEscrow(ctx, reward); err != nil {
		return nil, errors.Wrap(err, "failed to approve escrow")
	}

	receipt, err := tt.contractCaller.PostTask(ctx, description, reward, uint64(deadline.Unix()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to post task")
	}

	decoded, err := tt.logParser.ScanForEvent(receipt, taskPostedEventName)
	if err != nil {
		// The write was confirmed but the confirmation event is missing.
		// This is a protocol violation, not a transient fault.
		return nil, err
	}

	taskIdArg := decoded.ArgumentByName("taskId")
	if taskIdArg == nil {
		return nil, errors.Errorf("%s event is missing taskId argument", taskPostedEventName)
	}
	taskId, ok := taskIdArg.Value.(*big.Int)
	if !ok {
		return nil, errors.Errorf("failed to parse taskId from %s event", taskPostedEventName)
	}

	tt.logger.Sugar().Infow("task posted",
		zap.Uint64("taskId", taskId.Uint64()),
		zap.String("transactionHash", receipt.TxHash.Hex()),
	)

	return &PostedTask{
		TaskId:          taskId.Uint64(),
		TransactionHash: receipt.TxHash,
	}, nil
}

// AcceptTask moves an Open task to Assigned, assigning the calling wallet
// as worker. The status guard is pre-checked against a fresh ledger read;
// the ledger re-enforces it at transaction time.
func (tt *TaskTracker) AcceptTask(ctx context.Context, taskId uint64) (*TransitionResult, error) {
	if err := tt.guard(ctx, taskId, types.TaskStatusAssigned); err != nil {
		return nil, err
	}

	receipt, err := tt.contractCaller.AcceptTask(ctx, taskId)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to accept task %d", taskId)
	}
	return tt.confirmed("task accepted", taskId, receipt.TxHash), nil
}

// SubmitProof moves an Assigned task to Submitted. Only the assigned
// worker may submit; that guard lives on the ledger, not here.
func (tt *TaskTracker) SubmitProof(ctx context.Context, taskId uint64, proofURI string) (*TransitionResult, error) {
	if proofURI == "" {
		return nil, errors.Wrap(ErrInvalidInput, "proofURI is required")
	}
	if err := tt.guard(ctx, taskId, types.TaskStatusSubmitted); err != nil {
		return nil, err
	}

	receipt, err := tt.contractCaller.SubmitProof(ctx, taskId, proofURI)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to submit proof for task %d", taskId)
	}
	return tt.confirmed("proof submitted", taskId, receipt.TxHash), nil
}

// CompleteTask moves a Submitted task to Completed, releasing the escrowed
// reward net of the platform fee on the ledger side. Poster-only, enforced
// by the ledger.
func (tt *TaskTracker) CompleteTask(ctx context.Context, taskId uint64) (*TransitionResult, error) {
	if err := tt.guard(ctx, taskId, types.TaskStatusCompleted); err != nil {
		return nil, err
	}

	receipt, err := tt.contractCaller.CompleteTask(ctx, taskId)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to complete task %d", taskId)
	}
	return tt.confirmed("task completed", taskId, receipt.TxHash), nil
}

// CancelTask moves an Open or Assigned task to Cancelled, refunding the
// escrow on the ledger side. Poster-only, enforced by the ledger.
func (tt *TaskTracker) CancelTask(ctx context.Context, taskId uint64) (*TransitionResult, error) {
	if err := tt.guard(ctx, taskId, types.TaskStatusCancelled); err != nil {
		return nil, err
	}

	receipt, err := tt.contractCaller.CancelTask(ctx, taskId)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to cancel task %d", taskId)
	}
	return tt.confirmed("task cancelled", taskId, receipt.TxHash), nil
}

func (tt *TaskTracker) GetTask(ctx context.Context, taskId uint64) (*types.Task, error) {
	return tt.contractCaller.GetTask(ctx, taskId)
}

// ListAll iterates task ids 1..taskCounter inclusive. An individual
// unreadable task is logged and skipped; it never aborts the listing.
func (tt *TaskTracker) ListAll(ctx context.Context) ([]*types.Task, uint64, error) {
	total, err := tt.contractCaller.TaskCounter(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to read task counter")
	}

	tasks := make([]*types.Task, 0, total)
	for id := uint64(1); id <= total; id++ {
		task, err := tt.contractCaller.GetTask(ctx, id)
		if err != nil {
			tt.logger.Sugar().Errorw("failed to fetch task, skipping",
				zap.Uint64("taskId", id),
				zap.Error(err),
			)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, total, nil
}

// ListByStatus returns every readable task currently in the given status.
func (tt *TaskTracker) ListByStatus(ctx context.Context, status types.TaskStatus) ([]*types.Task, error) {
	all, _, err := tt.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return util.Filter(all, func(task *types.Task) bool {
		return task.Status == status
	}), nil
}

func (tt *TaskTracker) guard(ctx context.Context, taskId uint64, to types.TaskStatus) error {
	task, err := tt.contractCaller.GetTask(ctx, taskId)
	if err != nil {
		return errors.Wrapf(err, "failed to read task %d for transition guard", taskId)
	}
	return guardTransition(task, to)
}

func (tt *TaskTracker) confirmed(msg string, taskId uint64, txHash common.Hash) *TransitionResult {
	tt.logger.Sugar().Infow(msg,
		zap.Uint64("taskId", taskId),
		zap.String("transactionHash", txHash.Hex()),
	)
	return &TransitionResult{
		TaskId:          taskId,
		TransactionHash: txHash,
	}
}
