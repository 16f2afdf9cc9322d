package taskTracker

import (
	"github.com/pkg/errors"

	"github.com/csschan/agent-a2a-marketplace/pkg/types"
)

// ErrInvalidTransition indicates a lifecycle operation was attempted
// against a task whose current status does not permit it.
var ErrInvalidTransition = errors.New("invalid task status transition")

// ErrInvalidInput indicates a request failed local validation before any
// ledger interaction.
var ErrInvalidInput = errors.New("invalid input")

// legalEdges defines the only reachable status transitions. Completed and
// Cancelled are terminal.
var legalEdges = map[types.TaskStatus][]types.TaskStatus{
	types.TaskStatusOpen:      {types.TaskStatusAssigned, types.TaskStatusCancelled},
	types.TaskStatusAssigned:  {types.TaskStatusSubmitted, types.TaskStatusCancelled},
	types.TaskStatusSubmitted: {types.TaskStatusCompleted},
}

// CanTransition reports whether the lifecycle permits moving a task from
// one status to another.
func CanTransition(from, to types.TaskStatus) bool {
	for _, next := range legalEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

func guardTransition(task *types.Task, to types.TaskStatus) error {
	if !CanTransition(task.Status, to) {
		return errors.Wrapf(ErrInvalidTransition,
			"task %d is %s, cannot move to %s", task.Id, task.Status, to)
	}
	return nil
}
