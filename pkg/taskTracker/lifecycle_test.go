package taskTracker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/csschan/agent-a2a-marketplace/pkg/types"
)

// Every status pair is checked so no edge outside the lifecycle can sneak
// in: exactly five transitions are reachable.
func TestCanTransitionExhaustive(t *testing.T) {
	allowed := map[[2]types.TaskStatus]bool{
		{types.TaskStatusOpen, types.TaskStatusAssigned}:      true,
		{types.TaskStatusOpen, types.TaskStatusCancelled}:     true,
		{types.TaskStatusAssigned, types.TaskStatusSubmitted}: true,
		{types.TaskStatusAssigned, types.TaskStatusCancelled}: true,
		{types.TaskStatusSubmitted, types.TaskStatusCompleted}: true,
	}

	statuses := []types.TaskStatus{
		types.TaskStatusOpen,
		types.TaskStatusAssigned,
		types.TaskStatusSubmitted,
		types.TaskStatusCompleted,
		types.TaskStatusCancelled,
	}

	edgeCount := 0
	for _, from := range statuses {
		for _, to := range statuses {
			expected := allowed[[2]types.TaskStatus{from, to}]
			assert.Equal(t, expected, CanTransition(from, to), "%s -> %s", from, to)
			if CanTransition(from, to) {
				edgeCount++
			}
		}
	}
	assert.Equal(t, 5, edgeCount)
}

func TestGuardTransition(t *testing.T) {
	task := &types.Task{Id: 1, Status: types.TaskStatusCompleted}
	err := guardTransition(task, types.TaskStatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	task.Status = types.TaskStatusOpen
	assert.NoError(t, guardTransition(task, types.TaskStatusAssigned))
}
