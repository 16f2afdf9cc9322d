package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestTaskStatusString(t *testing.T) {
	assert.Equal(t, "Open", TaskStatusOpen.String())
	assert.Equal(t, "Assigned", TaskStatusAssigned.String())
	assert.Equal(t, "Submitted", TaskStatusSubmitted.String())
	assert.Equal(t, "Completed", TaskStatusCompleted.String())
	assert.Equal(t, "Cancelled", TaskStatusCancelled.String())
	assert.Equal(t, "Unknown(9)", TaskStatus(9).String())
}

func TestTaskStatusIsValid(t *testing.T) {
	for status := TaskStatusOpen; status <= TaskStatusCancelled; status++ {
		assert.True(t, status.IsValid(), "status %d", status)
	}
	assert.False(t, TaskStatus(5).IsValid())
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, TaskStatusOpen.IsTerminal())
	assert.False(t, TaskStatusAssigned.IsTerminal())
	assert.False(t, TaskStatusSubmitted.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusCancelled.IsTerminal())
}

func TestHasWorker(t *testing.T) {
	task := &Task{}
	assert.False(t, task.HasWorker())

	task.Worker = common.HexToAddress("0x2222222222222222222222222222222222222222")
	assert.True(t, task.HasWorker())
}
