package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TaskStatus mirrors the contract's status enum ordinals exactly.
type TaskStatus uint8

const (
	TaskStatusOpen TaskStatus = iota
	TaskStatusAssigned
	TaskStatusSubmitted
	TaskStatusCompleted
	TaskStatusCancelled
)

var taskStatusNames = map[TaskStatus]string{
	TaskStatusOpen:      "Open",
	TaskStatusAssigned:  "Assigned",
	TaskStatusSubmitted: "Submitted",
	TaskStatusCompleted: "Completed",
	TaskStatusCancelled: "Cancelled",
}

func (s TaskStatus) String() string {
	if name, ok := taskStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(s))
}

func (s TaskStatus) IsValid() bool {
	_, ok := taskStatusNames[s]
	return ok
}

// IsTerminal reports whether the task can never move again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// Task is a projection of the contract's task record. Reward is the raw
// 6-decimal fixed-point escrow amount.
type Task struct {
	Id          uint64
	Poster      common.Address
	Worker      common.Address
	Description string
	Reward      *big.Int
	Status      TaskStatus
	ProofURI    string
	CreatedAt   time.Time
	Deadline    time.Time
}

// HasWorker reports whether the task has been accepted. The contract
// stores the zero address until then.
func (t *Task) HasWorker() bool {
	return t.Worker != (common.Address{})
}

type AgentBalance struct {
	Agent          common.Address
	PrepaidBalance *big.Int
	ApiCallCount   uint64
}

type AgentStats struct {
	Agent          common.Address
	TotalEarnings  *big.Int
	TasksCompleted uint64
}
