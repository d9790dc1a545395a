package models

import "time"

// PoolEntry is one live worker tracked in-memory by the pool: process
// handle, kind, task identifier, and start time.
type PoolEntry struct {
	PID       int
	Kind      WorkerKind
	TaskID    string
	StartedAt time.Time
	Dir       string // workers/worker-<TASK>-<epoch>
}

// WorkerOutcome is the final disposition of a completed worker,
// computed from its last pipeline step result and the violation sentinel.
type WorkerOutcome string

const (
	OutcomeSuccess WorkerOutcome = "success"
	OutcomeFailure WorkerOutcome = "failure"
	OutcomeRetry   WorkerOutcome = "retry"
)

// BatchRecord tracks the shared coordination state for a group of
// tasks that must run serially in a fixed order.
type BatchRecord struct {
	BatchID    string
	Order      []string // task IDs in run order
	Position   int      // index of the currently running task
	Status     string   // "active" or "failed"
	FailedTask string   // set when Status == "failed"
}

// Active reports whether the batch has neither finished nor failed.
func (b BatchRecord) Active() bool {
	return b.Status == "active" && b.Position < len(b.Order)
}
