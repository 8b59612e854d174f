package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the state machine for a single execution attempt.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionTimeout   ExecutionStatus = "timeout"
)

// Terminal reports whether the status is one a row never leaves.
func (s ExecutionStatus) Terminal() bool {
	return s != ExecutionRunning
}

// JobExecution is an append-only history row. Once Status leaves Running it
// is immutable.
type JobExecution struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	Status       ExecutionStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	DurationMs   *int64
	ErrorMessage *string
	RetryCount   int
	Output       json.RawMessage
}

type executionJSON struct {
	ID           string          `json:"id"`
	JobID        string          `json:"jobId"`
	Status       ExecutionStatus `json:"status"`
	StartedAt    time.Time       `json:"startedAt"`
	CompletedAt  *time.Time      `json:"completedAt"`
	DurationMs   *int64          `json:"durationMs"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	RetryCount   int             `json:"retryCount"`
	Output       json.RawMessage `json:"output,omitempty"`
}

func (e JobExecution) MarshalJSON() ([]byte, error) {
	return json.Marshal(executionJSON{
		ID:           e.ID.String(),
		JobID:        e.JobID.String(),
		Status:       e.Status,
		StartedAt:    e.StartedAt,
		CompletedAt:  e.CompletedAt,
		DurationMs:   e.DurationMs,
		ErrorMessage: e.ErrorMessage,
		RetryCount:   e.RetryCount,
		Output:       e.Output,
	})
}
