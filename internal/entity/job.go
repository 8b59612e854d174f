// Package entity holds the plain value records this module persists,
// along with their JSON wire conversions. Persistence lives elsewhere:
// repository.JobRepository is a struct that holds a store handle.
package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType affects only the simulated executor's output label, never
// scheduling semantics.
type JobType string

const (
	JobTypeScheduled JobType = "scheduled"
	JobTypeImmediate JobType = "immediate"
	JobTypeRecurring JobType = "recurring"
	JobTypeDelayed   JobType = "delayed"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeScheduled, JobTypeImmediate, JobTypeRecurring, JobTypeDelayed:
		return true
	default:
		return false
	}
}

// Defaults and bounds from the data model.
const (
	DefaultTimeoutMs    = 30000
	MinTimeoutMs        = 1000
	MaxTimeoutMs        = 300000
	DefaultMaxRetries   = 3
	MinMaxRetries       = 0
	MaxMaxRetries       = 10
	DefaultRetryDelayMs = 5000
	MinRetryDelayMs     = 1000
	MaxRetryDelayMs     = 60000

	MaxNameLen        = 255
	MaxDescriptionLen = 1000
	MaxCreatedByLen   = 255
	MaxTagLen         = 50
	MaxTagCount       = 10
)

// Job is the durable scheduling unit. Counters are non-negative and satisfy
// successful_runs + failed_runs <= total_runs (the inequality accounts for
// executions currently in flight).
type Job struct {
	ID             uuid.UUID
	Name           string
	Description    string
	CronExpression string
	IsActive       bool
	JobType        JobType
	Payload        json.RawMessage
	TimeoutMs      int
	MaxRetries     int
	RetryDelayMs   int
	CreatedBy      string
	Tags           []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
}

// jobJSON is the wire shape for Job; camelCase per the REST contract.
type jobJSON struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	CronExpression string          `json:"cronExpression"`
	IsActive       bool            `json:"isActive"`
	JobType        JobType         `json:"jobType"`
	Payload        json.RawMessage `json:"payload"`
	TimeoutMs      int             `json:"timeoutMs"`
	MaxRetries     int             `json:"maxRetries"`
	RetryDelayMs   int             `json:"retryDelayMs"`
	CreatedBy      string          `json:"createdBy,omitempty"`
	Tags           []string        `json:"tags"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	LastRunAt      *time.Time      `json:"lastRunAt"`
	NextRunAt      *time.Time      `json:"nextRunAt"`
	TotalRuns      int64           `json:"totalRuns"`
	SuccessfulRuns int64           `json:"successfulRuns"`
	FailedRuns     int64           `json:"failedRuns"`
}

// MarshalJSON renders the REST wire shape (camelCase field names).
func (j Job) MarshalJSON() ([]byte, error) {
	tags := j.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(jobJSON{
		ID:             j.ID.String(),
		Name:           j.Name,
		Description:    j.Description,
		CronExpression: j.CronExpression,
		IsActive:       j.IsActive,
		JobType:        j.JobType,
		Payload:        j.Payload,
		TimeoutMs:      j.TimeoutMs,
		MaxRetries:     j.MaxRetries,
		RetryDelayMs:   j.RetryDelayMs,
		CreatedBy:      j.CreatedBy,
		Tags:           tags,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
		LastRunAt:      j.LastRunAt,
		NextRunAt:      j.NextRunAt,
		TotalRuns:      j.TotalRuns,
		SuccessfulRuns: j.SuccessfulRuns,
		FailedRuns:     j.FailedRuns,
	})
}

// UnmarshalJSON parses the REST wire shape back into a Job.
func (j *Job) UnmarshalJSON(data []byte) error {
	var wire jobJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.ID != "" {
		id, err := uuid.Parse(wire.ID)
		if err != nil {
			return err
		}
		j.ID = id
	}
	j.Name = wire.Name
	j.Description = wire.Description
	j.CronExpression = wire.CronExpression
	j.IsActive = wire.IsActive
	j.JobType = wire.JobType
	j.Payload = wire.Payload
	j.TimeoutMs = wire.TimeoutMs
	j.MaxRetries = wire.MaxRetries
	j.RetryDelayMs = wire.RetryDelayMs
	j.CreatedBy = wire.CreatedBy
	j.Tags = wire.Tags
	j.CreatedAt = wire.CreatedAt
	j.UpdatedAt = wire.UpdatedAt
	j.LastRunAt = wire.LastRunAt
	j.NextRunAt = wire.NextRunAt
	j.TotalRuns = wire.TotalRuns
	j.SuccessfulRuns = wire.SuccessfulRuns
	j.FailedRuns = wire.FailedRuns
	return nil
}

// SuccessRate returns a fixed-2-decimal percentage of successful/total runs.
func (j Job) SuccessRate() string {
	if j.TotalRuns == 0 {
		return "0.00"
	}
	rate := float64(j.SuccessfulRuns) / float64(j.TotalRuns) * 100
	return fmt.Sprintf("%.2f", rate)
}
