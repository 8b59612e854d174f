// Package store defines the durable persistence contract for jobs and
// executions. Concrete implementations live in store/postgres (production,
// backed by pgx) and store/sqlite (local dev).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cronsched/internal/entity"
)

// HealthStatus is returned by Store.HealthCheck.
type HealthStatus struct {
	Healthy   bool
	LatencyMs int64
}

// DatabaseStats feeds the /jobs/stats "database" sub-document.
type DatabaseStats struct {
	TotalJobs         int64
	ActiveJobs        int64
	TotalExecutions   int64
	RecentExecutions  int64 // last 24h
	JobsByType        map[entity.JobType]int64
}

// Store is the durable persistence contract. Every method is a single
// logical operation: it acquires a connection, runs its statement(s), and
// releases the connection before returning. No transaction spans more than
// one Store call from the caller's perspective except where noted
// (UpdateJobStats is required to be atomic internally).
type Store interface {
	HealthCheck(ctx context.Context) (HealthStatus, error)

	InsertJob(ctx context.Context, job entity.Job) (entity.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	UpdateJob(ctx context.Context, job entity.Job) (entity.Job, error)
	DeleteJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	FindJobs(ctx context.Context, filter entity.JobFilter, page, limit int) ([]entity.Job, int64, error)
	ActiveJobs(ctx context.Context, limit int) ([]entity.Job, error)
	UpdateJobStats(ctx context.Context, id uuid.UUID, success bool, now time.Time) error
	UpdateJobNextRun(ctx context.Context, id uuid.UUID, nextRun *time.Time) error

	InsertExecution(ctx context.Context, exec entity.JobExecution) (entity.JobExecution, error)
	CompleteExecution(ctx context.Context, exec entity.JobExecution) error
	ListExecutions(ctx context.Context, jobID uuid.UUID, page, limit int) ([]entity.JobExecution, int64, error)
	OrphanedExecutions(ctx context.Context, olderThan time.Time) ([]entity.JobExecution, error)
	DatabaseStats(ctx context.Context) (DatabaseStats, error)
	CleanupOldExecutions(ctx context.Context, days int) (int64, error)
}
