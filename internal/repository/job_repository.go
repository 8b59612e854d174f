// Package repository sits above store.Store and owns the job-creation and
// job-update business logic: input validation, default application, and
// next-run computation. Handlers and the scheduler depend on this package,
// never on store.Store directly.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cronsched/internal/clock"
	"cronsched/internal/cron"
	"cronsched/internal/entity"
	"cronsched/internal/store"
)

// JobRepository is the business-level facade over a durable Store. It
// computes NextRunAt on create and on any cron-expression change, using the
// injected Evaluator and Clock, so callers never touch cron arithmetic
// directly.
type JobRepository struct {
	store     store.Store
	evaluator *cron.Evaluator
	clock     clock.Clock
}

// New builds a JobRepository. A nil clock defaults to clock.Real{}.
func New(st store.Store, evaluator *cron.Evaluator, clk clock.Clock) *JobRepository {
	if clk == nil {
		clk = clock.Real{}
	}
	return &JobRepository{store: st, evaluator: evaluator, clock: clk}
}

// FindAll returns a page of jobs matching filter.
func (r *JobRepository) FindAll(ctx context.Context, page, limit int, filter entity.JobFilter) ([]entity.Job, entity.Pagination, error) {
	jobs, total, err := r.store.FindJobs(ctx, filter, page, limit)
	if err != nil {
		return nil, entity.Pagination{}, err
	}
	return jobs, entity.NewPagination(page, limit, total), nil
}

// FindByID returns the job with id, or (nil, nil) if it does not exist.
func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.store.GetJob(ctx, id)
}

// Create validates in, computes the initial NextRunAt, and persists the job.
func (r *JobRepository) Create(ctx context.Context, in entity.JobInput) (entity.Job, error) {
	job, err := entity.ValidateCreate(in, r.evaluator.Validate)
	if err != nil {
		return entity.Job{}, err
	}

	now := r.clock.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	if job.IsActive {
		next := r.evaluator.NextAfter(job.CronExpression, now)
		job.NextRunAt = &next
	}

	return r.store.InsertJob(ctx, job)
}

// Update applies a partial patch to the job with id, recomputing NextRunAt
// when the cron expression changed or the job was just activated.
func (r *JobRepository) Update(ctx context.Context, id uuid.UUID, in entity.JobInput) (entity.Job, error) {
	existing, err := r.store.GetJob(ctx, id)
	if err != nil {
		return entity.Job{}, err
	}
	if existing == nil {
		return entity.Job{}, jobNotFound(id)
	}

	wasActive := existing.IsActive
	patched, cronChanged, err := entity.ApplyPatch(*existing, in, r.evaluator.Validate)
	if err != nil {
		return entity.Job{}, err
	}

	now := r.clock.Now()
	patched.UpdatedAt = now

	switch {
	case patched.IsActive && (cronChanged || !wasActive):
		next := r.evaluator.NextAfter(patched.CronExpression, now)
		patched.NextRunAt = &next
	case !patched.IsActive:
		patched.NextRunAt = nil
	}

	return r.store.UpdateJob(ctx, patched)
}

// Delete removes the job with id and returns the deleted row, or (nil, nil)
// if it did not exist.
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.store.DeleteJob(ctx, id)
}

// UpdateJobStats records the outcome of an execution and advances the job's
// NextRunAt in the same call, so a caller never observes a job whose stats
// reflect a run but whose NextRunAt still points at the run that just
// happened.
func (r *JobRepository) UpdateJobStats(ctx context.Context, id uuid.UUID, success bool) error {
	now := r.clock.Now()
	if err := r.store.UpdateJobStats(ctx, id, success, now); err != nil {
		return err
	}

	job, err := r.store.GetJob(ctx, id)
	if err != nil || job == nil {
		return err
	}
	if !job.IsActive {
		return nil
	}
	next := r.evaluator.NextAfter(job.CronExpression, now)
	return r.store.UpdateJobNextRun(ctx, id, &next)
}

// GetActiveJobs returns every active job, for the scheduler's sync loop.
// limit bounds a single page; the scheduler is expected to pass a value
// large enough to cover its whole active set.
func (r *JobRepository) GetActiveJobs(ctx context.Context, limit int) ([]entity.Job, error) {
	return r.store.ActiveJobs(ctx, limit)
}

// RecordExecutionStart inserts a running execution row.
func (r *JobRepository) RecordExecutionStart(ctx context.Context, jobID uuid.UUID, retryCount int) (entity.JobExecution, error) {
	return r.store.InsertExecution(ctx, entity.JobExecution{
		JobID:      jobID,
		Status:     entity.ExecutionRunning,
		StartedAt:  r.clock.Now(),
		RetryCount: retryCount,
	})
}

// RecordExecutionEnd finalizes an execution row and its job's stats/next run.
func (r *JobRepository) RecordExecutionEnd(ctx context.Context, exec entity.JobExecution) error {
	if exec.CompletedAt == nil {
		now := r.clock.Now()
		exec.CompletedAt = &now
	}
	if exec.DurationMs == nil {
		d := exec.CompletedAt.Sub(exec.StartedAt).Milliseconds()
		exec.DurationMs = &d
	}
	if err := r.store.CompleteExecution(ctx, exec); err != nil {
		return err
	}
	return r.UpdateJobStats(ctx, exec.JobID, exec.Status == entity.ExecutionCompleted)
}

// ListExecutions returns a page of executions for jobID.
func (r *JobRepository) ListExecutions(ctx context.Context, jobID uuid.UUID, page, limit int) ([]entity.JobExecution, entity.Pagination, error) {
	execs, total, err := r.store.ListExecutions(ctx, jobID, page, limit)
	if err != nil {
		return nil, entity.Pagination{}, err
	}
	return execs, entity.NewPagination(page, limit, total), nil
}

// ReconcileOrphans marks executions that have been "running" longer than
// staleAfter as failed. The scheduler calls this at boot and on its periodic
// sync tick to recover from a crash mid-execution.
func (r *JobRepository) ReconcileOrphans(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := r.clock.Now().Add(-staleAfter)
	orphans, err := r.store.OrphanedExecutions(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	now := r.clock.Now()
	for _, exec := range orphans {
		exec.Status = entity.ExecutionFailed
		exec.CompletedAt = &now
		d := now.Sub(exec.StartedAt).Milliseconds()
		exec.DurationMs = &d
		msg := "orphaned: scheduler restart"
		exec.ErrorMessage = &msg
		if err := r.store.CompleteExecution(ctx, exec); err != nil {
			return 0, err
		}
		if err := r.store.UpdateJobStats(ctx, exec.JobID, false, now); err != nil {
			return 0, err
		}
	}
	return len(orphans), nil
}

// Stats returns aggregate database statistics for the /jobs/stats endpoint.
func (r *JobRepository) Stats(ctx context.Context) (store.DatabaseStats, error) {
	return r.store.DatabaseStats(ctx)
}

// CleanupOldExecutions deletes executions started more than days ago.
func (r *JobRepository) CleanupOldExecutions(ctx context.Context, days int) (int64, error) {
	return r.store.CleanupOldExecutions(ctx, days)
}

// HealthCheck reports the underlying Store's health.
func (r *JobRepository) HealthCheck(ctx context.Context) (store.HealthStatus, error) {
	return r.store.HealthCheck(ctx)
}
