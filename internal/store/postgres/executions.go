package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cronsched/internal/apperr"
	"cronsched/internal/entity"
)

func (s *Store) InsertExecution(ctx context.Context, exec entity.JobExecution) (entity.JobExecution, error) {
	start := time.Now()
	defer s.observe("insert_execution", start)

	const q = `
INSERT INTO job_executions (job_id, status, started_at, retry_count)
VALUES ($1,$2,$3,$4)
RETURNING id;
`
	row := s.pool.QueryRow(ctx, q, exec.JobID, string(exec.Status), exec.StartedAt, exec.RetryCount)
	if err := row.Scan(&exec.ID); err != nil {
		return entity.JobExecution{}, apperr.Wrap(apperr.TransientStore, "insert execution", err)
	}
	return exec, nil
}

func (s *Store) CompleteExecution(ctx context.Context, exec entity.JobExecution) error {
	start := time.Now()
	defer s.observe("complete_execution", start)

	const q = `
UPDATE job_executions
SET status=$3, completed_at=$4, duration_ms=$5, error_message=$6, output=$7
WHERE id=$1 AND started_at=$2;
`
	tag, err := s.pool.Exec(ctx, q,
		exec.ID, exec.StartedAt, string(exec.Status), exec.CompletedAt, exec.DurationMs, exec.ErrorMessage, exec.Output,
	)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "complete execution", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("execution %s not found", exec.ID)
	}
	return nil
}

func (s *Store) ListExecutions(ctx context.Context, jobID uuid.UUID, page, limit int) ([]entity.JobExecution, int64, error) {
	start := time.Now()
	defer s.observe("list_executions", start)

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM job_executions WHERE job_id=$1;`, jobID).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.TransientStore, "count executions", err)
	}

	offset := (page - 1) * limit
	const q = `
SELECT id, job_id, status, started_at, completed_at, duration_ms, error_message, retry_count, output
FROM job_executions WHERE job_id=$1 ORDER BY started_at DESC LIMIT $2 OFFSET $3;
`
	rows, err := s.pool.Query(ctx, q, jobID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.TransientStore, "list executions", err)
	}
	defer rows.Close()

	var execs []entity.JobExecution
	for rows.Next() {
		var e entity.JobExecution
		var status string
		if err := rows.Scan(&e.ID, &e.JobID, &status, &e.StartedAt, &e.CompletedAt, &e.DurationMs, &e.ErrorMessage, &e.RetryCount, &e.Output); err != nil {
			return nil, 0, apperr.Wrap(apperr.TransientStore, "scan execution", err)
		}
		e.Status = entity.ExecutionStatus(status)
		execs = append(execs, e)
	}
	return execs, total, rows.Err()
}

// OrphanedExecutions returns running rows started before olderThan — the
// reconciliation target for the scheduler's boot-time and periodic sweep.
func (s *Store) OrphanedExecutions(ctx context.Context, olderThan time.Time) ([]entity.JobExecution, error) {
	start := time.Now()
	defer s.observe("orphaned_executions", start)

	const q = `
SELECT id, job_id, status, started_at, completed_at, duration_ms, error_message, retry_count, output
FROM job_executions WHERE status = 'running' AND started_at < $1;
`
	rows, err := s.pool.Query(ctx, q, olderThan)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "orphaned executions", err)
	}
	defer rows.Close()

	var execs []entity.JobExecution
	for rows.Next() {
		var e entity.JobExecution
		var status string
		if err := rows.Scan(&e.ID, &e.JobID, &status, &e.StartedAt, &e.CompletedAt, &e.DurationMs, &e.ErrorMessage, &e.RetryCount, &e.Output); err != nil {
			return nil, apperr.Wrap(apperr.TransientStore, "scan execution", err)
		}
		e.Status = entity.ExecutionStatus(status)
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

func (s *Store) CleanupOldExecutions(ctx context.Context, days int) (int64, error) {
	start := time.Now()
	defer s.observe("cleanup_old_executions", start)

	var deleted int64
	if err := s.pool.QueryRow(ctx, `SELECT cleanup_old_executions($1);`, days).Scan(&deleted); err != nil {
		return 0, apperr.Wrap(apperr.TransientStore, "cleanup old executions", err)
	}
	return deleted, nil
}
