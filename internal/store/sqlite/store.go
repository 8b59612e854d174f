// Package sqlite implements store.Store over database/sql and
// github.com/mattn/go-sqlite3, for local development without a Postgres
// instance; the server selects it through a sqlite:// connection string.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"cronsched/internal/apperr"
	"cronsched/internal/entity"
	"cronsched/internal/store"
)

// Store implements store.Store against a SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the SQLite file at path and applies schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	cron_expression TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 0,
	job_type TEXT NOT NULL DEFAULT 'scheduled',
	payload TEXT NOT NULL DEFAULT '{}',
	timeout_ms INTEGER NOT NULL DEFAULT 30000,
	max_retries INTEGER NOT NULL DEFAULT 3,
	retry_delay_ms INTEGER NOT NULL DEFAULT 5000,
	created_by TEXT,
	tags TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	last_run_at TEXT,
	next_run_at TEXT,
	total_runs INTEGER NOT NULL DEFAULT 0,
	successful_runs INTEGER NOT NULL DEFAULT 0,
	failed_runs INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_jobs_is_active ON jobs(is_active);

CREATE TABLE IF NOT EXISTS job_executions (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'running',
	started_at TEXT NOT NULL,
	completed_at TEXT,
	duration_ms INTEGER,
	error_message TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	output TEXT
);
CREATE INDEX IF NOT EXISTS idx_job_executions_job_id ON job_executions(job_id);
`
	_, err := s.db.Exec(schema)
	return err
}

const timeFmt = time.RFC3339Nano

func (s *Store) HealthCheck(ctx context.Context) (store.HealthStatus, error) {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return store.HealthStatus{Healthy: false}, apperr.Wrap(apperr.TransientStore, "health check failed", err)
	}
	return store.HealthStatus{Healthy: true, LatencyMs: time.Since(start).Milliseconds()}, nil
}

func (s *Store) InsertJob(ctx context.Context, job entity.Job) (entity.Job, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	tagsJSON, _ := json.Marshal(job.Tags)

	const q = `
INSERT INTO jobs (id, name, description, cron_expression, is_active, job_type, payload,
  timeout_ms, max_retries, retry_delay_ms, created_by, tags, created_at, updated_at, next_run_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);
`
	_, err := s.db.ExecContext(ctx, q,
		job.ID.String(), job.Name, job.Description, job.CronExpression, boolToInt(job.IsActive), string(job.JobType), string(payload),
		job.TimeoutMs, job.MaxRetries, job.RetryDelayMs, job.CreatedBy, string(tagsJSON),
		job.CreatedAt.Format(timeFmt), job.UpdatedAt.Format(timeFmt), timePtrString(job.NextRunAt),
	)
	if err != nil {
		return entity.Job{}, apperr.Wrap(apperr.TransientStore, "insert job", err)
	}
	job.Payload = payload
	return job, nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row := s.db.QueryRowContext(ctx, jobColumns+` FROM jobs WHERE id = ?;`, id.String())
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "get job", err)
	}
	return &job, nil
}

func (s *Store) UpdateJob(ctx context.Context, job entity.Job) (entity.Job, error) {
	tagsJSON, _ := json.Marshal(job.Tags)
	const q = `
UPDATE jobs SET name=?, description=?, cron_expression=?, is_active=?, job_type=?, payload=?,
  timeout_ms=?, max_retries=?, retry_delay_ms=?, created_by=?, tags=?, updated_at=?, next_run_at=?
WHERE id=?;
`
	res, err := s.db.ExecContext(ctx, q,
		job.Name, job.Description, job.CronExpression, boolToInt(job.IsActive), string(job.JobType), string(job.Payload),
		job.TimeoutMs, job.MaxRetries, job.RetryDelayMs, job.CreatedBy, string(tagsJSON),
		job.UpdatedAt.Format(timeFmt), timePtrString(job.NextRunAt), job.ID.String(),
	)
	if err != nil {
		return entity.Job{}, apperr.Wrap(apperr.TransientStore, "update job", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.Job{}, apperr.NotFoundf("job %s not found", job.ID)
	}
	return job, nil
}

func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil || job == nil {
		return job, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id=?;`, id.String()); err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "delete job", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM job_executions WHERE job_id=?;`, id.String()); err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "cascade delete executions", err)
	}
	return job, nil
}

func (s *Store) FindJobs(ctx context.Context, filter entity.JobFilter, page, limit int) ([]entity.Job, int64, error) {
	var where []string
	var args []any

	if filter.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, boolToInt(*filter.IsActive))
	}
	if filter.JobType != "" {
		where = append(where, "job_type = ?")
		args = append(args, string(filter.JobType))
	}
	if filter.Search != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}
	for _, tag := range filter.Tags {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+tag+"\"%")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs `+whereClause+`;`, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.TransientStore, "count jobs", err)
	}

	offset := (page - 1) * limit
	listArgs := append(append([]any{}, args...), limit, offset)
	rows, err := s.db.QueryContext(ctx, jobColumns+` FROM jobs `+whereClause+` ORDER BY created_at DESC LIMIT ? OFFSET ?;`, listArgs...)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.TransientStore, "find jobs", err)
	}
	defer rows.Close()

	var jobs []entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.TransientStore, "scan job", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

func (s *Store) ActiveJobs(ctx context.Context, limit int) ([]entity.Job, error) {
	rows, err := s.db.QueryContext(ctx, jobColumns+` FROM jobs WHERE is_active = 1 ORDER BY next_run_at ASC LIMIT ?;`, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "active jobs", err)
	}
	defer rows.Close()

	var jobs []entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.TransientStore, "scan job", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Store) UpdateJobStats(ctx context.Context, id uuid.UUID, success bool, now time.Time) error {
	col := "failed_runs"
	if success {
		col = "successful_runs"
	}
	q := fmt.Sprintf(`UPDATE jobs SET total_runs = total_runs + 1, %s = %s + 1, last_run_at = ?, updated_at = ? WHERE id = ?;`, col, col)
	res, err := s.db.ExecContext(ctx, q, now.Format(timeFmt), now.Format(timeFmt), id.String())
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "update job stats", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("job %s not found", id)
	}
	return nil
}

func (s *Store) UpdateJobNextRun(ctx context.Context, id uuid.UUID, nextRun *time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET next_run_at=? WHERE id=?;`, timePtrString(nextRun), id.String())
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "update next run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("job %s not found", id)
	}
	return nil
}

func (s *Store) InsertExecution(ctx context.Context, exec entity.JobExecution) (entity.JobExecution, error) {
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	const q = `
INSERT INTO job_executions (id, job_id, status, started_at, retry_count)
VALUES (?,?,?,?,?);
`
	_, err := s.db.ExecContext(ctx, q, exec.ID.String(), exec.JobID.String(), string(exec.Status), exec.StartedAt.Format(timeFmt), exec.RetryCount)
	if err != nil {
		return entity.JobExecution{}, apperr.Wrap(apperr.TransientStore, "insert execution", err)
	}
	return exec, nil
}

func (s *Store) CompleteExecution(ctx context.Context, exec entity.JobExecution) error {
	const q = `
UPDATE job_executions SET status=?, completed_at=?, duration_ms=?, error_message=?, output=?
WHERE id=?;
`
	res, err := s.db.ExecContext(ctx, q,
		string(exec.Status), timePtrString(exec.CompletedAt), exec.DurationMs, exec.ErrorMessage, string(exec.Output), exec.ID.String(),
	)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "complete execution", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("execution %s not found", exec.ID)
	}
	return nil
}

func (s *Store) ListExecutions(ctx context.Context, jobID uuid.UUID, page, limit int) ([]entity.JobExecution, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM job_executions WHERE job_id=?;`, jobID.String()).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.TransientStore, "count executions", err)
	}

	offset := (page - 1) * limit
	const q = `
SELECT id, job_id, status, started_at, completed_at, duration_ms, error_message, retry_count, output
FROM job_executions WHERE job_id=? ORDER BY started_at DESC LIMIT ? OFFSET ?;
`
	rows, err := s.db.QueryContext(ctx, q, jobID.String(), limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.TransientStore, "list executions", err)
	}
	defer rows.Close()

	execs, err := scanExecutions(rows)
	if err != nil {
		return nil, 0, err
	}
	return execs, total, rows.Err()
}

// OrphanedExecutions returns running rows started before olderThan — the
// reconciliation target for the scheduler's boot-time and periodic sweep.
func (s *Store) OrphanedExecutions(ctx context.Context, olderThan time.Time) ([]entity.JobExecution, error) {
	const q = `
SELECT id, job_id, status, started_at, completed_at, duration_ms, error_message, retry_count, output
FROM job_executions WHERE status = 'running' AND started_at < ?;
`
	rows, err := s.db.QueryContext(ctx, q, olderThan.Format(timeFmt))
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "orphaned executions", err)
	}
	defer rows.Close()

	execs, err := scanExecutions(rows)
	if err != nil {
		return nil, err
	}
	return execs, rows.Err()
}

func (s *Store) DatabaseStats(ctx context.Context) (store.DatabaseStats, error) {
	var stats store.DatabaseStats
	row := s.db.QueryRowContext(ctx, `
SELECT
  (SELECT count(*) FROM jobs),
  (SELECT count(*) FROM jobs WHERE is_active = 1),
  (SELECT count(*) FROM job_executions),
  (SELECT count(*) FROM job_executions WHERE started_at > ?);
`, time.Now().Add(-24*time.Hour).Format(timeFmt))
	if err := row.Scan(&stats.TotalJobs, &stats.ActiveJobs, &stats.TotalExecutions, &stats.RecentExecutions); err != nil {
		return store.DatabaseStats{}, apperr.Wrap(apperr.TransientStore, "database stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT job_type, count(*) FROM jobs GROUP BY job_type;`)
	if err != nil {
		return store.DatabaseStats{}, apperr.Wrap(apperr.TransientStore, "database stats by type", err)
	}
	defer rows.Close()

	stats.JobsByType = make(map[entity.JobType]int64)
	for rows.Next() {
		var jobType string
		var count int64
		if err := rows.Scan(&jobType, &count); err != nil {
			return store.DatabaseStats{}, apperr.Wrap(apperr.TransientStore, "scan job type stats", err)
		}
		stats.JobsByType[entity.JobType(jobType)] = count
	}
	return stats, rows.Err()
}

// CleanupOldExecutions deletes executions started more than days ago,
// mirroring the Postgres backend's cleanup_old_executions procedure
// without requiring a stored procedure SQLite doesn't support.
func (s *Store) CleanupOldExecutions(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Format(timeFmt)
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_executions WHERE started_at < ?;`, cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.TransientStore, "cleanup old executions", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.TransientStore, "cleanup old executions", err)
	}
	return deleted, nil
}

func scanExecutions(rows *sql.Rows) ([]entity.JobExecution, error) {
	var execs []entity.JobExecution
	for rows.Next() {
		var e entity.JobExecution
		var id, jobID, status, startedAt string
		var completedAt, errorMessage, output *string
		var durationMs *int64

		if err := rows.Scan(&id, &jobID, &status, &startedAt, &completedAt, &durationMs, &errorMessage, &e.RetryCount, &output); err != nil {
			return nil, apperr.Wrap(apperr.TransientStore, "scan execution", err)
		}

		var err error
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, apperr.Wrap(apperr.TransientStore, "scan execution", err)
		}
		if e.JobID, err = uuid.Parse(jobID); err != nil {
			return nil, apperr.Wrap(apperr.TransientStore, "scan execution", err)
		}
		e.Status = entity.ExecutionStatus(status)
		if e.StartedAt, err = time.Parse(timeFmt, startedAt); err != nil {
			return nil, apperr.Wrap(apperr.TransientStore, "scan execution", err)
		}
		if e.CompletedAt, err = parseTimePtr(completedAt); err != nil {
			return nil, apperr.Wrap(apperr.TransientStore, "scan execution", err)
		}
		e.DurationMs = durationMs
		e.ErrorMessage = errorMessage
		if output != nil {
			e.Output = json.RawMessage(*output)
		}
		execs = append(execs, e)
	}
	return execs, nil
}

const jobColumns = `SELECT id, name, description, cron_expression, is_active, job_type, payload,
  timeout_ms, max_retries, retry_delay_ms, created_by, tags,
  created_at, updated_at, last_run_at, next_run_at,
  total_runs, successful_runs, failed_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (entity.Job, error) {
	var job entity.Job
	var id, jobType, payload, tagsJSON, createdAt, updatedAt string
	var description, createdBy, lastRunAt, nextRunAt *string
	var isActive int

	err := row.Scan(
		&id, &job.Name, &description, &job.CronExpression, &isActive, &jobType, &payload,
		&job.TimeoutMs, &job.MaxRetries, &job.RetryDelayMs, &createdBy, &tagsJSON,
		&createdAt, &updatedAt, &lastRunAt, &nextRunAt,
		&job.TotalRuns, &job.SuccessfulRuns, &job.FailedRuns,
	)
	if err != nil {
		return entity.Job{}, err
	}

	job.ID, err = uuid.Parse(id)
	if err != nil {
		return entity.Job{}, err
	}
	job.JobType = entity.JobType(jobType)
	job.Payload = json.RawMessage(payload)
	job.IsActive = isActive != 0
	if description != nil {
		job.Description = *description
	}
	if createdBy != nil {
		job.CreatedBy = *createdBy
	}
	_ = json.Unmarshal([]byte(tagsJSON), &job.Tags)

	if job.CreatedAt, err = time.Parse(timeFmt, createdAt); err != nil {
		return entity.Job{}, err
	}
	if job.UpdatedAt, err = time.Parse(timeFmt, updatedAt); err != nil {
		return entity.Job{}, err
	}
	if job.LastRunAt, err = parseTimePtr(lastRunAt); err != nil {
		return entity.Job{}, err
	}
	if job.NextRunAt, err = parseTimePtr(nextRunAt); err != nil {
		return entity.Job{}, err
	}
	return job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtrString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeFmt)
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(timeFmt, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
