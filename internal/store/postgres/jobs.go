package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cronsched/internal/apperr"
	"cronsched/internal/entity"
	"cronsched/internal/store"
)

func (s *Store) HealthCheck(ctx context.Context) (store.HealthStatus, error) {
	start := time.Now()
	defer s.observe("health_check", start)

	if err := s.pool.Ping(ctx); err != nil {
		return store.HealthStatus{Healthy: false}, apperr.Wrap(apperr.TransientStore, "health check failed", err)
	}
	return store.HealthStatus{Healthy: true, LatencyMs: time.Since(start).Milliseconds()}, nil
}

func (s *Store) InsertJob(ctx context.Context, job entity.Job) (entity.Job, error) {
	start := time.Now()
	defer s.observe("insert_job", start)

	const q = `
INSERT INTO jobs (name, description, cron_expression, is_active, job_type, payload,
                   timeout_ms, max_retries, retry_delay_ms, created_by, tags,
                   created_at, updated_at, next_run_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12,$13)
RETURNING id, created_at, updated_at;
`
	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	row := s.pool.QueryRow(ctx, q,
		job.Name, job.Description, job.CronExpression, job.IsActive, string(job.JobType), payload,
		job.TimeoutMs, job.MaxRetries, job.RetryDelayMs, job.CreatedBy, job.Tags,
		job.CreatedAt, job.NextRunAt,
	)
	if err := row.Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return entity.Job{}, apperr.Wrap(apperr.TransientStore, "insert job", err)
	}
	job.Payload = payload
	return job, nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	start := time.Now()
	defer s.observe("get_job", start)

	const q = jobColumns + ` FROM jobs WHERE id = $1;`
	row := s.pool.QueryRow(ctx, q, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.TransientStore, "get job", err)
	}
	return &job, nil
}

func (s *Store) UpdateJob(ctx context.Context, job entity.Job) (entity.Job, error) {
	start := time.Now()
	defer s.observe("update_job", start)

	const q = `
UPDATE jobs SET
  name=$2, description=$3, cron_expression=$4, is_active=$5, job_type=$6, payload=$7,
  timeout_ms=$8, max_retries=$9, retry_delay_ms=$10, created_by=$11, tags=$12,
  updated_at=$13, next_run_at=$14
WHERE id=$1
RETURNING updated_at;
`
	row := s.pool.QueryRow(ctx, q,
		job.ID, job.Name, job.Description, job.CronExpression, job.IsActive, string(job.JobType), job.Payload,
		job.TimeoutMs, job.MaxRetries, job.RetryDelayMs, job.CreatedBy, job.Tags,
		job.UpdatedAt, job.NextRunAt,
	)
	if err := row.Scan(&job.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.Job{}, apperr.NotFoundf("job %s not found", job.ID)
		}
		return entity.Job{}, apperr.Wrap(apperr.TransientStore, "update job", err)
	}
	return job, nil
}

func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	start := time.Now()
	defer s.observe("delete_job", start)

	const q = jobColumns + ` FROM jobs WHERE id=$1;`
	row := s.pool.QueryRow(ctx, q, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.TransientStore, "delete job: lookup", err)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id=$1;`, id); err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "delete job", err)
	}
	return &job, nil
}

func (s *Store) FindJobs(ctx context.Context, filter entity.JobFilter, page, limit int) ([]entity.Job, int64, error) {
	start := time.Now()
	defer s.observe("find_jobs", start)

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if filter.IsActive != nil {
		where = append(where, "is_active = "+arg(*filter.IsActive))
	}
	if filter.JobType != "" {
		where = append(where, "job_type = "+arg(string(filter.JobType)))
	}
	if len(filter.Tags) > 0 {
		where = append(where, "tags && "+arg(filter.Tags))
	}
	if filter.Search != "" {
		where = append(where, "name ILIKE "+arg("%"+filter.Search+"%"))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countQ := `SELECT count(*) FROM jobs ` + whereClause + `;`
	if err := s.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.TransientStore, "count jobs", err)
	}

	offset := (page - 1) * limit
	listQ := jobColumns + ` FROM jobs ` + whereClause +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset) + `;`

	rows, err := s.pool.Query(ctx, listQ, args...)
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
	start := time.Now()
	defer s.observe("active_jobs", start)

	// Per the REDESIGN note in the design docs, the diff against the
	// scheduler's in-memory set is based on is_active alone — filtering
	// here on next_run_at would transiently hide a job between fires.
	const q = jobColumns + ` FROM jobs WHERE is_active ORDER BY next_run_at ASC NULLS FIRST LIMIT $1;`
	rows, err := s.pool.Query(ctx, q, limit)
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

// UpdateJobStats increments total/successful/failed runs and last_run_at in
// a single statement, closing the counter-drift window the design notes
// flag as a possibly-buggy source behavior: a single UPDATE means a partial
// write cannot leave total_runs incremented without a matching success/fail
// increment.
func (s *Store) UpdateJobStats(ctx context.Context, id uuid.UUID, success bool, now time.Time) error {
	start := time.Now()
	defer s.observe("update_job_stats", start)

	var q string
	if success {
		q = `UPDATE jobs SET total_runs = total_runs + 1, successful_runs = successful_runs + 1, last_run_at = $2, updated_at = $2 WHERE id = $1;`
	} else {
		q = `UPDATE jobs SET total_runs = total_runs + 1, failed_runs = failed_runs + 1, last_run_at = $2, updated_at = $2 WHERE id = $1;`
	}
	tag, err := s.pool.Exec(ctx, q, id, now)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "update job stats", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("job %s not found", id)
	}
	return nil
}

func (s *Store) UpdateJobNextRun(ctx context.Context, id uuid.UUID, nextRun *time.Time) error {
	start := time.Now()
	defer s.observe("update_job_next_run", start)

	tag, err := s.pool.Exec(ctx, `UPDATE jobs SET next_run_at=$2 WHERE id=$1;`, id, nextRun)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "update next run", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("job %s not found", id)
	}
	return nil
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
	var jobType string
	var description, createdBy *string
	var payload []byte

	err := row.Scan(
		&job.ID, &job.Name, &description, &job.CronExpression, &job.IsActive, &jobType, &payload,
		&job.TimeoutMs, &job.MaxRetries, &job.RetryDelayMs, &createdBy, &job.Tags,
		&job.CreatedAt, &job.UpdatedAt, &job.LastRunAt, &job.NextRunAt,
		&job.TotalRuns, &job.SuccessfulRuns, &job.FailedRuns,
	)
	if err != nil {
		return entity.Job{}, err
	}
	job.JobType = entity.JobType(jobType)
	job.Payload = json.RawMessage(payload)
	if description != nil {
		job.Description = *description
	}
	if createdBy != nil {
		job.CreatedBy = *createdBy
	}
	return job, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
