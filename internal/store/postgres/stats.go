package postgres

import (
	"context"
	"time"

	"cronsched/internal/apperr"
	"cronsched/internal/entity"
	"cronsched/internal/store"
)

func (s *Store) DatabaseStats(ctx context.Context) (store.DatabaseStats, error) {
	start := time.Now()
	defer s.observe("database_stats", start)

	var stats store.DatabaseStats
	row := s.pool.QueryRow(ctx, `
SELECT
  (SELECT count(*) FROM jobs),
  (SELECT count(*) FROM jobs WHERE is_active),
  (SELECT count(*) FROM job_executions),
  (SELECT count(*) FROM job_executions WHERE started_at > now() - interval '24 hours');
`)
	if err := row.Scan(&stats.TotalJobs, &stats.ActiveJobs, &stats.TotalExecutions, &stats.RecentExecutions); err != nil {
		return store.DatabaseStats{}, apperr.Wrap(apperr.TransientStore, "database stats", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT job_type, count(*) FROM jobs GROUP BY job_type;`)
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
