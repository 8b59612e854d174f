package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"cronsched/internal/apperr"
	"cronsched/internal/clock"
	"cronsched/internal/cron"
	"cronsched/internal/entity"
	"cronsched/internal/repository"
	"cronsched/internal/store"
)

type fakeStore struct {
	jobs       map[uuid.UUID]entity.Job
	executions map[uuid.UUID]entity.JobExecution

	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:       make(map[uuid.UUID]entity.Job),
		executions: make(map[uuid.UUID]entity.JobExecution),
	}
}

func (s *fakeStore) HealthCheck(ctx context.Context) (store.HealthStatus, error) {
	return store.HealthStatus{Healthy: true}, nil
}

func (s *fakeStore) InsertJob(ctx context.Context, job entity.Job) (entity.Job, error) {
	if s.insertErr != nil {
		return entity.Job{}, s.insertErr
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *fakeStore) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (s *fakeStore) UpdateJob(ctx context.Context, job entity.Job) (entity.Job, error) {
	if _, ok := s.jobs[job.ID]; !ok {
		return entity.Job{}, apperr.NotFoundf("job %s not found", job.ID)
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *fakeStore) DeleteJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	delete(s.jobs, id)
	return &job, nil
}

func (s *fakeStore) FindJobs(ctx context.Context, filter entity.JobFilter, page, limit int) ([]entity.Job, int64, error) {
	var out []entity.Job
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) ActiveJobs(ctx context.Context, limit int) ([]entity.Job, error) {
	var out []entity.Job
	for _, j := range s.jobs {
		if j.IsActive {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateJobStats(ctx context.Context, id uuid.UUID, success bool, now time.Time) error {
	job, ok := s.jobs[id]
	if !ok {
		return apperr.NotFoundf("job %s not found", id)
	}
	job.TotalRuns++
	if success {
		job.SuccessfulRuns++
	} else {
		job.FailedRuns++
	}
	job.LastRunAt = &now
	job.UpdatedAt = now
	s.jobs[id] = job
	return nil
}

func (s *fakeStore) UpdateJobNextRun(ctx context.Context, id uuid.UUID, nextRun *time.Time) error {
	job, ok := s.jobs[id]
	if !ok {
		return apperr.NotFoundf("job %s not found", id)
	}
	job.NextRunAt = nextRun
	s.jobs[id] = job
	return nil
}

func (s *fakeStore) InsertExecution(ctx context.Context, exec entity.JobExecution) (entity.JobExecution, error) {
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	s.executions[exec.ID] = exec
	return exec, nil
}

func (s *fakeStore) CompleteExecution(ctx context.Context, exec entity.JobExecution) error {
	if _, ok := s.executions[exec.ID]; !ok {
		return apperr.NotFoundf("execution %s not found", exec.ID)
	}
	s.executions[exec.ID] = exec
	return nil
}

func (s *fakeStore) ListExecutions(ctx context.Context, jobID uuid.UUID, page, limit int) ([]entity.JobExecution, int64, error) {
	var out []entity.JobExecution
	for _, e := range s.executions {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) OrphanedExecutions(ctx context.Context, olderThan time.Time) ([]entity.JobExecution, error) {
	var out []entity.JobExecution
	for _, e := range s.executions {
		if e.Status == entity.ExecutionRunning && e.StartedAt.Before(olderThan) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) DatabaseStats(ctx context.Context) (store.DatabaseStats, error) {
	return store.DatabaseStats{TotalJobs: int64(len(s.jobs))}, nil
}

func (s *fakeStore) CleanupOldExecutions(ctx context.Context, days int) (int64, error) {
	return 0, nil
}

func newTestRepo(st *fakeStore, now time.Time) (*repository.JobRepository, *clock.Fixed) {
	fixed := clock.NewFixed(now)
	evaluator := cron.New(nil)
	return repository.New(st, evaluator, fixed), fixed
}

func strptr(s string) *string { return &s }

func TestCreate_ComputesNextRunAtWhenActive(t *testing.T) {
	st := newFakeStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo, _ := newTestRepo(st, now)

	isActive := true
	job, err := repo.Create(context.Background(), entity.JobInput{
		Name:           strptr("nightly-report"),
		CronExpression: strptr("0 0 * * *"),
		IsActive:       &isActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.NextRunAt == nil {
		t.Fatal("expected NextRunAt to be set for an active job")
	}
	if !job.NextRunAt.After(now) {
		t.Fatalf("expected NextRunAt after %v, got %v", now, job.NextRunAt)
	}
}

func TestCreate_SkipsNextRunAtWhenInactive(t *testing.T) {
	st := newFakeStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo, _ := newTestRepo(st, now)

	job, err := repo.Create(context.Background(), entity.JobInput{
		Name:           strptr("paused-job"),
		CronExpression: strptr("0 0 * * *"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.NextRunAt != nil {
		t.Fatalf("expected nil NextRunAt for inactive job, got %v", job.NextRunAt)
	}
}

func TestCreate_RejectsInvalidCron(t *testing.T) {
	st := newFakeStore()
	repo, _ := newTestRepo(st, time.Now())

	_, err := repo.Create(context.Background(), entity.JobInput{
		Name:           strptr("broken"),
		CronExpression: strptr("not a cron"),
	})
	if apperr.KindOf(err) != apperr.ValidationFailure {
		t.Fatalf("expected ValidationFailure, got %v (%v)", apperr.KindOf(err), err)
	}
}

func TestUpdate_RecomputesNextRunAtOnCronChange(t *testing.T) {
	st := newFakeStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo, fixed := newTestRepo(st, now)

	isActive := true
	job, err := repo.Create(context.Background(), entity.JobInput{
		Name:           strptr("report"),
		CronExpression: strptr("0 0 * * *"),
		IsActive:       &isActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	firstNext := *job.NextRunAt

	fixed.Advance(time.Minute)
	updated, err := repo.Update(context.Background(), job.ID, entity.JobInput{
		CronExpression: strptr("30 9 * * *"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.NextRunAt == nil {
		t.Fatal("expected NextRunAt to remain set")
	}
	if updated.NextRunAt.Equal(firstNext) {
		t.Fatal("expected NextRunAt to change after cron expression changed")
	}
}

func TestUpdate_ClearsNextRunAtOnDeactivate(t *testing.T) {
	st := newFakeStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo, _ := newTestRepo(st, now)

	isActive := true
	job, err := repo.Create(context.Background(), entity.JobInput{
		Name:           strptr("report"),
		CronExpression: strptr("0 0 * * *"),
		IsActive:       &isActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	inactive := false
	updated, err := repo.Update(context.Background(), job.ID, entity.JobInput{IsActive: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.NextRunAt != nil {
		t.Fatalf("expected NextRunAt cleared, got %v", updated.NextRunAt)
	}
}

func TestUpdate_UnknownJobReturnsNotFound(t *testing.T) {
	st := newFakeStore()
	repo, _ := newTestRepo(st, time.Now())

	_, err := repo.Update(context.Background(), uuid.New(), entity.JobInput{})
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v (%v)", apperr.KindOf(err), err)
	}
}

func TestUpdateJobStats_AdvancesNextRunAt(t *testing.T) {
	st := newFakeStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo, fixed := newTestRepo(st, now)

	isActive := true
	job, err := repo.Create(context.Background(), entity.JobInput{
		Name:           strptr("report"),
		CronExpression: strptr("*/5 * * * *"),
		IsActive:       &isActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	firstNext := *job.NextRunAt

	fixed.Advance(5 * time.Minute)
	if err := repo.UpdateJobStats(context.Background(), job.ID, true); err != nil {
		t.Fatalf("update stats: %v", err)
	}

	got, err := repo.FindByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.TotalRuns != 1 || got.SuccessfulRuns != 1 {
		t.Fatalf("expected total=1 successful=1, got total=%d successful=%d", got.TotalRuns, got.SuccessfulRuns)
	}
	if got.NextRunAt == nil || got.NextRunAt.Equal(firstNext) {
		t.Fatalf("expected NextRunAt to advance past %v, got %v", firstNext, got.NextRunAt)
	}
}

func TestReconcileOrphans_MarksStaleRunningExecutionsFailed(t *testing.T) {
	st := newFakeStore()
	now := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	repo, _ := newTestRepo(st, now)

	isActive := true
	job, err := repo.Create(context.Background(), entity.JobInput{
		Name:           strptr("stuck-job"),
		CronExpression: strptr("0 0 * * *"),
		IsActive:       &isActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stale := entity.JobExecution{
		JobID:     job.ID,
		Status:    entity.ExecutionRunning,
		StartedAt: now.Add(-2 * time.Hour),
	}
	inserted, err := st.InsertExecution(context.Background(), stale)
	if err != nil {
		t.Fatalf("insert execution: %v", err)
	}

	n, err := repo.ReconcileOrphans(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 orphan reconciled, got %d", n)
	}

	got := st.executions[inserted.ID]
	if got.Status != entity.ExecutionFailed {
		t.Fatalf("expected status failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage == "" {
		t.Fatal("expected an error message on the reconciled execution")
	}
}

func TestReconcileOrphans_IgnoresRecentRunningExecutions(t *testing.T) {
	st := newFakeStore()
	now := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	repo, _ := newTestRepo(st, now)

	isActive := true
	job, err := repo.Create(context.Background(), entity.JobInput{
		Name:           strptr("healthy-job"),
		CronExpression: strptr("0 0 * * *"),
		IsActive:       &isActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = st.InsertExecution(context.Background(), entity.JobExecution{
		JobID:     job.ID,
		Status:    entity.ExecutionRunning,
		StartedAt: now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("insert execution: %v", err)
	}

	n, err := repo.ReconcileOrphans(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 orphans reconciled, got %d", n)
	}
}
