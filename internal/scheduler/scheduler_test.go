package scheduler_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"cronsched/internal/apperr"
	"cronsched/internal/clock"
	"cronsched/internal/cron"
	"cronsched/internal/entity"
	"cronsched/internal/repository"
	"cronsched/internal/scheduler"
	"cronsched/internal/store"
)

// fakeStore is a minimal in-memory store.Store, enough to exercise the
// scheduler's timer, single-flight, and reconciliation paths.
type fakeStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]entity.Job
	executions map[uuid.UUID]entity.JobExecution
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[uuid.UUID]entity.Job), executions: make(map[uuid.UUID]entity.JobExecution)}
}

func (s *fakeStore) HealthCheck(ctx context.Context) (store.HealthStatus, error) {
	return store.HealthStatus{Healthy: true}, nil
}

func (s *fakeStore) InsertJob(ctx context.Context, job entity.Job) (entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *fakeStore) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (s *fakeStore) UpdateJob(ctx context.Context, job entity.Job) (entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return job, nil
}

func (s *fakeStore) DeleteJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	delete(s.jobs, id)
	return &job, nil
}

func (s *fakeStore) FindJobs(ctx context.Context, filter entity.JobFilter, page, limit int) ([]entity.Job, int64, error) {
	return nil, 0, nil
}

func (s *fakeStore) ActiveJobs(ctx context.Context, limit int) ([]entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Job
	for _, j := range s.jobs {
		if j.IsActive {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateJobStats(ctx context.Context, id uuid.UUID, success bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	s.jobs[id] = job
	return nil
}

func (s *fakeStore) UpdateJobNextRun(ctx context.Context, id uuid.UUID, nextRun *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return apperr.NotFoundf("job %s not found", id)
	}
	job.NextRunAt = nextRun
	s.jobs[id] = job
	return nil
}

func (s *fakeStore) InsertExecution(ctx context.Context, exec entity.JobExecution) (entity.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	s.executions[exec.ID] = exec
	return exec, nil
}

func (s *fakeStore) CompleteExecution(ctx context.Context, exec entity.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[exec.ID] = exec
	return nil
}

func (s *fakeStore) ListExecutions(ctx context.Context, jobID uuid.UUID, page, limit int) ([]entity.JobExecution, int64, error) {
	return nil, 0, nil
}

func (s *fakeStore) OrphanedExecutions(ctx context.Context, olderThan time.Time) ([]entity.JobExecution, error) {
	return nil, nil
}

func (s *fakeStore) DatabaseStats(ctx context.Context) (store.DatabaseStats, error) {
	return store.DatabaseStats{}, nil
}

func (s *fakeStore) CleanupOldExecutions(ctx context.Context, days int) (int64, error) {
	return 0, nil
}

func (s *fakeStore) executionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.executions)
}

func newTestScheduler(t *testing.T, st *fakeStore, now time.Time, opts ...scheduler.Option) (*scheduler.Scheduler, *clock.Fixed) {
	t.Helper()
	fixed := clock.NewFixed(now)
	evaluator := cron.New(nil)
	repo := repository.New(st, evaluator, fixed)
	return scheduler.New(repo, evaluator, fixed, nil, opts...), fixed
}

func activeJob(id uuid.UUID, nextRunAt time.Time) entity.Job {
	return entity.Job{
		ID:             id,
		Name:           "test-job",
		CronExpression: "0 0 * * *",
		IsActive:       true,
		JobType:        entity.JobTypeScheduled,
		TimeoutMs:      entity.DefaultTimeoutMs,
		MaxRetries:     0,
		RetryDelayMs:   entity.DefaultRetryDelayMs,
		NextRunAt:      &nextRunAt,
	}
}

func TestTriggerNow_RunsExecutorAndRecordsExecution(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	id := uuid.New()
	job := activeJob(id, now.Add(time.Hour))
	st.jobs[id] = job

	var called atomic.Bool
	sched, _ := newTestScheduler(t, st, now, scheduler.WithExecutor(func(ctx context.Context, j entity.Job) (json.RawMessage, error) {
		called.Store(true)
		return json.RawMessage(`{}`), nil
	}))

	if err := sched.TriggerNow(context.Background(), job); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if called.Load() && st.executionCount() == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if !called.Load() {
		t.Fatal("expected executor to be called")
	}
	if st.executionCount() != 1 {
		t.Fatalf("expected 1 recorded execution, got %d", st.executionCount())
	}
}

func TestTriggerNow_RejectsConcurrentTriggerOfSameJob(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	id := uuid.New()
	job := activeJob(id, now.Add(time.Hour))
	st.jobs[id] = job

	release := make(chan struct{})
	sched, _ := newTestScheduler(t, st, now, scheduler.WithExecutor(func(ctx context.Context, j entity.Job) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`{}`), nil
	}))

	if err := sched.TriggerNow(context.Background(), job); err != nil {
		t.Fatalf("first trigger: %v", err)
	}

	// Give the executor goroutine a moment to mark the job as running.
	time.Sleep(20 * time.Millisecond)

	if err := sched.TriggerNow(context.Background(), job); err == nil {
		t.Fatal("expected second concurrent trigger to be rejected")
	}

	close(release)
}

func TestRunExecution_RetriesOnFailureUpToMaxRetries(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	id := uuid.New()
	job := activeJob(id, now.Add(time.Hour))
	job.MaxRetries = 2
	job.RetryDelayMs = entity.MinRetryDelayMs
	st.jobs[id] = job

	var attempts atomic.Int32
	sched, _ := newTestScheduler(t, st, now, scheduler.WithExecutor(func(ctx context.Context, j entity.Job) (json.RawMessage, error) {
		attempts.Add(1)
		return nil, errors.New("boom")
	}))

	if err := sched.TriggerNow(context.Background(), job); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if attempts.Load() == 3 { // initial + 2 retries
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 total attempts (initial + 2 retries), got %d", got)
	}
}

func TestGetStats_ReflectsCompletedExecutions(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	id := uuid.New()
	job := activeJob(id, now.Add(time.Hour))
	st.jobs[id] = job

	sched, _ := newTestScheduler(t, st, now, scheduler.WithExecutor(func(ctx context.Context, j entity.Job) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}))

	if err := sched.TriggerNow(context.Background(), job); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sched.GetStats().TotalExecutions == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	stats := sched.GetStats()
	if stats.TotalExecutions != 1 || stats.SuccessfulRuns != 1 {
		t.Fatalf("expected total=1 successful=1, got %+v", stats)
	}
}

func TestStartStop_SchedulesActiveJobsAndDrains(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	id := uuid.New()
	job := activeJob(id, now.Add(50*time.Millisecond))
	st.jobs[id] = job

	var executed atomic.Bool
	sched, _ := newTestScheduler(t, st, now,
		scheduler.WithExecutor(func(ctx context.Context, j entity.Job) (json.RawMessage, error) {
			executed.Store(true)
			return json.RawMessage(`{}`), nil
		}),
		scheduler.WithSyncInterval(time.Hour),
		scheduler.WithDrainTimeout(time.Second),
	)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !executed.Load() {
		time.Sleep(5 * time.Millisecond)
	}
	if !executed.Load() {
		t.Fatal("expected the scheduled job to fire")
	}

	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
