// Package scheduler owns one timer per active job and runs executions with
// single-flight semantics: a job already running when its timer fires is
// never started a second time concurrently.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cronsched/internal/cache"
	"cronsched/internal/clock"
	"cronsched/internal/cron"
	"cronsched/internal/entity"
	"cronsched/internal/repository"
)

// Executor runs a single job and returns its output. The default executor
// simulates work by job type; a production deployment would inject one that
// actually dispatches to a worker.
type Executor func(ctx context.Context, job entity.Job) (json.RawMessage, error)

// DefaultExecutor simulates execution, labeling its output by JobType. It
// never fails on its own — it exists so the scheduler is exercisable without
// a real workload attached.
func DefaultExecutor(ctx context.Context, job entity.Job) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return json.Marshal(map[string]any{
		"simulated": true,
		"jobType":   job.JobType,
		"jobName":   job.Name,
	})
}

const (
	defaultSyncInterval  = 30 * time.Second
	defaultDrainTimeout  = 30 * time.Second
	defaultOrphanStaleAt = time.Hour
	activeJobsPageSize   = 10000
)

// Stats is the aggregate execution picture exposed at GET /jobs/stats.
type Stats struct {
	TotalExecutions     int64
	SuccessfulRuns      int64
	FailedRuns          int64
	AvgExecutionMs      float64
	IsRunning           bool
	ActiveJobs          int
	RunningExecutions   int
	SuccessRate         float64
}

// Scheduler holds one timer per active job and executes jobs with
// single-flight semantics: a job whose previous run is still in flight when
// its timer fires is skipped, not queued, not double-started.
type Scheduler struct {
	repo      *repository.JobRepository
	evaluator *cron.Evaluator
	clk       clock.Clock
	logger    *slog.Logger
	jobCache  *cache.JobCache
	executor  Executor

	syncInterval  time.Duration
	drainTimeout  time.Duration
	orphanStaleAt time.Duration

	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	running map[uuid.UUID]struct{}

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	statsMu        sync.Mutex
	totalRuns      int64
	successfulRuns int64
	failedRuns     int64
	totalExecMs    int64
	isRunning      bool
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithSyncInterval overrides the periodic active-set reconciliation period.
func WithSyncInterval(d time.Duration) Option { return func(s *Scheduler) { s.syncInterval = d } }

// WithDrainTimeout overrides how long Stop waits for in-flight executions.
func WithDrainTimeout(d time.Duration) Option { return func(s *Scheduler) { s.drainTimeout = d } }

// WithExecutor overrides the executor run for each fired job.
func WithExecutor(e Executor) Option { return func(s *Scheduler) { s.executor = e } }

// WithJobCache wires a JobCache so executions invalidate stale reads.
func WithJobCache(jc *cache.JobCache) Option { return func(s *Scheduler) { s.jobCache = jc } }

// New builds a Scheduler. It does not schedule anything until Start runs.
func New(repo *repository.JobRepository, evaluator *cron.Evaluator, clk clock.Clock, logger *slog.Logger, opts ...Option) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		repo:          repo,
		evaluator:     evaluator,
		clk:           clk,
		logger:        logger,
		executor:      DefaultExecutor,
		syncInterval:  defaultSyncInterval,
		drainTimeout:  defaultDrainTimeout,
		orphanStaleAt: defaultOrphanStaleAt,
		timers:        make(map[uuid.UUID]*time.Timer),
		running:       make(map[uuid.UUID]struct{}),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start reconciles orphaned executions, loads the active job set, schedules
// a timer per job, and begins the periodic sync loop. It returns once the
// initial load completes; the sync loop continues in the background until
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if n, err := s.repo.ReconcileOrphans(ctx, s.orphanStaleAt); err != nil {
		s.logger.Warn("scheduler: orphan reconciliation failed", "error", err)
	} else if n > 0 {
		s.logger.Info("scheduler: reconciled orphaned executions", "count", n)
	}

	jobs, err := s.repo.GetActiveJobs(ctx, activeJobsPageSize)
	if err != nil {
		return fmt.Errorf("scheduler: load active jobs: %w", err)
	}

	s.mu.Lock()
	for _, job := range jobs {
		s.scheduleLocked(job)
	}
	s.mu.Unlock()

	s.statsMu.Lock()
	s.isRunning = true
	s.statsMu.Unlock()

	s.wg.Add(1)
	go s.syncLoop(ctx)

	s.logger.Info("scheduler: started", "active_jobs", len(jobs))
	return nil
}

// Stop halts the sync loop and every pending timer, then waits up to
// drainTimeout for in-flight executions before returning.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.statsMu.Lock()
	s.isRunning = false
	s.statsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler: stopped cleanly")
		return nil
	case <-time.After(s.drainTimeout):
		s.logger.Warn("scheduler: drain timeout exceeded, stopping with executions still in flight")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule installs or replaces the timer for job, called by the control
// plane immediately after a create/update so a change takes effect without
// waiting for the next sync tick.
func (s *Scheduler) Schedule(job entity.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked(job)
}

// Unschedule destroys and forgets the timer for id, called by the control
// plane after a delete or deactivation. It never touches running.
func (s *Scheduler) Unschedule(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// IsScheduled reports whether id currently holds a timer handle.
func (s *Scheduler) IsScheduled(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// TriggerNow executes job immediately, independent of its timer, via the
// same single-flight path a cron fire would use. It returns an error if the
// job is already running.
func (s *Scheduler) TriggerNow(ctx context.Context, job entity.Job) error {
	s.mu.Lock()
	if _, inFlight := s.running[job.ID]; inFlight {
		s.mu.Unlock()
		return fmt.Errorf("job %s is already running", job.ID)
	}
	s.running[job.ID] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runExecution(ctx, job, 0)
	return nil
}

// scheduleLocked sets (or replaces) the timer for job. Callers must hold mu.
func (s *Scheduler) scheduleLocked(job entity.Job) {
	if existing, ok := s.timers[job.ID]; ok {
		existing.Stop()
		delete(s.timers, job.ID)
	}
	if !job.IsActive {
		return
	}

	delay := time.Duration(0)
	if job.NextRunAt != nil {
		delay = job.NextRunAt.Sub(s.clk.Now())
		if delay < 0 {
			delay = 0
		}
	}

	s.timers[job.ID] = time.AfterFunc(delay, func() { s.fire(job.ID) })
}

// fire is the timer callback: it re-fetches the job (to see any update that
// landed since the timer was set) and, if it is still active and not
// already running, starts an execution.
func (s *Scheduler) fire(id uuid.UUID) {
	select {
	case <-s.stopCh:
		return
	default:
	}

	ctx := context.Background()
	job, err := s.repo.FindByID(ctx, id)
	if err != nil || job == nil || !job.IsActive {
		return
	}

	s.mu.Lock()
	if _, inFlight := s.running[id]; inFlight {
		s.mu.Unlock()
		s.logger.Warn("scheduler: skipping fire, previous execution still running", "job_id", id)
		return
	}
	s.running[id] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runExecution(ctx, *job, 0)
}

// runExecution executes job, records the outcome, retries on failure up to
// job.MaxRetries, and reschedules the job's next cron fire once the attempt
// (including any retries) is settled.
func (s *Scheduler) runExecution(ctx context.Context, job entity.Job, retryCount int) {
	defer s.wg.Done()

	exec, err := s.repo.RecordExecutionStart(ctx, job.ID, retryCount)
	if err != nil {
		s.logger.Error("scheduler: failed to record execution start", "job_id", job.ID, "error", err)
		s.finishRun(job)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(job.TimeoutMs)*time.Millisecond)
	output, runErr := s.executor(runCtx, job)
	cancel()

	exec.Output = output
	if runCtx.Err() == context.DeadlineExceeded {
		exec.Status = entity.ExecutionTimeout
	} else if runErr != nil {
		exec.Status = entity.ExecutionFailed
		msg := runErr.Error()
		exec.ErrorMessage = &msg
	} else {
		exec.Status = entity.ExecutionCompleted
	}

	completedAt := s.clk.Now()
	exec.CompletedAt = &completedAt
	durationMs := completedAt.Sub(exec.StartedAt).Milliseconds()
	exec.DurationMs = &durationMs

	if err := s.repo.RecordExecutionEnd(ctx, exec); err != nil {
		s.logger.Error("scheduler: failed to record execution end", "job_id", job.ID, "error", err)
	}
	s.recordStats(exec.Status == entity.ExecutionCompleted, durationMs)
	if s.jobCache != nil {
		s.jobCache.InvalidateJob(job.ID)
		s.jobCache.InvalidateLists()
	}

	if exec.Status != entity.ExecutionCompleted && retryCount < job.MaxRetries {
		s.logger.Info("scheduler: retrying job", "job_id", job.ID, "attempt", retryCount+1, "max_retries", job.MaxRetries)
		delay := time.Duration(job.RetryDelayMs) * time.Millisecond
		s.wg.Add(1)
		time.AfterFunc(delay, func() {
			s.runExecution(ctx, job, retryCount+1)
		})
		return
	}

	s.finishRun(job)
}

// finishRun clears the single-flight marker and reschedules the job's next
// cron fire from the current clock.
func (s *Scheduler) finishRun(job entity.Job) {
	s.mu.Lock()
	delete(s.running, job.ID)
	s.mu.Unlock()

	refreshed, err := s.repo.FindByID(context.Background(), job.ID)
	if err != nil || refreshed == nil || !refreshed.IsActive {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked(*refreshed)
}

func (s *Scheduler) recordStats(success bool, durationMs int64) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.totalRuns++
	s.totalExecMs += durationMs
	if success {
		s.successfulRuns++
	} else {
		s.failedRuns++
	}
}

// GetStats returns the scheduler's aggregate execution counters.
func (s *Scheduler) GetStats() Stats {
	s.statsMu.Lock()
	total, successful, failed, totalMs, isRunning := s.totalRuns, s.successfulRuns, s.failedRuns, s.totalExecMs, s.isRunning
	s.statsMu.Unlock()

	s.mu.Lock()
	activeJobs := len(s.timers)
	runningExecutions := len(s.running)
	s.mu.Unlock()

	var avgMs, successRate float64
	if total > 0 {
		avgMs = float64(totalMs) / float64(total)
		successRate = float64(successful) / float64(total) * 100
	}

	return Stats{
		TotalExecutions:   total,
		SuccessfulRuns:    successful,
		FailedRuns:        failed,
		AvgExecutionMs:    avgMs,
		IsRunning:         isRunning,
		ActiveJobs:        activeJobs,
		RunningExecutions: runningExecutions,
		SuccessRate:       successRate,
	}
}

// syncLoop periodically reconciles the scheduler's in-memory timer set
// against the store's active jobs, so an activation or deactivation made
// through the API (rather than through the scheduler itself) takes effect
// without a restart. It also re-runs orphan reconciliation on each tick.
func (s *Scheduler) syncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync(ctx)
		}
	}
}

func (s *Scheduler) sync(ctx context.Context) {
	jobs, err := s.repo.GetActiveJobs(ctx, activeJobsPageSize)
	if err != nil {
		s.logger.Warn("scheduler: sync failed to load active jobs", "error", err)
		return
	}

	seen := make(map[uuid.UUID]struct{}, len(jobs))
	s.mu.Lock()
	for _, job := range jobs {
		seen[job.ID] = struct{}{}
		if _, inFlight := s.running[job.ID]; inFlight {
			// A fired execution still owns the reschedule for this job;
			// touching its timer here would race finishRun's reschedule.
			continue
		}
		// Always reschedule from the store's NextRunAt rather than only
		// when the job is entirely new to the timer set, so an update
		// made through the API while the timer was already set (e.g. a
		// changed cron expression) is picked up within one sync tick.
		s.scheduleLocked(job)
	}
	for id := range s.timers {
		if _, ok := seen[id]; !ok {
			s.timers[id].Stop()
			delete(s.timers, id)
		}
	}
	s.mu.Unlock()

	if n, err := s.repo.ReconcileOrphans(ctx, s.orphanStaleAt); err != nil {
		s.logger.Warn("scheduler: periodic orphan reconciliation failed", "error", err)
	} else if n > 0 {
		s.logger.Info("scheduler: periodic reconciliation recovered orphaned executions", "count", n)
	}
}
