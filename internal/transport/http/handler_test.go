package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"cronsched/internal/apperr"
	"cronsched/internal/cache"
	"cronsched/internal/clock"
	"cronsched/internal/cron"
	"cronsched/internal/entity"
	"cronsched/internal/repository"
	"cronsched/internal/scheduler"
	"cronsched/internal/store"
	httptransport "cronsched/internal/transport/http"
)

type fakeStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.Job
	execs map[uuid.UUID]entity.JobExecution
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[uuid.UUID]entity.Job), execs: make(map[uuid.UUID]entity.JobExecution)}
}

func (s *fakeStore) HealthCheck(ctx context.Context) (store.HealthStatus, error) {
	return store.HealthStatus{Healthy: true, LatencyMs: 1}, nil
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
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}
func (s *fakeStore) UpdateJob(ctx context.Context, job entity.Job) (entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return entity.Job{}, apperr.NotFoundf("job %s not found", job.ID)
	}
	s.jobs[job.ID] = job
	return job, nil
}
func (s *fakeStore) DeleteJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	delete(s.jobs, id)
	return &j, nil
}
func (s *fakeStore) FindJobs(ctx context.Context, filter entity.JobFilter, page, limit int) ([]entity.Job, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Job
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, int64(len(out)), nil
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
	j, ok := s.jobs[id]
	if !ok {
		return apperr.NotFoundf("job %s not found", id)
	}
	j.TotalRuns++
	if success {
		j.SuccessfulRuns++
	} else {
		j.FailedRuns++
	}
	s.jobs[id] = j
	return nil
}
func (s *fakeStore) UpdateJobNextRun(ctx context.Context, id uuid.UUID, nextRun *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return apperr.NotFoundf("job %s not found", id)
	}
	j.NextRunAt = nextRun
	s.jobs[id] = j
	return nil
}
func (s *fakeStore) InsertExecution(ctx context.Context, exec entity.JobExecution) (entity.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	s.execs[exec.ID] = exec
	return exec, nil
}
func (s *fakeStore) CompleteExecution(ctx context.Context, exec entity.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[exec.ID] = exec
	return nil
}
func (s *fakeStore) ListExecutions(ctx context.Context, jobID uuid.UUID, page, limit int) ([]entity.JobExecution, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.JobExecution
	for _, e := range s.execs {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}
func (s *fakeStore) OrphanedExecutions(ctx context.Context, olderThan time.Time) ([]entity.JobExecution, error) {
	return nil, nil
}
func (s *fakeStore) DatabaseStats(ctx context.Context) (store.DatabaseStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.DatabaseStats{TotalJobs: int64(len(s.jobs))}, nil
}
func (s *fakeStore) CleanupOldExecutions(ctx context.Context, days int) (int64, error) {
	return 0, nil
}

func newTestHandler(t *testing.T) (*httptransport.Handler, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	evaluator := cron.New(nil)
	fixed := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := repository.New(st, evaluator, fixed)
	sched := scheduler.New(repo, evaluator, fixed, nil, scheduler.WithExecutor(func(ctx context.Context, j entity.Job) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}))
	jc := cache.NewJobCache(cache.New(100))
	return httptransport.New(repo, sched, jc, evaluator, nil), st
}

func newRouter(h *httptransport.Handler) http.Handler {
	return httptransport.Routes(h, nil)
}

func TestCreateJob_ValidationError(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	body := bytes.NewBufferString(`{"name":"","cronExpression":"bogus"}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Error   string `json:"error"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Fatal("expected success=false")
	}
	fields := map[string]bool{}
	for _, d := range resp.Details {
		fields[d.Field] = true
	}
	if !fields["name"] || !fields["cronExpression"] {
		t.Fatalf("expected details for name and cronExpression, got %+v", resp.Details)
	}
}

func TestCreateJob_Success(t *testing.T) {
	h, st := newTestHandler(t)
	router := newRouter(h)

	body := bytes.NewBufferString(`{"name":"nightly","cronExpression":"0 0 * * *","isActive":true}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data entity.Job `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.NextRunAt == nil {
		t.Fatal("expected NextRunAt to be set on an active job")
	}

	if _, ok := st.jobs[resp.Data.ID]; !ok {
		t.Fatal("expected job to be persisted")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/jobs/"+resp.Data.ID.String(), nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	var getResp struct {
		IsScheduled bool `json:"isScheduled"`
	}
	if err := json.Unmarshal(getRec.Body.Bytes(), &getResp); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if !getResp.IsScheduled {
		t.Fatal("expected job to be scheduled immediately after creation")
	}
}

func TestGetJob_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetJob_InvalidUUID(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListJobs_LimitOver100Rejected(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/jobs?limit=101", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=101, got %d", rec.Code)
	}
}

func TestValidateCron_ValidExpression(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	body := bytes.NewBufferString(`{"expression":"*/5 * * * *"}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs/validate-cron", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			IsValid  bool   `json:"isValid"`
			NextRuns []string `json:"nextRuns"`
			Timezone string `json:"timezone"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Data.IsValid {
		t.Fatal("expected isValid=true")
	}
	if len(resp.Data.NextRuns) != 5 {
		t.Fatalf("expected 5 next runs, got %d", len(resp.Data.NextRuns))
	}
	if resp.Data.Timezone != "Asia/Kolkata" {
		t.Fatalf("expected timezone Asia/Kolkata, got %q", resp.Data.Timezone)
	}
}

func TestTriggerJob_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/jobs/"+uuid.New().String()+"/trigger", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealth_ReportsHealthy(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
