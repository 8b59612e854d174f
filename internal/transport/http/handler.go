// Package httptransport implements the REST control plane: thin HTTP
// handlers coordinating JobRepository, Scheduler, and Cache.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cronsched/internal/apperr"
	"cronsched/internal/cache"
	"cronsched/internal/cron"
	"cronsched/internal/entity"
	"cronsched/internal/repository"
	"cronsched/internal/scheduler"
)

const (
	defaultListLimit       = 50
	maxListLimit           = 100
	defaultExecutionsLimit = 20
	executionHistoryLimit  = 20
	defaultCleanupDays     = 90
)

// Handler implements the control plane's REST surface.
type Handler struct {
	repo      *repository.JobRepository
	scheduler *scheduler.Scheduler
	cache     *cache.JobCache
	evaluator *cron.Evaluator
	logger    *slog.Logger
}

// New builds a Handler over the given collaborators.
func New(repo *repository.JobRepository, sched *scheduler.Scheduler, jobCache *cache.JobCache, evaluator *cron.Evaluator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, scheduler: sched, cache: jobCache, evaluator: evaluator, logger: logger}
}

// ListJobs godoc
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Param page query int false "page number"
// @Param limit query int false "page size, max 100"
// @Param isActive query bool false "filter by active state"
// @Param jobType query string false "filter by job type"
// @Param tags query string false "comma-separated tags"
// @Param search query string false "substring match against name"
// @Param fresh query bool false "bypass cache"
// @Success 200 {object} jobsListResponse
// @Failure 400 {object} errorResponse
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, err := parsePositiveInt(q.Get("page"), 1)
	if err != nil {
		writeBadRequest(w, "page", "page must be a positive integer")
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), defaultListLimit)
	if err != nil {
		writeBadRequest(w, "limit", "limit must be a positive integer")
		return
	}
	if limit > maxListLimit {
		writeBadRequest(w, "limit", "limit must be at most 100")
		return
	}

	filter := entity.JobFilter{}
	if v := q.Get("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "isActive", "isActive must be a boolean")
			return
		}
		filter.IsActive = &b
	}
	if v := q.Get("jobType"); v != "" {
		jt := entity.JobType(v)
		if !jt.Valid() {
			writeBadRequest(w, "jobType", "jobType must be one of scheduled, immediate, recurring, delayed")
			return
		}
		filter.JobType = jt
	}
	if v := q.Get("tags"); v != "" {
		filter.Tags = strings.Split(v, ",")
	}
	if v := q.Get("search"); v != "" {
		if len(v) > 255 {
			writeBadRequest(w, "search", "search must be at most 255 characters")
			return
		}
		filter.Search = v
	}
	fresh := q.Get("fresh") == "true"

	var jobs []entity.Job
	var pagination entity.Pagination

	if !fresh {
		if cached, cachedPagination, ok := h.cache.GetList(filter, page, limit); ok {
			jobs, pagination = h.overlayFreshStats(ctx, cached), cachedPagination
			writeJSON(w, http.StatusOK, jobsListResponse{envelope: newEnvelope(true), Data: jobsListData{Jobs: jobs, Pagination: pagination}})
			return
		}
	}

	jobs, pagination, err = h.repo.FindAll(ctx, page, limit, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cache.SetList(filter, page, limit, jobs, pagination)

	writeJSON(w, http.StatusOK, jobsListResponse{envelope: newEnvelope(true), Data: jobsListData{Jobs: jobs, Pagination: pagination}})
}

// overlayFreshStats re-fetches LastRunAt/NextRunAt/counters for every
// active job in a cache-hit page, per the cache coherence policy: a list
// cache hit must never serve stale scheduling state for an active job.
func (h *Handler) overlayFreshStats(ctx context.Context, jobs []entity.Job) []entity.Job {
	out := make([]entity.Job, len(jobs))
	for i, job := range jobs {
		if !job.IsActive {
			out[i] = job
			continue
		}
		fresh, err := h.repo.FindByID(ctx, job.ID)
		if err != nil || fresh == nil {
			out[i] = job
			continue
		}
		out[i] = *fresh
	}
	return out
}

// GetJob godoc
// @Summary Get a job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobDetailResponse
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	job, err := h.repo.FindByID(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		writeError(w, apperr.NotFoundf("job %s not found", id))
		return
	}

	history, _, err := h.repo.ListExecutions(ctx, id, 1, executionHistoryLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jobDetailResponse{
		envelope:         newEnvelope(true),
		Job:              *job,
		ExecutionHistory: history,
		IsScheduled:      h.scheduler.IsScheduled(id),
	})
}

// CreateJob godoc
// @Summary Create a job
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body jobInputDTO true "job definition"
// @Success 201 {object} jobMutationResponse
// @Failure 400 {object} errorResponse
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto jobInputDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeBadRequest(w, "body", "request body must be valid JSON")
		return
	}

	job, err := h.repo.Create(r.Context(), dto.toEntityInput())
	if err != nil {
		writeError(w, err)
		return
	}

	if job.IsActive {
		h.scheduler.Schedule(job)
	}
	h.cache.InvalidateLists()

	writeJSON(w, http.StatusCreated, jobMutationResponse{envelope: newEnvelope(true), Data: job})
}

// UpdateJob godoc
// @Summary Update a job
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param request body jobInputDTO true "partial job patch"
// @Success 200 {object} jobMutationResponse
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /jobs/{id} [put]
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var dto jobInputDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeBadRequest(w, "body", "request body must be valid JSON")
		return
	}

	job, err := h.repo.Update(r.Context(), id, dto.toEntityInput())
	if err != nil {
		writeError(w, err)
		return
	}

	if job.IsActive {
		h.scheduler.Schedule(job)
	} else {
		h.scheduler.Unschedule(job.ID)
	}
	h.cache.InvalidateJob(id)
	h.cache.InvalidateLists()

	writeJSON(w, http.StatusOK, jobMutationResponse{envelope: newEnvelope(true), Data: job})
}

// DeleteJob godoc
// @Summary Delete a job
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobMutationResponse
// @Failure 404 {object} errorResponse
// @Router /jobs/{id} [delete]
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	job, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		writeError(w, apperr.NotFoundf("job %s not found", id))
		return
	}

	h.scheduler.Unschedule(id)
	h.cache.InvalidateJob(id)
	h.cache.InvalidateLists()

	writeJSON(w, http.StatusOK, jobMutationResponse{envelope: newEnvelope(true), Data: *job})
}

// TriggerJob godoc
// @Summary Trigger a job immediately
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} triggerResponse
// @Failure 404 {object} errorResponse
// @Router /jobs/{id}/trigger [post]
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	job, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		writeError(w, apperr.NotFoundf("job %s not found", id))
		return
	}

	// TriggerNow shares the single-flight guard with scheduled firings: if
	// the job is already running, this is a deliberate no-op. Either way
	// the handler responds 200 immediately — outcome is observed via the
	// executions endpoint, never this response.
	if err := h.scheduler.TriggerNow(r.Context(), *job); err != nil {
		h.logger.Info("trigger skipped, job already running", "job_id", id, "error", err)
	}

	writeJSON(w, http.StatusOK, triggerResponse{
		envelope: newEnvelope(true),
		Data: triggerData{
			JobID:       job.ID.String(),
			JobName:     job.Name,
			TriggeredAt: time.Now().UTC(),
		},
	})
}

// ListExecutions godoc
// @Summary List a job's execution history
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param page query int false "page number"
// @Param limit query int false "page size, max 100"
// @Success 200 {object} executionsResponse
// @Failure 400 {object} errorResponse
// @Router /jobs/{id}/executions [get]
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), 1)
	if err != nil {
		writeBadRequest(w, "page", "page must be a positive integer")
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), defaultExecutionsLimit)
	if err != nil {
		writeBadRequest(w, "limit", "limit must be a positive integer")
		return
	}
	if limit > maxListLimit {
		writeBadRequest(w, "limit", "limit must be at most 100")
		return
	}

	execs, pagination, err := h.repo.ListExecutions(r.Context(), id, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, executionsResponse{
		envelope: newEnvelope(true),
		Data:     executionsData{Executions: execs, Pagination: pagination},
	})
}

// ValidateCron godoc
// @Summary Validate a cron expression and preview its next firings
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body validateCronRequest true "expression to validate"
// @Success 200 {object} validateCronResponse
// @Router /jobs/validate-cron [post]
func (h *Handler) ValidateCron(w http.ResponseWriter, r *http.Request) {
	var req validateCronRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "body", "request body must be valid JSON")
		return
	}

	isValid := h.evaluator.Validate(req.Expression)
	data := validateCronData{IsValid: isValid, Expression: req.Expression, Timezone: "Asia/Kolkata"}

	if isValid {
		seed := time.Now().UTC()
		runs := make([]time.Time, 0, 5)
		for i := 0; i < 5; i++ {
			seed = h.evaluator.NextAfter(req.Expression, seed)
			runs = append(runs, seed)
			seed = seed.Add(time.Second)
		}
		data.NextRuns = runs
	}

	writeJSON(w, http.StatusOK, validateCronResponse{envelope: newEnvelope(true), Data: data})
}

// CleanupExecutions godoc
// @Summary Purge execution history older than the given retention window
// @Tags jobs
// @Produce json
// @Param days query int false "retention window in days, default 90"
// @Success 200 {object} cleanupResponse
// @Failure 400 {object} errorResponse
// @Router /jobs/cleanup [post]
func (h *Handler) CleanupExecutions(w http.ResponseWriter, r *http.Request) {
	days, err := parsePositiveInt(r.URL.Query().Get("days"), defaultCleanupDays)
	if err != nil {
		writeBadRequest(w, "days", "days must be a positive integer")
		return
	}

	deleted, err := h.repo.CleanupOldExecutions(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cleanupResponse{
		envelope: newEnvelope(true),
		Data:     cleanupData{DeletedExecutions: deleted, RetentionDays: days},
	})
}

// Stats godoc
// @Summary Aggregate scheduler, cache, and database statistics
// @Tags jobs
// @Produce json
// @Success 200 {object} statsResponse
// @Router /jobs/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	schedStats := h.scheduler.GetStats()
	cacheStats := h.cache.Stats()

	dbStats, err := h.repo.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		envelope: newEnvelope(true),
		Scheduler: schedulerStatsDTO{
			Total:             schedStats.TotalExecutions,
			Successful:        schedStats.SuccessfulRuns,
			Failed:            schedStats.FailedRuns,
			AvgExecMs:         schedStats.AvgExecutionMs,
			IsRunning:         schedStats.IsRunning,
			ActiveJobs:        schedStats.ActiveJobs,
			RunningExecutions: schedStats.RunningExecutions,
			SuccessRate:       strconv.FormatFloat(schedStats.SuccessRate, 'f', 2, 64),
		},
		Cache: cacheStatsDTO{
			Hits:          cacheStats.Hits,
			Misses:        cacheStats.Misses,
			Sets:          cacheStats.Sets,
			Deletes:       cacheStats.Deletes,
			Evictions:     cacheStats.Evictions,
			Size:          cacheStats.Size,
			HitRate:       cacheStats.HitRate,
			BytesEstimate: cacheStats.BytesEstimate,
		},
		Database: databaseStatsDTO{
			TotalJobs:        dbStats.TotalJobs,
			ActiveJobs:       dbStats.ActiveJobs,
			TotalExecutions:  dbStats.TotalExecutions,
			RecentExecutions: dbStats.RecentExecutions,
			JobsByType:       dbStats.JobsByType,
		},
	})
}

// Health godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} healthResponse
// @Failure 503 {object} healthResponse
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, err := h.repo.HealthCheck(r.Context())
	if err != nil || !status.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{envelope: newEnvelope(false), Healthy: false})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{envelope: newEnvelope(true), Healthy: true, LatencyMs: status.LatencyMs})
}

// Root godoc
// @Summary Service info
// @Tags system
// @Produce json
// @Success 200 {object} rootResponse
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{envelope: newEnvelope(true), Service: "cronsched", Version: "1.0.0"})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil || id.Version() != 4 {
		writeBadRequest(w, "id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePositiveInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Validation("invalid integer")
	}
	return n, nil
}
