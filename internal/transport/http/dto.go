package httptransport

import (
	"encoding/json"
	"time"

	"cronsched/internal/entity"
)

// jobInputDTO is the wire shape accepted by POST /jobs and PUT /jobs/:id.
// Every field is a pointer so PUT can distinguish "omitted" from "set to
// zero value"; Create rejects omitted required fields via entity.ValidateCreate.
type jobInputDTO struct {
	Name           *string         `json:"name"`
	Description    *string         `json:"description"`
	CronExpression *string         `json:"cronExpression"`
	IsActive       *bool           `json:"isActive"`
	JobType        *entity.JobType `json:"jobType"`
	Payload        json.RawMessage `json:"payload"`
	TimeoutMs      *int            `json:"timeoutMs"`
	MaxRetries     *int            `json:"maxRetries"`
	RetryDelayMs   *int            `json:"retryDelayMs"`
	CreatedBy      *string         `json:"createdBy"`
	Tags           []string        `json:"tags"`
}

func (d jobInputDTO) toEntityInput() entity.JobInput {
	return entity.JobInput{
		Name:           d.Name,
		Description:    d.Description,
		CronExpression: d.CronExpression,
		IsActive:       d.IsActive,
		JobType:        d.JobType,
		Payload:        []byte(d.Payload),
		TimeoutMs:      d.TimeoutMs,
		MaxRetries:     d.MaxRetries,
		RetryDelayMs:   d.RetryDelayMs,
		CreatedBy:      d.CreatedBy,
		Tags:           d.Tags,
	}
}

type jobsListData struct {
	Jobs       []entity.Job      `json:"jobs"`
	Pagination entity.Pagination `json:"pagination"`
}

type jobsListResponse struct {
	envelope
	Data jobsListData `json:"data"`
}

type jobDetailResponse struct {
	envelope
	Job              entity.Job            `json:"job"`
	ExecutionHistory []entity.JobExecution `json:"executionHistory"`
	IsScheduled      bool                  `json:"isScheduled"`
}

type jobMutationResponse struct {
	envelope
	Data entity.Job `json:"data"`
}

type triggerData struct {
	JobID       string    `json:"jobId"`
	JobName     string    `json:"jobName"`
	TriggeredAt time.Time `json:"triggeredAt"`
}

type triggerResponse struct {
	envelope
	Data triggerData `json:"data"`
}

type executionsData struct {
	Executions []entity.JobExecution `json:"executions"`
	Pagination entity.Pagination     `json:"pagination"`
}

type executionsResponse struct {
	envelope
	Data executionsData `json:"data"`
}

type validateCronRequest struct {
	Expression string `json:"expression"`
}

type validateCronData struct {
	IsValid    bool        `json:"isValid"`
	Expression string      `json:"expression"`
	NextRuns   []time.Time `json:"nextRuns,omitempty"`
	Timezone   string      `json:"timezone"`
}

type validateCronResponse struct {
	envelope
	Data validateCronData `json:"data"`
}

type schedulerStatsDTO struct {
	Total             int64   `json:"total"`
	Successful        int64   `json:"successful"`
	Failed            int64   `json:"failed"`
	AvgExecMs         float64 `json:"avgExecMs"`
	IsRunning         bool    `json:"isRunning"`
	ActiveJobs        int     `json:"activeJobs"`
	RunningExecutions int     `json:"runningExecutions"`
	SuccessRate       string  `json:"successRate"`
}

type cacheStatsDTO struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Sets          int64   `json:"sets"`
	Deletes       int64   `json:"deletes"`
	Evictions     int64   `json:"evictions"`
	Size          int     `json:"size"`
	HitRate       float64 `json:"hitRate"`
	BytesEstimate int64   `json:"bytesEstimate"`
}

type databaseStatsDTO struct {
	TotalJobs        int64                     `json:"totalJobs"`
	ActiveJobs       int64                     `json:"activeJobs"`
	TotalExecutions  int64                     `json:"totalExecutions"`
	RecentExecutions int64                     `json:"recentExecutions"`
	JobsByType       map[entity.JobType]int64  `json:"jobsByType"`
}

type statsResponse struct {
	envelope
	Scheduler schedulerStatsDTO `json:"scheduler"`
	Cache     cacheStatsDTO     `json:"cache"`
	Database  databaseStatsDTO  `json:"database"`
}

type cleanupData struct {
	DeletedExecutions int64 `json:"deletedExecutions"`
	RetentionDays     int   `json:"retentionDays"`
}

type cleanupResponse struct {
	envelope
	Data cleanupData `json:"data"`
}

type healthResponse struct {
	envelope
	Healthy   bool  `json:"healthy"`
	LatencyMs int64 `json:"latencyMs"`
}

type rootResponse struct {
	envelope
	Service string `json:"service"`
	Version string `json:"version"`
}
