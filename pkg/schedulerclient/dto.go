package schedulerclient

import "time"

// JobInput is the wire shape accepted by create/update — mirrors the
// control plane's jobInputDTO. Optional fields use omitempty, so zero values
// are left out of the body; IsActive and MaxRetries are pointers so that
// false and 0 can still be sent.
type JobInput struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	CronExpression string   `json:"cronExpression"`
	IsActive       *bool    `json:"isActive,omitempty"`
	JobType        string   `json:"jobType,omitempty"`
	TimeoutMs      int      `json:"timeoutMs,omitempty"`
	MaxRetries     *int     `json:"maxRetries,omitempty"`
	RetryDelayMs   int      `json:"retryDelayMs,omitempty"`
	CreatedBy      string   `json:"createdBy,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// JobResponse mirrors the control plane's entity.Job wire shape.
type JobResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	CronExpression string          `json:"cronExpression"`
	IsActive       bool            `json:"isActive"`
	JobType        string          `json:"jobType"`
	TimeoutMs      int             `json:"timeoutMs"`
	MaxRetries     int             `json:"maxRetries"`
	RetryDelayMs   int             `json:"retryDelayMs"`
	CreatedBy      string          `json:"createdBy,omitempty"`
	Tags           []string        `json:"tags"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	LastRunAt      *time.Time      `json:"lastRunAt"`
	NextRunAt      *time.Time      `json:"nextRunAt"`
	TotalRuns      int64           `json:"totalRuns"`
	SuccessfulRuns int64           `json:"successfulRuns"`
	FailedRuns     int64           `json:"failedRuns"`
}

type jobMutationResponse struct {
	Success   bool        `json:"success"`
	Timestamp time.Time   `json:"timestamp"`
	Data      JobResponse `json:"data"`
}

// JobExecutionResponse mirrors entity.JobExecution's wire shape.
type JobExecutionResponse struct {
	ID          string     `json:"id"`
	JobID       string     `json:"jobId"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	DurationMs  *int64     `json:"durationMs"`
	RetryCount  int        `json:"retryCount"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// JobDetail mirrors jobDetailResponse from the control plane.
type JobDetail struct {
	Success          bool                   `json:"success"`
	Timestamp        time.Time              `json:"timestamp"`
	Job              JobResponse            `json:"job"`
	ExecutionHistory []JobExecutionResponse `json:"executionHistory"`
	IsScheduled      bool                   `json:"isScheduled"`
}

// Pagination mirrors entity.Pagination.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// JobsListResponse mirrors jobsListResponse.
type JobsListResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		Jobs       []JobResponse `json:"jobs"`
		Pagination Pagination    `json:"pagination"`
	} `json:"data"`
}

// TriggerResponse mirrors triggerResponse.
type TriggerResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		JobID       string    `json:"jobId"`
		JobName     string    `json:"jobName"`
		TriggeredAt time.Time `json:"triggeredAt"`
	} `json:"data"`
}

// ValidateCronResponse mirrors validateCronResponse.
type ValidateCronResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		IsValid    bool        `json:"isValid"`
		Expression string      `json:"expression"`
		NextRuns   []time.Time `json:"nextRuns,omitempty"`
		Timezone   string      `json:"timezone"`
	} `json:"data"`
}

// StatsResponse mirrors statsResponse.
type StatsResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Scheduler struct {
		Total             int64   `json:"total"`
		Successful        int64   `json:"successful"`
		Failed            int64   `json:"failed"`
		AvgExecMs         float64 `json:"avgExecMs"`
		IsRunning         bool    `json:"isRunning"`
		ActiveJobs        int     `json:"activeJobs"`
		RunningExecutions int     `json:"runningExecutions"`
		SuccessRate       string  `json:"successRate"`
	} `json:"scheduler"`
	Cache struct {
		Hits      int64   `json:"hits"`
		Misses    int64   `json:"misses"`
		Size      int     `json:"size"`
		HitRate   float64 `json:"hitRate"`
		Evictions int64   `json:"evictions"`
	} `json:"cache"`
	Database struct {
		TotalJobs       int64 `json:"totalJobs"`
		ActiveJobs      int64 `json:"activeJobs"`
		TotalExecutions int64 `json:"totalExecutions"`
	} `json:"database"`
}

// CleanupResponse mirrors cleanupResponse.
type CleanupResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		DeletedExecutions int64 `json:"deletedExecutions"`
		RetentionDays     int   `json:"retentionDays"`
	} `json:"data"`
}

// HealthResponse mirrors healthResponse.
type HealthResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Healthy   bool      `json:"healthy"`
	LatencyMs int64     `json:"latencyMs"`
}
