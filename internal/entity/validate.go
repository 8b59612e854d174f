package entity

import (
	"strings"

	"cronsched/internal/apperr"
)

// JobInput is the user-supplied shape for create/update; pointers distinguish
// "not provided" from "provided as zero value" on update.
type JobInput struct {
	Name           *string
	Description    *string
	CronExpression *string
	IsActive       *bool
	JobType        *JobType
	Payload        []byte
	TimeoutMs      *int
	MaxRetries     *int
	RetryDelayMs   *int
	CreatedBy      *string
	Tags           []string
}

// ValidateCreate checks the fields required to create a Job, applying
// defaults for anything left unset. validateCron is injected so entity stays
// free of the cron grammar (owned by internal/cron).
func ValidateCreate(in JobInput, validateCron func(string) bool) (Job, error) {
	var details []apperr.FieldError

	job := Job{
		TimeoutMs:    DefaultTimeoutMs,
		MaxRetries:   DefaultMaxRetries,
		RetryDelayMs: DefaultRetryDelayMs,
		JobType:      JobTypeScheduled,
	}

	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		details = append(details, apperr.FieldError{Field: "name", Message: "name is required"})
	} else if len(*in.Name) > MaxNameLen {
		details = append(details, apperr.FieldError{Field: "name", Message: "name exceeds 255 characters", Value: *in.Name})
	} else {
		job.Name = *in.Name
	}

	if in.Description != nil {
		if len(*in.Description) > MaxDescriptionLen {
			details = append(details, apperr.FieldError{Field: "description", Message: "description exceeds 1000 characters"})
		} else {
			job.Description = *in.Description
		}
	}

	if in.CronExpression == nil || strings.TrimSpace(*in.CronExpression) == "" {
		details = append(details, apperr.FieldError{Field: "cronExpression", Message: "cronExpression is required"})
	} else if !validateCron(*in.CronExpression) {
		details = append(details, apperr.FieldError{Field: "cronExpression", Message: "cronExpression is not a valid 5-field cron expression", Value: *in.CronExpression})
	} else {
		job.CronExpression = *in.CronExpression
	}

	if in.IsActive != nil {
		job.IsActive = *in.IsActive
	}

	if in.JobType != nil {
		if !in.JobType.Valid() {
			details = append(details, apperr.FieldError{Field: "jobType", Message: "jobType must be one of scheduled, immediate, recurring, delayed", Value: *in.JobType})
		} else {
			job.JobType = *in.JobType
		}
	}

	if len(in.Payload) > 0 {
		job.Payload = in.Payload
	}

	if in.TimeoutMs != nil {
		if *in.TimeoutMs < MinTimeoutMs || *in.TimeoutMs > MaxTimeoutMs {
			details = append(details, apperr.FieldError{Field: "timeoutMs", Message: "timeoutMs must be between 1000 and 300000", Value: *in.TimeoutMs})
		} else {
			job.TimeoutMs = *in.TimeoutMs
		}
	}

	if in.MaxRetries != nil {
		if *in.MaxRetries < MinMaxRetries || *in.MaxRetries > MaxMaxRetries {
			details = append(details, apperr.FieldError{Field: "maxRetries", Message: "maxRetries must be between 0 and 10", Value: *in.MaxRetries})
		} else {
			job.MaxRetries = *in.MaxRetries
		}
	}

	if in.RetryDelayMs != nil {
		if *in.RetryDelayMs < MinRetryDelayMs || *in.RetryDelayMs > MaxRetryDelayMs {
			details = append(details, apperr.FieldError{Field: "retryDelayMs", Message: "retryDelayMs must be between 1000 and 60000", Value: *in.RetryDelayMs})
		} else {
			job.RetryDelayMs = *in.RetryDelayMs
		}
	}

	if in.CreatedBy != nil {
		if len(*in.CreatedBy) > MaxCreatedByLen {
			details = append(details, apperr.FieldError{Field: "createdBy", Message: "createdBy exceeds 255 characters"})
		} else {
			job.CreatedBy = *in.CreatedBy
		}
	}

	if len(in.Tags) > MaxTagCount {
		details = append(details, apperr.FieldError{Field: "tags", Message: "at most 10 tags are allowed"})
	} else {
		for _, tag := range in.Tags {
			if len(tag) > MaxTagLen {
				details = append(details, apperr.FieldError{Field: "tags", Message: "each tag must be at most 50 characters", Value: tag})
				break
			}
		}
		job.Tags = dedupeTags(in.Tags)
	}

	if len(details) > 0 {
		return Job{}, apperr.Validation("validation failed", details...)
	}
	return job, nil
}

// ApplyPatch merges a partial JobInput onto an existing Job for update,
// re-validating every touched field. It reports whether CronExpression
// changed so the caller knows to recompute NextRunAt.
func ApplyPatch(existing Job, in JobInput, validateCron func(string) bool) (Job, bool, error) {
	var details []apperr.FieldError
	job := existing
	cronChanged := false

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			details = append(details, apperr.FieldError{Field: "name", Message: "name is required"})
		} else if len(*in.Name) > MaxNameLen {
			details = append(details, apperr.FieldError{Field: "name", Message: "name exceeds 255 characters"})
		} else {
			job.Name = *in.Name
		}
	}

	if in.Description != nil {
		if len(*in.Description) > MaxDescriptionLen {
			details = append(details, apperr.FieldError{Field: "description", Message: "description exceeds 1000 characters"})
		} else {
			job.Description = *in.Description
		}
	}

	if in.CronExpression != nil {
		if strings.TrimSpace(*in.CronExpression) == "" {
			details = append(details, apperr.FieldError{Field: "cronExpression", Message: "cronExpression is required"})
		} else if !validateCron(*in.CronExpression) {
			details = append(details, apperr.FieldError{Field: "cronExpression", Message: "cronExpression is not a valid 5-field cron expression", Value: *in.CronExpression})
		} else if *in.CronExpression != job.CronExpression {
			job.CronExpression = *in.CronExpression
			cronChanged = true
		}
	}

	if in.IsActive != nil {
		job.IsActive = *in.IsActive
	}

	if in.JobType != nil {
		if !in.JobType.Valid() {
			details = append(details, apperr.FieldError{Field: "jobType", Message: "jobType must be one of scheduled, immediate, recurring, delayed"})
		} else {
			job.JobType = *in.JobType
		}
	}

	if len(in.Payload) > 0 {
		job.Payload = in.Payload
	}

	if in.TimeoutMs != nil {
		if *in.TimeoutMs < MinTimeoutMs || *in.TimeoutMs > MaxTimeoutMs {
			details = append(details, apperr.FieldError{Field: "timeoutMs", Message: "timeoutMs must be between 1000 and 300000"})
		} else {
			job.TimeoutMs = *in.TimeoutMs
		}
	}

	if in.MaxRetries != nil {
		if *in.MaxRetries < MinMaxRetries || *in.MaxRetries > MaxMaxRetries {
			details = append(details, apperr.FieldError{Field: "maxRetries", Message: "maxRetries must be between 0 and 10"})
		} else {
			job.MaxRetries = *in.MaxRetries
		}
	}

	if in.RetryDelayMs != nil {
		if *in.RetryDelayMs < MinRetryDelayMs || *in.RetryDelayMs > MaxRetryDelayMs {
			details = append(details, apperr.FieldError{Field: "retryDelayMs", Message: "retryDelayMs must be between 1000 and 60000"})
		} else {
			job.RetryDelayMs = *in.RetryDelayMs
		}
	}

	if in.CreatedBy != nil {
		if len(*in.CreatedBy) > MaxCreatedByLen {
			details = append(details, apperr.FieldError{Field: "createdBy", Message: "createdBy exceeds 255 characters"})
		} else {
			job.CreatedBy = *in.CreatedBy
		}
	}

	if in.Tags != nil {
		if len(in.Tags) > MaxTagCount {
			details = append(details, apperr.FieldError{Field: "tags", Message: "at most 10 tags are allowed"})
		} else {
			for _, tag := range in.Tags {
				if len(tag) > MaxTagLen {
					details = append(details, apperr.FieldError{Field: "tags", Message: "each tag must be at most 50 characters"})
					break
				}
			}
			job.Tags = dedupeTags(in.Tags)
		}
	}

	if len(details) > 0 {
		return Job{}, false, apperr.Validation("validation failed", details...)
	}
	return job, cronChanged, nil
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
