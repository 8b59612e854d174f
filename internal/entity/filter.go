package entity

import (
	"encoding/json"
	"sort"
)

// JobFilter narrows JobRepository.FindAll. A zero-value filter matches all
// jobs. Canonical() renders a stable cache-key suffix.
type JobFilter struct {
	IsActive *bool
	JobType  JobType
	Tags     []string
	Search   string
}

// Canonical returns a deterministic JSON rendering of the filter, used as
// the cache key suffix so that equivalent filters collide on the same key
// regardless of tag ordering.
func (f JobFilter) Canonical() string {
	tags := append([]string(nil), f.Tags...)
	sort.Strings(tags)
	b, _ := json.Marshal(struct {
		IsActive *bool    `json:"isActive,omitempty"`
		JobType  JobType  `json:"jobType,omitempty"`
		Tags     []string `json:"tags,omitempty"`
		Search   string   `json:"search,omitempty"`
	}{f.IsActive, f.JobType, tags, f.Search})
	return string(b)
}

// Pagination is the envelope returned alongside any paginated list.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPagination computes the derived fields from page/limit/total.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if totalPages < 1 {
		totalPages = 1
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
