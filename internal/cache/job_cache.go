package cache

import (
	"time"

	"github.com/google/uuid"

	"cronsched/internal/entity"
)

// Key TTLs per the cache's component design: individual jobs are cheap to
// refetch and change less often than a listing, so they get a longer TTL.
const (
	jobTTL  = 10 * time.Minute
	listTTL = 2 * time.Minute
)

// JobCache wraps a Cache with the key conventions used for job reads:
// "job:<id>" for single-job lookups and "jobs:<canonical-filter>:<page>:<limit>"
// for listings.
type JobCache struct {
	c *Cache
}

// NewJobCache wraps c with job-domain key conventions.
func NewJobCache(c *Cache) *JobCache {
	return &JobCache{c: c}
}

func jobKey(id uuid.UUID) string {
	return "job:" + id.String()
}

func listKey(filter entity.JobFilter, page, limit int) string {
	return "jobs:" + filter.Canonical() + ":" + itoa(page) + ":" + itoa(limit)
}

// GetJob returns a cached Job, if present.
func (jc *JobCache) GetJob(id uuid.UUID) (entity.Job, bool) {
	v, ok := jc.c.Get(jobKey(id))
	if !ok {
		return entity.Job{}, false
	}
	return v.(entity.Job), true
}

// SetJob caches a single job lookup.
func (jc *JobCache) SetJob(job entity.Job) {
	jc.c.Set(jobKey(job.ID), job, jobTTL)
}

// InvalidateJob evicts a single job's cache entry. Called on update/delete
// so a stale row is never served after a successful write.
func (jc *JobCache) InvalidateJob(id uuid.UUID) {
	jc.c.Delete(jobKey(id))
}

type jobListResult struct {
	Jobs       []entity.Job
	Pagination entity.Pagination
}

// GetList returns a cached listing page, if present.
func (jc *JobCache) GetList(filter entity.JobFilter, page, limit int) ([]entity.Job, entity.Pagination, bool) {
	v, ok := jc.c.Get(listKey(filter, page, limit))
	if !ok {
		return nil, entity.Pagination{}, false
	}
	r := v.(jobListResult)
	return r.Jobs, r.Pagination, true
}

// SetList caches a listing page.
func (jc *JobCache) SetList(filter entity.JobFilter, page, limit int, jobs []entity.Job, pagination entity.Pagination) {
	jc.c.Set(listKey(filter, page, limit), jobListResult{Jobs: jobs, Pagination: pagination}, listTTL)
}

// InvalidateLists clears every cached listing page. Any job mutation can
// change which page a job falls on, so listings are invalidated wholesale
// rather than by key — this is the cache-coherence rule the write paths
// must follow.
func (jc *JobCache) InvalidateLists() {
	for _, key := range jc.c.Keys() {
		if len(key) >= 5 && key[:5] == "jobs:" {
			jc.c.Delete(key)
		}
	}
}

// Stats exposes the underlying cache's counters.
func (jc *JobCache) Stats() Stats {
	return jc.c.Stats()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
