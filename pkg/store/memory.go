package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// MemoryStore keeps jobs in a map guarded by a RWMutex. Every job handed in
// or out is a copy.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

// CreateJob stores a copy of job
func (m *MemoryStore) CreateJob(ctx context.Context, job *Job) error {
	if job.JobID == "" {
		return ErrInvalidJobID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.JobID]; exists {
		return ErrJobExists
	}
	m.jobs[job.JobID] = cloneJob(job)
	return nil
}

// GetJob returns a copy of the job
func (m *MemoryStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

// UpdateJob replaces an existing job. A finished job keeps its status.
func (m *MemoryStore) UpdateJob(ctx context.Context, job *Job) error {
	return m.mutate(job.JobID, func(current *Job) (*Job, error) {
		if current.Status.Terminal() && job.Status != current.Status {
			return nil, ErrJobTerminal
		}
		job.Updated = time.Now()
		return cloneJob(job), nil
	})
}

// DeleteJob removes a job
func (m *MemoryStore) DeleteJob(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrInvalidJobID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[jobID]; !exists {
		return ErrJobNotFound
	}
	delete(m.jobs, jobID)
	return nil
}

// ListJobs returns copies of the jobs matching filter, sorted and paginated.
// Without a sort key jobs come newest first.
func (m *MemoryStore) ListJobs(ctx context.Context, filter *ListFilter) ([]*Job, error) {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if filter.matches(job) {
			jobs = append(jobs, cloneJob(job))
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(jobs, filter.compare)
	return filter.page(jobs), nil
}

// UpdateJobStatus moves a job to status and replaces its progress when one
// is given. StartedAt is set on the first non-pending status and CompletedAt
// on the first terminal one.
func (m *MemoryStore) UpdateJobStatus(ctx context.Context, jobID string, status schemas.JobState, progress *schemas.Progress) error {
	return m.mutate(jobID, func(job *Job) (*Job, error) {
		if job.Status.Terminal() {
			return nil, ErrJobTerminal
		}

		now := time.Now()
		job.Status = status
		job.Updated = now
		if progress != nil {
			job.Progress = cloneProgress(progress)
		}
		if status != schemas.JobStatePending && job.StartedAt == nil {
			job.StartedAt = &now
		}
		if status.Terminal() && job.CompletedAt == nil {
			job.CompletedAt = &now
		}
		return job, nil
	})
}

// UpdateJobError records why a job failed
func (m *MemoryStore) UpdateJobError(ctx context.Context, jobID string, info *schemas.ErrorInfo) error {
	return m.mutate(jobID, func(job *Job) (*Job, error) {
		job.Error = cloneError(info)
		job.Updated = time.Now()
		return job, nil
	})
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// mutate runs fn on the stored job under the write lock and stores what it
// returns
func (m *MemoryStore) mutate(jobID string, fn func(*Job) (*Job, error)) error {
	if jobID == "" {
		return ErrInvalidJobID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	next, err := fn(job)
	if err != nil {
		return err
	}
	m.jobs[jobID] = next
	return nil
}

func (f *ListFilter) matches(job *Job) bool {
	if f == nil {
		return true
	}
	if len(f.Status) > 0 && !slices.Contains(f.Status, job.Status) {
		return false
	}
	if f.Owner != "" && job.Owner != f.Owner {
		return false
	}
	if f.CreatedAfter != nil && job.Created.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && job.Created.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// compare orders two jobs by the filter's sort key. Ties fall back to the
// job ID so pages are stable.
func (f *ListFilter) compare(a, b *Job) int {
	key, descending := "created", true
	if f != nil && f.SortBy != "" {
		key, descending = f.SortBy, f.SortOrder == "desc"
	}

	var c int
	switch key {
	case "updated":
		c = a.Updated.Compare(b.Updated)
	case "status":
		c = cmp.Compare(a.Status, b.Status)
	default:
		c = a.Created.Compare(b.Created)
	}
	if descending {
		c = -c
	}
	if c != 0 {
		return c
	}
	return cmp.Compare(a.JobID, b.JobID)
}

func (f *ListFilter) page(jobs []*Job) []*Job {
	if f == nil {
		return jobs
	}
	if f.Offset > 0 {
		if f.Offset >= len(jobs) {
			return []*Job{}
		}
		jobs = jobs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(jobs) {
		jobs = jobs[:f.Limit]
	}
	return jobs
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	c := *job
	c.Progress = cloneProgress(job.Progress)
	c.Error = cloneError(job.Error)
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneProgress(p *schemas.Progress) *schemas.Progress {
	if p == nil {
		return nil
	}
	c := *p
	if p.FFmpeg != nil {
		ff := *p.FFmpeg
		c.FFmpeg = &ff
	}
	return &c
}

func cloneError(e *schemas.ErrorInfo) *schemas.ErrorInfo {
	if e == nil {
		return nil
	}
	c := *e
	c.Diagnostics = append([]schemas.Diagnostic(nil), e.Diagnostics...)
	return &c
}
