// Package store provides job state persistence
package store

import (
	"context"
	"errors"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/graphdoc"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

var (
	// ErrJobNotFound is returned when a job does not exist
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when attempting to create a job that already exists
	ErrJobExists = errors.New("job already exists")

	// ErrInvalidJobID is returned for invalid job IDs
	ErrInvalidJobID = errors.New("invalid job ID")

	// ErrJobTerminal is returned when changing the status of a finished job
	ErrJobTerminal = errors.New("job already finished")
)

// Store is the interface for job state persistence
type Store interface {
	// CreateJob creates a new job with initial state
	CreateJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// UpdateJob replaces an existing job. A finished job keeps its status.
	UpdateJob(ctx context.Context, job *Job) error

	// DeleteJob deletes a job by ID
	DeleteJob(ctx context.Context, jobID string) error

	// ListJobs lists jobs with optional filtering
	ListJobs(ctx context.Context, filter *ListFilter) ([]*Job, error)

	// UpdateJobStatus updates job status and progress. Jobs in a terminal
	// state keep it and fail with ErrJobTerminal.
	UpdateJobStatus(ctx context.Context, jobID string, status schemas.JobState, progress *schemas.Progress) error

	// UpdateJobError records an error for a job
	UpdateJobError(ctx context.Context, jobID string, err *schemas.ErrorInfo) error

	// Close closes the store and releases resources
	Close() error
}

// Job represents a complete job record in the store. Graph and Command are
// never modified once set and are shared between copies.
type Job struct {
	JobID   string    `json:"job_id"`
	Created time.Time `json:"created_at"`
	Updated time.Time `json:"updated_at"`

	// Owner is the authenticated subject that submitted the job
	Owner string `json:"owner,omitempty"`

	// Graph is the submitted document, Command what it compiled to
	Graph   *graphdoc.Document   `json:"graph"`
	Command *schemas.CommandSpec `json:"command,omitempty"`

	Status      schemas.JobState   `json:"status"`
	Progress    *schemas.Progress  `json:"progress,omitempty"`
	Error       *schemas.ErrorInfo `json:"error,omitempty"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// ListFilter defines filtering criteria for listing jobs
type ListFilter struct {
	// Status filters
	Status []schemas.JobState `json:"status,omitempty"`

	// Owner restricts results to one submitter
	Owner string `json:"owner,omitempty"`

	// Time range filters
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max results (0 = no limit)
	Offset int `json:"offset,omitempty"` // Skip N results

	// Sorting
	SortBy    string `json:"sort_by,omitempty"`    // created, updated or status
	SortOrder string `json:"sort_order,omitempty"` // "asc" or "desc"
}

// ToJobStatus converts a Job to schemas.JobStatus
func (j *Job) ToJobStatus() *schemas.JobStatus {
	return &schemas.JobStatus{
		JobID:       j.JobID,
		Status:      j.Status,
		Command:     j.Command,
		Progress:    j.Progress,
		Error:       j.Error,
		CreatedAt:   j.Created,
		UpdatedAt:   j.Updated,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status.Terminal()
}

// IsPending returns true if the job is pending execution
func (j *Job) IsPending() bool {
	return j.Status == schemas.JobStatePending
}
