package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/graphdoc"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// testStore runs a suite of tests against any Store implementation
func testStore(t *testing.T, newStore func() Store) {
	t.Helper()

	t.Run("CreateJob", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		job := &Job{
			JobID:   "test-job-1",
			Created: time.Now(),
			Updated: time.Now(),
			Status:  schemas.JobStatePending,
			Graph: &graphdoc.Document{
				Nodes: []graphdoc.Node{{Ref: "in", Kind: schemas.KindSource, Path: "test.mp4"}},
			},
		}

		err := s.CreateJob(ctx, job)
		if err != nil {
			t.Fatalf("CreateJob() failed: %v", err)
		}

		// Verify job was created
		retrieved, err := s.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob() failed: %v", err)
		}

		if retrieved.JobID != job.JobID {
			t.Errorf("Expected JobID %s, got %s", job.JobID, retrieved.JobID)
		}
		if retrieved.Status != schemas.JobStatePending {
			t.Errorf("Expected status pending, got %s", retrieved.Status)
		}
	})

	t.Run("CreateDuplicateJob", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		job := &Job{
			JobID:   "duplicate-job",
			Created: time.Now(),
			Updated: time.Now(),
			Status:  schemas.JobStatePending,
		}

		err := s.CreateJob(ctx, job)
		if err != nil {
			t.Fatalf("First CreateJob() failed: %v", err)
		}

		// Try to create same job again
		err = s.CreateJob(ctx, job)
		if err != ErrJobExists {
			t.Errorf("Expected ErrJobExists, got %v", err)
		}
	})

	t.Run("GetJob", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		job := &Job{
			JobID:   "get-job-test",
			Created: time.Now(),
			Updated: time.Now(),
			Status:  schemas.JobStatePending,
		}

		err := s.CreateJob(ctx, job)
		if err != nil {
			t.Fatalf("CreateJob() failed: %v", err)
		}

		retrieved, err := s.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob() failed: %v", err)
		}

		if retrieved.JobID != job.JobID {
			t.Errorf("Job ID mismatch")
		}
	})

	t.Run("GetNonExistentJob", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		_, err := s.GetJob(ctx, "nonexistent")
		if err != ErrJobNotFound {
			t.Errorf("Expected ErrJobNotFound, got %v", err)
		}
	})

	t.Run("UpdateJob", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		job := &Job{
			JobID:   "update-job-test",
			Created: time.Now(),
			Updated: time.Now(),
			Status:  schemas.JobStatePending,
		}

		err := s.CreateJob(ctx, job)
		if err != nil {
			t.Fatalf("CreateJob() failed: %v", err)
		}

		// Update job status
		job.Status = schemas.JobStateRunning
		job.Updated = time.Now()
		err = s.UpdateJob(ctx, job)
		if err != nil {
			t.Fatalf("UpdateJob() failed: %v", err)
		}

		// Verify update
		retrieved, err := s.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob() failed: %v", err)
		}

		if retrieved.Status != schemas.JobStateRunning {
			t.Errorf("Expected status running, got %s", retrieved.Status)
		}

		// A cancelled job cannot be revived by a stale copy
		if err := s.UpdateJobStatus(ctx, job.JobID, schemas.JobStateCancelled, nil); err != nil {
			t.Fatalf("UpdateJobStatus() failed: %v", err)
		}
		if err := s.UpdateJob(ctx, retrieved); !errors.Is(err, ErrJobTerminal) {
			t.Errorf("Expected ErrJobTerminal, got %v", err)
		}
	})

	t.Run("UpdateJobStatus", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		job := &Job{
			JobID:   "status-update-test",
			Created: time.Now(),
			Updated: time.Now(),
			Status:  schemas.JobStatePending,
		}

		err := s.CreateJob(ctx, job)
		if err != nil {
			t.Fatalf("CreateJob() failed: %v", err)
		}

		// Update status with progress
		progress := &schemas.Progress{
			OverallPercent: 50.0,
			CurrentStep:    "processing",
		}

		err = s.UpdateJobStatus(ctx, job.JobID, schemas.JobStateRunning, progress)
		if err != nil {
			t.Fatalf("UpdateJobStatus() failed: %v", err)
		}

		// Verify update
		retrieved, err := s.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob() failed: %v", err)
		}

		if retrieved.Status != schemas.JobStateRunning {
			t.Errorf("Expected status running, got %s", retrieved.Status)
		}
		if retrieved.Progress == nil {
			t.Fatal("Expected progress to be set")
		}
		if retrieved.Progress.OverallPercent != 50.0 {
			t.Errorf("Expected progress 50%%, got %.1f%%", retrieved.Progress.OverallPercent)
		}
		if retrieved.StartedAt == nil {
			t.Error("Expected StartedAt to be set once the job left pending")
		}
		if retrieved.CompletedAt != nil {
			t.Error("Expected CompletedAt to stay unset while running")
		}

		if err := s.UpdateJobStatus(ctx, job.JobID, schemas.JobStateCompleted, nil); err != nil {
			t.Fatalf("UpdateJobStatus() failed: %v", err)
		}
		retrieved, _ = s.GetJob(ctx, job.JobID)
		if retrieved.CompletedAt == nil {
			t.Error("Expected CompletedAt to be set for a terminal state")
		}
		if retrieved.Progress == nil || retrieved.Progress.OverallPercent != 50.0 {
			t.Error("Expected a nil progress update to keep the previous progress")
		}

		err = s.UpdateJobStatus(ctx, job.JobID, schemas.JobStateRunning, nil)
		if !errors.Is(err, ErrJobTerminal) {
			t.Errorf("Expected ErrJobTerminal, got %v", err)
		}
		retrieved, _ = s.GetJob(ctx, job.JobID)
		if retrieved.Status != schemas.JobStateCompleted {
			t.Errorf("Expected status to stay completed, got %s", retrieved.Status)
		}
	})

	t.Run("UpdateJobError", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		job := &Job{
			JobID:   "error-update-test",
			Created: time.Now(),
			Updated: time.Now(),
			Status:  schemas.JobStatePending,
		}

		err := s.CreateJob(ctx, job)
		if err != nil {
			t.Fatalf("CreateJob() failed: %v", err)
		}

		// Update with error
		errorInfo := &schemas.ErrorInfo{
			Code:      "FFMPEG_ERROR",
			Message:   "FFmpeg execution failed",
			Retryable: true,
			Diagnostics: []schemas.Diagnostic{
				{Kind: "cyclic_graph", Nodes: []int{1, 2}, Message: "cycle through nodes 1 -> 2 -> 1"},
			},
		}

		err = s.UpdateJobError(ctx, job.JobID, errorInfo)
		if err != nil {
			t.Fatalf("UpdateJobError() failed: %v", err)
		}

		// Verify error was recorded
		retrieved, err := s.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob() failed: %v", err)
		}

		if retrieved.Error == nil {
			t.Fatal("Expected error to be set")
		}
		if retrieved.Error.Code != "FFMPEG_ERROR" {
			t.Errorf("Expected error code FFMPEG_ERROR, got %s", retrieved.Error.Code)
		}
		if len(retrieved.Error.Diagnostics) != 1 {
			t.Fatalf("Expected 1 diagnostic, got %d", len(retrieved.Error.Diagnostics))
		}

		// Mutating the returned copy must not reach the store
		retrieved.Error.Diagnostics[0].Message = "changed"
		again, _ := s.GetJob(ctx, job.JobID)
		if again.Error.Diagnostics[0].Message != "cycle through nodes 1 -> 2 -> 1" {
			t.Errorf("Expected stored diagnostic to be unchanged, got %q", again.Error.Diagnostics[0].Message)
		}
	})

	t.Run("DeleteJob", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		job := &Job{
			JobID:   "delete-job-test",
			Created: time.Now(),
			Updated: time.Now(),
			Status:  schemas.JobStatePending,
		}

		err := s.CreateJob(ctx, job)
		if err != nil {
			t.Fatalf("CreateJob() failed: %v", err)
		}

		// Delete job
		err = s.DeleteJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("DeleteJob() failed: %v", err)
		}

		// Verify job is deleted
		_, err = s.GetJob(ctx, job.JobID)
		if err != ErrJobNotFound {
			t.Errorf("Expected ErrJobNotFound after delete, got %v", err)
		}
	})

	t.Run("ListJobs", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()

		// Create multiple jobs
		jobs := []*Job{
			{JobID: "list-1", Created: time.Now(), Updated: time.Now(), Status: schemas.JobStatePending},
			{JobID: "list-2", Created: time.Now(), Updated: time.Now(), Status: schemas.JobStateRunning},
			{JobID: "list-3", Created: time.Now(), Updated: time.Now(), Status: schemas.JobStateCompleted},
		}

		for _, job := range jobs {
			if err := s.CreateJob(ctx, job); err != nil {
				t.Fatalf("CreateJob() failed: %v", err)
			}
		}

		// List all jobs
		filter := &ListFilter{}
		listed, err := s.ListJobs(ctx, filter)
		if err != nil {
			t.Fatalf("ListJobs() failed: %v", err)
		}

		if len(listed) != 3 {
			t.Errorf("Expected 3 jobs, got %d", len(listed))
		}
	})

	t.Run("ListJobsWithFilter", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()

		// Create jobs with different statuses
		jobs := []*Job{
			{JobID: "filter-1", Created: time.Now(), Updated: time.Now(), Status: schemas.JobStatePending},
			{JobID: "filter-2", Created: time.Now(), Updated: time.Now(), Status: schemas.JobStatePending},
			{JobID: "filter-3", Created: time.Now(), Updated: time.Now(), Status: schemas.JobStateCompleted},
		}

		for _, job := range jobs {
			if err := s.CreateJob(ctx, job); err != nil {
				t.Fatalf("CreateJob() failed: %v", err)
			}
		}

		// Filter for pending jobs only
		filter := &ListFilter{
			Status: []schemas.JobState{schemas.JobStatePending},
		}
		listed, err := s.ListJobs(ctx, filter)
		if err != nil {
			t.Fatalf("ListJobs() failed: %v", err)
		}

		if len(listed) != 2 {
			t.Errorf("Expected 2 pending jobs, got %d", len(listed))
		}

		for _, job := range listed {
			if job.Status != schemas.JobStatePending {
				t.Errorf("Expected pending job, got status %s", job.Status)
			}
		}
	})

	t.Run("ListJobsWithLimit", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()

		// Create multiple jobs
		for i := 0; i < 5; i++ {
			job := &Job{
				JobID:   "limit-" + string(rune(i+'0')),
				Created: time.Now(),
				Updated: time.Now(),
				Status:  schemas.JobStatePending,
			}
			if err := s.CreateJob(ctx, job); err != nil {
				t.Fatalf("CreateJob() failed: %v", err)
			}
		}

		// List with limit
		filter := &ListFilter{Limit: 3}
		listed, err := s.ListJobs(ctx, filter)
		if err != nil {
			t.Fatalf("ListJobs() failed: %v", err)
		}

		if len(listed) != 3 {
			t.Errorf("Expected 3 jobs (limit), got %d", len(listed))
		}
	})

	t.Run("ListJobsOrderingAndOffset", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

		for i, id := range []string{"order-a", "order-b", "order-c", "order-d"} {
			job := &Job{
				JobID:   id,
				Created: base.Add(time.Duration(i) * time.Minute),
				Updated: base,
				Status:  schemas.JobStatePending,
				Owner:   map[bool]string{true: "alice", false: "bob"}[i%2 == 0],
			}
			if err := s.CreateJob(ctx, job); err != nil {
				t.Fatalf("CreateJob() failed: %v", err)
			}
		}

		// Default order is newest first
		listed, err := s.ListJobs(ctx, &ListFilter{Offset: 1, Limit: 2})
		if err != nil {
			t.Fatalf("ListJobs() failed: %v", err)
		}
		if len(listed) != 2 || listed[0].JobID != "order-c" || listed[1].JobID != "order-b" {
			t.Errorf("Expected [order-c order-b], got %v", jobIDs(listed))
		}

		listed, _ = s.ListJobs(ctx, &ListFilter{SortBy: "created", SortOrder: "asc"})
		if got := jobIDs(listed); len(got) != 4 || got[0] != "order-a" || got[3] != "order-d" {
			t.Errorf("Expected ascending order, got %v", got)
		}

		// Equal keys fall back to job ID
		listed, _ = s.ListJobs(ctx, &ListFilter{SortBy: "updated", SortOrder: "asc"})
		if got := jobIDs(listed); got[0] != "order-a" || got[1] != "order-b" {
			t.Errorf("Expected ties broken by job ID, got %v", got)
		}

		listed, _ = s.ListJobs(ctx, &ListFilter{Owner: "alice"})
		if got := jobIDs(listed); len(got) != 2 || got[0] != "order-c" || got[1] != "order-a" {
			t.Errorf("Expected alice's jobs only, got %v", got)
		}

		listed, _ = s.ListJobs(ctx, &ListFilter{Offset: 10})
		if len(listed) != 0 {
			t.Errorf("Expected empty page past the end, got %d jobs", len(listed))
		}
	})

	t.Run("InvalidJobID", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		ctx := context.Background()
		if err := s.CreateJob(ctx, &Job{}); !errors.Is(err, ErrInvalidJobID) {
			t.Errorf("Expected ErrInvalidJobID, got %v", err)
		}
		if _, err := s.GetJob(ctx, ""); !errors.Is(err, ErrInvalidJobID) {
			t.Errorf("Expected ErrInvalidJobID, got %v", err)
		}
		if err := s.UpdateJobStatus(ctx, "missing", schemas.JobStateRunning, nil); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("Expected ErrJobNotFound, got %v", err)
		}
	})
}

func jobIDs(jobs []*Job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.JobID
	}
	return ids
}

// TestMemoryStore runs all tests against the memory store
func TestMemoryStore(t *testing.T) {
	testStore(t, func() Store {
		return NewMemoryStore()
	})
}
