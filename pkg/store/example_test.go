package store_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/graphdoc"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
	"github.com/chicogong/ffmpeg-chain/pkg/store"
)

// Example_basic records a submitted graph and follows it to completion
func Example_basic() {
	s := store.NewMemoryStore()
	defer s.Close()

	ctx := context.Background()
	now := time.Now()

	job := &store.Job{
		JobID:   "example-job-1",
		Created: now,
		Updated: now,
		Status:  schemas.JobStatePending,
		Graph: &graphdoc.Document{
			Nodes: []graphdoc.Node{
				{Ref: "in", Kind: schemas.KindSource, Path: "s3://bucket/input.mp4"},
				{Ref: "out", Kind: schemas.KindSink, Path: "s3://bucket/output.mp4"},
			},
			Edges: []graphdoc.Edge{{From: "in", To: "out", Media: schemas.MediaVideo}},
		},
	}
	if err := s.CreateJob(ctx, job); err != nil {
		log.Fatal(err)
	}

	progress := &schemas.Progress{OverallPercent: 50, CurrentStep: string(schemas.JobStateRunning)}
	if err := s.UpdateJobStatus(ctx, job.JobID, schemas.JobStateRunning, progress); err != nil {
		log.Fatal(err)
	}
	if err := s.UpdateJobStatus(ctx, job.JobID, schemas.JobStateCompleted, nil); err != nil {
		log.Fatal(err)
	}

	done, err := s.GetJob(ctx, job.JobID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Status: %s\n", done.Status)
	fmt.Printf("Nodes: %d\n", len(done.Graph.Nodes))
	fmt.Printf("Terminal: %v\n", done.IsTerminal())
	// Output:
	// Status: completed
	// Nodes: 2
	// Terminal: true
}

// Example_listJobs demonstrates listing and filtering jobs
func Example_listJobs() {
	s := store.NewMemoryStore()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	statuses := []schemas.JobState{
		schemas.JobStatePending,
		schemas.JobStateRunning,
		schemas.JobStateCompleted,
		schemas.JobStateFailed,
	}
	for i, status := range statuses {
		job := &store.Job{
			JobID:   fmt.Sprintf("job-%d", i+1),
			Created: base.Add(time.Duration(i) * time.Hour),
			Updated: base,
			Status:  status,
		}
		if err := s.CreateJob(ctx, job); err != nil {
			log.Fatal(err)
		}
	}

	active, err := s.ListJobs(ctx, &store.ListFilter{
		Status: []schemas.JobState{schemas.JobStatePending, schemas.JobStateRunning},
	})
	if err != nil {
		log.Fatal(err)
	}
	for _, j := range active {
		fmt.Println(j.JobID, j.Status)
	}

	page, _ := s.ListJobs(ctx, &store.ListFilter{Limit: 2, Offset: 1})
	fmt.Println(len(page), page[0].JobID)
	// Output:
	// job-2 running
	// job-1 pending
	// 2 job-3
}
