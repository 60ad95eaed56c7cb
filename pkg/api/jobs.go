package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chicogong/ffmpeg-chain/pkg/auth"
	"github.com/chicogong/ffmpeg-chain/pkg/events"
	"github.com/chicogong/ffmpeg-chain/pkg/executor"
	"github.com/chicogong/ffmpeg-chain/pkg/graph"
	"github.com/chicogong/ffmpeg-chain/pkg/graphdoc"
	"github.com/chicogong/ffmpeg-chain/pkg/prober"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
	"github.com/chicogong/ffmpeg-chain/pkg/storage"
	"github.com/chicogong/ffmpeg-chain/pkg/store"
)

// RoleAdmin sees and cancels every job; other callers only their own
const RoleAdmin = "admin"

// CreateJobRequest represents the request body for creating a job
type CreateJobRequest struct {
	Graph *graphdoc.Document `json:"graph"`

	// Probe runs ffprobe on local and HTTP sources and redeclares their
	// streams before the job runs
	Probe bool `json:"probe,omitempty"`

	// Duration is the expected output length, used for progress percentages.
	// Defaults to the longest probed source.
	Duration *schemas.Duration `json:"duration,omitempty"`
}

// CreateJobResponse represents the response for creating a job
type CreateJobResponse struct {
	JobID     string           `json:"job_id"`
	Status    schemas.JobState `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	Command   string           `json:"command"`
}

// HandleCreateJob handles POST /api/v1/jobs. The graph is compiled before
// the job is accepted, so an invalid graph never becomes a job.
func (s *Server) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Graph == nil {
		sendError(w, http.StatusBadRequest, "missing_graph", "Graph document is required")
		return
	}

	g, _, err := graphdoc.Build(s.registry, req.Graph)
	if err != nil {
		sendGraphError(w, err)
		return
	}
	if err := s.policy.Check(r.Context(), g); err != nil {
		sendError(w, http.StatusForbidden, "location_rejected", err.Error())
		return
	}
	spec, err := s.compiler.Compile(g)
	if err != nil {
		sendGraphError(w, err)
		return
	}

	now := time.Now()
	job := &store.Job{
		JobID:   newJobID(),
		Created: now,
		Updated: now,
		Graph:   req.Graph,
		Command: spec,
		Status:  schemas.JobStatePending,
	}
	if p, ok := auth.FromContext(r.Context()); ok {
		job.Owner = p.UserID
	}
	if err := s.store.CreateJob(r.Context(), job); err != nil {
		sendError(w, http.StatusInternalServerError, "store_error", fmt.Sprintf("Failed to create job: %v", err))
		return
	}
	_ = s.events.PublishState(r.Context(), job.JobID, schemas.JobStatePending)

	var total time.Duration
	if req.Duration != nil {
		total = req.Duration.Duration
	}
	s.start(job.JobID, g, spec, req.Probe, total)

	sendJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:     job.JobID,
		Status:    job.Status,
		CreatedAt: job.Created,
		Command:   spec.String(),
	})
}

// HandleGetJob handles GET /api/v1/jobs/{id}
func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, job.ToJobStatus())
}

// HandleListJobs handles GET /api/v1/jobs
func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	if p, ok := auth.FromContext(r.Context()); ok && p.Role != RoleAdmin {
		filter.Owner = p.UserID
	}

	jobs, err := s.store.ListJobs(r.Context(), filter)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "store_error", fmt.Sprintf("Failed to list jobs: %v", err))
		return
	}

	statuses := make([]*schemas.JobStatus, len(jobs))
	for i, job := range jobs {
		statuses[i] = job.ToJobStatus()
	}
	sendJSON(w, http.StatusOK, statuses)
}

// HandleDeleteJob handles DELETE /api/v1/jobs/{id}. A running process is
// killed.
func (s *Server) HandleDeleteJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if job.IsTerminal() {
		sendError(w, http.StatusBadRequest, "job_terminal", "Job is already in terminal state")
		return
	}

	err := s.store.UpdateJobStatus(r.Context(), job.JobID, schemas.JobStateCancelled, nil)
	if errors.Is(err, store.ErrJobTerminal) {
		sendError(w, http.StatusBadRequest, "job_terminal", "Job is already in terminal state")
		return
	}
	if err != nil {
		sendError(w, http.StatusInternalServerError, "store_error", fmt.Sprintf("Failed to cancel job: %v", err))
		return
	}
	s.mu.Lock()
	if cancel, ok := s.cancels[job.JobID]; ok {
		cancel()
	}
	s.mu.Unlock()
	_ = s.events.PublishState(r.Context(), job.JobID, schemas.JobStateCancelled)

	w.WriteHeader(http.StatusNoContent)
}

// lookupJob loads the job named by the path. Jobs of other owners are
// reported as missing.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*store.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		sendError(w, http.StatusBadRequest, "invalid_job_id", "Job ID is required")
		return nil, false
	}

	job, err := s.store.GetJob(r.Context(), jobID)
	if err == nil {
		if p, ok := auth.FromContext(r.Context()); ok && p.Role != RoleAdmin && job.Owner != p.UserID {
			err = store.ErrJobNotFound
		}
	}
	if errors.Is(err, store.ErrJobNotFound) {
		sendError(w, http.StatusNotFound, "job_not_found", fmt.Sprintf("Job %s not found", jobID))
		return nil, false
	}
	if err != nil {
		sendError(w, http.StatusInternalServerError, "store_error", fmt.Sprintf("Failed to get job: %v", err))
		return nil, false
	}
	return job, true
}

// start runs the job in the background until it finishes, is cancelled or
// the server closes
func (s *Server) start(jobID string, g *graph.Graph, spec *schemas.CommandSpec, probe bool, total time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, jobID)
			s.mu.Unlock()
			cancel()
		}()
		s.runJob(ctx, jobID, g, spec, probe, total)
	}()
}

func (s *Server) runJob(ctx context.Context, jobID string, g *graph.Graph, spec *schemas.CommandSpec, probe bool, total time.Duration) {
	log := s.logger.WithField("job_id", jobID)

	if probe {
		if !s.advance(jobID, schemas.JobStateCompiling, stageProgress(schemas.JobStateCompiling)) {
			return
		}
		longest, err := s.probeSources(ctx, g)
		if err == nil {
			spec, err = s.compiler.Compile(g)
		}
		if err != nil {
			if ctx.Err() != nil {
				s.advance(jobID, schemas.JobStateCancelled, nil)
				return
			}
			s.fail(jobID, compileError(err))
			return
		}
		s.setCommand(jobID, spec)
		if total == 0 {
			total = longest
		}
	}

	var workDir string
	if s.workDir != "" {
		workDir = filepath.Join(s.workDir, jobID)
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			s.fail(jobID, &schemas.ErrorInfo{Code: "EXECUTION_ERROR", Message: err.Error(), Retryable: true})
			return
		}
		defer os.RemoveAll(workDir)
	}

	res, err := s.executor.Execute(ctx, spec, &executor.ExecuteOptions{
		WorkDir:       workDir,
		TotalDuration: total,
		OnStage: func(state schemas.JobState) {
			s.advance(jobID, state, stageProgress(state))
		},
		OnProgress: func(p *executor.Progress, percent float64) {
			s.advance(jobID, schemas.JobStateRunning, &schemas.Progress{
				OverallPercent: percent,
				CurrentStep:    string(schemas.JobStateRunning),
				FFmpeg:         p.Wire(),
			})
		},
		OnLog: func(line string) {
			log.Debug(line)
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			s.advance(jobID, schemas.JobStateCancelled, nil)
			return
		}
		log.WithError(err).Warn("Job failed")
		s.fail(jobID, executionError(err))
		return
	}

	s.advance(jobID, schemas.JobStateCompleted, stageProgress(schemas.JobStateCompleted))
	log.WithField("duration", res.Duration.String()).Info("Job completed")
}

// probeSources redeclares the streams of every source ffprobe can reach and
// returns the longest source duration
func (s *Server) probeSources(ctx context.Context, g *graph.Graph) (time.Duration, error) {
	var longest time.Duration
	for _, id := range g.NodesOfKind(schemas.KindSource) {
		n, _ := g.Node(id)
		target, ok := probeTarget(n.Path)
		if !ok {
			continue
		}

		info, err := s.prober.Probe(ctx, target)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", n.Label(), err)
		}
		if streams := prober.SourceStreams(info); len(streams) > 0 {
			if err := g.SetSourceStreams(id, streams); err != nil {
				return 0, err
			}
		}
		if info.Format.Duration > longest {
			longest = info.Format.Duration
		}
	}
	return longest, nil
}

// probeTarget returns what to hand ffprobe for a source path. Object store
// sources are only fetched at staging time and cannot be probed.
func probeTarget(path string) (string, bool) {
	scheme, p, err := storage.ParseURI(path)
	if err != nil {
		return "", false
	}
	switch scheme {
	case "file":
		return p, true
	case "http", "https":
		return path, true
	}
	return "", false
}

// advance moves a job to state unless it already reached a terminal state,
// and publishes the change
func (s *Server) advance(jobID string, state schemas.JobState, progress *schemas.Progress) bool {
	ctx := context.Background()
	if err := s.store.UpdateJobStatus(ctx, jobID, state, progress); err != nil {
		if !errors.Is(err, store.ErrJobTerminal) {
			s.logger.WithField("job_id", jobID).WithError(err).Warn("Failed to update job status")
		}
		return false
	}
	_ = s.events.Publish(ctx, events.JobEvent{JobID: jobID, State: state, Progress: progress})
	return true
}

func (s *Server) fail(jobID string, info *schemas.ErrorInfo) {
	ctx := context.Background()
	log := s.logger.WithFields(logrus.Fields{"job_id": jobID, "code": info.Code})
	if err := s.store.UpdateJobStatus(ctx, jobID, schemas.JobStateFailed, nil); err != nil {
		if !errors.Is(err, store.ErrJobTerminal) {
			log.WithError(err).Warn("Failed to update job status")
		}
		return
	}
	if err := s.store.UpdateJobError(ctx, jobID, info); err != nil {
		log.WithError(err).Warn("Failed to record job error")
	}
	_ = s.events.Publish(ctx, events.JobEvent{JobID: jobID, State: schemas.JobStateFailed, Error: info})
}

// setCommand records the command a job was recompiled to after probing
func (s *Server) setCommand(jobID string, spec *schemas.CommandSpec) {
	ctx := context.Background()
	job, err := s.store.GetJob(ctx, jobID)
	if err == nil {
		job.Command = spec
		err = s.store.UpdateJob(ctx, job)
	}
	if err != nil && !errors.Is(err, store.ErrJobTerminal) {
		s.logger.WithField("job_id", jobID).WithError(err).Warn("Failed to record command")
	}
}

func stageProgress(state schemas.JobState) *schemas.Progress {
	p := &schemas.Progress{CurrentStep: string(state)}
	switch state {
	case schemas.JobStatePublishing, schemas.JobStateCompleted:
		p.OverallPercent = 100
	}
	return p
}

func compileError(err error) *schemas.ErrorInfo {
	info := &schemas.ErrorInfo{Code: "COMPILE_ERROR", Message: err.Error()}
	diags := graph.Diagnostics(err)
	if len(diags) == 0 {
		info.Code = "PROBE_ERROR"
		info.Retryable = true
		return info
	}
	info.Diagnostics = wireDiagnostics(diags)
	return info
}

func executionError(err error) *schemas.ErrorInfo {
	var exitErr *executor.ExitError
	switch {
	case errors.As(err, &exitErr):
		return &schemas.ErrorInfo{
			Code:           "FFMPEG_ERROR",
			Message:        err.Error(),
			FFmpegStderr:   exitErr.Stderr,
			FFmpegExitCode: exitErr.Code,
		}
	case errors.Is(err, storage.ErrNotFound):
		return &schemas.ErrorInfo{Code: "INPUT_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, executor.ErrFFmpegNotFound):
		return &schemas.ErrorInfo{Code: "FFMPEG_NOT_FOUND", Message: err.Error()}
	}
	return &schemas.ErrorInfo{Code: "EXECUTION_ERROR", Message: err.Error(), Retryable: true}
}

func parseListFilter(r *http.Request) (*store.ListFilter, error) {
	q := r.URL.Query()
	filter := &store.ListFilter{
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	// Parse status filter; several states may be given comma-separated
	if statusStr := q.Get("status"); statusStr != "" {
		for _, st := range strings.Split(statusStr, ",") {
			filter.Status = append(filter.Status, schemas.JobState(strings.TrimSpace(st)))
		}
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q", name, v)
		}
		*dst = n
	}
	return filter, nil
}

func newJobID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("job_%d", time.Now().UnixNano())
	}
	return "job_" + hex.EncodeToString(b[:])
}
