package schemas

import "time"

// JobState represents the current state of a job
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateCompiling  JobState = "compiling"
	JobStateStaging    JobState = "staging_inputs"
	JobStateRunning    JobState = "running"
	JobStatePublishing JobState = "uploading_outputs"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

// Terminal reports whether no further transitions are possible from s
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// JobStatus is the externally visible view of a job
type JobStatus struct {
	JobID       string       `json:"job_id"`
	Status      JobState     `json:"status"`
	Command     *CommandSpec `json:"command,omitempty"`
	Progress    *Progress    `json:"progress,omitempty"`
	Error       *ErrorInfo   `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Progress reports how far along a running job is
type Progress struct {
	OverallPercent float64         `json:"overall_percent"`
	CurrentStep    string          `json:"current_step"`
	FFmpeg         *FFmpegProgress `json:"ffmpeg,omitempty"`
}

// FFmpegProgress mirrors one FFmpeg stats line
type FFmpegProgress struct {
	Frame   int     `json:"frame"`
	FPS     float64 `json:"fps"`
	Time    string  `json:"time"`
	Speed   float64 `json:"speed"`
	Bitrate float64 `json:"bitrate_kbps"`
	Size    int64   `json:"size"`
}

// ErrorInfo contains error details for a failed job
type ErrorInfo struct {
	Code           string        `json:"code"`
	Message        string        `json:"message"`
	Diagnostics    []Diagnostic  `json:"diagnostics,omitempty"`
	FFmpegStderr   string        `json:"ffmpeg_stderr,omitempty"`
	FFmpegExitCode int           `json:"ffmpeg_exit_code,omitempty"`
	Retryable      bool          `json:"retryable"`
	RetryAfter     time.Duration `json:"retry_after,omitempty"`
}

// Diagnostic is the wire form of a graph validation or construction finding
type Diagnostic struct {
	Kind    string `json:"kind"`
	Nodes   []int  `json:"nodes,omitempty"`
	Edges   []int  `json:"edges,omitempty"`
	Pad     *int   `json:"pad,omitempty"`
	Message string `json:"message"`
}
