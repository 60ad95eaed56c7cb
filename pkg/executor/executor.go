// Package executor runs compiled FFmpeg commands. It stages remote inputs
// into a work directory, runs the process while parsing its progress, and
// publishes the outputs back to their storage backends.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
	"github.com/chicogong/ffmpeg-chain/pkg/storage"
)

// ErrFFmpegNotFound is returned by FindFFmpeg when no binary can be located
var ErrFFmpegNotFound = errors.New("ffmpeg binary not found")

// Locations probed after PATH
var commonLocations = []string{
	"/usr/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
	"/opt/local/bin/ffmpeg",
}

const defaultStderrTail = 20

// FindFFmpeg resolves the FFmpeg executable. A non-empty override is used
// as-is when it exists or is found on PATH.
func FindFFmpeg(override string) (string, error) {
	if override != "" {
		if path, err := exec.LookPath(override); err == nil {
			return path, nil
		}
		if isExecutable(override) {
			return override, nil
		}
		return "", fmt.Errorf("%w: %s", ErrFFmpegNotFound, override)
	}

	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}
	for _, candidate := range commonLocations {
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", ErrFFmpegNotFound
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0111 != 0
}

// ExitError reports a process that ran but exited with a non-zero status
type ExitError struct {
	Code   int
	Stderr string // last lines of stderr
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited with status %d", e.Code)
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		msg += ": " + last
	}
	return msg
}

// Executor runs compiled commands with one FFmpeg binary
type Executor struct {
	binary     string
	storage    *StorageManager
	logger     logrus.FieldLogger
	stderrTail int
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger used for process lifecycle events
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithStorage sets the backends inputs are fetched from and outputs
// published to. Defaults to a Mux serving local files only.
func WithStorage(mux *storage.Mux) Option {
	return func(e *Executor) {
		e.storage = NewStorageManager(mux)
	}
}

// WithStderrTail sets how many stderr lines are kept for error reports
func WithStderrTail(n int) Option {
	return func(e *Executor) {
		e.stderrTail = n
	}
}

// NewExecutor creates an executor for the given binary
func NewExecutor(binary string, opts ...Option) *Executor {
	discard := logrus.New()
	discard.Out = io.Discard

	e := &Executor{
		binary:     binary,
		logger:     discard,
		stderrTail: defaultStderrTail,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.storage == nil {
		e.storage = NewStorageManager(storage.NewMux())
	}
	e.storage.logger = e.logger
	return e
}

// Binary returns the FFmpeg executable path
func (e *Executor) Binary() string {
	return e.binary
}

// ExecuteOptions contains options for execution
type ExecuteOptions struct {
	// WorkDir is where remote inputs and outputs are staged. A temporary
	// directory is created and removed when empty.
	WorkDir string

	// TotalDuration is the expected output length, used for percentages
	TotalDuration time.Duration

	// OnStage is called when execution moves to staging, running or
	// publishing
	OnStage func(schemas.JobState)

	// OnProgress is called for every stats line with the completion
	// percentage, 0 when TotalDuration is unknown
	OnProgress func(p *Progress, percent float64)

	// OnLog is called for FFmpeg log output
	OnLog func(string)
}

func (o *ExecuteOptions) stage(s schemas.JobState) {
	if o.OnStage != nil {
		o.OnStage(s)
	}
}

// Result describes a finished process
type Result struct {
	ExitCode int
	Duration time.Duration
	Stderr   string // last lines of stderr

	// Command is the command as run, after staging
	Command *schemas.CommandSpec
}

// Execute stages the inputs of spec, runs it and publishes its outputs.
// The given command is not modified.
func (e *Executor) Execute(ctx context.Context, spec *schemas.CommandSpec, opts *ExecuteOptions) (*Result, error) {
	if opts == nil {
		opts = &ExecuteOptions{}
	}

	workDir := opts.WorkDir
	if workDir == "" {
		tempDir, err := os.MkdirTemp("", "ffmpeg-chain-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp directory: %w", err)
		}
		defer func() {
			if err := e.storage.CleanupTempDir(tempDir); err != nil {
				e.logger.WithError(err).Warn("failed to remove temp directory")
			}
		}()
		workDir = tempDir
	}

	opts.stage(schemas.JobStateStaging)
	inputs, err := e.storage.PrepareInputs(ctx, spec, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare inputs: %w", err)
	}
	outputs, err := e.storage.PrepareOutputs(spec, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare outputs: %w", err)
	}

	local := spec.Relocate(inputs, outputs)

	opts.stage(schemas.JobStateRunning)
	res, err := e.Run(ctx, local, opts)
	if err != nil {
		return res, err
	}

	opts.stage(schemas.JobStatePublishing)
	if err := e.storage.UploadOutputs(ctx, spec, outputs); err != nil {
		return res, fmt.Errorf("failed to publish outputs: %w", err)
	}
	return res, nil
}

// Run starts FFmpeg with the arguments of spec exactly as given and waits
// for it. Cancelling ctx kills the process.
func (e *Executor) Run(ctx context.Context, spec *schemas.CommandSpec, opts *ExecuteOptions) (*Result, error) {
	if opts == nil {
		opts = &ExecuteOptions{}
	}

	execCmd := exec.CommandContext(ctx, e.binary, spec.Args...)

	// FFmpeg writes progress to stderr
	stderr, err := execCmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	stdout, err := execCmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	log := e.logger.WithFields(logrus.Fields{
		"binary":  e.binary,
		"inputs":  len(spec.Inputs),
		"outputs": len(spec.Outputs),
	})
	log.Info("starting ffmpeg")

	started := time.Now()
	if err := execCmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	tail := newRingLogBuffer(e.stderrTail)
	parser := NewProgressParser()
	parser.SetTotalDuration(opts.TotalDuration)

	stderrDone := make(chan error, 1)
	go func() {
		stderrDone <- streamStderr(stderr, parser, tail, opts)
	}()
	stdoutDone := make(chan error, 1)
	go func() {
		stdoutDone <- streamStdout(stdout, opts)
	}()

	// Pipes must be drained before Wait closes them
	if err := <-stderrDone; err != nil {
		log.WithError(err).Warn("failed to read ffmpeg stderr")
	}
	if err := <-stdoutDone; err != nil {
		log.WithError(err).Warn("failed to read ffmpeg stdout")
	}
	cmdErr := execCmd.Wait()

	res := &Result{
		ExitCode: execCmd.ProcessState.ExitCode(),
		Duration: time.Since(started),
		Stderr:   tail.String(),
		Command:  spec,
	}
	log = log.WithFields(logrus.Fields{"exit_code": res.ExitCode, "duration": res.Duration})

	if cmdErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("ffmpeg cancelled")
			return res, fmt.Errorf("ffmpeg cancelled: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(cmdErr, &exitErr) {
			log.Warn("ffmpeg failed")
			return res, &ExitError{Code: exitErr.ExitCode(), Stderr: res.Stderr}
		}
		return res, fmt.Errorf("ffmpeg execution failed: %w", cmdErr)
	}

	log.Info("ffmpeg finished")
	return res, nil
}

// streamStderr reads and processes stderr output
func streamStderr(reader io.Reader, parser *ProgressParser, tail *ringLogBuffer, opts *ExecuteOptions) error {
	scanner := bufio.NewScanner(reader)
	scanner.Split(scanFFmpegOutput)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tail.Push(line)

		if progress := parser.ParseLine(line); progress != nil && opts.OnProgress != nil {
			opts.OnProgress(progress, parser.ComputePercentage(progress))
		}
		if opts.OnLog != nil {
			opts.OnLog(line)
		}
	}

	return drain(reader, scanner.Err())
}

// streamStdout reads and processes stdout output
func streamStdout(reader io.Reader, opts *ExecuteOptions) error {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		if opts.OnLog != nil {
			opts.OnLog(scanner.Text())
		}
	}

	return drain(reader, scanner.Err())
}

// drain discards what is left of reader after a scan error so the process
// never blocks on a full pipe
func drain(reader io.Reader, err error) error {
	if err != nil {
		_, _ = io.Copy(io.Discard, reader)
	}
	return err
}
