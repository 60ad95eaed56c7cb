// Package prober reads stream layouts with ffprobe so source nodes can
// declare one output pad per stream
package prober

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// ErrFFprobeNotFound is returned by Probe when no ffprobe binary is configured
var ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")

// Prober probes media files using ffprobe
type Prober struct {
	ffprobePath string
}

// ProberOption is a functional option for Prober
type ProberOption func(*Prober)

// WithFFprobePath sets a custom ffprobe binary path. An empty path keeps
// the discovered one.
func WithFFprobePath(path string) ProberOption {
	return func(p *Prober) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// NewProber creates a new Prober instance
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		ffprobePath: findFFprobe(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Path returns the ffprobe binary in use, empty when none was found
func (p *Prober) Path() string {
	return p.ffprobePath
}

// Probe probes a media file and returns its metadata
func (p *Prober) Probe(ctx context.Context, filePath string) (*schemas.MediaInfo, error) {
	if p.ffprobePath == "" {
		return nil, ErrFFprobeNotFound
	}

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe execution error: %w", err)
	}

	return parseFFprobeOutput(output)
}

// SourceStreams returns one media type per stream of info, in file order.
// Streams that are neither video nor audio are MediaAny so pad indexes keep
// matching stream indexes.
func SourceStreams(info *schemas.MediaInfo) []schemas.MediaType {
	streams := make([]schemas.MediaType, 0, len(info.Streams))
	for _, s := range info.Streams {
		switch s.CodecType {
		case "video":
			streams = append(streams, schemas.MediaVideo)
		case "audio":
			streams = append(streams, schemas.MediaAudio)
		default:
			streams = append(streams, schemas.MediaAny)
		}
	}
	return streams
}

// findFFprobe locates ffprobe in PATH
func findFFprobe() string {
	candidates := []string{
		"ffprobe",                   // In PATH
		"/usr/local/bin/ffprobe",    // Homebrew on macOS
		"/opt/homebrew/bin/ffprobe", // Apple Silicon Homebrew
		"/usr/bin/ffprobe",          // Linux
	}

	for _, path := range candidates {
		if _, err := exec.LookPath(path); err == nil {
			return path
		}
	}

	return ""
}

// ffprobeOutput represents the raw JSON output from ffprobe
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	StartTime  string `json:"start_time"`
}

type ffprobeStream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`

	// Video fields
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	RFrameRate  string `json:"r_frame_rate"`
	PixelFormat string `json:"pix_fmt"`

	// Audio fields
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`

	// Common fields
	BitRate  string            `json:"bit_rate"`
	Duration string            `json:"duration"`
	Tags     map[string]string `json:"tags"`
}

// parseFFprobeOutput parses ffprobe JSON output into MediaInfo
func parseFFprobeOutput(data []byte) (*schemas.MediaInfo, error) {
	var output ffprobeOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &schemas.MediaInfo{}

	info.Format = schemas.FormatInfo{
		Filename:  output.Format.Filename,
		Format:    output.Format.FormatName,
		Duration:  parseDuration(output.Format.Duration),
		Size:      parseInt64(output.Format.Size),
		BitRate:   parseInt64(output.Format.BitRate),
		StartTime: parseDuration(output.Format.StartTime),
	}

	for _, stream := range output.Streams {
		info.Streams = append(info.Streams, schemas.StreamInfo{
			Index:     stream.Index,
			CodecType: stream.CodecType,
			CodecName: stream.CodecName,
			Tags:      stream.Tags,
		})

		switch stream.CodecType {
		case "video":
			info.VideoStreams = append(info.VideoStreams, schemas.VideoStream{
				Index:       stream.Index,
				Codec:       stream.CodecName,
				Width:       stream.Width,
				Height:      stream.Height,
				FrameRate:   parseFrameRate(stream.RFrameRate),
				PixelFormat: stream.PixelFormat,
				BitRate:     parseInt64(stream.BitRate),
				Duration:    parseDuration(stream.Duration),
			})
		case "audio":
			info.AudioStreams = append(info.AudioStreams, schemas.AudioStream{
				Index:      stream.Index,
				Codec:      stream.CodecName,
				SampleRate: parseInt(stream.SampleRate),
				Channels:   stream.Channels,
				BitRate:    parseInt64(stream.BitRate),
				Duration:   parseDuration(stream.Duration),
			})
		}
	}

	return info, nil
}

// parseDuration parses a duration string from ffprobe (seconds as float)
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}

	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// parseFrameRate parses a frame rate from ffprobe format (e.g., "30/1" or "30000/1001")
func parseFrameRate(s string) float64 {
	if s == "" {
		return 0
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		rate, _ := strconv.ParseFloat(s, 64)
		return rate
	}

	numerator, err1 := strconv.ParseFloat(parts[0], 64)
	denominator, err2 := strconv.ParseFloat(parts[1], 64)

	if err1 != nil || err2 != nil || denominator == 0 {
		return 0
	}

	return numerator / denominator
}
