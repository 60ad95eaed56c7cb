package executor

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// Progress represents FFmpeg encoding progress
type Progress struct {
	Frame   int           // Current frame number
	FPS     float64       // Frames per second
	Time    time.Duration // Current position in media
	Size    int64         // Output size in bytes
	Bitrate float64       // Bitrate in kbits/s
	Speed   float64       // Encoding speed multiplier (1.0 = realtime)
}

// Wire converts p to its JSON form
func (p *Progress) Wire() *schemas.FFmpegProgress {
	return &schemas.FFmpegProgress{
		Frame:   p.Frame,
		FPS:     p.FPS,
		Time:    formatClock(p.Time),
		Speed:   p.Speed,
		Bitrate: p.Bitrate,
		Size:    p.Size,
	}
}

// ProgressParser parses FFmpeg stats lines. A parser is not safe for
// concurrent use; create one per process.
type ProgressParser struct {
	totalDuration time.Duration
	frameRegex    *regexp.Regexp
	fpsRegex      *regexp.Regexp
	timeRegex     *regexp.Regexp
	sizeRegex     *regexp.Regexp
	bitrateRegex  *regexp.Regexp
	speedRegex    *regexp.Regexp
}

// NewProgressParser creates a new progress parser
func NewProgressParser() *ProgressParser {
	return &ProgressParser{
		frameRegex:   regexp.MustCompile(`frame=\s*(\d+)`),
		fpsRegex:     regexp.MustCompile(`fps=\s*([\d.]+)`),
		timeRegex:    regexp.MustCompile(`time=\s*(-?)(\d{2,}):(\d{2}):(\d{2})(?:\.(\d+))?`),
		sizeRegex:    regexp.MustCompile(`size=\s*(\d+)(kB|KiB|MB|MiB|GB|GiB|B)`),
		bitrateRegex: regexp.MustCompile(`bitrate=\s*([\d.]+)kbits/s`),
		speedRegex:   regexp.MustCompile(`speed=\s*([\d.]+)x`),
	}
}

// SetTotalDuration sets the total duration for percentage calculation
func (pp *ProgressParser) SetTotalDuration(duration time.Duration) {
	pp.totalDuration = duration
}

// ParseLine parses a single line of FFmpeg output.
// Returns nil if the line doesn't contain progress information.
func (pp *ProgressParser) ParseLine(line string) *Progress {
	// Stats lines carry either frame= (video) or size= with time= (audio only)
	if !strings.Contains(line, "frame=") && !(strings.Contains(line, "size=") && strings.Contains(line, "time=")) {
		return nil
	}

	progress := &Progress{}

	if matches := pp.frameRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.Frame, _ = strconv.Atoi(matches[1])
	}

	if matches := pp.fpsRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.FPS, _ = strconv.ParseFloat(matches[1], 64)
	}

	if matches := pp.timeRegex.FindStringSubmatch(line); len(matches) > 5 && matches[1] == "" {
		progress.Time = parseFFmpegTime(matches[2] + ":" + matches[3] + ":" + matches[4] + "." + matches[5])
	}

	if matches := pp.sizeRegex.FindStringSubmatch(line); len(matches) > 2 {
		size, _ := strconv.ParseInt(matches[1], 10, 64)
		progress.Size = size * sizeMultiplier(matches[2])
	}

	if matches := pp.bitrateRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.Bitrate, _ = strconv.ParseFloat(matches[1], 64)
	}

	if matches := pp.speedRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.Speed, _ = strconv.ParseFloat(matches[1], 64)
	}

	return progress
}

// ComputePercentage computes completion percentage based on time
func (pp *ProgressParser) ComputePercentage(progress *Progress) float64 {
	if pp.totalDuration <= 0 {
		return 0.0
	}

	percentage := float64(progress.Time) / float64(pp.totalDuration) * 100.0
	if percentage > 100.0 {
		percentage = 100.0
	}

	return percentage
}

func sizeMultiplier(unit string) int64 {
	switch unit {
	case "kB", "KiB":
		return 1024
	case "MB", "MiB":
		return 1024 * 1024
	case "GB", "GiB":
		return 1024 * 1024 * 1024
	}
	return 1
}

// parseFFmpegTime parses FFmpeg time format (HH:MM:SS.frac)
func parseFFmpegTime(timeStr string) time.Duration {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 3 {
		return 0
	}

	hours, _ := strconv.Atoi(parts[0])
	minutes, _ := strconv.Atoi(parts[1])

	secParts := strings.SplitN(parts[2], ".", 2)
	seconds, _ := strconv.Atoi(secParts[0])

	var frac time.Duration
	if len(secParts) > 1 && secParts[1] != "" {
		digits := secParts[1]
		if len(digits) > 9 {
			digits = digits[:9]
		}
		n, _ := strconv.Atoi(digits)
		frac = time.Duration(n)
		for i := len(digits); i < 9; i++ {
			frac *= 10
		}
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		frac
}

// formatClock renders d as HH:MM:SS.cc
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := int64(d / (10 * time.Millisecond))
	return fmt.Sprintf("%02d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}

// scanFFmpegOutput splits on '\n' like bufio.ScanLines, and also on a bare
// '\r' since FFmpeg rewrites its stats line in place.
func scanFFmpegOutput(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// might be the first half of \r\n
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
