package executor

import "strings"

// A string ring buffer, contains the last size lines of FFmpeg output
type ringLogBuffer struct {
	content []string
	size    int
	// Index the next line is written to
	next int
	// Number of lines written so far, capped at size
	count int
}

func newRingLogBuffer(size int) *ringLogBuffer {
	if size < 1 {
		size = 1
	}
	return &ringLogBuffer{size: size, content: make([]string, size)}
}

func (rlb *ringLogBuffer) Push(str string) {
	rlb.content[rlb.next] = str
	rlb.next = (rlb.next + 1) % rlb.size
	if rlb.count < rlb.size {
		rlb.count++
	}
}

// Lines returns the buffered lines, oldest first
func (rlb *ringLogBuffer) Lines() []string {
	out := make([]string, 0, rlb.count)
	start := (rlb.next - rlb.count + rlb.size) % rlb.size
	for i := 0; i < rlb.count; i++ {
		out = append(out, rlb.content[(start+i)%rlb.size])
	}
	return out
}

func (rlb *ringLogBuffer) String() string {
	return strings.Join(rlb.Lines(), "\n")
}
