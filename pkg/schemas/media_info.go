package schemas

import "time"

// MediaInfo contains the properties ffprobe reports for a file
type MediaInfo struct {
	Format       FormatInfo    `json:"format"`
	Streams      []StreamInfo  `json:"streams,omitempty"`
	VideoStreams []VideoStream `json:"video_streams,omitempty"`
	AudioStreams []AudioStream `json:"audio_streams,omitempty"`
}

// FormatInfo contains container-level information
type FormatInfo struct {
	Filename  string        `json:"filename,omitempty"`
	Format    string        `json:"format,omitempty"`
	Duration  time.Duration `json:"duration"`
	Size      int64         `json:"size"`
	BitRate   int64         `json:"bit_rate,omitempty"`
	StartTime time.Duration `json:"start_time,omitempty"`
}

// StreamInfo is one entry of the file's stream table, in file order
type StreamInfo struct {
	Index     int               `json:"index"`
	CodecType string            `json:"codec_type"`
	CodecName string            `json:"codec_name"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Language returns the stream's language tag, if any
func (s StreamInfo) Language() string {
	return s.Tags["language"]
}

// Title returns the stream's title tag, if any
func (s StreamInfo) Title() string {
	return s.Tags["title"]
}

// VideoStream represents a video stream
type VideoStream struct {
	Index       int           `json:"index"`
	Codec       string        `json:"codec"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	FrameRate   float64       `json:"frame_rate"`
	PixelFormat string        `json:"pixel_format,omitempty"`
	BitRate     int64         `json:"bit_rate,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// AudioStream represents an audio stream
type AudioStream struct {
	Index      int           `json:"index"`
	Codec      string        `json:"codec"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitRate    int64         `json:"bit_rate,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}
