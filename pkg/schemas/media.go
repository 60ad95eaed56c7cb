package schemas

// MediaType tags pads and edges with the kind of stream they carry
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaAny   MediaType = "any"
)

// Valid reports whether m is one of the known media types
func (m MediaType) Valid() bool {
	switch m {
	case MediaVideo, MediaAudio, MediaAny:
		return true
	}
	return false
}

// Concrete reports whether m names a specific stream type
func (m MediaType) Concrete() bool {
	return m == MediaVideo || m == MediaAudio
}

// Compatible reports whether a stream of type a may flow into a slot of type b.
// MediaAny matches either side.
func Compatible(a, b MediaType) bool {
	if a == MediaAny || b == MediaAny {
		return true
	}
	return a == b
}

// Narrow returns the more specific of two compatible types
func Narrow(a, b MediaType) MediaType {
	if a == MediaAny {
		return b
	}
	return a
}

// Specifier returns the single-letter stream specifier FFmpeg uses for m
func (m MediaType) Specifier() string {
	switch m {
	case MediaVideo:
		return "v"
	case MediaAudio:
		return "a"
	default:
		return ""
	}
}

// NodeKind is the role of a node in a filter graph
type NodeKind string

const (
	KindSource NodeKind = "source" // an -i input
	KindFilter NodeKind = "filter" // a filtergraph segment
	KindSink   NodeKind = "sink"   // an output file
)

// Valid reports whether k is one of the known node kinds
func (k NodeKind) Valid() bool {
	return k == KindSource || k == KindFilter || k == KindSink
}
