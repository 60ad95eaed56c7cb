package compiler

import (
	"fmt"

	"github.com/chicogong/ffmpeg-chain/pkg/graph"
)

// streamRef names the stream an edge carries. Filter outputs are link labels
// that must be bracketed everywhere; source streams are stream specifiers
// bracketed only inside the filtergraph.
type streamRef struct {
	name    string
	isLabel bool
}

// FilterLabel renders the reference as a filtergraph pad label
func (r streamRef) FilterLabel() string {
	return "[" + r.name + "]"
}

// MapArg renders the reference as the value of -map
func (r streamRef) MapArg() string {
	if r.isLabel {
		return "[" + r.name + "]"
	}
	return r.name
}

// labeler allocates references for one compilation
type labeler struct {
	next  int
	edges map[graph.EdgeID]streamRef
}

func newLabeler() *labeler {
	return &labeler{edges: make(map[graph.EdgeID]streamRef)}
}

// allocate assigns a fresh link label to a filter output edge
func (l *labeler) allocate(e graph.Edge) streamRef {
	ref := streamRef{name: fmt.Sprintf("s%d", l.next), isLabel: true}
	l.next++
	l.edges[e.ID] = ref
	return ref
}

// bindSource assigns the stream specifier of a source pad to an edge
func (l *labeler) bindSource(e graph.Edge, input int, source graph.Node) {
	l.edges[e.ID] = streamRef{name: sourceSpecifier(input, source.Outputs, e.FromPad)}
}

func (l *labeler) ref(id graph.EdgeID) streamRef {
	return l.edges[id]
}

// sourceSpecifier renders "N:v" when the input has a single stream of that
// type and "N:v:i" for the i-th of several. An untyped stream could be of any
// type, so once a source declares one every pad is addressed by its stream
// index "N:k".
func sourceSpecifier(input int, pads []graph.Pad, pad int) string {
	for _, p := range pads {
		if !p.Media.Concrete() {
			return fmt.Sprintf("%d:%d", input, pad)
		}
	}

	media := pads[pad].Media

	ordinal, total := 0, 0
	for i, p := range pads {
		if p.Media != media {
			continue
		}
		if i < pad {
			ordinal++
		}
		total++
	}
	if total == 1 {
		return fmt.Sprintf("%d:%s", input, media.Specifier())
	}
	return fmt.Sprintf("%d:%s:%d", input, media.Specifier(), ordinal)
}
