package graph

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// NodeID identifies a node for the lifetime of its graph. IDs are never
// reused, so ID order is insertion order.
type NodeID int

// EdgeID identifies an edge; ID order is attachment order
type EdgeID int

// Option is one named scalar option. For filters the value is normalized to
// the registry type; for sources and sinks it is rendered as a command-line
// value, and a nil value renders the flag alone.
type Option struct {
	Name  string
	Value interface{}
}

// Opt is shorthand for building an Option
func Opt(name string, value interface{}) Option {
	return Option{Name: name, Value: value}
}

// Arg renders the option as command-line arguments: "-name" and, unless the
// value is nil, the value.
func (o Option) Arg() []string {
	flag := "-" + o.Name
	if o.Value == nil {
		return []string{flag}
	}
	return []string{flag, ArgValue(o.Value)}
}

// ArgValue renders a scalar as a single process argument
func ArgValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Duration:
		return schemas.FormatSeconds(val)
	default:
		return fmt.Sprint(val)
	}
}

// Pad is one declared input or output of a node
type Pad struct {
	Index    int
	Name     string
	Media    schemas.MediaType
	Variadic bool
	Min      int
	Optional bool
}

// MinLinks returns how many edges the pad needs
func (p Pad) MinLinks() int {
	if p.Variadic && p.Min > 0 {
		return p.Min
	}
	return 1
}

// Node is a snapshot of one graph node
type Node struct {
	ID      NodeID
	Kind    schemas.NodeKind
	Filter  string // registry name, filters only
	Path    string // file or URL, sources and sinks only
	Options []Option
	Inputs  []Pad
	Outputs []Pad
}

// Label is a short human-readable name for messages
func (n *Node) Label() string {
	switch n.Kind {
	case schemas.KindFilter:
		return fmt.Sprintf("node %d (%s)", n.ID, n.Filter)
	default:
		return fmt.Sprintf("node %d (%s %s)", n.ID, n.Kind, n.Path)
	}
}

// Option returns the value of the named option
func (n *Node) Option(name string) (interface{}, bool) {
	for _, o := range n.Options {
		if o.Name == name {
			return o.Value, true
		}
	}
	return nil, false
}

func (n *Node) clone() Node {
	c := *n
	c.Options = append([]Option(nil), n.Options...)
	c.Inputs = append([]Pad(nil), n.Inputs...)
	c.Outputs = append([]Pad(nil), n.Outputs...)
	return c
}

// Edge connects an output pad of From to an input pad of To
type Edge struct {
	ID      EdgeID
	From    NodeID
	FromPad int
	To      NodeID
	ToPad   int
	Media   schemas.MediaType
}

func (e Edge) String() string {
	return fmt.Sprintf("edge %d (%d:%d -> %d:%d %s)", e.ID, e.From, e.FromPad, e.To, e.ToPad, e.Media)
}

// NodeSpec describes a node to add
type NodeSpec struct {
	Kind    schemas.NodeKind
	Filter  string
	Path    string
	Options []Option

	// Streams declares a source's output pads in stream order. Empty means
	// one video and one audio stream.
	Streams []schemas.MediaType

	// Inputs declares a sink's input pads. Empty means one pad of any type.
	Inputs []schemas.MediaType
}

var defaultSourceStreams = []schemas.MediaType{schemas.MediaVideo, schemas.MediaAudio}

func streamPads(streams []schemas.MediaType) []Pad {
	if len(streams) == 0 {
		streams = defaultSourceStreams
	}
	pads := make([]Pad, len(streams))
	for i, m := range streams {
		pads[i] = Pad{Index: i, Name: fmt.Sprintf("stream%d", i), Media: m, Optional: true}
	}
	return pads
}

func sinkPads(inputs []schemas.MediaType) []Pad {
	if len(inputs) == 0 {
		inputs = []schemas.MediaType{schemas.MediaAny}
	}
	pads := make([]Pad, len(inputs))
	for i, m := range inputs {
		pads[i] = Pad{Index: i, Name: fmt.Sprintf("input%d", i), Media: m}
	}
	return pads
}

func checkArgOption(o Option) error {
	if o.Name == "" || strings.HasPrefix(o.Name, "-") || strings.ContainsAny(o.Name, " \t\n") {
		return fmt.Errorf("option name %q must be a bare flag name", o.Name)
	}
	switch o.Value.(type) {
	case nil, string, int, int64, float64, bool, time.Duration:
		return nil
	default:
		return fmt.Errorf("option %q: unsupported value type %T", o.Name, o.Value)
	}
}
