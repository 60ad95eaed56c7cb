package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// Sentinel errors for programmatic checking via errors.Is()
var (
	ErrUnknownFilter = errors.New("unknown filter")
	ErrInvalidOption = errors.New("invalid option")
	ErrUnknownNode   = errors.New("unknown node")
	ErrUnknownEdge   = errors.New("unknown edge")
	ErrPadOutOfRange = errors.New("pad out of range")
	ErrPadOccupied   = errors.New("pad occupied")
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrArity         = errors.New("arity incomplete")
	ErrCyclicGraph   = errors.New("cyclic graph")
	ErrInvalidGraph  = errors.New("invalid graph")
)

// Kind classifies a Diagnostic
type Kind string

const (
	KindUnknownFilter Kind = "unknown_filter"
	KindInvalidOption Kind = "invalid_option"
	KindUnknownNode   Kind = "unknown_node"
	KindUnknownEdge   Kind = "unknown_edge"
	KindPadOutOfRange Kind = "pad_out_of_range"
	KindPadOccupied   Kind = "pad_occupied"
	KindTypeMismatch  Kind = "type_mismatch"
	KindArity         Kind = "arity"
	KindCyclicGraph   Kind = "cyclic_graph"
)

var kindSentinels = map[Kind]error{
	KindUnknownFilter: ErrUnknownFilter,
	KindInvalidOption: ErrInvalidOption,
	KindUnknownNode:   ErrUnknownNode,
	KindUnknownEdge:   ErrUnknownEdge,
	KindPadOutOfRange: ErrPadOutOfRange,
	KindPadOccupied:   ErrPadOccupied,
	KindTypeMismatch:  ErrTypeMismatch,
	KindArity:         ErrArity,
	KindCyclicGraph:   ErrCyclicGraph,
}

// Sentinel returns the error a diagnostic of kind k matches with errors.Is
func (k Kind) Sentinel() error {
	return kindSentinels[k]
}

// Diagnostic is one construction error or validator finding. It names the
// nodes, edges and pad involved so callers can point at them.
type Diagnostic struct {
	Kind    Kind
	Nodes   []NodeID
	Edges   []EdgeID
	Pad     *int
	Message string

	// Err is an optional underlying cause, e.g. a registry error
	Err error
}

func (d *Diagnostic) Error() string {
	if d == nil {
		return ""
	}
	if d.Message == "" {
		return string(d.Kind)
	}
	return fmt.Sprintf("%s: %s", d.Kind.Sentinel(), d.Message)
}

// Unwrap exposes the kind sentinel and the underlying cause
func (d *Diagnostic) Unwrap() []error {
	errs := []error{d.Kind.Sentinel()}
	if d.Err != nil {
		errs = append(errs, d.Err)
	}
	return errs
}

// Wire converts the diagnostic to its JSON form
func (d *Diagnostic) Wire() schemas.Diagnostic {
	w := schemas.Diagnostic{
		Kind:    string(d.Kind),
		Message: d.Error(),
	}
	for _, n := range d.Nodes {
		w.Nodes = append(w.Nodes, int(n))
	}
	for _, e := range d.Edges {
		w.Edges = append(w.Edges, int(e))
	}
	if d.Pad != nil {
		pad := *d.Pad
		w.Pad = &pad
	}
	return w
}

// InvalidGraphError carries every finding of the failing validator phase.
// It matches ErrInvalidGraph and, through its findings, their own sentinels.
type InvalidGraphError struct {
	Findings []*Diagnostic
}

func (e *InvalidGraphError) Error() string {
	if e == nil || len(e.Findings) == 0 {
		return ErrInvalidGraph.Error()
	}
	msgs := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidGraph, strings.Join(msgs, "; "))
}

func (e *InvalidGraphError) Unwrap() []error {
	errs := make([]error, 0, len(e.Findings)+1)
	errs = append(errs, ErrInvalidGraph)
	for _, f := range e.Findings {
		errs = append(errs, f)
	}
	return errs
}

// Diagnostics extracts the structured findings of err, if it carries any
func Diagnostics(err error) []*Diagnostic {
	var invalid *InvalidGraphError
	if errors.As(err, &invalid) {
		return invalid.Findings
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return []*Diagnostic{d}
	}
	return nil
}

func padPtr(i int) *int { return &i }

func newDiagnostic(kind Kind, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
