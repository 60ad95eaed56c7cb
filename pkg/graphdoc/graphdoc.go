// Package graphdoc is the JSON form of a filter graph used by the HTTP API.
// A document is replayed through the graph construction API, so it fails
// with the same errors a program building the graph directly would get.
package graphdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/graph"
	"github.com/chicogong/ffmpeg-chain/pkg/registry"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// ErrInvalidDocument is returned for documents that cannot describe a graph
// at all, independent of the filter table
var ErrInvalidDocument = errors.New("invalid graph document")

// Document describes a graph by node references
type Document struct {
	GlobalOptions []Option `json:"global_options,omitempty"`
	Nodes         []Node   `json:"nodes"`
	Edges         []Edge   `json:"edges"`
}

// Option is one named option. Order is kept; a missing value on a source,
// sink or global option renders the flag alone.
type Option struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value,omitempty"`
}

// Node is one node of a Document
type Node struct {
	Ref     string              `json:"ref"`
	Kind    schemas.NodeKind    `json:"kind"`
	Filter  string              `json:"filter,omitempty"`
	Path    string              `json:"path,omitempty"`
	Options []Option            `json:"options,omitempty"`
	Streams []schemas.MediaType `json:"streams,omitempty"` // sources
	Inputs  []schemas.MediaType `json:"inputs,omitempty"`  // sinks
}

// Edge connects two nodes by reference
type Edge struct {
	From    string            `json:"from"`
	FromPad int               `json:"from_pad"`
	To      string            `json:"to"`
	ToPad   int               `json:"to_pad"`
	Media   schemas.MediaType `json:"media,omitempty"`
}

// Decode reads one document, rejecting unknown fields
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// Parse decodes a document from data
func Parse(data []byte) (*Document, error) {
	return Decode(bytes.NewReader(data))
}

// Build replays doc against a new graph using reg (nil means the default
// table). It returns the graph and the id assigned to every node ref.
func Build(reg *registry.Registry, doc *Document) (*graph.Graph, map[string]graph.NodeID, error) {
	g := graph.New(reg)
	ids := make(map[string]graph.NodeID, len(doc.Nodes))

	for _, o := range doc.GlobalOptions {
		if err := g.AddGlobalOption(o.Name, o.Value); err != nil {
			return nil, nil, locate(err, "global option %q", o.Name)
		}
	}

	for i, n := range doc.Nodes {
		if n.Ref == "" {
			return nil, nil, fmt.Errorf("%w: node %d has no ref", ErrInvalidDocument, i)
		}
		if _, dup := ids[n.Ref]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate node ref %q", ErrInvalidDocument, n.Ref)
		}

		id, err := g.AddNode(graph.NodeSpec{
			Kind:    n.Kind,
			Filter:  n.Filter,
			Path:    n.Path,
			Options: options(n.Options),
			Streams: n.Streams,
			Inputs:  n.Inputs,
		})
		if err != nil {
			return nil, nil, locate(err, "node %q", n.Ref)
		}
		ids[n.Ref] = id
	}

	for i, e := range doc.Edges {
		from, ok := ids[e.From]
		if !ok {
			return nil, nil, unknownRef(i, e.From)
		}
		to, ok := ids[e.To]
		if !ok {
			return nil, nil, unknownRef(i, e.To)
		}
		if _, err := g.Connect(from, e.FromPad, to, e.ToPad, e.Media); err != nil {
			return nil, nil, locate(err, "edge %d (%s -> %s)", i, e.From, e.To)
		}
	}

	return g, ids, nil
}

// FromGraph renders g as a document. Node refs are "n<id>".
func FromGraph(g *graph.Graph) *Document {
	doc := &Document{}
	for _, o := range g.GlobalOptions() {
		doc.GlobalOptions = append(doc.GlobalOptions, Option{Name: o.Name, Value: o.Value})
	}

	for _, n := range g.Nodes() {
		dn := Node{
			Ref:    ref(n.ID),
			Kind:   n.Kind,
			Filter: n.Filter,
			Path:   n.Path,
		}
		for _, o := range n.Options {
			dn.Options = append(dn.Options, Option{Name: o.Name, Value: docValue(o.Value)})
		}
		switch n.Kind {
		case schemas.KindSource:
			for _, p := range n.Outputs {
				dn.Streams = append(dn.Streams, p.Media)
			}
		case schemas.KindSink:
			for _, p := range n.Inputs {
				dn.Inputs = append(dn.Inputs, p.Media)
			}
		}
		doc.Nodes = append(doc.Nodes, dn)
	}

	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, Edge{
			From:    ref(e.From),
			FromPad: e.FromPad,
			To:      ref(e.To),
			ToPad:   e.ToPad,
			Media:   e.Media,
		})
	}
	return doc
}

// docValue keeps durations readable as seconds instead of nanoseconds
func docValue(v interface{}) interface{} {
	if d, ok := v.(time.Duration); ok {
		return d.Seconds()
	}
	return v
}

func ref(id graph.NodeID) string {
	return fmt.Sprintf("n%d", id)
}

func options(in []Option) []graph.Option {
	if len(in) == 0 {
		return nil
	}
	out := make([]graph.Option, len(in))
	for i, o := range in {
		out[i] = graph.Opt(o.Name, o.Value)
	}
	return out
}

func unknownRef(edge int, ref string) error {
	return &graph.Diagnostic{
		Kind:    graph.KindUnknownNode,
		Message: fmt.Sprintf("edge %d refers to unknown node %q", edge, ref),
	}
}

// locate prefixes where in the document err happened. Diagnostics stay
// diagnostics so callers can still report them structurally.
func locate(err error, format string, args ...interface{}) error {
	where := fmt.Sprintf(format, args...)
	var d *graph.Diagnostic
	if errors.As(err, &d) {
		located := *d
		located.Message = where + ": " + d.Message
		return &located
	}
	return fmt.Errorf("%s: %w", where, err)
}
