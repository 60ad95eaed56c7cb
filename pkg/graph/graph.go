// Package graph is the in-memory model of an FFmpeg processing graph:
// source, filter and sink nodes with typed pads, joined by directed edges.
//
// A Graph is not safe for concurrent mutation; confine each instance to one
// goroutine or guard it externally. Independent graphs share no state.
package graph

import (
	"fmt"
	"sort"

	"github.com/chicogong/ffmpeg-chain/pkg/registry"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

type nodeEntry struct {
	node Node
	in   []EdgeID
	out  []EdgeID
}

// Graph holds nodes and edges in arenas indexed by ID. Removed entries stay
// nil so IDs remain stable.
type Graph struct {
	reg     *registry.Registry
	nodes   []*nodeEntry
	edges   []*Edge
	globals []Option

	nodeCount int
	edgeCount int
}

// New creates an empty graph resolving filters against reg, or against the
// built-in table when reg is nil.
func New(reg *registry.Registry) *Graph {
	if reg == nil {
		reg = registry.Default()
	}
	return &Graph{reg: reg}
}

// Registry returns the filter table the graph was built against
func (g *Graph) Registry() *registry.Registry {
	return g.reg
}

// AddNode adds a node. Filters must exist in the registry and every option
// must be recognized and valid for it.
func (g *Graph) AddNode(spec NodeSpec) (NodeID, error) {
	n := Node{
		ID:   NodeID(len(g.nodes)),
		Kind: spec.Kind,
	}

	switch spec.Kind {
	case schemas.KindFilter:
		fs, err := g.reg.Lookup(spec.Filter)
		if err != nil {
			return -1, &Diagnostic{Kind: KindUnknownFilter, Message: fmt.Sprintf("filter %q is not registered", spec.Filter), Err: err}
		}
		opts, err := filterOptions(fs, spec.Options)
		if err != nil {
			return -1, err
		}
		n.Filter = fs.Name
		n.Options = opts
		n.Inputs = padsFromSpec(fs.Inputs, false)
		n.Outputs = padsFromSpec(fs.Outputs, true)

	case schemas.KindSource, schemas.KindSink:
		if spec.Filter != "" {
			return -1, newDiagnostic(KindUnknownFilter, "%s nodes take no filter, got %q", spec.Kind, spec.Filter)
		}
		if spec.Path == "" {
			return -1, newDiagnostic(KindInvalidOption, "%s node needs a path", spec.Kind)
		}
		for _, o := range spec.Options {
			if err := checkArgOption(o); err != nil {
				return -1, &Diagnostic{Kind: KindInvalidOption, Message: err.Error()}
			}
		}
		n.Path = spec.Path
		n.Options = append([]Option(nil), spec.Options...)
		if spec.Kind == schemas.KindSource {
			if err := checkMedia(spec.Streams); err != nil {
				return -1, err
			}
			n.Outputs = streamPads(spec.Streams)
		} else {
			if err := checkMedia(spec.Inputs); err != nil {
				return -1, err
			}
			n.Inputs = sinkPads(spec.Inputs)
		}

	default:
		return -1, newDiagnostic(KindInvalidOption, "unknown node kind %q", spec.Kind)
	}

	g.nodes = append(g.nodes, &nodeEntry{node: n})
	g.nodeCount++
	return n.ID, nil
}

// AddSource adds an input file node with optional input options
func (g *Graph) AddSource(path string, options ...Option) (NodeID, error) {
	return g.AddNode(NodeSpec{Kind: schemas.KindSource, Path: path, Options: options})
}

// AddFilter adds a registry filter node
func (g *Graph) AddFilter(name string, options ...Option) (NodeID, error) {
	return g.AddNode(NodeSpec{Kind: schemas.KindFilter, Filter: name, Options: options})
}

// AddSink adds an output file node with a single input of any type
func (g *Graph) AddSink(path string, options ...Option) (NodeID, error) {
	return g.AddNode(NodeSpec{Kind: schemas.KindSink, Path: path, Options: options})
}

// AddGlobalOption appends a global FFmpeg option such as -y or -loglevel
func (g *Graph) AddGlobalOption(name string, value interface{}) error {
	o := Option{Name: name, Value: value}
	if err := checkArgOption(o); err != nil {
		return &Diagnostic{Kind: KindInvalidOption, Message: err.Error()}
	}
	g.globals = append(g.globals, o)
	return nil
}

// GlobalOptions returns the global options in insertion order
func (g *Graph) GlobalOptions() []Option {
	return append([]Option(nil), g.globals...)
}

// Connect adds an edge carrying media from an output pad of from to an input
// pad of to. An empty media type means any.
func (g *Graph) Connect(from NodeID, fromPad int, to NodeID, toPad int, media schemas.MediaType) (EdgeID, error) {
	src, err := g.entry(from)
	if err != nil {
		return -1, err
	}
	dst, err := g.entry(to)
	if err != nil {
		return -1, err
	}

	if fromPad < 0 || fromPad >= len(src.node.Outputs) {
		return -1, &Diagnostic{
			Kind:    KindPadOutOfRange,
			Nodes:   []NodeID{from},
			Pad:     padPtr(fromPad),
			Message: fmt.Sprintf("%s has %d output pad(s), got %d", src.node.Label(), len(src.node.Outputs), fromPad),
		}
	}
	if toPad < 0 || toPad >= len(dst.node.Inputs) {
		return -1, &Diagnostic{
			Kind:    KindPadOutOfRange,
			Nodes:   []NodeID{to},
			Pad:     padPtr(toPad),
			Message: fmt.Sprintf("%s has %d input pad(s), got %d", dst.node.Label(), len(dst.node.Inputs), toPad),
		}
	}

	out := src.node.Outputs[fromPad]
	in := dst.node.Inputs[toPad]

	if !in.Variadic {
		if id, taken := g.padEdge(dst.in, toPad, false); taken {
			return -1, &Diagnostic{
				Kind:    KindPadOccupied,
				Nodes:   []NodeID{to},
				Edges:   []EdgeID{id},
				Pad:     padPtr(toPad),
				Message: fmt.Sprintf("input pad %d of %s is already fed by edge %d", toPad, dst.node.Label(), id),
			}
		}
	}
	if src.node.Kind == schemas.KindFilter && !out.Variadic {
		if id, taken := g.padEdge(src.out, fromPad, true); taken {
			return -1, &Diagnostic{
				Kind:    KindPadOccupied,
				Nodes:   []NodeID{from},
				Edges:   []EdgeID{id},
				Pad:     padPtr(fromPad),
				Message: fmt.Sprintf("output pad %d of %s already feeds edge %d; use split to fan out", fromPad, src.node.Label(), id),
			}
		}
	}

	if media == "" {
		media = schemas.MediaAny
	}
	if !media.Valid() || !schemas.Compatible(media, out.Media) || !schemas.Compatible(media, in.Media) || !schemas.Compatible(out.Media, in.Media) {
		return -1, &Diagnostic{
			Kind:  KindTypeMismatch,
			Nodes: []NodeID{from, to},
			Message: fmt.Sprintf("cannot carry %s from %s output %d (%s) to %s input %d (%s)",
				media, src.node.Label(), fromPad, out.Media, dst.node.Label(), toPad, in.Media),
		}
	}

	e := &Edge{
		ID:      EdgeID(len(g.edges)),
		From:    from,
		FromPad: fromPad,
		To:      to,
		ToPad:   toPad,
		Media:   media,
	}
	g.edges = append(g.edges, e)
	g.edgeCount++
	src.out = append(src.out, e.ID)
	dst.in = append(dst.in, e.ID)

	return e.ID, nil
}

// RemoveEdge detaches one edge
func (g *Graph) RemoveEdge(id EdgeID) error {
	e, ok := g.Edge(id)
	if !ok {
		return newDiagnostic(KindUnknownEdge, "edge %d does not exist", id)
	}
	src := g.nodes[e.From]
	dst := g.nodes[e.To]
	src.out = without(src.out, id)
	dst.in = without(dst.in, id)
	g.edges[id] = nil
	g.edgeCount--
	return nil
}

// RemoveNode deletes a node and every edge touching it
func (g *Graph) RemoveNode(id NodeID) error {
	ent, err := g.entry(id)
	if err != nil {
		return err
	}
	touching := append(append([]EdgeID(nil), ent.in...), ent.out...)
	for _, eid := range touching {
		if g.edges[eid] != nil {
			if err := g.RemoveEdge(eid); err != nil {
				return err
			}
		}
	}
	g.nodes[id] = nil
	g.nodeCount--
	return nil
}

// SetSourceStreams redeclares a source's output pads, typically once probe
// results are known. Existing edges are kept; their types are re-checked by
// validation rather than here.
func (g *Graph) SetSourceStreams(id NodeID, streams []schemas.MediaType) error {
	ent, err := g.entry(id)
	if err != nil {
		return err
	}
	if ent.node.Kind != schemas.KindSource {
		return &Diagnostic{Kind: KindInvalidOption, Nodes: []NodeID{id}, Message: fmt.Sprintf("%s is not a source", ent.node.Label())}
	}
	if err := checkMedia(streams); err != nil {
		return err
	}
	pads := streamPads(streams)
	for _, eid := range ent.out {
		if e := g.edges[eid]; e.FromPad >= len(pads) {
			return &Diagnostic{
				Kind:    KindPadOutOfRange,
				Nodes:   []NodeID{id},
				Edges:   []EdgeID{eid},
				Pad:     padPtr(e.FromPad),
				Message: fmt.Sprintf("%s would have %d stream(s) but edge %d uses pad %d", ent.node.Label(), len(pads), eid, e.FromPad),
			}
		}
	}
	ent.node.Outputs = pads
	return nil
}

// Node returns a snapshot of the node
func (g *Graph) Node(id NodeID) (Node, bool) {
	ent, err := g.entry(id)
	if err != nil {
		return Node{}, false
	}
	return ent.node.clone(), true
}

// Edge returns the edge with the given ID
func (g *Graph) Edge(id EdgeID) (Edge, bool) {
	if id < 0 || int(id) >= len(g.edges) || g.edges[id] == nil {
		return Edge{}, false
	}
	return *g.edges[id], true
}

// Nodes returns snapshots of all nodes in insertion order
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, g.nodeCount)
	for _, ent := range g.nodes {
		if ent != nil {
			out = append(out, ent.node.clone())
		}
	}
	return out
}

// Edges returns all edges in attachment order
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edgeCount)
	for _, e := range g.edges {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

// NodeCount returns the number of live nodes
func (g *Graph) NodeCount() int { return g.nodeCount }

// EdgeCount returns the number of live edges
func (g *Graph) EdgeCount() int { return g.edgeCount }

// Incoming returns the edges into a node ordered by input pad, then by
// attachment order within a variadic pad.
func (g *Graph) Incoming(id NodeID) []Edge {
	ent, err := g.entry(id)
	if err != nil {
		return nil
	}
	edges := g.collect(ent.in)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].ToPad < edges[j].ToPad })
	return edges
}

// Outgoing returns the edges out of a node ordered by output pad, then by
// attachment order.
func (g *Graph) Outgoing(id NodeID) []Edge {
	ent, err := g.entry(id)
	if err != nil {
		return nil
	}
	edges := g.collect(ent.out)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].FromPad < edges[j].FromPad })
	return edges
}

// Predecessors returns the distinct upstream node IDs in ascending order
func (g *Graph) Predecessors(id NodeID) []NodeID {
	seen := make(map[NodeID]bool)
	var out []NodeID
	for _, e := range g.Incoming(id) {
		if !seen[e.From] {
			seen[e.From] = true
			out = append(out, e.From)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Successors returns the distinct downstream node IDs in ascending order
func (g *Graph) Successors(id NodeID) []NodeID {
	seen := make(map[NodeID]bool)
	var out []NodeID
	for _, e := range g.Outgoing(id) {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Graph) entry(id NodeID) (*nodeEntry, error) {
	if id < 0 || int(id) >= len(g.nodes) || g.nodes[id] == nil {
		return nil, &Diagnostic{Kind: KindUnknownNode, Nodes: []NodeID{id}, Message: fmt.Sprintf("node %d does not exist", id)}
	}
	return g.nodes[id], nil
}

func (g *Graph) collect(ids []EdgeID) []Edge {
	edges := make([]Edge, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, *g.edges[id])
	}
	return edges
}

// padEdge finds the edge attached to pad among ids
func (g *Graph) padEdge(ids []EdgeID, pad int, output bool) (EdgeID, bool) {
	for _, id := range ids {
		e := g.edges[id]
		if (output && e.FromPad == pad) || (!output && e.ToPad == pad) {
			return id, true
		}
	}
	return -1, false
}

func without(ids []EdgeID, id EdgeID) []EdgeID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func checkMedia(types []schemas.MediaType) error {
	for i, m := range types {
		if !m.Valid() {
			return &Diagnostic{Kind: KindTypeMismatch, Pad: padPtr(i), Message: fmt.Sprintf("pad %d: unknown media type %q", i, m)}
		}
	}
	return nil
}

func padsFromSpec(specs []registry.PadSpec, output bool) []Pad {
	pads := make([]Pad, len(specs))
	for i, p := range specs {
		pads[i] = Pad{
			Index:    i,
			Name:     p.Name,
			Media:    p.Media,
			Variadic: p.Variadic,
			Min:      p.Min,
			Optional: output && p.Optional,
		}
	}
	return pads
}

func filterOptions(fs *registry.FilterSpec, given []Option) ([]Option, error) {
	set := make(map[string]bool, len(given))
	opts := make([]Option, 0, len(given))
	for _, o := range given {
		if set[o.Name] {
			return nil, newDiagnostic(KindInvalidOption, "filter %q: option %q given twice", fs.Name, o.Name)
		}
		v, err := fs.CheckOption(o.Name, o.Value)
		if err != nil {
			return nil, &Diagnostic{Kind: KindInvalidOption, Message: err.Error(), Err: err}
		}
		set[o.Name] = true
		opts = append(opts, Option{Name: o.Name, Value: v})
	}
	if missing := fs.MissingRequired(set); len(missing) > 0 {
		return nil, newDiagnostic(KindInvalidOption, "filter %q: missing required option(s) %v", fs.Name, missing)
	}
	return opts, nil
}
