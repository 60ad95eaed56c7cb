// Package compiler turns a validated graph into an FFmpeg argument vector
// with a single -filter_complex expression.
package compiler

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chicogong/ffmpeg-chain/pkg/compiler/validator"
	"github.com/chicogong/ffmpeg-chain/pkg/graph"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// Compiler compiles graphs. It holds no per-compile state and may be shared.
type Compiler struct {
	validator *validator.Validator
	logger    logrus.FieldLogger
}

// Option configures a Compiler
type Option func(*Compiler)

// WithLogger sets the logger used for compile diagnostics
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// New creates a new Compiler
func New(opts ...Option) *Compiler {
	discard := logrus.New()
	discard.Out = io.Discard

	c := &Compiler{
		validator: validator.New(),
		logger:    discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate runs the validator without compiling
func (c *Compiler) Validate(g *graph.Graph) []*graph.Diagnostic {
	return c.validator.Validate(g)
}

// Compile validates g and renders it. It fails with *graph.InvalidGraphError
// when validation has findings and never returns a partial command. The
// graph is not modified, and compiling an unchanged graph again yields an
// identical command.
func (c *Compiler) Compile(g *graph.Graph) (*schemas.CommandSpec, error) {
	if err := c.validator.Check(g); err != nil {
		return nil, err
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, &graph.InvalidGraphError{Findings: graph.Diagnostics(err)}
	}

	cmd := &schemas.CommandSpec{}
	labels := newLabeler()
	var segments []string

	for _, o := range g.GlobalOptions() {
		cmd.Args = append(cmd.Args, o.Arg()...)
	}

	// Sources become inputs in topological order
	input := 0
	for _, id := range order {
		n, _ := g.Node(id)
		if n.Kind != schemas.KindSource {
			continue
		}
		for _, o := range n.Options {
			cmd.Args = append(cmd.Args, o.Arg()...)
		}
		cmd.Args = append(cmd.Args, "-i", n.Path)
		cmd.Inputs = append(cmd.Inputs, schemas.InputArg{
			Node:      int(id),
			Path:      n.Path,
			PathIndex: len(cmd.Args) - 1,
		})
		for _, e := range g.Outgoing(id) {
			labels.bindSource(e, input, n)
		}
		input++
	}

	// Filters in topological order; every producer precedes its consumers,
	// so incoming edges already carry a reference.
	for _, id := range order {
		n, _ := g.Node(id)
		if n.Kind != schemas.KindFilter {
			continue
		}
		spec, err := g.Registry().Lookup(n.Filter)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}

		inEdges, outEdges := g.Incoming(id), g.Outgoing(id)
		in := make([]streamRef, len(inEdges))
		for i, e := range inEdges {
			in[i] = labels.ref(e.ID)
		}
		out := make([]streamRef, len(outEdges))
		for i, e := range outEdges {
			out[i] = labels.allocate(e)
		}

		segments = append(segments, renderSegment(n.Filter, renderOptions(spec, n, inEdges, outEdges), in, out))
	}

	if len(segments) > 0 {
		cmd.FilterComplex = strings.Join(segments, ";")
		cmd.FilterGraph = strings.Join(segments, ";\n")
		cmd.Args = append(cmd.Args, "-filter_complex", cmd.FilterComplex)
	}

	// Sinks become mapped outputs in topological order
	for _, id := range order {
		n, _ := g.Node(id)
		if n.Kind != schemas.KindSink {
			continue
		}
		var maps []string
		for _, e := range g.Incoming(id) {
			m := labels.ref(e.ID).MapArg()
			maps = append(maps, m)
			cmd.Args = append(cmd.Args, "-map", m)
		}
		for _, o := range n.Options {
			cmd.Args = append(cmd.Args, o.Arg()...)
		}
		cmd.Args = append(cmd.Args, n.Path)
		cmd.Outputs = append(cmd.Outputs, schemas.OutputArg{
			Node:      int(id),
			Path:      n.Path,
			PathIndex: len(cmd.Args) - 1,
			Maps:      maps,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"nodes":    g.NodeCount(),
		"edges":    g.EdgeCount(),
		"inputs":   len(cmd.Inputs),
		"outputs":  len(cmd.Outputs),
		"segments": len(segments),
	}).Debug("Compiled filter graph")

	return cmd, nil
}
