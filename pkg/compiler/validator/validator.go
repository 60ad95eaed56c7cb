// Package validator checks a graph against the filter table before it is
// compiled: pad arity, stream type consistency and acyclicity.
package validator

import (
	"fmt"
	"strings"

	"github.com/chicogong/ffmpeg-chain/pkg/graph"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// Validator runs the structural checks. It never modifies the graph.
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

type phase func(g *graph.Graph) []*graph.Diagnostic

// Validate runs arity, type and cycle checks in that order and returns every
// finding of the first phase that fails. An empty result means the graph is
// valid.
func (v *Validator) Validate(g *graph.Graph) []*graph.Diagnostic {
	for _, check := range []phase{checkArity, checkTypes, checkCycles} {
		if findings := check(g); len(findings) > 0 {
			return findings
		}
	}
	return nil
}

// Check is Validate reported as an error: nil or *graph.InvalidGraphError
func (v *Validator) Check(g *graph.Graph) error {
	if findings := v.Validate(g); len(findings) > 0 {
		return &graph.InvalidGraphError{Findings: findings}
	}
	return nil
}

func checkArity(g *graph.Graph) []*graph.Diagnostic {
	var findings []*graph.Diagnostic

	sinks := g.NodesOfKind(schemas.KindSink)
	if len(sinks) == 0 {
		findings = append(findings, &graph.Diagnostic{
			Kind:    graph.KindArity,
			Message: "graph has no sink",
		})
	}
	live := reachableFrom(g, sinks)

	for _, n := range g.Nodes() {
		in := countByPad(g.Incoming(n.ID), false)
		out := countByPad(g.Outgoing(n.ID), true)

		if live[n.ID] {
			for _, p := range n.Inputs {
				findings = append(findings, inputFinding(n, p, in[p.Index])...)
			}
		}

		if n.Kind == schemas.KindFilter {
			for _, p := range n.Outputs {
				if p.Optional || out[p.Index] >= p.MinLinks() {
					continue
				}
				findings = append(findings, &graph.Diagnostic{
					Kind:    graph.KindArity,
					Nodes:   []graph.NodeID{n.ID},
					Pad:     intPtr(p.Index),
					Message: fmt.Sprintf("output pad %d (%s) of %s needs %d edge(s), has %d", p.Index, p.Name, n.Label(), p.MinLinks(), out[p.Index]),
				})
			}
			if f := countOptionFinding(g, n, in, out); f != nil {
				findings = append(findings, f)
			}
		}
	}

	return findings
}

func inputFinding(n graph.Node, p graph.Pad, have int) []*graph.Diagnostic {
	switch {
	case p.Variadic && have < p.MinLinks():
		return []*graph.Diagnostic{{
			Kind:    graph.KindArity,
			Nodes:   []graph.NodeID{n.ID},
			Pad:     intPtr(p.Index),
			Message: fmt.Sprintf("variadic input pad %d (%s) of %s needs at least %d edge(s), has %d", p.Index, p.Name, n.Label(), p.MinLinks(), have),
		}}
	case !p.Variadic && have == 0:
		return []*graph.Diagnostic{{
			Kind:    graph.KindArity,
			Nodes:   []graph.NodeID{n.ID},
			Pad:     intPtr(p.Index),
			Message: fmt.Sprintf("input pad %d (%s) of %s is not connected", p.Index, p.Name, n.Label()),
		}}
	case !p.Variadic && have > 1:
		return []*graph.Diagnostic{{
			Kind:    graph.KindPadOccupied,
			Nodes:   []graph.NodeID{n.ID},
			Pad:     intPtr(p.Index),
			Message: fmt.Sprintf("input pad %d (%s) of %s is fed by %d edges", p.Index, p.Name, n.Label(), have),
		}}
	}
	return nil
}

// countOptionFinding reports an explicit count option that disagrees with
// the number of edges on the variadic pad it sizes.
func countOptionFinding(g *graph.Graph, n graph.Node, in, out map[int]int) *graph.Diagnostic {
	spec, err := g.Registry().Lookup(n.Filter)
	if err != nil || spec.CountOption == "" {
		return nil
	}
	v, ok := n.Option(spec.CountOption)
	if !ok {
		return nil
	}
	want, _ := v.(int)

	have, pad := 0, spec.VariadicInput()
	if pad >= 0 {
		have = in[pad]
	} else {
		pad = spec.VariadicOutput()
		have = out[pad]
	}
	if have == want {
		return nil
	}
	return &graph.Diagnostic{
		Kind:    graph.KindArity,
		Nodes:   []graph.NodeID{n.ID},
		Pad:     intPtr(pad),
		Message: fmt.Sprintf("%s sets %s=%d but pad %d has %d edge(s)", n.Label(), spec.CountOption, want, pad, have),
	}
}

func checkTypes(g *graph.Graph) []*graph.Diagnostic {
	var findings []*graph.Diagnostic
	nodes := make(map[graph.NodeID]graph.Node)
	for _, n := range g.Nodes() {
		nodes[n.ID] = n
	}

	for _, e := range g.Edges() {
		from, to := nodes[e.From], nodes[e.To]
		if e.FromPad >= len(from.Outputs) || e.ToPad >= len(to.Inputs) {
			findings = append(findings, &graph.Diagnostic{
				Kind:    graph.KindPadOutOfRange,
				Nodes:   []graph.NodeID{e.From, e.To},
				Edges:   []graph.EdgeID{e.ID},
				Message: fmt.Sprintf("%s refers to a pad that no longer exists", e),
			})
			continue
		}
		out, in := from.Outputs[e.FromPad].Media, to.Inputs[e.ToPad].Media
		if schemas.Compatible(e.Media, out) && schemas.Compatible(e.Media, in) && schemas.Compatible(out, in) {
			continue
		}
		findings = append(findings, &graph.Diagnostic{
			Kind:  graph.KindTypeMismatch,
			Nodes: []graph.NodeID{e.From, e.To},
			Edges: []graph.EdgeID{e.ID},
			Message: fmt.Sprintf("edge %d carries %s from %s output %d (%s) to %s input %d (%s)",
				e.ID, e.Media, from.Label(), e.FromPad, out, to.Label(), e.ToPad, in),
		})
	}

	return findings
}

// checkCycles runs a colored DFS from every source, then from any node not
// yet visited, and reports the first cycle with its full node sequence.
func checkCycles(g *graph.Graph) []*graph.Diagnostic {
	const (
		white = iota
		gray
		black
	)
	color := make(map[graph.NodeID]int)
	var path []graph.NodeID
	var cycle []graph.NodeID

	var dfs func(id graph.NodeID) bool
	dfs = func(id graph.NodeID) bool {
		color[id] = gray
		path = append(path, id)

		for _, next := range g.Successors(id) {
			switch color[next] {
			case gray:
				for i, n := range path {
					if n == next {
						cycle = append([]graph.NodeID(nil), path[i:]...)
						break
					}
				}
				return true
			case white:
				if dfs(next) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	roots := g.NodesOfKind(schemas.KindSource)
	for _, n := range g.Nodes() {
		roots = append(roots, n.ID)
	}
	for _, id := range roots {
		if color[id] == white && dfs(id) {
			break
		}
	}
	if cycle == nil {
		return nil
	}

	steps := make([]string, 0, len(cycle)+1)
	for _, id := range cycle {
		steps = append(steps, fmt.Sprint(id))
	}
	steps = append(steps, fmt.Sprint(cycle[0]))
	return []*graph.Diagnostic{{
		Kind:    graph.KindCyclicGraph,
		Nodes:   cycle,
		Message: "cycle through nodes " + strings.Join(steps, " -> "),
	}}
}

// reachableFrom walks edges backwards from the given nodes
func reachableFrom(g *graph.Graph, start []graph.NodeID) map[graph.NodeID]bool {
	seen := make(map[graph.NodeID]bool, len(start))
	queue := append([]graph.NodeID(nil), start...)
	for _, id := range start {
		seen[id] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, p := range g.Predecessors(id) {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return seen
}

func countByPad(edges []graph.Edge, output bool) map[int]int {
	counts := make(map[int]int)
	for _, e := range edges {
		if output {
			counts[e.FromPad]++
		} else {
			counts[e.ToPad]++
		}
	}
	return counts
}

func intPtr(i int) *int { return &i }
