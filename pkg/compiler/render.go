package compiler

import (
	"strings"

	"github.com/chicogong/ffmpeg-chain/pkg/graph"
	"github.com/chicogong/ffmpeg-chain/pkg/registry"
)

// renderOptions serializes filter options in registry order. A count option
// left unset is filled in from the number of edges on its variadic pad.
func renderOptions(spec *registry.FilterSpec, n graph.Node, in, out []graph.Edge) string {
	var parts []string
	for _, o := range spec.Options {
		v, ok := n.Option(o.Name)
		if !ok && o.Name == spec.CountOption {
			v, ok = variadicCount(spec, in, out), true
		}
		if !ok {
			continue
		}
		parts = append(parts, o.Name+"="+registry.Render(v))
	}
	return strings.Join(parts, ":")
}

func variadicCount(spec *registry.FilterSpec, in, out []graph.Edge) int {
	if pad := spec.VariadicInput(); pad >= 0 {
		return countPad(in, pad, false)
	}
	return countPad(out, spec.VariadicOutput(), true)
}

func countPad(edges []graph.Edge, pad int, output bool) int {
	n := 0
	for _, e := range edges {
		if (output && e.FromPad == pad) || (!output && e.ToPad == pad) {
			n++
		}
	}
	return n
}

// renderSegment builds "[in0][in1]name=opts[out0]"
func renderSegment(name, opts string, in, out []streamRef) string {
	var b strings.Builder
	for _, r := range in {
		b.WriteString(r.FilterLabel())
	}
	b.WriteString(name)
	if opts != "" {
		b.WriteByte('=')
		b.WriteString(opts)
	}
	for _, r := range out {
		b.WriteString(r.FilterLabel())
	}
	return b.String()
}
