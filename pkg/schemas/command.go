package schemas

import "strings"

// CommandSpec is a compiled FFmpeg invocation. Args excludes the executable;
// the process runner supplies it.
type CommandSpec struct {
	Args []string `json:"args"`

	// FilterComplex is the value passed to -filter_complex, empty when the
	// graph has no filter nodes.
	FilterComplex string `json:"filter_complex,omitempty"`

	// FilterGraph is FilterComplex with one segment per line, for diagnostics.
	FilterGraph string `json:"filter_graph,omitempty"`

	Inputs  []InputArg  `json:"inputs"`
	Outputs []OutputArg `json:"outputs"`
}

// InputArg records where a source node landed in Args
type InputArg struct {
	Node      int    `json:"node"`
	Path      string `json:"path"`
	PathIndex int    `json:"path_index"` // index of Path within Args
}

// OutputArg records where a sink node landed in Args
type OutputArg struct {
	Node      int      `json:"node"`
	Path      string   `json:"path"`
	PathIndex int      `json:"path_index"`
	Maps      []string `json:"maps"`
}

// Relocate returns a copy of the command with input and output paths replaced.
// Keys are node ids; nodes missing from a map keep their path.
func (c *CommandSpec) Relocate(inputs, outputs map[int]string) *CommandSpec {
	out := &CommandSpec{
		Args:          append([]string(nil), c.Args...),
		FilterComplex: c.FilterComplex,
		FilterGraph:   c.FilterGraph,
		Inputs:        make([]InputArg, len(c.Inputs)),
		Outputs:       make([]OutputArg, len(c.Outputs)),
	}

	for i, in := range c.Inputs {
		if p, ok := inputs[in.Node]; ok {
			in.Path = p
			out.Args[in.PathIndex] = p
		}
		out.Inputs[i] = in
	}
	for i, o := range c.Outputs {
		o.Maps = append([]string(nil), o.Maps...)
		if p, ok := outputs[o.Node]; ok {
			o.Path = p
			out.Args[o.PathIndex] = p
		}
		out.Outputs[i] = o
	}

	return out
}

// String renders the command as a single shell-quoted line, prefixed with
// "ffmpeg".
func (c *CommandSpec) String() string {
	return c.CommandLine("ffmpeg")
}

// CommandLine renders the command with the given executable
func (c *CommandSpec) CommandLine(binary string) string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, shellQuote(binary))
	for _, a := range c.Args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./:=,+@%", r):
		default:
			safe = false
		}
		if !safe {
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
