// Package registry holds the static table of FFmpeg filters the graph
// compiler knows about: pad arity and media types, recognized options and
// their serialization order.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// ErrNotFound is returned by Lookup for names absent from the table
var ErrNotFound = errors.New("filter not found")

// Registry is an immutable name -> FilterSpec table. Safe for concurrent use.
type Registry struct {
	version string
	filters map[string]*FilterSpec
	names   []string
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in table, constructed on first use
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = MustNew(TableVersion, builtinFilters()...)
	})
	return defaultRegistry
}

// New builds a registry from specs. Specs are copied; later changes to the
// arguments do not affect the registry.
func New(version string, specs ...FilterSpec) (*Registry, error) {
	r := &Registry{
		version: version,
		filters: make(map[string]*FilterSpec, len(specs)),
		names:   make([]string, 0, len(specs)),
	}

	for i := range specs {
		spec := specs[i]
		if err := checkSpec(&spec); err != nil {
			return nil, err
		}
		if _, dup := r.filters[spec.Name]; dup {
			return nil, fmt.Errorf("filter %q registered twice", spec.Name)
		}
		spec.Inputs = append([]PadSpec(nil), spec.Inputs...)
		spec.Outputs = append([]PadSpec(nil), spec.Outputs...)
		spec.Options = append([]OptionSpec(nil), spec.Options...)
		r.filters[spec.Name] = &spec
		r.names = append(r.names, spec.Name)
	}
	sort.Strings(r.names)

	return r, nil
}

// MustNew is New that panics on error, for static tables
func MustNew(version string, specs ...FilterSpec) *Registry {
	r, err := New(version, specs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Version identifies the table the registry was built from
func (r *Registry) Version() string {
	return r.version
}

// Lookup retrieves a filter by name. The returned filter must not be modified.
func (r *Registry) Lookup(name string) (*FilterSpec, error) {
	spec, ok := r.filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return spec, nil
}

// Names returns all filter names in lexical order
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// List returns all filters in lexical order of name
func (r *Registry) List() []*FilterSpec {
	out := make([]*FilterSpec, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.filters[n])
	}
	return out
}

// ListByCategory returns filters in one category, in lexical order
func (r *Registry) ListByCategory(c Category) []*FilterSpec {
	var out []*FilterSpec
	for _, f := range r.List() {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

func checkSpec(spec *FilterSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("filter without a name")
	}

	for _, side := range [][]PadSpec{spec.Inputs, spec.Outputs} {
		variadic := 0
		for i, p := range side {
			if !p.Media.Valid() {
				return fmt.Errorf("filter %q: pad %d has invalid media type %q", spec.Name, i, p.Media)
			}
			if p.Variadic {
				variadic++
			}
		}
		if variadic > 1 {
			return fmt.Errorf("filter %q: more than one variadic pad on one side", spec.Name)
		}
	}

	seen := make(map[string]bool, len(spec.Options))
	for _, o := range spec.Options {
		if seen[o.Name] {
			return fmt.Errorf("filter %q: option %q declared twice", spec.Name, o.Name)
		}
		seen[o.Name] = true
	}

	if spec.CountOption != "" {
		opt, ok := spec.Option(spec.CountOption)
		if !ok || opt.Type != TypeInt {
			return fmt.Errorf("filter %q: count option %q must be a declared int option", spec.Name, spec.CountOption)
		}
		if spec.VariadicInput() < 0 && spec.VariadicOutput() < 0 {
			return fmt.Errorf("filter %q: count option without a variadic pad", spec.Name)
		}
	}

	return nil
}

// Pads of built-in specs are declared with these helpers
func videoPad(name string) PadSpec { return PadSpec{Name: name, Media: schemas.MediaVideo} }
func audioPad(name string) PadSpec { return PadSpec{Name: name, Media: schemas.MediaAudio} }
