package registry

import (
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// Category groups filters for listing
type Category string

const (
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryTimeline Category = "timeline"
	CategoryRouting  Category = "routing" // split, stack, mix
)

// FilterSpec is the static description of one FFmpeg filter
type FilterSpec struct {
	Name        string
	Category    Category
	Description string

	Inputs  []PadSpec
	Outputs []PadSpec

	// Options in serialization order
	Options []OptionSpec

	// CountOption names the option that tells FFmpeg how many links the
	// variadic pad carries ("inputs" for amix, "outputs" for split).
	CountOption string
}

// PadSpec declares one input or output pad
type PadSpec struct {
	Name     string
	Media    schemas.MediaType
	Variadic bool

	// Min is the minimum number of links a variadic pad needs; zero means one
	Min int

	// Optional output pads may be left unconnected
	Optional bool
}

// MinLinks returns how many links the pad needs to be satisfied
func (p PadSpec) MinLinks() int {
	if p.Variadic && p.Min > 0 {
		return p.Min
	}
	return 1
}

// Option returns the named option
func (f *FilterSpec) Option(name string) (*OptionSpec, bool) {
	for i := range f.Options {
		if f.Options[i].Name == name {
			return &f.Options[i], true
		}
	}
	return nil, false
}

// OptionIndex returns the serialization position of the named option, or -1
func (f *FilterSpec) OptionIndex(name string) int {
	for i := range f.Options {
		if f.Options[i].Name == name {
			return i
		}
	}
	return -1
}

// VariadicInput returns the index of the variadic input pad, or -1
func (f *FilterSpec) VariadicInput() int {
	return variadicIndex(f.Inputs)
}

// VariadicOutput returns the index of the variadic output pad, or -1
func (f *FilterSpec) VariadicOutput() int {
	return variadicIndex(f.Outputs)
}

func variadicIndex(pads []PadSpec) int {
	for i, p := range pads {
		if p.Variadic {
			return i
		}
	}
	return -1
}
