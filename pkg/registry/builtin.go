package registry

import (
	"fmt"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// TableVersion identifies the built-in filter table. Bump it whenever pads or
// options of a built-in filter change.
const TableVersion = "2026.10.1"

func builtinFilters() []FilterSpec {
	return []FilterSpec{
		// Video
		{
			Name:        "scale",
			Category:    CategoryVideo,
			Description: "Resize the video",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "width", Type: TypeExpr, Required: true, Description: "Output width, -1/-2 keep aspect"},
				{Name: "height", Type: TypeExpr, Required: true, Description: "Output height, -1/-2 keep aspect"},
				{Name: "flags", Type: TypeEnum, Default: "bicubic", Rules: oneOf("fast_bilinear", "bilinear", "bicubic", "neighbor", "area", "lanczos", "spline")},
				{Name: "force_original_aspect_ratio", Type: TypeEnum, Default: "disable", Rules: oneOf("disable", "decrease", "increase")},
			},
		},
		{
			Name:        "crop",
			Category:    CategoryVideo,
			Description: "Crop the video to a rectangle",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "w", Type: TypeExpr, Required: true},
				{Name: "h", Type: TypeExpr, Required: true},
				{Name: "x", Type: TypeExpr, Default: "(in_w-out_w)/2"},
				{Name: "y", Type: TypeExpr, Default: "(in_h-out_h)/2"},
			},
		},
		{
			Name:        "pad",
			Category:    CategoryVideo,
			Description: "Pad the video with a solid border",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "width", Type: TypeExpr, Required: true},
				{Name: "height", Type: TypeExpr, Required: true},
				{Name: "x", Type: TypeExpr, Default: 0},
				{Name: "y", Type: TypeExpr, Default: 0},
				{Name: "color", Type: TypeString, Default: "black"},
			},
		},
		{
			Name:        "fps",
			Category:    CategoryVideo,
			Description: "Convert to a constant frame rate",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "fps", Type: TypeExpr, Required: true},
			},
		},
		{
			Name:        "format",
			Category:    CategoryVideo,
			Description: "Convert to one of the listed pixel formats",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "pix_fmts", Type: TypeString, Required: true, Rules: &ValidationRules{Pattern: `^[a-z0-9_|]+$`}},
			},
		},
		{
			Name:        "hflip",
			Category:    CategoryVideo,
			Description: "Flip horizontally",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
		},
		{
			Name:        "vflip",
			Category:    CategoryVideo,
			Description: "Flip vertically",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
		},
		{
			Name:        "transpose",
			Category:    CategoryVideo,
			Description: "Rotate by 90 degrees",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "dir", Type: TypeEnum, Default: "cclock_flip", Rules: oneOf("cclock_flip", "clock", "cclock", "clock_flip")},
			},
		},
		{
			Name:        "fade",
			Category:    CategoryVideo,
			Description: "Fade video in or out",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "type", Type: TypeEnum, Default: "in", Rules: oneOf("in", "out")},
				{Name: "start_time", Type: TypeDuration, Default: 0, Rules: &ValidationRules{Min: floatPtr(0)}},
				{Name: "duration", Type: TypeDuration, Required: true, Rules: &ValidationRules{Min: floatPtr(0)}},
				{Name: "color", Type: TypeString, Default: "black"},
			},
		},
		{
			Name:        "drawtext",
			Category:    CategoryVideo,
			Description: "Draw a text string on top of the video",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "text", Type: TypeString, Required: true},
				{Name: "fontfile", Type: TypeString},
				{Name: "fontsize", Type: TypeExpr, Default: 16},
				{Name: "fontcolor", Type: TypeString, Default: "black"},
				{Name: "x", Type: TypeExpr, Default: 0},
				{Name: "y", Type: TypeExpr, Default: 0},
			},
		},
		{
			Name:        "overlay",
			Category:    CategoryVideo,
			Description: "Overlay the second input on top of the first",
			Inputs:      []PadSpec{videoPad("main"), videoPad("overlay")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "x", Type: TypeExpr, Default: 0},
				{Name: "y", Type: TypeExpr, Default: 0},
				{Name: "eof_action", Type: TypeEnum, Default: "repeat", Rules: oneOf("repeat", "endall", "pass")},
				{Name: "shortest", Type: TypeBool, Default: false},
			},
		},
		{
			Name:        "null",
			Category:    CategoryVideo,
			Description: "Pass the video through unchanged",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
		},

		// Timeline
		{
			Name:        "trim",
			Category:    CategoryTimeline,
			Description: "Keep one continuous section of the video",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options:     trimOptions(),
		},
		{
			Name:        "atrim",
			Category:    CategoryTimeline,
			Description: "Keep one continuous section of the audio",
			Inputs:      []PadSpec{audioPad("default")},
			Outputs:     []PadSpec{audioPad("default")},
			Options:     trimOptions(),
		},
		{
			Name:        "setpts",
			Category:    CategoryTimeline,
			Description: "Rewrite video presentation timestamps",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{videoPad("default")},
			Options: []OptionSpec{
				{Name: "expr", Type: TypeExpr, Required: true},
			},
		},
		{
			Name:        "asetpts",
			Category:    CategoryTimeline,
			Description: "Rewrite audio presentation timestamps",
			Inputs:      []PadSpec{audioPad("default")},
			Outputs:     []PadSpec{audioPad("default")},
			Options: []OptionSpec{
				{Name: "expr", Type: TypeExpr, Required: true},
			},
		},

		// Audio
		{
			Name:        "volume",
			Category:    CategoryAudio,
			Description: "Change audio volume",
			Inputs:      []PadSpec{audioPad("default")},
			Outputs:     []PadSpec{audioPad("default")},
			Options: []OptionSpec{
				{Name: "volume", Type: TypeExpr, Required: true, Description: "Factor or dB value such as 0.5 or -6dB"},
			},
		},
		{
			Name:        "aresample",
			Category:    CategoryAudio,
			Description: "Resample audio",
			Inputs:      []PadSpec{audioPad("default")},
			Outputs:     []PadSpec{audioPad("default")},
			Options: []OptionSpec{
				{Name: "out_sample_rate", Type: TypeInt, Required: true, Rules: between(8000, 384000)},
			},
		},
		{
			Name:        "loudnorm",
			Category:    CategoryAudio,
			Description: "EBU R128 loudness normalization",
			Inputs:      []PadSpec{audioPad("default")},
			Outputs:     []PadSpec{audioPad("default")},
			Options: []OptionSpec{
				{Name: "i", Type: TypeFloat, Default: -24.0, Rules: between(-70, -5)},
				{Name: "tp", Type: TypeFloat, Default: -2.0, Rules: between(-9, 0)},
				{Name: "lra", Type: TypeFloat, Default: 7.0, Rules: between(1, 50)},
			},
		},
		{
			Name:        "afade",
			Category:    CategoryAudio,
			Description: "Fade audio in or out",
			Inputs:      []PadSpec{audioPad("default")},
			Outputs:     []PadSpec{audioPad("default")},
			Options: []OptionSpec{
				{Name: "type", Type: TypeEnum, Default: "in", Rules: oneOf("in", "out")},
				{Name: "start_time", Type: TypeDuration, Default: 0, Rules: &ValidationRules{Min: floatPtr(0)}},
				{Name: "duration", Type: TypeDuration, Required: true, Rules: &ValidationRules{Min: floatPtr(0)}},
			},
		},
		{
			Name:        "anull",
			Category:    CategoryAudio,
			Description: "Pass the audio through unchanged",
			Inputs:      []PadSpec{audioPad("default")},
			Outputs:     []PadSpec{audioPad("default")},
		},

		// Routing
		{
			Name:        "split",
			Category:    CategoryRouting,
			Description: "Duplicate the video into several outputs",
			Inputs:      []PadSpec{videoPad("default")},
			Outputs:     []PadSpec{{Name: "output", Media: schemas.MediaVideo, Variadic: true}},
			Options: []OptionSpec{
				{Name: "outputs", Type: TypeInt, Default: 2, Rules: between(1, 64)},
			},
			CountOption: "outputs",
		},
		{
			Name:        "asplit",
			Category:    CategoryRouting,
			Description: "Duplicate the audio into several outputs",
			Inputs:      []PadSpec{audioPad("default")},
			Outputs:     []PadSpec{{Name: "output", Media: schemas.MediaAudio, Variadic: true}},
			Options: []OptionSpec{
				{Name: "outputs", Type: TypeInt, Default: 2, Rules: between(1, 64)},
			},
			CountOption: "outputs",
		},
		stackFilter("hstack", "Stack videos side by side"),
		stackFilter("vstack", "Stack videos on top of each other"),
		{
			Name:        "amix",
			Category:    CategoryRouting,
			Description: "Mix several audio streams into one",
			Inputs:      []PadSpec{{Name: "input", Media: schemas.MediaAudio, Variadic: true}},
			Outputs:     []PadSpec{audioPad("default")},
			Options: []OptionSpec{
				{Name: "inputs", Type: TypeInt, Default: 2, Rules: between(1, 32767)},
				{Name: "duration", Type: TypeEnum, Default: "longest", Rules: oneOf("longest", "shortest", "first")},
				{Name: "dropout_transition", Type: TypeFloat, Default: 2.0, Rules: &ValidationRules{Min: floatPtr(0)}},
				{Name: "weights", Type: TypeString, Rules: &ValidationRules{Pattern: `^[0-9.\- ]+$`}},
				{Name: "normalize", Type: TypeBool, Default: true},
			},
			CountOption: "inputs",
		},
		{
			Name:        "amerge",
			Category:    CategoryRouting,
			Description: "Merge audio streams into one multichannel stream",
			Inputs:      []PadSpec{{Name: "input", Media: schemas.MediaAudio, Variadic: true, Min: 2}},
			Outputs:     []PadSpec{audioPad("default")},
			Options: []OptionSpec{
				{Name: "inputs", Type: TypeInt, Default: 2, Rules: between(1, 64)},
			},
			CountOption: "inputs",
		},
	}
}

func trimOptions() []OptionSpec {
	nonNegative := &ValidationRules{Min: floatPtr(0)}
	return []OptionSpec{
		{Name: "start", Type: TypeDuration, Rules: nonNegative},
		{Name: "end", Type: TypeDuration, Rules: nonNegative},
		{Name: "duration", Type: TypeDuration, Rules: nonNegative},
	}
}

func stackFilter(name, description string) FilterSpec {
	return FilterSpec{
		Name:        name,
		Category:    CategoryRouting,
		Description: description,
		Inputs:      []PadSpec{{Name: "input", Media: schemas.MediaVideo, Variadic: true, Min: 2}},
		Outputs:     []PadSpec{videoPad("default")},
		Options: []OptionSpec{
			{Name: "inputs", Type: TypeInt, Default: 2, Rules: &ValidationRules{
				Min: floatPtr(2),
				Custom: func(v interface{}) error {
					if n, ok := v.(int); ok && n > 64 {
						return fmt.Errorf("%s supports at most 64 inputs", name)
					}
					return nil
				},
			}},
			{Name: "shortest", Type: TypeBool, Default: false},
		},
		CountOption: "inputs",
	}
}
