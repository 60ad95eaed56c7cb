package registry

// OptionSpec describes one named option a filter recognizes
type OptionSpec struct {
	Name        string
	Type        OptionType
	Required    bool
	Default     interface{}
	Description string

	// Rules constrain accepted values after type conversion
	Rules *ValidationRules
}

// OptionType is the value type of a filter option
type OptionType string

const (
	TypeString   OptionType = "string"
	TypeInt      OptionType = "int"
	TypeFloat    OptionType = "float"
	TypeBool     OptionType = "bool"
	TypeDuration OptionType = "duration" // "10", "00:00:10.5", "1m30s"
	TypeEnum     OptionType = "enum"     // one of Rules.Enum
	TypeExpr     OptionType = "expr"     // a number or an FFmpeg expression such as "iw/2"
)

// ValidationRules defines option validation rules
type ValidationRules struct {
	// Numeric constraints, applied to int, float and duration (in seconds)
	Min *float64
	Max *float64

	// Enum values, compared after conversion
	Enum []string

	// Pattern is a regular expression string values must match
	Pattern string

	Custom func(interface{}) error
}

func floatPtr(f float64) *float64 {
	return &f
}

func between(lo, hi float64) *ValidationRules {
	return &ValidationRules{Min: floatPtr(lo), Max: floatPtr(hi)}
}

func oneOf(values ...string) *ValidationRules {
	return &ValidationRules{Enum: values}
}
