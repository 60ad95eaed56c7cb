package registry

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrUnknownOption is returned for option names a filter does not declare
var ErrUnknownOption = errors.New("unknown option")

// OptionError describes a rejected option value
type OptionError struct {
	Filter string
	Option string
	Err    error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("filter %q option %q: %v", e.Filter, e.Option, e.Err)
}

func (e *OptionError) Unwrap() error { return e.Err }

// CheckOption validates one option against the filter and returns the value
// converted to its canonical Go type.
func (f *FilterSpec) CheckOption(name string, value interface{}) (interface{}, error) {
	spec, ok := f.Option(name)
	if !ok {
		return nil, &OptionError{Filter: f.Name, Option: name, Err: ErrUnknownOption}
	}

	converted, err := Convert(value, spec.Type)
	if err != nil {
		return nil, &OptionError{Filter: f.Name, Option: name, Err: err}
	}

	if spec.Rules != nil {
		if err := applyRules(converted, spec.Rules); err != nil {
			return nil, &OptionError{Filter: f.Name, Option: name, Err: err}
		}
	}

	return converted, nil
}

// MissingRequired returns the required options absent from set, in
// serialization order.
func (f *FilterSpec) MissingRequired(set map[string]bool) []string {
	var missing []string
	for _, o := range f.Options {
		if o.Required && !set[o.Name] {
			missing = append(missing, o.Name)
		}
	}
	return missing
}

func applyRules(value interface{}, rules *ValidationRules) error {
	if rules.Min != nil || rules.Max != nil {
		if n, ok := numeric(value); ok {
			if rules.Min != nil && n < *rules.Min {
				return fmt.Errorf("value %v is less than minimum %v", value, *rules.Min)
			}
			if rules.Max != nil && n > *rules.Max {
				return fmt.Errorf("value %v is greater than maximum %v", value, *rules.Max)
			}
		}
	}

	if len(rules.Enum) > 0 {
		s := fmt.Sprint(value)
		found := false
		for _, allowed := range rules.Enum {
			if s == allowed {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("value %q is not one of %v", s, rules.Enum)
		}
	}

	if rules.Pattern != "" {
		if s, ok := value.(string); ok {
			matched, err := regexp.MatchString(rules.Pattern, s)
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", rules.Pattern, err)
			}
			if !matched {
				return fmt.Errorf("value %q does not match %s", s, rules.Pattern)
			}
		}
	}

	if rules.Custom != nil {
		return rules.Custom(value)
	}

	return nil
}

// numeric extracts a comparable number; expressions given as strings are
// left to FFmpeg.
func numeric(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	case time.Duration:
		return v.Seconds(), true
	default:
		return 0, false
	}
}
