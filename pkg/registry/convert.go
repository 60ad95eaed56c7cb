package registry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// whitespace is the set the FFmpeg tokenizer trims around tokens
const whitespace = " \n\t\r"

// Convert normalizes a caller-supplied scalar to the Go type used for t:
// int, float64, bool, time.Duration or string.
func Convert(value interface{}, t OptionType) (interface{}, error) {
	switch t {
	case TypeInt:
		return toInt(value)
	case TypeFloat:
		return toFloat(value)
	case TypeBool:
		return toBool(value)
	case TypeDuration:
		return toDuration(value)
	case TypeExpr:
		return toExpr(value)
	case TypeString, TypeEnum:
		return toString(value)
	default:
		return nil, fmt.Errorf("unknown option type %q", t)
	}
}

// Render serializes a converted value the way filter arguments expect it
func Render(value interface{}) string {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Duration:
		return schemas.FormatSeconds(v)
	case string:
		return Escape(v)
	default:
		return Escape(fmt.Sprint(v))
	}
}

// Escape prepares an option value for a filtergraph. FFmpeg unescapes the
// value twice: once while splitting the graph into filters and again while
// splitting a filter's arguments on ':'.
func Escape(s string) string {
	return escapeLevel(escapeLevel(s, `\':`), `\'[],;`)
}

// escapeLevel backslash-escapes the special characters of one parsing level.
// Leading and trailing whitespace is escaped too since the tokenizer trims it.
func escapeLevel(s, special string) string {
	var b strings.Builder
	last := len(s) - 1
	for i := 0; i < len(s); i++ {
		c := s[i]
		edge := i == 0 || i == last
		if strings.IndexByte(special, c) >= 0 || (edge && strings.IndexByte(whitespace, c) >= 0) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float", value)
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

func toDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		return schemas.ParseDuration(v)
	default:
		return 0, fmt.Errorf("cannot convert %T to duration", value)
	}
}

func toExpr(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int, float64:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("empty expression")
		}
		return v, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to expression", value)
	}
}

func toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", value)
	}
}
