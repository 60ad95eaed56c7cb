package schemas

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	timecodeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})(?:\.(\d{1,6}))?$`)
	isoRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)([HMS])`)
)

// Duration wraps time.Duration with a JSON form accepted by ParseDuration
type Duration struct {
	time.Duration
}

// MarshalJSON renders the duration as a Go duration string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts any format ParseDuration understands, or a number of seconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var secs float64
	if err := json.Unmarshal(b, &secs); err == nil {
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// ParseDuration parses durations in the forms FFmpeg users write them:
// plain seconds ("12.5"), Go durations ("1m30s"), timecodes ("00:01:30.250")
// and ISO 8601 ("PT1M30S").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if m := timecodeRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		sec, _ := strconv.Atoi(m[3])
		d := time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(sec)*time.Second
		if m[4] != "" {
			frac, _ := strconv.ParseFloat("0."+m[4], 64)
			d += time.Duration(frac * float64(time.Second))
		}
		return d, nil
	}
	if strings.HasPrefix(s, "PT") && len(s) > 2 {
		var d time.Duration
		for _, m := range isoRe.FindAllStringSubmatch(s[2:], -1) {
			v, _ := strconv.ParseFloat(m[1], 64)
			switch m[2] {
			case "H":
				d += time.Duration(v * float64(time.Hour))
			case "M":
				d += time.Duration(v * float64(time.Minute))
			case "S":
				d += time.Duration(v * float64(time.Second))
			}
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// FormatSeconds renders d the way FFmpeg filter options expect time values:
// decimal seconds without trailing zeros.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
