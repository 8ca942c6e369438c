package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration renders a call duration in seconds as fixed-width HH:MM:SS.
// Negative values are treated as zero.
func Duration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// timestampLayouts are the string layouts Zoom uses across event payloads.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
}

// Timestamp converts a payload timestamp value into "2006-01-02 15:04:05" UTC.
// Zoom payloads carry timestamps inconsistently: epoch seconds, epoch
// milliseconds (as JSON numbers or strings), or ISO 8601 strings. Returns ""
// when the value cannot be interpreted.
func Timestamp(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return fromEpoch(int64(t))
	case int64:
		return fromEpoch(t)
	case int:
		return fromEpoch(int64(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return ""
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(n)
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC().Format("2006-01-02 15:04:05")
			}
		}
		return ""
	default:
		return ""
	}
}

// fromEpoch formats an epoch value, detecting millisecond precision.
func fromEpoch(n int64) string {
	if n <= 0 {
		return ""
	}
	// Epoch seconds fit in 10 digits until the year 2286.
	if n > 1e12 {
		n = n / 1000
	}
	return time.Unix(n, 0).UTC().Format("2006-01-02 15:04:05")
}
