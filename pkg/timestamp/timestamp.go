// Package timestamp normalizes the many timestamp shapes that arrive on
// ingested items into int64 Unix milliseconds (UTC). Zero means "not
// set": extracted properties without a usable timestamp parse to 0 and
// are excluded from time-ordered processing.
package timestamp

import (
	"strconv"
	"time"
)

// layouts accepted for string timestamps, tried in order.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds. Zero times map
// to 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time. 0 maps to the zero
// time.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Format renders a timestamp as RFC3339 for display. 0 renders empty.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// Parse converts a property value to Unix milliseconds. It accepts
// time.Time, numbers (seconds or milliseconds since epoch, split at
// 1e12), and strings in the accepted layouts or numeric form. Returns 0
// for anything it cannot interpret.
func Parse(input any) int64 {
	switch v := input.(type) {
	case nil:
		return 0

	case time.Time:
		return ToUnixMs(v)

	case *time.Time:
		if v == nil {
			return 0
		}
		return ToUnixMs(*v)

	case int64:
		return fromNumber(float64(v))

	case int:
		return fromNumber(float64(v))

	case int32:
		return fromNumber(float64(v))

	case float64:
		return fromNumber(v)

	case string:
		if v == "" {
			return 0
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v); err == nil {
				return ToUnixMs(t)
			}
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return fromNumber(f)
		}
		return 0

	default:
		return 0
	}
}

// fromNumber treats values above 1e12 as milliseconds and everything
// else as seconds.
func fromNumber(v float64) int64 {
	if v == 0 {
		return 0
	}
	if v > 1e12 {
		return int64(v)
	}
	return int64(v * 1000)
}

// Between returns the duration from start to end. 0 when either side is
// unset.
func Between(start, end int64) time.Duration {
	if start == 0 || end == 0 {
		return 0
	}
	return time.UnixMilli(end).Sub(time.UnixMilli(start))
}

// IsZero reports whether a timestamp is unset.
func IsZero(ms int64) bool {
	return ms == 0
}
