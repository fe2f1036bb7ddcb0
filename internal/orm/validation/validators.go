// Package validation normalizes raw column values.
//
// Validators never fail outright. Each one returns the normalized value and
// whether the input was usable, so callers can substitute a column default
// when it was not.
package validation

import (
	"encoding/json"
	"strconv"
	"strings"
)

// String coerces a scalar into its string form
func String(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case json.Number:
		return v.String(), true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case interface{ String() string }:
		return v.String(), true
	}

	if i, ok := toInt64(value); ok {
		return strconv.FormatInt(i, 10), true
	}
	return "", false
}

// Int coerces a value into an integer. Strings are read up to the first
// non-digit, so "12abc" yields 12. Negative values are rejected for unsigned
// columns.
func Int(value interface{}, unsigned bool) (int64, bool) {
	var (
		result int64
		ok     bool
	)

	switch v := value.(type) {
	case nil:
		return 0, false
	case bool:
		if v {
			result = 1
		}
		ok = true
	case float32:
		result, ok = int64(v), true
	case float64:
		result, ok = int64(v), true
	case string, []byte, json.Number:
		s, _ := String(v)
		result, ok = leadingInt(s)
	default:
		result, ok = toInt64(value)
	}

	if !ok {
		return 0, false
	}
	if unsigned && result < 0 {
		return 0, false
	}
	return result, true
}

// Float coerces a value into a float64
func Float(value interface{}, unsigned bool) (float64, bool) {
	s, ok := Numeric(value, -1, unsigned)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Bool coerces common truthy and falsy representations
func Bool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string, []byte:
		s, _ := String(v)
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "on":
			return true, true
		case "0", "false", "no", "off", "":
			return false, true
		}
		return false, false
	}

	if i, ok := toInt64(value); ok {
		return i != 0, true
	}
	return false, false
}

// leadingInt parses an optional sign followed by digits, ignoring the rest
func leadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}

	end := 0
	if s[0] == '-' || s[0] == '+' {
		end = 1
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}

	i, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Helper functions for type conversion

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}
