package common

import (
	"fmt"
	"strings"
	"time"
)

// StringArg returns a trimmed string argument, empty when absent.
func StringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return strings.TrimSpace(v)
}

// OptionalString returns a pointer to the argument when it is present,
// including when it is the empty string.
func OptionalString(args map[string]interface{}, name string) *string {
	v, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &v
}

// BoolArg returns a boolean argument, false when absent.
func BoolArg(args map[string]interface{}, name string) bool {
	v, _ := args[name].(bool)
	return v
}

// IntArg returns a numeric argument as int. JSON numbers arrive as float64.
func IntArg(args map[string]interface{}, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// Date-only layout accepted for all-day arguments.
const DateLayout = "2006-01-02"

// ParseTime parses an RFC 3339 timestamp, a timestamp without zone
// interpreted in loc, or a date at midnight in loc.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("time is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", DateLayout} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC3339 (2025-06-02T15:00:00Z) or YYYY-MM-DD", value)
}
