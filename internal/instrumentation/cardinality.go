package instrumentation

import (
	"net/url"
	"strings"
)

// Operation names used as metric labels and span names.
const (
	OperationLogin    = "login"
	OperationDiscover = "discover"
	OperationList     = "list"
	OperationGet      = "get"
	OperationCreate   = "create"
	OperationUpdate   = "update"
	OperationDelete   = "delete"
	OperationDetect   = "detect"
	OperationCheck    = "check"
)

// CalendarLabel reduces a calendar collection URL to its last path segment,
// which is stable and low-cardinality ("home", "work", a UUID per calendar
// at most). Hosts and user paths never reach the metrics backend.
//
// Example:
//
//	CalendarLabel("https://dav.example.com/cal/jane/work/")  // "work"
//	CalendarLabel("")                                        // "all"
func CalendarLabel(calendarID string) string {
	if calendarID == "" {
		return "all"
	}
	path := calendarID
	if u, err := url.Parse(calendarID); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return "unknown"
	}
	return path
}
