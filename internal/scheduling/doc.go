// Package scheduling decides whether an email is about arranging a meeting
// and turns flagged emails into calendar events.
//
// The Detector is a deterministic keyword and time-shape classifier. It
// only reports that scheduling intent is present; it never extracts the
// actual date or time. The Orchestrator therefore never creates an event
// from prose alone: Preview returns a structured "needs external parsing"
// answer naming the inputs a caller must supply, and Schedule only runs
// with explicit start and end times.
package scheduling
