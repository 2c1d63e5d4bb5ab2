// Package icalendar encodes and decodes single calendar objects in the
// iCalendar (RFC 5545) text format used by CalDAV servers.
//
// Encoding is total: every Event produces a VCALENDAR wrapping exactly one
// VEVENT with CRLF line endings, escaped text values and lines folded at
// 75 octets.
//
// Decoding first tries the strict go-ical parser and falls back to a
// tolerant line tokenizer for objects that real servers emit but strict
// parsers reject (missing END lines, bare VEVENT blocks, unfolded multi-line
// descriptions). Only DTSTART is load-bearing: when it is missing or cannot
// be parsed, Decode returns ErrMalformedEvent. UID is carried through
// verbatim. Every other property is advisory and silently skipped when
// absent or malformed.
//
// # Usage
//
//	raw := icalendar.Encode(&icalendar.Event{
//	    UID:     uuid.NewString(),
//	    Summary: "Planning",
//	    Start:   start,
//	    End:     start.Add(time.Hour),
//	})
//
//	event, err := icalendar.DecodeIn(raw, time.Local)
//	if errors.Is(err, icalendar.ErrMalformedEvent) {
//	    // drop this object, keep going
//	}
package icalendar
