package icalendar

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	productID = "-//inboxcal//CalDAV Client//EN"

	dateLayout     = "20060102"
	utcLayout      = "20060102T150405Z"
	floatingLayout = "20060102T150405"

	// maxLineOctets is the longest content line allowed before folding.
	maxLineOctets = 75
)

var textEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`, "\r", "")

// EscapeText escapes a TEXT property value.
func EscapeText(v string) string {
	return textEscaper.Replace(v)
}

// Encode renders e as a VCALENDAR containing a single VEVENT.
// It never fails; missing optional fields are omitted.
func Encode(e *Event) string {
	return encodeAt(e, time.Now())
}

func encodeAt(e *Event, stamp time.Time) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(fold(s))
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:" + productID)
	line("CALSCALE:GREGORIAN")
	line("BEGIN:VEVENT")
	line("UID:" + e.UID)
	line("DTSTAMP:" + stamp.UTC().Format(utcLayout))

	end := e.End
	if end.IsZero() {
		end = e.Start
	}
	if e.AllDay {
		line("DTSTART;VALUE=DATE:" + e.Start.Format(dateLayout))
		line("DTEND;VALUE=DATE:" + end.Format(dateLayout))
	} else {
		line("DTSTART:" + e.Start.UTC().Format(utcLayout))
		line("DTEND:" + end.UTC().Format(utcLayout))
	}

	line("SUMMARY:" + EscapeText(e.Summary))
	if e.Description != "" {
		line("DESCRIPTION:" + EscapeText(e.Description))
	}
	if e.Location != "" {
		line("LOCATION:" + EscapeText(e.Location))
	}
	if e.Status != "" {
		line("STATUS:" + strings.ToUpper(e.Status))
	}
	if e.RecurrenceRule != "" {
		line("RRULE:" + strings.TrimPrefix(e.RecurrenceRule, "RRULE:"))
	}
	if len(e.ExceptionDates) > 0 {
		dates := make([]string, len(e.ExceptionDates))
		for i, t := range e.ExceptionDates {
			if e.AllDay {
				dates[i] = t.Format(dateLayout)
			} else {
				dates[i] = t.UTC().Format(utcLayout)
			}
		}
		prefix := "EXDATE:"
		if e.AllDay {
			prefix = "EXDATE;VALUE=DATE:"
		}
		line(prefix + strings.Join(dates, ","))
	}
	for _, a := range e.Attendees {
		if a.Email == "" {
			continue
		}
		prefix := "ATTENDEE"
		if a.Name != "" {
			prefix += ";CN=" + quoteParam(a.Name)
		}
		line(prefix + ":mailto:" + a.Email)
	}

	line("END:VEVENT")
	line("END:VCALENDAR")
	return b.String()
}

// quoteParam renders a parameter value, quoting it when it contains
// characters with meaning in a content line. DQUOTE is not representable
// and is dropped.
func quoteParam(v string) string {
	v = strings.ReplaceAll(v, `"`, "")
	v = strings.NewReplacer("\r", "", "\n", " ").Replace(v)
	if strings.ContainsAny(v, ";:,") {
		return `"` + v + `"`
	}
	return v
}

// fold splits a content line into chunks of at most maxLineOctets octets,
// each continuation starting with a single space, and terminates it with
// CRLF. Multi-byte characters are never split.
func fold(s string) string {
	if len(s) <= maxLineOctets {
		return s + "\r\n"
	}

	var b strings.Builder
	limit := maxLineOctets
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		b.WriteString(s[:cut])
		b.WriteString("\r\n ")
		s = s[cut:]
		// the leading space of a continuation counts toward its length
		limit = maxLineOctets - 1
	}
	b.WriteString(s)
	b.WriteString("\r\n")
	return b.String()
}
