package icalendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"
)

// contentLine is one unfolded property of a VEVENT, with its raw
// (still escaped) value.
type contentLine struct {
	Name   string
	Params map[string]string
	Value  string
	// folded is set when Name was written in another letter case.
	folded bool
}

func (c contentLine) param(name string) string {
	return c.Params[name]
}

// properties maps upper-case property names to their lines in document order.
type properties map[string][]contentLine

func (p properties) first(name string) (contentLine, bool) {
	lines := p[name]
	if len(lines) == 0 {
		return contentLine{}, false
	}
	return lines[0], true
}

func (p properties) text(name string) string {
	line, ok := p.first(name)
	if !ok {
		return ""
	}
	return UnescapeText(line.Value)
}

// Decode parses a calendar object, interpreting floating times in the
// local time zone.
func Decode(raw string) (*Event, error) {
	return DecodeIn(raw, time.Local)
}

// DecodeIn parses a calendar object, interpreting floating times and
// all-day dates in loc.
func DecodeIn(raw string, loc *time.Location) (*Event, error) {
	if loc == nil {
		loc = time.Local
	}

	lines := unfold(raw)

	var props properties
	if wellFormed(lines) {
		props, _ = strictProperties(raw)
	}
	if props == nil {
		props = tolerantProperties(lines)
	}

	event, err := eventFromProperties(props, loc)
	if err != nil {
		return nil, err
	}
	event.Raw = raw
	return event, nil
}

// strictProperties decodes raw with go-ical and returns the properties of
// the master VEVENT.
func strictProperties(raw string) (properties, error) {
	cal, err := ical.NewDecoder(strings.NewReader(raw)).Decode()
	if err != nil {
		return nil, err
	}

	var master *ical.Component
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		if master == nil {
			master = comp
		}
		// overrides carry RECURRENCE-ID; prefer the series master
		if comp.Props.Get(ical.PropRecurrenceID) == nil {
			master = comp
			break
		}
	}
	if master == nil {
		return nil, fmt.Errorf("%w: no VEVENT component", ErrMalformedEvent)
	}

	props := make(properties, len(master.Props))
	for name, values := range master.Props {
		for _, prop := range values {
			line := contentLine{
				Name:   strings.ToUpper(name),
				Params: make(map[string]string, len(prop.Params)),
				Value:  prop.Value,
			}
			for param, vals := range prop.Params {
				if len(vals) > 0 {
					line.Params[strings.ToUpper(param)] = strings.Trim(vals[0], `"`)
				}
			}
			props[line.Name] = append(props[line.Name], line)
		}
	}
	return props, nil
}

var propertyName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// knownProperties are accepted as property names in any letter case.
// Other names must be upper case, so that prose such as "Note: ..." inside
// an unfolded description is not mistaken for a property.
var knownProperties = map[string]bool{
	"BEGIN": true, "END": true, "UID": true, "DTSTAMP": true, "DTSTART": true,
	"DTEND": true, "DURATION": true, "SUMMARY": true, "DESCRIPTION": true,
	"LOCATION": true, "STATUS": true, "RRULE": true, "RDATE": true,
	"EXDATE": true, "RECURRENCE-ID": true, "ATTENDEE": true, "ORGANIZER": true,
	"CREATED": true, "LAST-MODIFIED": true, "SEQUENCE": true, "TRANSP": true,
	"CLASS": true, "PRIORITY": true, "URL": true, "CATEGORIES": true,
	"GEO": true, "COMMENT": true, "CONTACT": true, "RELATED-TO": true,
	"RESOURCES": true, "ATTACH": true, "TZID": true,
}

var freeText = map[string]bool{
	"SUMMARY": true, "DESCRIPTION": true, "LOCATION": true, "COMMENT": true,
}

// wellFormed reports whether every logical line is a content line with
// an upper-case name. Anything else, such as raw newlines inside values,
// goes to the tolerant tokenizer.
func wellFormed(lines []string) bool {
	for _, l := range lines {
		if line, ok := parseContentLine(l); !ok || line.folded {
			return false
		}
	}
	return true
}

// tolerantProperties is a forgiving line tokenizer. It ignores everything
// outside the first VEVENT (or reads the whole input when there is no
// VEVENT marker), skips nested components such as VALARM, and treats lines
// that are not content lines as part of the previous free-text value.
// While a free-text value is open only an upper-case name starts a new
// property, so "Location: TBD" in a description stays prose.
func tolerantProperties(lines []string) properties {
	hasEvent := false
	for _, l := range lines {
		if strings.EqualFold(strings.TrimSpace(l), "BEGIN:VEVENT") {
			hasEvent = true
			break
		}
	}

	props := properties{}
	inEvent := !hasEvent
	seenEvent := false
	depth := 0
	var current *contentLine

	flush := func() {
		if current != nil {
			props[current.Name] = append(props[current.Name], *current)
			current = nil
		}
	}

	for _, l := range lines {
		upper := strings.ToUpper(strings.TrimSpace(l))

		switch {
		case upper == "BEGIN:VCALENDAR" || upper == "END:VCALENDAR":
			flush()
			continue
		case upper == "BEGIN:VEVENT":
			flush()
			if seenEvent {
				// the first VEVENT wins
				return props
			}
			inEvent = true
			continue
		case upper == "END:VEVENT":
			flush()
			inEvent = false
			seenEvent = true
			continue
		case strings.HasPrefix(upper, "BEGIN:"):
			flush()
			if inEvent {
				depth++
			}
			continue
		case strings.HasPrefix(upper, "END:"):
			flush()
			if depth > 0 {
				depth--
			}
			continue
		}
		if !inEvent || depth > 0 {
			continue
		}

		line, ok := parseContentLine(l)
		if !ok || (line.folded && current != nil && freeText[current.Name]) {
			if current != nil && freeText[current.Name] {
				current.Value += `\n` + l
			}
			continue
		}
		flush()
		current = &line
	}
	flush()
	return props
}

// unfold splits raw into logical lines, joining RFC 5545 folded
// continuations (lines starting with a space or tab).
func unfold(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var out []string
	for _, l := range strings.Split(raw, "\n") {
		if len(l) > 0 && (l[0] == ' ' || l[0] == '\t') && len(out) > 0 {
			out[len(out)-1] += l[1:]
			continue
		}
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// parseContentLine splits NAME;PARAM=V;PARAM="V":value. The value starts
// at the first colon outside a quoted parameter value.
func parseContentLine(l string) (contentLine, bool) {
	inQuote := false
	colon := -1
	for i := 0; i < len(l); i++ {
		switch l[i] {
		case '"':
			inQuote = !inQuote
		case ':':
			if !inQuote {
				colon = i
			}
		}
		if colon >= 0 {
			break
		}
	}
	if colon <= 0 {
		return contentLine{}, false
	}

	head, value := l[:colon], l[colon+1:]
	parts := splitParams(head)
	name := strings.TrimSpace(parts[0])
	if !propertyName.MatchString(name) {
		return contentLine{}, false
	}
	if upper := strings.ToUpper(name); upper != name {
		if !knownProperties[upper] {
			return contentLine{}, false
		}
	}

	line := contentLine{Name: strings.ToUpper(name), Params: map[string]string{}, Value: value}
	line.folded = line.Name != name
	for _, p := range parts[1:] {
		k, v, found := strings.Cut(p, "=")
		if !found {
			continue
		}
		line.Params[strings.ToUpper(strings.TrimSpace(k))] = strings.Trim(strings.TrimSpace(v), `"`)
	}
	return line, true
}

func splitParams(head string) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(head); i++ {
		switch head[i] {
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				parts = append(parts, head[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, head[start:])
}

// UnescapeText reverses EscapeText. Unknown escapes keep the escaped
// character.
func UnescapeText(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' || i == len(v)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch v[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

func eventFromProperties(props properties, loc *time.Location) (*Event, error) {
	startLine, ok := props.first("DTSTART")
	if !ok {
		return nil, fmt.Errorf("%w: missing DTSTART", ErrMalformedEvent)
	}
	start, allDay, err := parseDateTime(startLine, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: DTSTART: %v", ErrMalformedEvent, err)
	}

	event := &Event{
		UID:            firstValue(props, "UID"),
		Summary:        props.text("SUMMARY"),
		Description:    props.text("DESCRIPTION"),
		Location:       props.text("LOCATION"),
		Status:         strings.ToUpper(strings.TrimSpace(firstValue(props, "STATUS"))),
		RecurrenceRule: strings.TrimSpace(firstValue(props, "RRULE")),
		Start:          start,
		AllDay:         allDay,
	}

	event.End = start
	if endLine, ok := props.first("DTEND"); ok {
		if end, _, err := parseDateTime(endLine, loc); err == nil && !end.Before(start) {
			event.End = end
		}
	} else if durLine, ok := props.first("DURATION"); ok {
		if d, err := parseDuration(strings.TrimSpace(durLine.Value)); err == nil && d >= 0 {
			event.End = start.Add(d)
		}
	}

	for _, line := range props["EXDATE"] {
		for _, v := range strings.Split(line.Value, ",") {
			single := line
			single.Value = v
			if t, _, err := parseDateTime(single, loc); err == nil {
				event.ExceptionDates = append(event.ExceptionDates, t)
			}
		}
	}

	for _, line := range props["ATTENDEE"] {
		email := strings.TrimSpace(line.Value)
		if len(email) >= 7 && strings.EqualFold(email[:7], "mailto:") {
			email = email[7:]
		}
		if email == "" {
			continue
		}
		event.Attendees = append(event.Attendees, Attendee{
			Email: email,
			Name:  line.param("CN"),
		})
	}

	return event, nil
}

func firstValue(props properties, name string) string {
	line, _ := props.first(name)
	return line.Value
}

// parseDateTime interprets a DTSTART/DTEND style line. The boolean result
// reports a date-only value.
func parseDateTime(line contentLine, loc *time.Location) (time.Time, bool, error) {
	v := strings.TrimSpace(line.Value)
	if v == "" {
		return time.Time{}, false, fmt.Errorf("empty value")
	}

	valueType := strings.ToUpper(line.param("VALUE"))
	if valueType == "DATE" || (valueType != "DATE-TIME" && len(v) == len(dateLayout) && !strings.Contains(v, "T")) {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return time.Time{}, true, err
		}
		return t, true, nil
	}

	if strings.HasSuffix(v, "Z") {
		if t, err := time.Parse(utcLayout, v); err == nil {
			return t, false, nil
		}
	}

	zone := loc
	if tzid := line.param("TZID"); tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			zone = l
		}
	}

	for _, layout := range []string{floatingLayout, time.RFC3339, "2006-01-02T15:04:05", "20060102T1504"} {
		if t, err := time.ParseInLocation(layout, v, zone); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date-time %q", v)
}

var durationPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseDuration parses an RFC 5545 DURATION value such as PT1H30M or -P1D.
func parseDuration(v string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.ToUpper(v))
	if m == nil || v == "P" || strings.HasSuffix(strings.ToUpper(v), "T") {
		return 0, fmt.Errorf("invalid duration %q", v)
	}

	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, err
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}
