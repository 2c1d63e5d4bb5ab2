package scheduling

import (
	"regexp"
	"strings"
)

// Confidence is the strength of a detection.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Result is the verdict for one email.
type Result struct {
	HasIntent  bool       `json:"has_intent"`
	Confidence Confidence `json:"confidence"`
	// Keywords are the matched scheduling terms, in list order.
	Keywords []string `json:"keywords"`
	// TimePatterns holds the first token matched by each time shape.
	TimePatterns   []string `json:"time_patterns"`
	HasTimePattern bool     `json:"has_time_pattern"`
}

// No term is a substring of another so that one phrase counts once.
var defaultKeywords = []string{
	"meeting",
	"appointment",
	"call",
	"schedule",
	"availability",
	"available",
	"calendar",
	"invite",
	"conference",
	"let's meet",
	"catch up",
	"sync up",
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
	"sunday",
	"tomorrow",
	"next week",
	"morning",
	"afternoon",
	"evening",
	"zoom",
	"google meet",
	"microsoft teams",
	"webex",
	"skype",
}

const months = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

// Each shape counts at most once per text.
var defaultTimePatterns = []*regexp.Regexp{
	// 3:30pm, 10:00 am
	regexp.MustCompile(`\b\d{1,2}:\d{2}\s*(?:am|pm)\b`),
	// 3pm, 11 am; the minutes of "10:30 am" do not count again
	regexp.MustCompile(`(?:^|[^:\d])(\d{1,2}\s*(?:am|pm))\b`),
	// march 3, dec. 12th
	regexp.MustCompile(`\b` + months + `\.?\s+\d{1,2}(?:st|nd|rd|th)?\b`),
	// 3 march, 12th of december
	regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + months + `\b`),
	// 3/14, 03/14/2025
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`),
}

// Detector classifies email text. The zero value is not usable; use
// NewDetector.
type Detector struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewDetector returns a Detector with the built-in keyword list and time
// shapes.
func NewDetector() *Detector {
	return &Detector{keywords: defaultKeywords, patterns: defaultTimePatterns}
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// Detect scores subject and body. The outcome depends only on its input.
func (d *Detector) Detect(subject, body string) Result {
	text := strings.ToLower(apostrophes.Replace(subject + "\n" + body))

	res := Result{Keywords: []string{}, TimePatterns: []string{}}
	for _, kw := range d.keywords {
		if strings.Contains(text, kw) {
			res.Keywords = append(res.Keywords, kw)
		}
	}
	for _, re := range d.patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		token := m[0]
		if len(m) > 1 && m[1] != "" {
			token = m[1]
		}
		res.TimePatterns = append(res.TimePatterns, strings.TrimSpace(token))
	}

	kw, tp := len(res.Keywords), len(res.TimePatterns)
	res.HasTimePattern = tp > 0
	res.HasIntent = kw >= 2 || (kw >= 1 && tp >= 1)
	switch {
	case kw >= 3 && tp >= 1:
		res.Confidence = ConfidenceHigh
	case kw >= 2 || tp >= 1:
		res.Confidence = ConfidenceMedium
	default:
		res.Confidence = ConfidenceLow
	}
	return res
}
