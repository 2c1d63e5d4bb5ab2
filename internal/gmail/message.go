package gmail

import (
	"encoding/base64"
	"html"
	"regexp"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// Message is the readable part of a Gmail message.
type Message struct {
	ID       string
	ThreadID string
	Subject  string
	From     string
	Date     string
	Body     string
	Snippet  string
}

// FromAPI flattens an API message.
func FromAPI(m *gmail.Message) Message {
	out := Message{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Subject:  HeaderValue(m, "Subject"),
		From:     HeaderValue(m, "From"),
		Date:     HeaderValue(m, "Date"),
		Snippet:  html.UnescapeString(m.Snippet),
	}
	if text := partBody(m.Payload, "text/plain"); text != "" {
		out.Body = text
	} else if markup := partBody(m.Payload, "text/html"); markup != "" {
		out.Body = StripHTML(markup)
	} else {
		out.Body = out.Snippet
	}
	return out
}

// HeaderValue extracts a header value from a Gmail message. Header names
// are matched case-insensitively.
func HeaderValue(m *gmail.Message, header string) string {
	mpart := m.Payload
	if mpart == nil {
		return ""
	}
	for _, mph := range mpart.Headers {
		if strings.EqualFold(mph.Name, header) {
			return mph.Value
		}
	}
	return ""
}

// partBody returns the decoded body of the first part with mimeType.
func partBody(root *gmail.MessagePart, mimeType string) string {
	var body string
	walkParts(root, func(part *gmail.MessagePart) {
		if body != "" || part.Body == nil || part.Body.Data == "" {
			return
		}
		if strings.EqualFold(part.MimeType, mimeType) {
			if decoded, err := decodeBody(part.Body.Data); err == nil {
				body = decoded
			}
		}
	})
	return strings.TrimSpace(body)
}

// walkParts recursively walks through message parts
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}

// decodeBody decodes base64url body data (RFC 4648), falling back to the
// unpadded and standard alphabets.
func decodeBody(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		if decoded, err = base64.RawURLEncoding.DecodeString(data); err != nil {
			if decoded, err = base64.StdEncoding.DecodeString(data); err != nil {
				return "", err
			}
		}
	}
	return string(decoded), nil
}

var (
	blockTags   = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	breakTags   = regexp.MustCompile(`(?i)<(br|/p|/div|/li|/tr|/h[1-6])[^>]*>`)
	anyTag      = regexp.MustCompile(`<[^>]*>`)
	spaceRuns   = regexp.MustCompile(`[ \t\f\v]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// StripHTML reduces an HTML body to readable text.
func StripHTML(s string) string {
	s = blockTags.ReplaceAllString(s, "")
	s = breakTags.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRuns.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
