package calendar

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 32 << 20

	calDAVTimeLayout = "20060102T150405Z"
)

const propfindPrincipal = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:current-user-principal/>
  </d:prop>
</d:propfind>`

const propfindHomeSet = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <c:calendar-home-set/>
  </d:prop>
</d:propfind>`

const propfindCalendars = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav" xmlns:cs="http://calendarserver.org/ns/">
  <d:prop>
    <d:resourcetype/>
    <d:displayname/>
    <cs:getctag/>
    <c:calendar-description/>
    <c:supported-calendar-component-set/>
  </d:prop>
</d:propfind>`

func calendarQuery(start, end time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<c:calendar-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:getetag/>
    <c:calendar-data/>
  </d:prop>
  <c:filter>
    <c:comp-filter name="VCALENDAR">
      <c:comp-filter name="VEVENT">
        <c:time-range start="%s" end="%s"/>
      </c:comp-filter>
    </c:comp-filter>
  </c:filter>
</c:calendar-query>`, start.UTC().Format(calDAVTimeLayout), end.UTC().Format(calDAVTimeLayout))
}

func uidQuery(uid string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(uid))
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<c:calendar-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:getetag/>
    <c:calendar-data/>
  </d:prop>
  <c:filter>
    <c:comp-filter name="VCALENDAR">
      <c:comp-filter name="VEVENT">
        <c:prop-filter name="UID">
          <c:text-match collation="i;octet">%s</c:text-match>
        </c:prop-filter>
      </c:comp-filter>
    </c:comp-filter>
  </c:filter>
</c:calendar-query>`, escaped.String())
}

func calendarMultiget(hrefs []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<c:calendar-multiget xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:getetag/>
    <c:calendar-data/>
  </d:prop>
`)
	for _, href := range hrefs {
		b.WriteString("  <d:href>")
		_ = xml.EscapeText(&b, []byte(href))
		b.WriteString("</d:href>\n")
	}
	b.WriteString("</c:calendar-multiget>")
	return b.String()
}

type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []davResponse `xml:"DAV: response"`
}

type davResponse struct {
	Href      string     `xml:"DAV: href"`
	Status    string     `xml:"DAV: status"`
	Propstats []propstat `xml:"DAV: propstat"`
}

type propstat struct {
	Prop   davProp `xml:"DAV: prop"`
	Status string  `xml:"DAV: status"`
}

type davProp struct {
	CurrentUserPrincipal *hrefSet      `xml:"DAV: current-user-principal"`
	CalendarHomeSet      *hrefSet      `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set"`
	ResourceType         *resourceType `xml:"DAV: resourcetype"`
	DisplayName          string        `xml:"DAV: displayname"`
	CTag                 string        `xml:"http://calendarserver.org/ns/ getctag"`
	CalendarDescription  string        `xml:"urn:ietf:params:xml:ns:caldav calendar-description"`
	SupportedComponents  *componentSet `xml:"urn:ietf:params:xml:ns:caldav supported-calendar-component-set"`
	ETag                 string        `xml:"DAV: getetag"`
	CalendarData         string        `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
}

type hrefSet struct {
	Hrefs []string `xml:"DAV: href"`
}

func (h *hrefSet) first() string {
	if h == nil {
		return ""
	}
	for _, href := range h.Hrefs {
		if s := strings.TrimSpace(href); s != "" {
			return s
		}
	}
	return ""
}

type resourceType struct {
	Collection *struct{} `xml:"DAV: collection"`
	Calendar   *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar"`
}

type componentSet struct {
	Comps []struct {
		Name string `xml:"name,attr"`
	} `xml:"urn:ietf:params:xml:ns:caldav comp"`
}

func (c *componentSet) supports(name string) bool {
	// servers that omit the property accept every component
	if c == nil || len(c.Comps) == 0 {
		return true
	}
	for _, comp := range c.Comps {
		if strings.EqualFold(comp.Name, name) {
			return true
		}
	}
	return false
}

// okProp merges the props of every successful propstat of r.
func (r davResponse) okProp() davProp {
	var merged davProp
	for _, ps := range r.Propstats {
		if ps.Status != "" && !strings.Contains(ps.Status, " 200") {
			continue
		}
		p := ps.Prop
		if p.CurrentUserPrincipal != nil {
			merged.CurrentUserPrincipal = p.CurrentUserPrincipal
		}
		if p.CalendarHomeSet != nil {
			merged.CalendarHomeSet = p.CalendarHomeSet
		}
		if p.ResourceType != nil {
			merged.ResourceType = p.ResourceType
		}
		if p.SupportedComponents != nil {
			merged.SupportedComponents = p.SupportedComponents
		}
		if p.DisplayName != "" {
			merged.DisplayName = p.DisplayName
		}
		if p.CTag != "" {
			merged.CTag = p.CTag
		}
		if p.CalendarDescription != "" {
			merged.CalendarDescription = p.CalendarDescription
		}
		if p.ETag != "" {
			merged.ETag = p.ETag
		}
		if p.CalendarData != "" {
			merged.CalendarData = p.CalendarData
		}
	}
	return merged
}

// davRequest describes one HTTP exchange with the server.
type davRequest struct {
	Method  string
	URL     string
	Depth   string
	Body    string
	Type    string
	Headers map[string]string
}

// davReply is a fully read response.
type davReply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final request URL after redirects; hrefs resolve against it.
	URL *url.URL
}

func (r *davReply) success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// do sends req with basic auth and reads the whole body. Only network
// failures are returned as errors; status handling is left to the caller.
func (s *Session) do(ctx context.Context, req davRequest) (*davReply, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}
	httpReq.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	httpReq.Header.Set("User-Agent", userAgent)
	if req.Body != "" {
		contentType := req.Type
		if contentType == "" {
			contentType = "application/xml; charset=utf-8"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Depth != "" {
		httpReq.Header.Set("Depth", req.Depth)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, StatusCode: resp.StatusCode, Err: err}
	}

	final := httpReq.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	return &davReply{StatusCode: resp.StatusCode, Header: resp.Header, Body: data, URL: final}, nil
}

// statusError converts an unexpected reply into a typed error.
func statusError(method, target string, reply *davReply) error {
	te := &TransportError{
		Method:     method,
		URL:        target,
		StatusCode: reply.StatusCode,
		Body:       string(reply.Body),
	}
	switch reply.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		te.Err = ErrAuthenticationFailed
	case http.StatusPreconditionFailed:
		te.Err = ErrConflictingWrite
	}
	return te
}

// multistatus runs a PROPFIND or REPORT and parses the 207 reply.
func (s *Session) multistatus(ctx context.Context, req davRequest) (*multistatus, *url.URL, error) {
	reply, err := s.do(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if reply.StatusCode != http.StatusMultiStatus && reply.StatusCode != http.StatusOK {
		return nil, nil, statusError(req.Method, req.URL, reply)
	}

	var ms multistatus
	if err := xml.Unmarshal(reply.Body, &ms); err != nil {
		return nil, nil, &TransportError{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: reply.StatusCode,
			Err:        fmt.Errorf("invalid multistatus body: %w", err),
		}
	}
	return &ms, reply.URL, nil
}

// resolveHref turns an href from a response into an absolute URL.
func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// sameResource compares two URLs ignoring a trailing slash and percent
// encoding differences.
func sameResource(a, b string) bool {
	normalize := func(s string) string {
		if u, err := url.Parse(s); err == nil {
			s = u.Scheme + "://" + u.Host + u.Path
		}
		return strings.TrimSuffix(s, "/")
	}
	return normalize(a) == normalize(b)
}
