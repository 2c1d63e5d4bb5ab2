// Package caldavtest provides an in-memory CalDAV server for tests.
//
// It covers the subset of RFC 4791 that the calendar session uses:
// principal and home-set discovery, calendar listing, calendar-query and
// calendar-multiget reports, and conditional GET, PUT and DELETE.
package caldavtest

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teemow/inboxcal/internal/icalendar"
)

// Credentials accepted by the server, and the calendar home it reports.
const (
	User     = "jane@example.com"
	Password = "app-specific-secret"
	HomePath = "/calendars/jane/"
)

const timeLayout = "20060102T150405Z"

// Object is a stored calendar resource.
type Object struct {
	Data string
	ETag string
}

// Calendar is a calendar collection on the server.
type Calendar struct {
	name       string
	components []string
	objects    map[string]*Object
	order      []string
	// Fail makes every REPORT on the calendar return 500.
	Fail bool
	// OmitData reports hrefs without calendar-data so clients must multiget.
	OmitData bool
}

// Server is an in-memory CalDAV server.
type Server struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	calendars map[string]*Calendar
	calOrder  []string
	etagSeq   int
	requests  []*http.Request
}

// New starts a server that is closed when the test ends.
func New(t *testing.T) *Server {
	t.Helper()
	f := &Server{t: t, calendars: map[string]*Calendar{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

// URL is the discovery entry point.
func (f *Server) URL() string {
	return f.srv.URL + "/"
}

// Client returns an HTTP client that trusts the server.
func (f *Server) Client() *http.Client {
	return f.srv.Client()
}

// Close shuts the server down early, e.g. to simulate an outage.
func (f *Server) Close() {
	f.srv.Close()
}

// BaseURL is the scheme and host of the server without a trailing slash.
func (f *Server) BaseURL() string {
	return f.srv.URL
}

// CalendarID returns the absolute id a client will discover for slug.
func (f *Server) CalendarID(slug string) string {
	return f.srv.URL + HomePath + slug + "/"
}

// AddCalendar creates a collection supporting components, VEVENT by default.
func (f *Server) AddCalendar(slug, name string, components ...string) *Calendar {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(components) == 0 {
		components = []string{"VEVENT"}
	}
	c := &Calendar{name: name, components: components, objects: map[string]*Object{}}
	p := HomePath + slug + "/"
	f.calendars[p] = c
	f.calOrder = append(f.calOrder, p)
	return c
}

// Put stores data as object in the calendar slug and returns its ETag.
func (f *Server) Put(slug, object, data string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.calendars[HomePath+slug+"/"]
	return f.store(c, object, data)
}

func (f *Server) store(c *Calendar, object, data string) string {
	f.etagSeq++
	etag := fmt.Sprintf(`"etag-%d"`, f.etagSeq)
	if _, ok := c.objects[object]; !ok {
		c.order = append(c.order, object)
	}
	c.objects[object] = &Object{Data: data, ETag: etag}
	return etag
}

// Object returns a copy of a stored object, nil when absent.
func (f *Server) Object(slug, object string) *Object {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.calendars[HomePath+slug+"/"]
	if c == nil {
		return nil
	}
	obj := c.objects[object]
	if obj == nil {
		return nil
	}
	cp := *obj
	return &cp
}

// LastRequest returns the most recent request with method.
func (f *Server) LastRequest(method string) *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Method == method {
			return f.requests[i]
		}
	}
	return nil
}

// Count returns how many requests used method.
func (f *Server) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (f *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Clone(r.Context()))

	user, pass, ok := r.BasicAuth()
	if !ok || user != User || pass != Password {
		w.Header().Set("WWW-Authenticate", `Basic realm="fake"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case "PROPFIND":
		f.propfind(w, r)
	case "REPORT":
		f.report(w, r, string(body))
	case http.MethodGet:
		f.get(w, r)
	case http.MethodPut:
		f.putObject(w, r, string(body))
	case http.MethodDelete:
		f.delete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (f *Server) propfind(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	switch r.URL.Path {
	case "/":
		b.WriteString(`<d:response><d:href>/</d:href><d:propstat><d:prop>
<d:current-user-principal><d:href>/principals/jane/</d:href></d:current-user-principal>
</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`)
	case "/principals/jane/":
		b.WriteString(`<d:response><d:href>/principals/jane/</d:href><d:propstat><d:prop>
<c:calendar-home-set><d:href>` + HomePath + `</d:href></c:calendar-home-set>
</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`)
	case HomePath:
		b.WriteString(`<d:response><d:href>` + HomePath + `</d:href><d:propstat><d:prop>
<d:resourcetype><d:collection/></d:resourcetype>
</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`)
		for _, p := range f.calOrder {
			c := f.calendars[p]
			var comps strings.Builder
			for _, name := range c.components {
				fmt.Fprintf(&comps, `<c:comp name="%s"/>`, name)
			}
			fmt.Fprintf(&b, `<d:response><d:href>%s</d:href><d:propstat><d:prop>
<d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
<d:displayname>%s</d:displayname>
<cs:getctag>ctag-%d</cs:getctag>
<c:supported-calendar-component-set>%s</c:supported-calendar-component-set>
</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat>
<d:propstat><d:prop><c:calendar-description/></d:prop><d:status>HTTP/1.1 404 Not Found</d:status></d:propstat>
</d:response>`, p, html.EscapeString(c.name), len(c.objects), comps.String())
		}
	default:
		http.NotFound(w, r)
		return
	}
	writeMultistatus(w, b.String())
}

var (
	timeRangeRe = regexp.MustCompile(`time-range start="([0-9TZ]+)" end="([0-9TZ]+)"`)
	uidMatchRe  = regexp.MustCompile(`<c:text-match[^>]*>([^<]*)</c:text-match>`)
	hrefRe      = regexp.MustCompile(`<d:href>([^<]*)</d:href>`)
)

func (f *Server) report(w http.ResponseWriter, r *http.Request, body string) {
	c := f.calendars[r.URL.Path]
	if c == nil {
		http.NotFound(w, r)
		return
	}
	if c.Fail {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
		return
	}

	var names []string
	withData := !c.OmitData
	switch {
	case strings.Contains(body, "calendar-multiget"):
		withData = true
		for _, m := range hrefRe.FindAllStringSubmatch(body, -1) {
			names = append(names, strings.TrimPrefix(html.UnescapeString(m[1]), r.URL.Path))
		}
	case strings.Contains(body, `prop-filter name="UID"`):
		uid := ""
		if m := uidMatchRe.FindStringSubmatch(body); m != nil {
			uid = html.UnescapeString(m[1])
		}
		for _, name := range c.order {
			if ev, err := icalendar.Decode(c.objects[name].Data); err == nil && ev.UID == uid {
				names = append(names, name)
			}
		}
	default:
		start, end := time.Time{}, time.Time{}
		if m := timeRangeRe.FindStringSubmatch(body); m != nil {
			start, _ = time.Parse(timeLayout, m[1])
			end, _ = time.Parse(timeLayout, m[2])
		}
		for _, name := range c.order {
			ev, err := icalendar.DecodeIn(c.objects[name].Data, time.UTC)
			if err != nil || start.IsZero() || (ev.Start.Before(end) && !ev.End.Before(start)) {
				// Undecodable objects are returned as-is, like a real
				// server that stores whatever it was given.
				names = append(names, name)
			}
		}
	}

	var b strings.Builder
	for _, name := range names {
		obj := c.objects[name]
		if obj == nil {
			continue
		}
		data := ""
		if withData {
			data = "<c:calendar-data>" + html.EscapeString(obj.Data) + "</c:calendar-data>"
		}
		fmt.Fprintf(&b, `<d:response><d:href>%s%s</d:href><d:propstat><d:prop>
<d:getetag>%s</d:getetag>%s
</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`,
			r.URL.Path, name, html.EscapeString(obj.ETag), data)
	}
	writeMultistatus(w, b.String())
}

func (f *Server) split(path string) (*Calendar, string) {
	i := strings.LastIndex(path, "/")
	return f.calendars[path[:i+1]], path[i+1:]
}

func (f *Server) get(w http.ResponseWriter, r *http.Request) {
	c, name := f.split(r.URL.Path)
	if c == nil || c.objects[name] == nil {
		http.NotFound(w, r)
		return
	}
	obj := c.objects[name]
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("ETag", obj.ETag)
	_, _ = io.WriteString(w, obj.Data)
}

func (f *Server) putObject(w http.ResponseWriter, r *http.Request, body string) {
	c, name := f.split(r.URL.Path)
	if c == nil {
		http.NotFound(w, r)
		return
	}
	existing := c.objects[name]
	if r.Header.Get("If-None-Match") == "*" && existing != nil {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	if match := r.Header.Get("If-Match"); match != "" && (existing == nil || existing.ETag != match) {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	etag := f.store(c, name, body)
	w.Header().Set("ETag", etag)
	if existing == nil {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *Server) delete(w http.ResponseWriter, r *http.Request) {
	c, name := f.split(r.URL.Path)
	if c == nil || c.objects[name] == nil {
		http.NotFound(w, r)
		return
	}
	if match := r.Header.Get("If-Match"); match != "" && c.objects[name].ETag != match {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	delete(c.objects, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeMultistatus(w http.ResponseWriter, inner string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = io.WriteString(w, xml.Header+`<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav" xmlns:cs="http://calendarserver.org/ns/">`+inner+`</d:multistatus>`)
}

// Event builds a minimal calendar object with UTC times.
func Event(uid, summary string, start, end time.Time) string {
	return "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\nBEGIN:VEVENT\r\n" +
		"UID:" + uid + "\r\n" +
		"DTSTAMP:20250101T000000Z\r\n" +
		"DTSTART:" + start.UTC().Format(timeLayout) + "\r\n" +
		"DTEND:" + end.UTC().Format(timeLayout) + "\r\n" +
		"SUMMARY:" + summary + "\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"
}
