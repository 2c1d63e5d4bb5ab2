package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/inboxcal/internal/icalendar"
	"github.com/teemow/inboxcal/internal/instrumentation"
	"github.com/teemow/inboxcal/internal/logging"
)

const (
	userAgent           = "inboxcal/1.0 (CalDAV)"
	defaultTimeout      = 30 * time.Second
	defaultUpcomingDays = 7
	maxRedirects        = 10
)

// Config configures a Session.
type Config struct {
	// BaseURL is the CalDAV endpoint discovery starts from.
	BaseURL  string
	Username string
	// Password is an application-specific password.
	Password string

	// HTTPClient overrides the default instrumented client.
	HTTPClient *http.Client
	Timeout    time.Duration

	// Location interprets floating times and all-day dates. Defaults to time.Local.
	Location *time.Location

	Logger  logging.Logger
	Metrics *instrumentation.Metrics

	// Now is used for today/upcoming windows. Defaults to time.Now.
	Now func() time.Time
}

// Session is a CalDAV session for one account. Reads are safe to run
// concurrently once Login has succeeded. Login itself is serialized and
// swaps the calendar set atomically.
type Session struct {
	cfg     Config
	client  *http.Client
	logger  logging.Logger
	metrics *instrumentation.Metrics
	loc     *time.Location
	now     func() time.Time

	loginMu sync.Mutex

	mu        sync.RWMutex
	state     State
	home      string
	calendars []Calendar
}

// NewSession validates cfg and returns an uninitialized session.
// It returns ErrFeatureDisabled when credentials are missing.
func NewSession(cfg Config) (*Session, error) {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, ErrFeatureDisabled
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid CalDAV URL %q", logging.SanitizeURL(cfg.BaseURL))
	}
	if u.User != nil {
		return nil, fmt.Errorf("CalDAV URL must not embed credentials")
	}

	s := &Session{
		cfg:     cfg,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		loc:     cfg.Location,
		now:     cfg.Now,
	}
	if s.client == nil {
		s.client = newHTTPClient(cfg)
	}
	if s.logger == nil {
		s.logger = logging.DefaultLogger()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func newHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		// Providers such as iCloud redirect to a per-account partition
		// host; net/http drops Authorization on cross-host redirects.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "https" && via[0].URL.Scheme == "https" {
				return errors.New("refusing redirect from https to http")
			}
			req.SetBasicAuth(cfg.Username, cfg.Password)
			return nil
		},
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// observe opens a span for one CalDAV operation and returns a func that
// records its outcome.
func (s *Session) observe(ctx context.Context, operation, calendarID string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := instrumentation.StartCalDAVSpan(ctx, operation, calendarID)
	return ctx, func(err error) {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		s.metrics.RecordCalDAVOperation(ctx, operation, calendarID, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}
}

// Login authenticates and discovers calendars. Calling it again re-runs
// discovery and replaces the cached calendar set. A failed re-login keeps
// the previous calendars.
func (s *Session) Login(ctx context.Context) (err error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	ctx, done := s.observe(ctx, instrumentation.OperationLogin, "")
	defer func() { done(err) }()

	s.mu.Lock()
	prev := s.state
	if prev != StateReady {
		s.state = StateLoggingIn
	}
	s.mu.Unlock()

	home, cals, err := s.discover(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if prev != StateReady {
			s.state = StateUninitialized
		}
		s.logger.Warn("caldav login failed",
			logging.Calendar(s.cfg.BaseURL),
			logging.UserHash(s.cfg.Username),
			logging.Err(err))
		return err
	}
	s.home = home
	s.calendars = cals
	s.state = StateReady
	s.logger.Info("caldav login succeeded",
		logging.UserHash(s.cfg.Username),
		"calendars", len(cals))
	return nil
}

// DiscoverCalendars refreshes the calendar set from the calendar home
// found at Login.
func (s *Session) DiscoverCalendars(ctx context.Context) (cals []Calendar, err error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	s.mu.RLock()
	state, home := s.state, s.home
	s.mu.RUnlock()
	if state != StateReady {
		return nil, ErrNotInitialized
	}

	ctx, done := s.observe(ctx, instrumentation.OperationDiscover, "")
	defer func() { done(err) }()

	cals, err = s.listCollections(ctx, home)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calendars = cals
	s.mu.Unlock()
	return slices.Clone(cals), nil
}

// Calendars returns the calendars found by the last discovery.
func (s *Session) Calendars() ([]Calendar, error) {
	return s.snapshot()
}

func (s *Session) snapshot() ([]Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady {
		return nil, ErrNotInitialized
	}
	return slices.Clone(s.calendars), nil
}

// discover walks principal, calendar home and collections.
func (s *Session) discover(ctx context.Context) (string, []Calendar, error) {
	ms, final, err := s.multistatus(ctx, davRequest{
		Method: "PROPFIND", URL: s.cfg.BaseURL, Depth: "0", Body: propfindPrincipal,
	})
	if err != nil {
		return "", nil, err
	}
	principal := ""
	for _, r := range ms.Responses {
		if href := r.okProp().CurrentUserPrincipal.first(); href != "" {
			principal = resolveHref(final, href)
			break
		}
	}
	if principal == "" {
		// Some servers expose the home set on the endpoint itself.
		principal = final.String()
	}

	ms, final, err = s.multistatus(ctx, davRequest{
		Method: "PROPFIND", URL: principal, Depth: "0", Body: propfindHomeSet,
	})
	if err != nil {
		return "", nil, err
	}
	home := ""
	for _, r := range ms.Responses {
		if href := r.okProp().CalendarHomeSet.first(); href != "" {
			home = resolveHref(final, href)
			break
		}
	}
	if home == "" {
		return "", nil, &TransportError{
			Method: "PROPFIND",
			URL:    logging.SanitizeURL(principal),
			Err:    errors.New("server did not report a calendar-home-set"),
		}
	}

	cals, err := s.listCollections(ctx, home)
	if err != nil {
		return "", nil, err
	}
	return home, cals, nil
}

// listCollections returns the event calendars directly under home, in
// server order.
func (s *Session) listCollections(ctx context.Context, home string) ([]Calendar, error) {
	ms, final, err := s.multistatus(ctx, davRequest{
		Method: "PROPFIND", URL: home, Depth: "1", Body: propfindCalendars,
	})
	if err != nil {
		return nil, err
	}

	var cals []Calendar
	for _, r := range ms.Responses {
		p := r.okProp()
		if p.ResourceType == nil || p.ResourceType.Calendar == nil {
			continue
		}
		if !p.SupportedComponents.supports("VEVENT") {
			continue
		}
		id := resolveHref(final, r.Href)
		if !strings.HasSuffix(id, "/") {
			id += "/"
		}
		name := strings.TrimSpace(p.DisplayName)
		if name == "" {
			if u, err := url.Parse(id); err == nil {
				name = path.Base(strings.TrimSuffix(u.Path, "/"))
			}
		}
		cals = append(cals, Calendar{
			ID:          id,
			Name:        name,
			CTag:        strings.TrimSpace(p.CTag),
			Description: strings.TrimSpace(p.CalendarDescription),
		})
	}
	return cals, nil
}

// resolveCalendar finds the calendar for id: exact match first, then
// substring containment in either direction, then display name.
// Substring matching can pick an unrelated calendar whose id contains
// the request; ambiguous matches are logged.
func (s *Session) resolveCalendar(cals []Calendar, id string) (Calendar, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		for _, c := range cals {
			if c.ID == id || sameResource(c.ID, id) {
				return c, nil
			}
		}

		var matches []Calendar
		for _, c := range cals {
			if strings.Contains(c.ID, id) || strings.Contains(id, c.ID) {
				matches = append(matches, c)
			}
		}
		if len(matches) > 0 {
			if len(matches) > 1 {
				ids := make([]string, len(matches))
				for i, m := range matches {
					ids[i] = m.ID
				}
				s.logger.Warn("calendar id matches several calendars, using the first",
					"requested", id, "matches", strings.Join(ids, ", "))
			}
			return matches[0], nil
		}

		for _, c := range cals {
			if strings.EqualFold(c.Name, id) {
				return c, nil
			}
		}
	}

	known := make([]string, len(cals))
	for i, c := range cals {
		known[i] = c.ID
	}
	list := strings.Join(known, ", ")
	if list == "" {
		list = "none"
	}
	return Calendar{}, fmt.Errorf("%w: %q (known calendars: %s)", ErrCalendarNotFound, id, list)
}

// ListEvents returns the events overlapping [start, end) sorted by start.
// An empty calendarID queries every calendar concurrently; calendars that
// fail are logged and left out of the result.
func (s *Session) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]icalendar.Event, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid time range: end %s is before start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	cals, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	if calendarID != "" {
		cal, err := s.resolveCalendar(cals, calendarID)
		if err != nil {
			return nil, err
		}
		events, err := s.fetchRange(ctx, cal, start, end)
		if err != nil {
			return nil, err
		}
		sortByStart(events)
		return events, nil
	}

	// Results are indexed by calendar so the merge does not depend on
	// completion order.
	results := make([][]icalendar.Event, len(cals))
	var wg sync.WaitGroup
	for i, cal := range cals {
		wg.Go(func() {
			events, err := s.fetchRange(ctx, cal, start, end)
			if err != nil {
				s.logger.Warn("skipping calendar after fetch failure",
					logging.Calendar(cal.ID), logging.Err(err))
				s.metrics.RecordCalendarFetchFailure(ctx, cal.ID)
				return
			}
			results[i] = events
		})
	}
	wg.Wait()

	var merged []icalendar.Event
	for _, events := range results {
		merged = append(merged, events...)
	}
	sortByStart(merged)
	return merged, nil
}

// sortByStart orders events by start; ties keep calendar order, then
// server order within a calendar.
func sortByStart(events []icalendar.Event) {
	slices.SortStableFunc(events, func(a, b icalendar.Event) int {
		return a.Start.Compare(b.Start)
	})
}

func (s *Session) fetchRange(ctx context.Context, cal Calendar, start, end time.Time) (events []icalendar.Event, err error) {
	ctx, done := s.observe(ctx, instrumentation.OperationList, cal.ID)
	defer func() { done(err) }()

	ms, final, err := s.multistatus(ctx, davRequest{
		Method: "REPORT", URL: cal.ID, Depth: "1", Body: calendarQuery(start, end),
	})
	if err != nil {
		return nil, err
	}
	return s.collectEvents(ctx, cal, ms, final)
}

// collectEvents decodes the calendar objects in ms. Objects reported
// without calendar-data are fetched with one multiget.
func (s *Session) collectEvents(ctx context.Context, cal Calendar, ms *multistatus, base *url.URL) ([]icalendar.Event, error) {
	events, missing := s.decodeResponses(cal, ms, base)
	if len(missing) == 0 {
		return events, nil
	}

	more, final, err := s.multistatus(ctx, davRequest{
		Method: "REPORT", URL: cal.ID, Depth: "1", Body: calendarMultiget(missing),
	})
	if err != nil {
		return nil, err
	}
	fetched, _ := s.decodeResponses(cal, more, final)
	return append(events, fetched...), nil
}

func (s *Session) decodeResponses(cal Calendar, ms *multistatus, base *url.URL) ([]icalendar.Event, []string) {
	var (
		events  []icalendar.Event
		missing []string
	)
	for _, r := range ms.Responses {
		href := resolveHref(base, r.Href)
		if sameResource(href, cal.ID) {
			continue
		}
		p := r.okProp()
		if strings.TrimSpace(p.CalendarData) == "" {
			missing = append(missing, r.Href)
			continue
		}
		ev, err := icalendar.DecodeIn(p.CalendarData, s.loc)
		if err != nil {
			s.logger.Warn("skipping malformed calendar object",
				"href", logging.SanitizeURL(href), logging.Err(err))
			continue
		}
		ev.URL = href
		ev.ETag = p.ETag
		events = append(events, *ev)
	}
	return events, missing
}

// GetEvent fetches one event. locator may be an absolute URL, a server
// path, an object name ending in .ics or a bare UID.
func (s *Session) GetEvent(ctx context.Context, calendarID, locator string) (*icalendar.Event, error) {
	cals, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	cal, err := s.resolveCalendar(cals, calendarID)
	if err != nil {
		return nil, err
	}
	return s.getEvent(ctx, cal, locator)
}

func (s *Session) getEvent(ctx context.Context, cal Calendar, locator string) (ev *icalendar.Event, err error) {
	ctx, done := s.observe(ctx, instrumentation.OperationGet, cal.ID)
	defer func() { done(err) }()

	target, err := s.eventURL(cal, locator)
	if err != nil {
		return nil, err
	}
	reply, err := s.do(ctx, davRequest{Method: http.MethodGet, URL: target})
	if err != nil {
		return nil, err
	}
	switch {
	case reply.StatusCode == http.StatusNotFound || reply.StatusCode == http.StatusGone:
		if isBareUID(locator) {
			return s.findByUID(ctx, cal, locator)
		}
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, locator)
	case !reply.success():
		return nil, statusError(http.MethodGet, target, reply)
	}

	ev, err = icalendar.DecodeIn(string(reply.Body), s.loc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", logging.SanitizeURL(target), err)
	}
	ev.URL = target
	ev.ETag = reply.Header.Get("ETag")
	return ev, nil
}

// findByUID locates an event whose object name differs from its UID.
func (s *Session) findByUID(ctx context.Context, cal Calendar, uid string) (*icalendar.Event, error) {
	ms, final, err := s.multistatus(ctx, davRequest{
		Method: "REPORT", URL: cal.ID, Depth: "1", Body: uidQuery(uid),
	})
	if err != nil {
		return nil, err
	}
	events, err := s.collectEvents(ctx, cal, ms, final)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].UID == uid {
			return &events[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEventNotFound, uid)
}

// eventURL maps a locator to the object URL inside cal.
func (s *Session) eventURL(cal Calendar, locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	switch {
	case locator == "":
		return "", fmt.Errorf("%w: empty event id", ErrEventNotFound)
	case strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://"):
		return locator, nil
	case strings.HasPrefix(locator, "/"):
		base, err := url.Parse(cal.ID)
		if err != nil {
			return "", fmt.Errorf("invalid calendar id %q: %w", cal.ID, err)
		}
		return resolveHref(base, locator), nil
	case strings.HasSuffix(strings.ToLower(locator), ".ics"):
		return cal.ID + locator, nil
	}
	return cal.ID + url.PathEscape(locator) + ".ics", nil
}

func isBareUID(locator string) bool {
	locator = strings.TrimSpace(locator)
	return locator != "" &&
		!strings.Contains(locator, "://") &&
		!strings.HasPrefix(locator, "/") &&
		!strings.HasSuffix(strings.ToLower(locator), ".ics")
}

// CreateEvent writes e as a new object in the calendar. A UID is
// generated when e has none; e itself is not modified.
func (s *Session) CreateEvent(ctx context.Context, calendarID string, e *icalendar.Event) (res *CreateResult, err error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	cals, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	cal, err := s.resolveCalendar(cals, calendarID)
	if err != nil {
		return nil, err
	}

	ctx, done := s.observe(ctx, instrumentation.OperationCreate, cal.ID)
	defer func() { done(err) }()

	ev := *e
	if strings.TrimSpace(ev.UID) == "" {
		ev.UID = uuid.NewString()
	}
	target := cal.ID + url.PathEscape(ev.UID) + ".ics"

	reply, err := s.do(ctx, davRequest{
		Method:  http.MethodPut,
		URL:     target,
		Body:    icalendar.Encode(&ev),
		Type:    "text/calendar; charset=utf-8",
		Headers: map[string]string{"If-None-Match": "*"},
	})
	if err != nil {
		return nil, err
	}
	if !reply.success() {
		return nil, statusError(http.MethodPut, target, reply)
	}

	s.logger.Info("event created", logging.Calendar(cal.ID), logging.EventUID(ev.UID))
	return &CreateResult{
		CalendarID: cal.ID,
		URL:        target,
		UID:        ev.UID,
		ETag:       reply.Header.Get("ETag"),
	}, nil
}

// UpdateEvent fetches the event, lays patch over it and writes it back
// with If-Match. etag overrides the version from the fetched copy. The
// event is re-encoded, so properties the codec does not model are not
// preserved.
func (s *Session) UpdateEvent(ctx context.Context, calendarID, locator, etag string, patch EventPatch) (updated *icalendar.Event, err error) {
	cals, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	cal, err := s.resolveCalendar(cals, calendarID)
	if err != nil {
		return nil, err
	}

	current, err := s.getEvent(ctx, cal, locator)
	if err != nil {
		return nil, err
	}

	ctx, done := s.observe(ctx, instrumentation.OperationUpdate, cal.ID)
	defer func() { done(err) }()

	merged := patch.Apply(*current)
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	match := strings.TrimSpace(etag)
	if match == "" {
		match = current.ETag
	}
	headers := map[string]string{}
	if match != "" {
		headers["If-Match"] = match
	} else {
		s.logger.Warn("updating event without a version token",
			logging.Calendar(cal.ID), logging.EventUID(current.UID))
	}

	body := icalendar.Encode(&merged)
	reply, err := s.do(ctx, davRequest{
		Method:  http.MethodPut,
		URL:     current.URL,
		Body:    body,
		Type:    "text/calendar; charset=utf-8",
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case reply.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, locator)
	case !reply.success():
		return nil, statusError(http.MethodPut, current.URL, reply)
	}

	merged.URL = current.URL
	merged.ETag = reply.Header.Get("ETag")
	merged.Raw = body
	s.logger.Info("event updated", logging.Calendar(cal.ID), logging.EventUID(merged.UID))
	return &merged, nil
}

// DeleteEvent removes an event. With an empty etag the delete is
// unconditional and can discard a concurrent edit.
func (s *Session) DeleteEvent(ctx context.Context, calendarID, locator, etag string) (err error) {
	cals, err := s.snapshot()
	if err != nil {
		return err
	}
	cal, err := s.resolveCalendar(cals, calendarID)
	if err != nil {
		return err
	}

	ctx, done := s.observe(ctx, instrumentation.OperationDelete, cal.ID)
	defer func() { done(err) }()

	target, err := s.eventURL(cal, locator)
	if err != nil {
		return err
	}
	headers := map[string]string{}
	if etag = strings.TrimSpace(etag); etag != "" {
		headers["If-Match"] = etag
	} else {
		s.logger.Warn("deleting event without a version token",
			logging.Calendar(cal.ID), "event", locator)
	}

	reply, err := s.do(ctx, davRequest{Method: http.MethodDelete, URL: target, Headers: headers})
	if err != nil {
		return err
	}
	if (reply.StatusCode == http.StatusNotFound || reply.StatusCode == http.StatusGone) && isBareUID(locator) {
		ev, ferr := s.findByUID(ctx, cal, locator)
		if ferr != nil {
			return ferr
		}
		target = ev.URL
		reply, err = s.do(ctx, davRequest{Method: http.MethodDelete, URL: target, Headers: headers})
		if err != nil {
			return err
		}
	}
	switch {
	case reply.StatusCode == http.StatusNotFound || reply.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: %s", ErrEventNotFound, locator)
	case !reply.success():
		return statusError(http.MethodDelete, target, reply)
	}
	s.logger.Info("event deleted", logging.Calendar(cal.ID), "event", locator)
	return nil
}

// TodaysEvents lists events from local midnight to the next midnight.
func (s *Session) TodaysEvents(ctx context.Context) ([]icalendar.Event, error) {
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return s.ListEvents(ctx, "", start, start.AddDate(0, 0, 1))
}

// UpcomingEvents lists events from now over the next days days. Non-positive
// values mean one week.
func (s *Session) UpcomingEvents(ctx context.Context, days int) ([]icalendar.Event, error) {
	if days <= 0 {
		days = defaultUpcomingDays
	}
	now := s.now()
	return s.ListEvents(ctx, "", now, now.AddDate(0, 0, days))
}
