package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/inboxcal/internal/availability"
	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/config"
	"github.com/teemow/inboxcal/internal/google"
	"github.com/teemow/inboxcal/internal/instrumentation"
	"github.com/teemow/inboxcal/internal/logging"
	"github.com/teemow/inboxcal/internal/scheduling"
)

// Options configures NewServerContext. Session and Mail replace the
// collaborators built from Config, which tests use to inject fakes.
type Options struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger

	Session *calendar.Session
	Mail    scheduling.EmailFetcher

	// Yolo enables destructive calendar tools.
	Yolo bool
}

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	yolo    bool
	user    string
	loc     *time.Location

	session      *calendar.Session
	calendar     *lazyCalendar
	checker      *availability.Checker
	orchestrator *scheduling.Orchestrator
	mail         scheduling.EmailFetcher

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context. A missing CalDAV or
// Gmail setup disables the matching tools instead of failing.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	adapter := logging.NewSlogAdapter(logger)

	sc := &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		logger:  logger,
		metrics: opts.Metrics,
		audit:   opts.Audit,
		yolo:    opts.Yolo,
		user:    cfg.CalDAV.Username,
		loc:     cfg.Location(),
		session: opts.Session,
		mail:    opts.Mail,
	}

	if sc.session == nil && cfg.CalDAVEnabled() {
		session, err := calendar.NewSession(calendar.Config{
			BaseURL:  cfg.CalDAV.URL,
			Username: cfg.CalDAV.Username,
			Password: cfg.CalDAV.Password,
			Timeout:  cfg.CalDAV.Timeout,
			Location: cfg.Location(),
			Logger:   adapter.With(logging.Service(instrumentation.ServiceCalDAV)),
			Metrics:  opts.Metrics,
		})
		if err != nil {
			cancel()
			return nil, err
		}
		sc.session = session
	}
	if sc.session == nil {
		logger.Warn("calendar tools disabled: CalDAV URL, username or password missing")
	}

	if sc.mail == nil {
		sc.mail = newGmailFetcher(shutdownCtx, google.NewFileTokenProvider(cfg.Gmail.TokenFile, cfg.Gmail.CredentialsFile), logger)
	}

	var creator scheduling.EventCreator
	var slotChecker scheduling.SlotChecker
	if sc.session != nil {
		sc.calendar = &lazyCalendar{session: sc.session}
		sc.checker = availability.NewChecker(sc.calendar, adapter, opts.Metrics)
		creator, slotChecker = sc.calendar, sc.checker
	}
	sc.orchestrator = scheduling.NewOrchestrator(scheduling.Config{
		Mail:     sc.mail,
		Calendar: creator,
		Checker:  slotChecker,
		Logger:   adapter.With(logging.Service(instrumentation.ServiceScheduling)),
		Metrics:  opts.Metrics,
	})

	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, possibly nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, possibly nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// User returns the configured CalDAV account name for audit records.
func (sc *ServerContext) User() string {
	return sc.user
}

// Location is the zone used to interpret times without an offset.
func (sc *ServerContext) Location() *time.Location {
	return sc.loc
}

// SetMetrics replaces the metrics recorder used by tool wrappers.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.metrics = m
}

// Yolo reports whether destructive tools are enabled.
func (sc *ServerContext) Yolo() bool {
	return sc.yolo
}

// CalendarEnabled reports whether CalDAV credentials were configured.
func (sc *ServerContext) CalendarEnabled() bool {
	return sc.session != nil
}

// Calendar returns the logged-in CalDAV session, logging in on first use.
func (sc *ServerContext) Calendar(ctx context.Context) (*calendar.Session, error) {
	if sc.calendar == nil {
		return nil, calendar.ErrFeatureDisabled
	}
	if err := sc.calendar.ensure(ctx); err != nil {
		return nil, err
	}
	return sc.session, nil
}

// Checker returns the availability checker, nil when calendars are disabled.
func (sc *ServerContext) Checker() *availability.Checker {
	return sc.checker
}

// Orchestrator returns the scheduling orchestrator.
func (sc *ServerContext) Orchestrator() *scheduling.Orchestrator {
	return sc.orchestrator
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
