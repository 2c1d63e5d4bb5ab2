package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxcal/internal/icalendar"
	"github.com/teemow/inboxcal/internal/server"
)

func newAgendaCmd() *cobra.Command {
	var (
		days       int
		calendarID string
	)

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "List upcoming events",
		Long: `List events from now until the end of the given number of days.

Without --calendar all discovered calendars are merged. The calendar may be
given by URL, path or a substring of its name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			return runAgenda(cmd, days, calendarID)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of days to show, starting today")
	cmd.Flags().StringVar(&calendarID, "calendar", "", "Only show this calendar")

	return cmd
}

func runAgenda(cmd *cobra.Command, days int, calendarID string) error {
	ctx := context.Background()

	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	sc, err := server.NewServerContext(ctx, server.Options{Config: cfg, Logger: newLogger(cfg)})
	if err != nil {
		return err
	}
	defer func() { _ = sc.Shutdown() }()

	session, err := sc.Calendar(ctx)
	if err != nil {
		return err
	}

	now := time.Now().In(sc.Location())
	var events []icalendar.Event
	if calendarID == "" {
		events, err = session.UpcomingEvents(ctx, days)
	} else {
		events, err = session.ListEvents(ctx, calendarID, now, startOfDay(now).AddDate(0, 0, days))
	}
	if err != nil {
		return err
	}

	return printAgenda(cmd.OutOrStdout(), events, now)
}

// printAgenda writes events grouped by day with times relative to now.
func printAgenda(w io.Writer, events []icalendar.Event, now time.Time) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No upcoming events.")
		return err
	}

	var b strings.Builder
	var day time.Time
	for _, e := range events {
		start := e.Start.In(now.Location())
		if d := startOfDay(start); !d.Equal(day) {
			if !day.IsZero() {
				b.WriteString("\n")
			}
			day = d
			fmt.Fprintf(&b, "%s\n", dayLabel(d, now))
		}
		b.WriteString("  ")
		b.WriteString(eventLine(e, now))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func eventLine(e icalendar.Event, now time.Time) string {
	start := e.Start.In(now.Location())
	end := e.End.In(now.Location())

	var when string
	switch {
	case e.AllDay:
		when = "all day    "
	case end.IsZero() || end.Equal(start):
		when = start.Format("15:04") + "      "
	default:
		when = start.Format("15:04") + "-" + end.Format("15:04")
	}

	line := when + "  " + e.Summary
	if e.Location != "" {
		line += " @ " + e.Location
	}
	if e.Cancelled() {
		line += " [cancelled]"
	}
	if !e.AllDay && start.After(now) {
		line += " (" + humanize.RelTime(start, now, "ago", "from now") + ")"
	}
	return line
}

func dayLabel(d, now time.Time) string {
	today := startOfDay(now)
	switch {
	case d.Equal(today):
		return "Today, " + d.Format("Mon Jan 2")
	case d.Equal(today.AddDate(0, 0, 1)):
		return "Tomorrow, " + d.Format("Mon Jan 2")
	default:
		return d.Format("Mon Jan 2")
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
