// Package calendar implements a CalDAV client session.
//
// A Session starts uninitialized. Login authenticates with HTTP basic
// auth, follows current-user-principal and calendar-home-set, and caches
// the event calendars it finds. Every other operation fails with
// ErrNotInitialized until Login has succeeded.
//
// Listing without a calendar id fans out to all calendars; a calendar that
// fails is logged and skipped. Updates and deletes are conditional on the
// event's ETag, and a stale ETag surfaces as ErrConflictingWrite.
//
// Example usage:
//
//	sess, err := calendar.NewSession(calendar.Config{
//	    BaseURL:  "https://caldav.icloud.com/",
//	    Username: user,
//	    Password: appPassword,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := sess.Login(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	events, err := sess.UpcomingEvents(ctx, 7)
package calendar
