// Package availability reports whether proposed time slots are free across
// all calendars of a session.
//
// A slot conflicts with an event when the two half-open intervals overlap:
// an event ending exactly when the slot starts, or starting exactly when
// it ends, is not a conflict. Cancelled events never conflict. Recurring
// events are expanded so that every occurrence is checked.
package availability
