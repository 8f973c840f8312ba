package models

import "time"

// IsOverdue reports whether a request scheduled on scheduled and sitting in stage is
// overdue at now. Requests without a date or in a terminal stage are never overdue.
//
// Dates are compared as UTC calendar dates; time of day is ignored on both sides.
func IsOverdue(scheduled *time.Time, stage Stage, now time.Time) bool {
	if scheduled == nil || stage.IsTerminal() {
		return false
	}
	return DateOf(*scheduled).Before(DateOf(now))
}

// DateOf truncates t to midnight of its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
