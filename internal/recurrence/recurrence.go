// Package recurrence computes yearly occurrence dates for events that
// repeat on a fixed month/day, including the Feb-29 cases that would
// otherwise silently drop leap-day events for a whole year.
package recurrence

import "time"

// MonthDay is a recurrence reference date, year-agnostic.
type MonthDay struct {
	Month int
	Day   int
}

// NextOccurrenceAfter returns the next yearly occurrence of ref's
// (month, day, time-of-day) strictly after the given instant. Both times
// must be in the same location; the caller converts to the event's zone
// first and back to UTC for storage.
//
// A Feb-29 reference clamps to Feb-28 in non-leap years, so the event
// still fires annually.
func NextOccurrenceAfter(ref, after time.Time) time.Time {
	years := after.Year() - ref.Year()
	candidate := addYears(ref, years)
	if !candidate.After(after) {
		candidate = addYears(ref, years+1)
	}
	return candidate
}

// addYears shifts t by n years, clamping the day to the target month's
// length instead of letting time.Date normalize Feb 29 into Mar 1.
func addYears(t time.Time, n int) time.Time {
	year := t.Year() + n
	day := t.Day()
	if last := daysIn(t.Month(), year); day > last {
		day = last
	}
	return time.Date(year, t.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsLeapYear reports whether the year has a Feb 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// WindowMonthDays builds the (month, day) reference set covering `days`
// days forward from start. When the scan runs in February of a non-leap
// year and the window reaches the 29th, (2, 29) is added explicitly:
// the date does not exist this year, but events anchored to it must not
// be skipped.
func WindowMonthDays(start time.Time, days int) []MonthDay {
	set := make([]MonthDay, 0, days+1)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		set = append(set, MonthDay{Month: int(d.Month()), Day: d.Day()})
	}

	if !IsLeapYear(start.Year()) &&
		start.Month() == time.February &&
		start.Day() <= 29 &&
		29-start.Day() < days {
		set = append(set, MonthDay{Month: 2, Day: 29})
	}

	return set
}
