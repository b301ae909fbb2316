package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNextOccurrenceAfter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		ref   time.Time
		after time.Time
		want  time.Time
	}{
		{
			name:  "later this year",
			ref:   date(1990, time.June, 15, 10, 0),
			after: date(2025, time.March, 1, 0, 0),
			want:  date(2025, time.June, 15, 10, 0),
		},
		{
			name:  "already passed, next year",
			ref:   date(1990, time.June, 15, 10, 0),
			after: date(2025, time.July, 1, 0, 0),
			want:  date(2026, time.June, 15, 10, 0),
		},
		{
			name:  "exactly at the candidate advances a year",
			ref:   date(1990, time.June, 15, 10, 0),
			after: date(2025, time.June, 15, 10, 0),
			want:  date(2026, time.June, 15, 10, 0),
		},
		{
			name:  "late december rolls into january",
			ref:   date(2000, time.January, 2, 9, 0),
			after: date(2025, time.December, 30, 0, 0),
			want:  date(2026, time.January, 2, 9, 0),
		},
		{
			name:  "leap day in a leap year",
			ref:   date(2000, time.February, 29, 10, 0),
			after: date(2028, time.January, 1, 0, 0),
			want:  date(2028, time.February, 29, 10, 0),
		},
		{
			name:  "leap day clamps to feb 28 in a non-leap year",
			ref:   date(2000, time.February, 29, 10, 0),
			after: date(2025, time.January, 1, 0, 0),
			want:  date(2025, time.February, 28, 10, 0),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrenceAfter(tt.ref, tt.after)
			if !got.Equal(tt.want) {
				t.Fatalf("NextOccurrenceAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowMonthDaysPlain(t *testing.T) {
	t.Parallel()
	set := WindowMonthDays(date(2025, time.June, 29, 0, 0), 3)
	want := []MonthDay{{6, 29}, {6, 30}, {7, 1}}
	if len(set) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(set), len(want), set)
	}
	for i := range want {
		if set[i] != want[i] {
			t.Fatalf("entry %d = %v, want %v", i, set[i], want[i])
		}
	}
}

func TestWindowMonthDaysLeapDayRule(t *testing.T) {
	t.Parallel()

	// 2025 is not a leap year: a 3-day window starting Feb 27 must still
	// surface Feb-29 events.
	set := WindowMonthDays(date(2025, time.February, 27, 0, 0), 3)
	if !containsMonthDay(set, MonthDay{2, 29}) {
		t.Fatalf("expected (2,29) in window set, got %v", set)
	}

	// In a leap year the 29th is enumerated naturally, not duplicated.
	set = WindowMonthDays(date(2024, time.February, 27, 0, 0), 3)
	count := 0
	for _, md := range set {
		if md == (MonthDay{2, 29}) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one (2,29), got %d in %v", count, set)
	}

	// Window that ends before the 29th does not pick it up.
	set = WindowMonthDays(date(2025, time.February, 24, 0, 0), 3)
	if containsMonthDay(set, MonthDay{2, 29}) {
		t.Fatalf("did not expect (2,29) in %v", set)
	}
}

func containsMonthDay(set []MonthDay, md MonthDay) bool {
	for _, x := range set {
		if x == md {
			return true
		}
	}
	return false
}

func TestIsLeapYear(t *testing.T) {
	t.Parallel()
	for year, want := range map[int]bool{2024: true, 2025: false, 2000: true, 1900: false} {
		if got := IsLeapYear(year); got != want {
			t.Fatalf("IsLeapYear(%d) = %v, want %v", year, got, want)
		}
	}
}
