package fiscal

import (
	"testing"
	"time"
)

func TestYear_CalendarStart(t *testing.T) {
	d := time.Date(2025, 6, 15, 0, 0, 0, 0, DefaultLocation)
	if got := Year(d, 1); got != 2025 {
		t.Errorf("Expected fiscal year 2025, got %d", got)
	}
}

func TestYear_JulyStart(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2025-06-30", 2025}, // last day of FY2025
		{"2025-07-01", 2026}, // first day of FY2026
		{"2025-12-31", 2026},
		{"2026-01-01", 2026},
		{"2026-06-30", 2026},
	}
	for _, tc := range tests {
		d, err := ParseDate(tc.date, DefaultLocation)
		if err != nil {
			t.Fatalf("ParseDate(%s): %v", tc.date, err)
		}
		if got := Year(d, 7); got != tc.want {
			t.Errorf("Year(%s, 7) = %d, want %d", tc.date, got, tc.want)
		}
	}
}

func TestMonth_Index(t *testing.T) {
	tests := []struct {
		date       string
		startMonth int
		want       int
	}{
		{"2025-07-01", 7, 0},
		{"2025-08-15", 7, 1},
		{"2026-06-30", 7, 11},
		{"2025-01-01", 1, 0},
		{"2025-12-31", 1, 11},
	}
	for _, tc := range tests {
		d, _ := ParseDate(tc.date, DefaultLocation)
		if got := Month(d, tc.startMonth); got != tc.want {
			t.Errorf("Month(%s, %d) = %d, want %d", tc.date, tc.startMonth, got, tc.want)
		}
	}
}

func TestQuarter(t *testing.T) {
	d, _ := ParseDate("2025-09-10", DefaultLocation) // fiscal month 2 of FY2026 (start 7)
	year, q := Quarter(d, 7)
	if year != 2026 || q != 1 {
		t.Errorf("Expected 2026-Q1, got %d-Q%d", year, q)
	}

	d, _ = ParseDate("2026-04-01", DefaultLocation) // fiscal month 9
	year, q = Quarter(d, 7)
	if year != 2026 || q != 4 {
		t.Errorf("Expected 2026-Q4, got %d-Q%d", year, q)
	}
}

func TestYearBounds(t *testing.T) {
	start, end := YearBounds(2026, 7, DefaultLocation)
	wantStart := time.Date(2025, 7, 1, 0, 0, 0, 0, DefaultLocation)
	if !start.Equal(wantStart) {
		t.Errorf("Expected start %v, got %v", wantStart, start)
	}
	if !end.Before(time.Date(2026, 7, 1, 0, 0, 0, 0, DefaultLocation)) {
		t.Errorf("End %v should precede the next fiscal year start", end)
	}
	if end.Sub(start) < 364*24*time.Hour {
		t.Errorf("Fiscal year span too short: %v", end.Sub(start))
	}
}

func TestYearBounds_CalendarStartCollapses(t *testing.T) {
	start, end := YearBounds(2025, 1, DefaultLocation)
	if start.Year() != 2025 || start.Month() != time.January || start.Day() != 1 {
		t.Errorf("Expected 2025-01-01 start, got %v", start)
	}
	if end.Year() != 2025 || end.Month() != time.December {
		t.Errorf("Expected end in December 2025, got %v", end)
	}
}

func TestCalendarMonth_RoundTrip(t *testing.T) {
	for startMonth := 1; startMonth <= 12; startMonth++ {
		for fm := 0; fm < 12; fm++ {
			y, m := CalendarMonth(2026, fm, startMonth)
			d := time.Date(y, m, 15, 0, 0, 0, 0, DefaultLocation)
			if got := Year(d, startMonth); got != 2026 {
				t.Fatalf("start=%d fm=%d: round-trip year %d", startMonth, fm, got)
			}
			if got := Month(d, startMonth); got != fm {
				t.Fatalf("start=%d fm=%d: round-trip month %d", startMonth, fm, got)
			}
		}
	}
}

func TestQuarterStart(t *testing.T) {
	got := QuarterStart(2026, 1, 7, DefaultLocation)
	want := time.Date(2025, 7, 1, 0, 0, 0, 0, DefaultLocation)
	if !got.Equal(want) {
		t.Errorf("QuarterStart(2026, Q1, start 7) = %v, want %v", got, want)
	}

	got = QuarterStart(2026, 3, 7, DefaultLocation)
	want = time.Date(2026, 1, 1, 0, 0, 0, 0, DefaultLocation)
	if !got.Equal(want) {
		t.Errorf("QuarterStart(2026, Q3, start 7) = %v, want %v", got, want)
	}
}

func TestMonthsBetween(t *testing.T) {
	a := time.Date(2026, 1, 11, 0, 0, 0, 0, DefaultLocation)
	tests := []struct {
		b    time.Time
		want int
	}{
		{time.Date(2026, 1, 11, 0, 0, 0, 0, DefaultLocation), 0},
		{time.Date(2026, 2, 10, 0, 0, 0, 0, DefaultLocation), 0},
		{time.Date(2026, 2, 11, 0, 0, 0, 0, DefaultLocation), 1},
		{time.Date(2026, 3, 11, 0, 0, 0, 0, DefaultLocation), 2},
		{time.Date(2025, 12, 1, 0, 0, 0, 0, DefaultLocation), 0}, // b before a clamps
	}
	for _, tc := range tests {
		if got := MonthsBetween(a, tc.b); got != tc.want {
			t.Errorf("MonthsBetween(%v, %v) = %d, want %d", a, tc.b, got, tc.want)
		}
	}
}

func TestPercentElapsed_Clamps(t *testing.T) {
	before := time.Date(2024, 1, 1, 0, 0, 0, 0, DefaultLocation)
	if got := PercentElapsed(2026, 7, before, DefaultLocation); got != 0 {
		t.Errorf("Expected 0 before fiscal year, got %f", got)
	}
	after := time.Date(2027, 1, 1, 0, 0, 0, 0, DefaultLocation)
	if got := PercentElapsed(2026, 7, after, DefaultLocation); got != 1 {
		t.Errorf("Expected 1 after fiscal year, got %f", got)
	}
	mid := time.Date(2026, 1, 1, 0, 0, 0, 0, DefaultLocation)
	got := PercentElapsed(2026, 7, mid, DefaultLocation)
	if got < 0.49 || got > 0.52 {
		t.Errorf("Expected roughly half elapsed at mid-year, got %f", got)
	}
}
