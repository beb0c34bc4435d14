// Package fiscal is the money-free half of the accounting kernel: fiscal
// calendar arithmetic and transaction document IDs. Pure functions, no I/O.
package fiscal

import (
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
)

// DefaultLocation is the reference deployment's civil timezone, UTC-5
// year-round. There is no DST handling in the kernel; a DST zone is a
// boundary configuration change.
var DefaultLocation = time.FixedZone("UTC-05", -5*60*60)

// Year returns the fiscal year containing d. A fiscal year is labeled by the
// calendar year in which it ends, except when startMonth is 1, where fiscal
// and calendar years coincide.
func Year(d time.Time, startMonth int) int {
	if startMonth == 1 {
		return d.Year()
	}
	if int(d.Month()) >= startMonth {
		return d.Year() + 1
	}
	return d.Year()
}

// Month returns the fiscal month index 0..11 of d; index 0 is startMonth.
func Month(d time.Time, startMonth int) int {
	return (int(d.Month()) - startMonth + 12) % 12
}

// Quarter returns the fiscal year and quarter (1..4) containing d. Fiscal
// quarters group fiscal months {0,1,2}, {3,4,5}, {6,7,8}, {9,10,11}.
func Quarter(d time.Time, startMonth int) (year, quarter int) {
	return Year(d, startMonth), Month(d, startMonth)/3 + 1
}

// YearBounds returns the closed civil-instant interval of a fiscal year in
// loc. End is the last nanosecond of the last day.
func YearBounds(fiscalYear, startMonth int, loc *time.Location) (start, end time.Time) {
	startYear := fiscalYear
	if startMonth != 1 {
		startYear = fiscalYear - 1
	}
	start = time.Date(startYear, time.Month(startMonth), 1, 0, 0, 0, 0, loc)
	end = start.AddDate(1, 0, 0).Add(-time.Nanosecond)
	return start, end
}

// CalendarMonth maps a fiscal (year, month index) back to the calendar year
// and month it falls in.
func CalendarMonth(fiscalYear, fiscalMonth, startMonth int) (calYear int, calMonth time.Month) {
	m := (startMonth - 1 + fiscalMonth) % 12
	calMonth = time.Month(m + 1)
	calYear = fiscalYear
	if startMonth != 1 && int(calMonth) >= startMonth {
		calYear = fiscalYear - 1
	}
	return calYear, calMonth
}

// QuarterMonths returns the three fiscal month indexes composing quarter q.
func QuarterMonths(q int) [3]int {
	base := (q - 1) * 3
	return [3]int{base, base + 1, base + 2}
}

// QuarterStart returns midnight of the first civil day of the calendar month
// at which fiscal quarter q of fiscalYear begins.
func QuarterStart(fiscalYear, q, startMonth int, loc *time.Location) time.Time {
	y, m := CalendarMonth(fiscalYear, (q-1)*3, startMonth)
	return time.Date(y, m, 1, 0, 0, 0, 0, loc)
}

// ParseDate interprets a YYYY-MM-DD string as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, domain.WrapError(domain.KindInvalidInput, "invalid date, want YYYY-MM-DD", err)
	}
	return t, nil
}

// MonthsBetween returns the whole calendar-month difference from a to b,
// clamped to zero when b precedes a.
func MonthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// PercentElapsed returns the fraction of the fiscal year elapsed at now,
// clamped to [0, 1].
func PercentElapsed(fiscalYear, startMonth int, now time.Time, loc *time.Location) float64 {
	start, end := YearBounds(fiscalYear, startMonth, loc)
	if now.Before(start) {
		return 0
	}
	if now.After(end) {
		return 1
	}
	total := end.Sub(start)
	if total <= 0 {
		return 1
	}
	return float64(now.Sub(start)) / float64(total)
}
