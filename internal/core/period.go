package core

import (
	"fmt"
	"time"
)

const (
	PeriodToday       Period = "today"
	PeriodWeek        Period = "week"
	PeriodMonth       Period = "month"
	PeriodLastMonth   Period = "lastMonth"
	PeriodLast3Months Period = "last3Months"
	PeriodYear        Period = "year"
	PeriodAll         Period = "all"
	PeriodCustom      Period = "custom"
)

type (
	// Period is a symbolic time window resolved against a concrete "now".
	Period string

	// DateRange is a concrete inclusive [From, To] interval.
	DateRange struct {
		From time.Time `json:"from"`
		To   time.Time `json:"to"`
	}
)

// ParsePeriod resolves a period key, accepting the frequency-style aliases
// (daily, weekly, monthly, yearly) used by older clients.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodLastMonth,
		PeriodLast3Months, PeriodYear, PeriodAll, PeriodCustom:
		return Period(s), nil
	}
	switch s {
	case "daily":
		return PeriodToday, nil
	case "weekly":
		return PeriodWeek, nil
	case "monthly":
		return PeriodMonth, nil
	case "yearly":
		return PeriodYear, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// PeriodRange resolves a symbolic period into a concrete interval anchored to
// now. PeriodCustom requires an explicit range and falls back to the current
// month when the range is missing or inverted. Deterministic given now.
func PeriodRange(p Period, custom *DateRange, now time.Time) DateRange {
	switch p {
	case PeriodToday:
		return DateRange{From: StartOfDay(now), To: EndOfDay(now)}
	case PeriodWeek:
		return DateRange{From: StartOfDay(startOfWeek(now)), To: EndOfDay(now)}
	case PeriodMonth:
		return monthRange(now.Year(), now.Month(), now.Location())
	case PeriodLastMonth:
		prev := now.AddDate(0, 0, -now.Day()) // last day of previous month
		return monthRange(prev.Year(), prev.Month(), now.Location())
	case PeriodLast3Months:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -2, 0)
		return DateRange{From: first, To: monthRange(now.Year(), now.Month(), now.Location()).To}
	case PeriodYear:
		from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return DateRange{From: from, To: EndOfDay(time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location()))}
	case PeriodAll:
		return DateRange{From: time.Time{}, To: EndOfDay(now)}
	case PeriodCustom:
		if custom == nil || custom.From.IsZero() || custom.To.IsZero() || custom.To.Before(custom.From) {
			return monthRange(now.Year(), now.Month(), now.Location())
		}
		return DateRange{From: StartOfDay(custom.From), To: EndOfDay(custom.To)}
	default:
		return monthRange(now.Year(), now.Month(), now.Location())
	}
}

// Contains reports whether t falls inside the inclusive range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Days returns the inclusive calendar day count of the range, never below 1.
// Both ends are rebuilt as UTC midnights of their local calendar day, so a
// DST transition inside the range cannot shorten a day and skew the count.
func (r DateRange) Days() int {
	fy, fm, fd := r.From.Date()
	ty, tm, td := r.To.Date()
	from := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	days := int(to.Sub(from).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's calendar day, matching the millisecond
// precision the persisted wire format carries.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func monthRange(year int, month time.Month, loc *time.Location) DateRange {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	return DateRange{From: first, To: EndOfDay(last)}
}

func startOfWeek(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 { // Sunday closes the week
		wd = 7
	}
	return t.AddDate(0, 0, -(wd - 1))
}
