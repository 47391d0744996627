// Package calendar holds the date math behind week keys.
// All functions are pure; dates are carried as time.Time at local midnight
// and exchanged with the store as YYYY-MM-DD strings.
package calendar

import (
	"fmt"
	"time"
)

// ISOLayout is the layout used for every stored date and week key.
const ISOLayout = "2006-01-02"

// DaysPerWeek is the number of DayRecords in a weekly document.
const DaysPerWeek = 7

// midnight truncates t to 00:00 in its own location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MondayOf returns midnight of the Monday starting the week that contains t.
func MondayOf(t time.Time) time.Time {
	day := midnight(t)
	wd := day.Weekday()
	if wd == time.Sunday {
		return day.AddDate(0, 0, -6)
	}
	return day.AddDate(0, 0, -int(wd-time.Monday))
}

// ToISODate formats t as YYYY-MM-DD in t's location.
func ToISODate(t time.Time) string {
	return t.Format(ISOLayout)
}

// AddDays moves t by n calendar days. Month and year rollover are handled by time.AddDate.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// ParseISODate parses a YYYY-MM-DD string as midnight in loc (UTC when loc is nil).
func ParseISODate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(ISOLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO date %q: %w", s, err)
	}
	return t, nil
}

// WeekKeyOf returns the week key (Monday's ISO date) for t.
func WeekKeyOf(t time.Time) string {
	return ToISODate(MondayOf(t))
}

// IsWeekKey reports whether s is a well-formed ISO date falling on a Monday.
func IsWeekKey(s string) bool {
	t, err := ParseISODate(s, time.UTC)
	return err == nil && t.Weekday() == time.Monday
}

// AddDaysISO shifts an ISO date string by n days.
func AddDaysISO(s string, n int) (string, error) {
	t, err := ParseISODate(s, time.UTC)
	if err != nil {
		return "", err
	}
	return ToISODate(AddDays(t, n)), nil
}

// WeekDates returns the seven ISO dates starting at weekKey.
func WeekDates(weekKey string) ([]string, error) {
	start, err := ParseISODate(weekKey, time.UTC)
	if err != nil {
		return nil, err
	}
	dates := make([]string, DaysPerWeek)
	for i := range dates {
		dates[i] = ToISODate(AddDays(start, i))
	}
	return dates, nil
}

// WeeksBetween returns the number of whole weeks from the week containing a
// to the week containing b. Negative when b is earlier.
func WeeksBetween(a, b time.Time) int {
	ma := MondayOf(a)
	mb := MondayOf(b)
	// Compare as UTC dates so DST shifts in the caller's zone never skew the count.
	ua := time.Date(ma.Year(), ma.Month(), ma.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(mb.Year(), mb.Month(), mb.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24 / DaysPerWeek)
}

// DateOfMillis converts an epoch-millisecond timestamp to the ISO date it falls on in loc.
func DateOfMillis(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return ToISODate(time.UnixMilli(ms).In(loc))
}

// DayIndex returns the position (0 = Monday) of dateISO within the week at weekKey,
// or -1 if the date is outside that week or either string is malformed.
func DayIndex(weekKey, dateISO string) int {
	start, err := ParseISODate(weekKey, time.UTC)
	if err != nil {
		return -1
	}
	day, err := ParseISODate(dateISO, time.UTC)
	if err != nil {
		return -1
	}
	idx := int(day.Sub(start).Hours() / 24)
	if idx < 0 || idx >= DaysPerWeek {
		return -1
	}
	return idx
}
