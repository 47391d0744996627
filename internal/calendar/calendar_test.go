package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseISODate(s, time.UTC)
	require.NoError(t, err)
	return d
}

func TestMondayOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-09-22", "2025-09-22"}, // Monday
		{"2025-09-23", "2025-09-22"},
		{"2025-09-27", "2025-09-22"},
		{"2025-09-28", "2025-09-22"}, // Sunday
		{"2025-10-01", "2025-09-29"},
		{"2026-01-01", "2025-12-29"}, // year rollover
		{"2024-03-03", "2024-02-26"}, // leap year
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToISODate(MondayOf(mustDate(t, tt.in))))
		})
	}
}

func TestMondayOf_TruncatesToMidnight(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	in := time.Date(2025, 9, 28, 23, 59, 30, 0, loc)
	got := MondayOf(in)
	assert.Equal(t, time.Date(2025, 9, 22, 0, 0, 0, 0, loc), got)
}

func TestAddDays_Rollover(t *testing.T) {
	assert.Equal(t, "2025-10-02", ToISODate(AddDays(mustDate(t, "2025-09-29"), 3)))
	assert.Equal(t, "2026-01-04", ToISODate(AddDays(mustDate(t, "2025-12-29"), 6)))
	assert.Equal(t, "2025-09-22", ToISODate(AddDays(mustDate(t, "2025-09-28"), -6)))
}

func TestParseISODate_Invalid(t *testing.T) {
	_, err := ParseISODate("2025-13-01", nil)
	assert.Error(t, err)
	_, err = ParseISODate("", nil)
	assert.Error(t, err)
}

func TestIsWeekKey(t *testing.T) {
	assert.True(t, IsWeekKey("2025-09-22"))
	assert.False(t, IsWeekKey("2025-09-23"))
	assert.False(t, IsWeekKey("not-a-date"))
}

func TestWeekDates(t *testing.T) {
	dates, err := WeekDates("2025-09-29")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-09-29", "2025-09-30", "2025-10-01", "2025-10-02",
		"2025-10-03", "2025-10-04", "2025-10-05",
	}, dates)
}

func TestWeeksBetween(t *testing.T) {
	assert.Equal(t, 0, WeeksBetween(mustDate(t, "2025-09-22"), mustDate(t, "2025-09-28")))
	assert.Equal(t, 1, WeeksBetween(mustDate(t, "2025-09-28"), mustDate(t, "2025-09-29")))
	assert.Equal(t, -2, WeeksBetween(mustDate(t, "2025-09-29"), mustDate(t, "2025-09-15")))
	assert.Equal(t, 52, WeeksBetween(mustDate(t, "2025-01-01"), mustDate(t, "2026-01-01")))
}

func TestDateOfMillis(t *testing.T) {
	ms := time.Date(2025, 9, 23, 22, 6, 11, 0, time.UTC).UnixMilli()
	assert.Equal(t, "2025-09-23", DateOfMillis(ms, time.UTC))
	assert.Equal(t, "2025-09-24", DateOfMillis(ms, time.FixedZone("plus3", 3*3600)))
}

func TestDayIndex(t *testing.T) {
	assert.Equal(t, 0, DayIndex("2025-09-22", "2025-09-22"))
	assert.Equal(t, 6, DayIndex("2025-09-22", "2025-09-28"))
	assert.Equal(t, -1, DayIndex("2025-09-22", "2025-09-29"))
	assert.Equal(t, -1, DayIndex("2025-09-22", "2025-09-21"))
	assert.Equal(t, -1, DayIndex("2025-09-22", "garbage"))
}
