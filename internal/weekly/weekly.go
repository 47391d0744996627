// Package weekly defines the canonical shape of a WeeklyDocument and the
// operations that build, validate and repair it.
package weekly

import (
	"fmt"
	"time"

	"alcyxob/workout-tracker/internal/calendar"
	"alcyxob/workout-tracker/internal/domain"
)

// DefaultWeekly builds an empty week for weekKey. The settings are deep-copied
// into the new document; nil maps become empty ones.
func DefaultWeekly(weekKey string, settings domain.WeekSettings) (*domain.WeeklyDocument, error) {
	dates, err := weekDates(weekKey)
	if err != nil {
		return nil, err
	}

	days := make([]domain.DayRecord, calendar.DaysPerWeek)
	for i, date := range dates {
		days[i] = EmptyDay(date)
	}

	doc := &domain.WeeklyDocument{
		WeekOfISO:      weekKey,
		Days:           days,
		Benchmarks:     map[string]int{},
		CustomTypes:    []string{},
		TypeCategories: map[string]string{},
	}
	ApplySettings(doc, settings)
	return doc, nil
}

// EmptyDay returns a day with no sessions.
func EmptyDay(dateISO string) domain.DayRecord {
	return domain.DayRecord{
		DateISO:      dateISO,
		Types:        map[string]bool{},
		SessionCount: 0,
		SessionsList: []domain.SessionSummary{},
		Comments:     map[string]string{},
	}
}

// ApplySettings replaces the document's benchmarks, custom types and categories
// with copies of the non-nil fields of s.
func ApplySettings(doc *domain.WeeklyDocument, s domain.WeekSettings) {
	if s.Benchmarks != nil {
		doc.Benchmarks = make(map[string]int, len(s.Benchmarks))
		for k, v := range s.Benchmarks {
			doc.Benchmarks[k] = v
		}
	}
	if s.CustomTypes != nil {
		doc.CustomTypes = append([]string{}, s.CustomTypes...)
	}
	if s.TypeCategories != nil {
		doc.TypeCategories = make(map[string]string, len(s.TypeCategories))
		for k, v := range s.TypeCategories {
			doc.TypeCategories[k] = v
		}
	}
}

func weekDates(weekKey string) ([]string, error) {
	if !calendar.IsWeekKey(weekKey) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidWeekKey, weekKey)
	}
	return calendar.WeekDates(weekKey)
}

// IsCanonicalOrder reports whether doc holds exactly seven sequential days
// starting on a Monday that matches weekOfISO.
func IsCanonicalOrder(doc *domain.WeeklyDocument) bool {
	if doc == nil || len(doc.Days) != calendar.DaysPerWeek {
		return false
	}
	start, err := calendar.ParseISODate(doc.Days[0].DateISO, time.UTC)
	if err != nil || start.Weekday() != time.Monday {
		return false
	}
	if doc.WeekOfISO != "" && doc.WeekOfISO != doc.Days[0].DateISO {
		return false
	}
	for i, day := range doc.Days {
		if day.DateISO != calendar.ToISODate(calendar.AddDays(start, i)) {
			return false
		}
	}
	return true
}

// NormalizeOrder rotates a week whose seven days are correct but start on the
// wrong weekday so that index 0 is Monday. Day contents are not touched.
//
// It fails with domain.ErrOutOfRangeDate when any day lies outside the week
// that starts at the Monday entry, or when weekOfISO names a different week,
// and with domain.ErrMalformedWeek when the days cannot be a rotation of one
// week. The input is never modified; on success a new document is returned.
func NormalizeOrder(doc *domain.WeeklyDocument) (*domain.WeeklyDocument, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrMalformedWeek)
	}
	if len(doc.Days) != calendar.DaysPerWeek {
		return nil, fmt.Errorf("%w: week %s has %d days", domain.ErrMalformedWeek, doc.WeekOfISO, len(doc.Days))
	}

	monday := -1
	for i, day := range doc.Days {
		t, err := calendar.ParseISODate(day.DateISO, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: day %d: %v", domain.ErrMalformedWeek, i, err)
		}
		if t.Weekday() == time.Monday {
			if monday >= 0 {
				return nil, fmt.Errorf("%w: week %s has two Mondays (%s, %s)",
					domain.ErrOutOfRangeDate, doc.WeekOfISO, doc.Days[monday].DateISO, day.DateISO)
			}
			monday = i
		}
	}
	if monday < 0 {
		return nil, fmt.Errorf("%w: week %s has no Monday", domain.ErrOutOfRangeDate, doc.WeekOfISO)
	}

	weekKey := doc.Days[monday].DateISO
	if doc.WeekOfISO != "" && doc.WeekOfISO != weekKey {
		return nil, fmt.Errorf("%w: days belong to week %s, document is %s",
			domain.ErrOutOfRangeDate, weekKey, doc.WeekOfISO)
	}
	for _, day := range doc.Days {
		if calendar.DayIndex(weekKey, day.DateISO) < 0 {
			return nil, fmt.Errorf("%w: %s is not in week %s", domain.ErrOutOfRangeDate, day.DateISO, weekKey)
		}
	}

	out := doc.Clone()
	if monday > 0 {
		rotated := make([]domain.DayRecord, 0, calendar.DaysPerWeek)
		rotated = append(rotated, out.Days[monday:]...)
		rotated = append(rotated, out.Days[:monday]...)
		out.Days = rotated
	}
	if !IsCanonicalOrder(out) {
		return nil, fmt.Errorf("%w: days of week %s are not a rotation of one week", domain.ErrMalformedWeek, weekKey)
	}
	return out, nil
}

// CheckTypeMetadata returns an *domain.IncompleteMetadataError naming every
// custom type that lacks a category, or nil.
func CheckTypeMetadata(doc *domain.WeeklyDocument) error {
	var missing []string
	for _, t := range doc.CustomTypes {
		if doc.TypeCategories[t] == "" {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &domain.IncompleteMetadataError{WeekOfISO: doc.WeekOfISO, Missing: missing}
}
