package weekly

import (
	"errors"
	"sort"

	"alcyxob/workout-tracker/internal/domain"
)

// CountMismatch is a day whose sessionCount disagrees with its sessionsList.
type CountMismatch struct {
	DateISO      string `json:"dateISO" yaml:"dateISO"`
	SessionCount int    `json:"sessionCount" yaml:"sessionCount"`
	ListLength   int    `json:"listLength" yaml:"listLength"`
}

// UnmarkedType is a type performed in a session but not marked on its day.
type UnmarkedType struct {
	DateISO string `json:"dateISO" yaml:"dateISO"`
	Type    string `json:"type" yaml:"type"`
}

// Report describes every invariant violation found in a weekly document.
type Report struct {
	WeekOfISO         string          `json:"weekOfISO" yaml:"weekOfISO"`
	Canonical         bool            `json:"canonical" yaml:"canonical"`
	OrderError        string          `json:"orderError,omitempty" yaml:"orderError,omitempty"`
	Dates             []string        `json:"dates" yaml:"dates"`
	CountMismatches   []CountMismatch `json:"countMismatches,omitempty" yaml:"countMismatches,omitempty"`
	UnmarkedTypes     []UnmarkedType  `json:"unmarkedTypes,omitempty" yaml:"unmarkedTypes,omitempty"`
	MissingCategories []string        `json:"missingCategories,omitempty" yaml:"missingCategories,omitempty"`
}

// Healthy is true when the week needs no repair. Missing categories do not count.
func (r *Report) Healthy() bool {
	return r.Canonical && len(r.CountMismatches) == 0 && len(r.UnmarkedTypes) == 0
}

// Inspect checks doc without modifying it.
func Inspect(doc *domain.WeeklyDocument) *Report {
	r := &Report{WeekOfISO: doc.WeekOfISO, Canonical: IsCanonicalOrder(doc)}
	if !r.Canonical {
		if _, err := NormalizeOrder(doc); err != nil {
			r.OrderError = err.Error()
		}
	}

	for _, day := range doc.Days {
		r.Dates = append(r.Dates, day.DateISO)
		if day.SessionCount != len(day.SessionsList) {
			r.CountMismatches = append(r.CountMismatches, CountMismatch{
				DateISO:      day.DateISO,
				SessionCount: day.SessionCount,
				ListLength:   len(day.SessionsList),
			})
		}

		seen := map[string]bool{}
		var unmarked []string
		for _, s := range day.SessionsList {
			for _, t := range s.Types {
				if !day.Types[t] && !seen[t] {
					seen[t] = true
					unmarked = append(unmarked, t)
				}
			}
		}
		sort.Strings(unmarked)
		for _, t := range unmarked {
			r.UnmarkedTypes = append(r.UnmarkedTypes, UnmarkedType{DateISO: day.DateISO, Type: t})
		}
	}

	var incomplete *domain.IncompleteMetadataError
	if err := CheckTypeMetadata(doc); errors.As(err, &incomplete) {
		r.MissingCategories = incomplete.Missing
	}
	return r
}
