package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds raised by the weekly model and the reconciliation engine.
var (
	ErrOutOfRangeDate         = errors.New("date outside the expected week")
	ErrUnplaceableSession     = errors.New("session has no derivable date")
	ErrIncompleteTypeMetadata = errors.New("custom type without category")
	ErrMalformedWeek          = errors.New("malformed weekly document")
	ErrInvalidWeekKey         = errors.New("week key must be the ISO date of a Monday")
)

// IncompleteMetadataError lists custom types that have no category.
// It is warning-level: callers log it and carry on.
type IncompleteMetadataError struct {
	WeekOfISO string
	Missing   []string
}

func (e *IncompleteMetadataError) Error() string {
	return fmt.Sprintf("week %s: %s: %s", e.WeekOfISO, ErrIncompleteTypeMetadata.Error(), strings.Join(e.Missing, ", "))
}

func (e *IncompleteMetadataError) Unwrap() error {
	return ErrIncompleteTypeMetadata
}
