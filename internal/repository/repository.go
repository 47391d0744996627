package repository

import (
	"alcyxob/workout-tracker/internal/domain"
	"context"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// WeeklyRepository stores one WeeklyDocument per (user, week key).
type WeeklyRepository interface {
	// Get returns ErrNotFound when the week has never been written.
	Get(ctx context.Context, userID, weekKey string) (*domain.WeeklyDocument, error)
	// Set replaces the whole document in a single write. Never a partial merge.
	Set(ctx context.Context, userID, weekKey string, doc *domain.WeeklyDocument) error
	// Latest returns the most recent week strictly before weekKey, or ErrNotFound.
	Latest(ctx context.Context, userID, beforeWeekKey string) (*domain.WeeklyDocument, error)
}

// SessionRepository is the append-only session log.
type SessionRepository interface {
	// Add stores the event and returns its generated ID.
	Add(ctx context.Context, event *domain.SessionEvent) (string, error)
	Get(ctx context.Context, userID, id string) (*domain.SessionEvent, error)
	// List returns the user's events in no particular order.
	List(ctx context.Context, userID string) ([]domain.SessionEvent, error)
	// ListRange narrows List to events whose dateISO lies in [fromISO, toISO], plus
	// every event with an empty or malformed dateISO so the caller can place or report them.
	ListRange(ctx context.Context, userID, fromISO, toISO string) ([]domain.SessionEvent, error)
	Delete(ctx context.Context, userID, id string) error
}
