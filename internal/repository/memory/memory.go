// Package memory is an in-process implementation of the repository contracts.
// It backs the "memory" storage mode and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"alcyxob/workout-tracker/internal/calendar"
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/repository"
)

type weekKey struct {
	userID string
	week   string
}

// WeeklyRepository implements repository.WeeklyRepository.
type WeeklyRepository struct {
	mu    sync.RWMutex
	weeks map[weekKey]*domain.WeeklyDocument
}

// NewWeeklyRepository creates an empty store.
func NewWeeklyRepository() *WeeklyRepository {
	return &WeeklyRepository{weeks: map[weekKey]*domain.WeeklyDocument{}}
}

func (r *WeeklyRepository) Get(_ context.Context, userID, week string) (*domain.WeeklyDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.weeks[weekKey{userID, week}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return doc.Clone(), nil
}

func (r *WeeklyRepository) Set(_ context.Context, userID, week string, doc *domain.WeeklyDocument) error {
	stored := doc.Clone()
	stored.UserID = userID
	stored.WeekOfISO = week
	stored.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.weeks[weekKey{userID, week}] = stored
	return nil
}

func (r *WeeklyRepository) Latest(_ context.Context, userID, before string) (*domain.WeeklyDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *domain.WeeklyDocument
	for k, doc := range r.weeks {
		if k.userID != userID || k.week >= before {
			continue
		}
		if best == nil || k.week > best.WeekOfISO {
			best = doc
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best.Clone(), nil
}

// SessionRepository implements repository.SessionRepository.
type SessionRepository struct {
	mu     sync.RWMutex
	events map[string]domain.SessionEvent
}

// NewSessionRepository creates an empty log.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{events: map[string]domain.SessionEvent{}}
}

func (r *SessionRepository) Add(_ context.Context, event *domain.SessionEvent) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	stored := *event
	stored.SessionTypes = append([]string(nil), event.SessionTypes...)
	r.events[event.ID] = stored
	return event.ID, nil
}

func (r *SessionRepository) Get(_ context.Context, userID, id string) (*domain.SessionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.events[id]
	if !ok || ev.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &ev, nil
}

func (r *SessionRepository) List(ctx context.Context, userID string) ([]domain.SessionEvent, error) {
	return r.ListRange(ctx, userID, "", "")
}

func (r *SessionRepository) ListRange(_ context.Context, userID, fromISO, toISO string) ([]domain.SessionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.SessionEvent{}
	for _, ev := range r.events {
		if ev.UserID != userID {
			continue
		}
		if !inRange(ev.DateISO, fromISO, toISO) {
			continue
		}
		out = append(out, ev)
	}
	// Map iteration is random; keep test output stable.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// inRange is false only for a well-formed dateISO outside [fromISO, toISO].
// Empty or malformed dates are kept so the caller can place them by timestamp.
func inRange(dateISO, fromISO, toISO string) bool {
	if _, err := calendar.ParseISODate(dateISO, time.UTC); err != nil {
		return true
	}
	return (fromISO == "" || dateISO >= fromISO) && (toISO == "" || dateISO <= toISO)
}

func (r *SessionRepository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[id]
	if !ok || ev.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.events, id)
	return nil
}
