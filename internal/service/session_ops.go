package service

import (
	"alcyxob/workout-tracker/internal/calendar"
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/reconcile"
	"alcyxob/workout-tracker/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// LogSession appends a session to the log and folds it into its week.
// When the stored week cannot be normalized the week is rebuilt from the log instead.
// The fold applies no burst policy: the stored count is pre-dedupe until the
// next RebuildWeek or DedupeWeek.
func (s *weekService) LogSession(ctx context.Context, userID string, input LogSessionInput) (res *LogSessionResult, err error) {
	defer func(start time.Time) { s.observe(OpLog, start, err) }(time.Now())

	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidationFailed)
	}
	types := make([]string, 0, len(input.SessionTypes))
	for _, t := range input.SessionTypes {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: at least one session type is required", ErrValidationFailed)
	}
	if input.DateISO != "" {
		if _, pErr := calendar.ParseISODate(input.DateISO, time.UTC); pErr != nil {
			return nil, fmt.Errorf("%w: dateISO %q is not YYYY-MM-DD", ErrValidationFailed, input.DateISO)
		}
	}
	if input.ExerciseCount != nil && *input.ExerciseCount < 0 {
		return nil, fmt.Errorf("%w: exerciseCount must not be negative", ErrValidationFailed)
	}

	ev := domain.SessionEvent{
		UserID:        userID,
		DateISO:       input.DateISO,
		SessionTypes:  types,
		CompletedAt:   input.CompletedAt,
		Manual:        input.Manual,
		ExerciseCount: input.ExerciseCount,
	}
	if ev.CompletedAt == 0 {
		ev.CompletedAt = s.now().UnixMilli()
	}
	date, err := s.engine.PlaceEvent(&ev)
	if err != nil {
		return nil, err
	}
	ev.DateISO = date

	if ev.ID, err = s.sessionRepo.Add(ctx, &ev); err != nil {
		return nil, err
	}
	weekKey, err := weekKeyOfDate(date)
	if err != nil {
		return nil, err
	}
	res = &LogSessionResult{Event: ev}

	doc, _, err := s.current(ctx, userID, weekKey)
	switch {
	case err == nil:
		if err = reconcile.Fold(doc, ev, date); err != nil {
			return nil, err
		}
		if _, err = s.write(ctx, userID, weekKey, nil, doc, OpLog); err != nil {
			return nil, err
		}
		res.Document = doc
	case errors.Is(err, domain.ErrOutOfRangeDate), errors.Is(err, domain.ErrMalformedWeek):
		s.logger.Warn().Err(err).Str("user_id", userID).Str("week", weekKey).Msg("stored week unusable, rebuilding after log")
		out, rErr := s.rebuild(ctx, userID, weekKey, OpRebuild, s.engine, RebuildOptions{}, false)
		if rErr != nil {
			return nil, rErr
		}
		res.Document = out.Document
		res.Rebuilt = true
	default:
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("session_id", ev.ID).
		Str("date", date).
		Strs("types", ev.SessionTypes).
		Bool("manual", ev.Manual).
		Msg("session logged")
	return res, nil
}

// ListSessions returns the user's log, optionally narrowed to [fromISO, toISO].
// A range also returns undated events.
func (s *weekService) ListSessions(ctx context.Context, userID, fromISO, toISO string) ([]domain.SessionEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidationFailed)
	}
	if fromISO == "" && toISO == "" {
		return s.sessionRepo.List(ctx, userID)
	}
	for _, d := range []string{fromISO, toISO} {
		if _, err := calendar.ParseISODate(d, time.UTC); err != nil {
			return nil, fmt.Errorf("%w: range bound %q is not YYYY-MM-DD", ErrValidationFailed, d)
		}
	}
	if fromISO > toISO {
		return nil, fmt.Errorf("%w: from %s is after to %s", ErrValidationFailed, fromISO, toISO)
	}
	return s.sessionRepo.ListRange(ctx, userID, fromISO, toISO)
}

// DeleteSession removes one event from the log and rebuilds the week it belonged to.
// The outcome is nil when the event could not be placed on any day.
func (s *weekService) DeleteSession(ctx context.Context, userID, sessionID string) (out *RepairOutcome, err error) {
	defer func(start time.Time) { s.observe(OpDelete, start, err) }(time.Now())

	ev, err := s.sessionRepo.Get(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if err = s.sessionRepo.Delete(ctx, userID, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("session_id", sessionID).Msg("session deleted")

	date, pErr := s.engine.PlaceEvent(ev)
	if pErr != nil {
		s.logger.Warn().Err(pErr).Str("user_id", userID).Msg("deleted session had no day, no week rebuilt")
		return nil, nil
	}
	weekKey, err := weekKeyOfDate(date)
	if err != nil {
		return nil, err
	}
	return s.rebuild(ctx, userID, weekKey, OpDelete, s.engine, RebuildOptions{}, false)
}

func weekKeyOfDate(dateISO string) (string, error) {
	t, err := calendar.ParseISODate(dateISO, time.UTC)
	if err != nil {
		return "", err
	}
	return calendar.WeekKeyOf(t), nil
}
