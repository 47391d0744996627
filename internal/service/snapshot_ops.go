package service

import (
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/storage"
	"alcyxob/workout-tracker/internal/weekly"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// snapshotKeyFor checks that key belongs to the user's week before it is read.
func (s *weekService) snapshotKeyFor(userID, weekKey, key string) error {
	if s.snapshots == nil {
		return ErrSnapshotsDisabled
	}
	if err := validateWeekKey(weekKey); err != nil {
		return err
	}
	if !strings.HasPrefix(key, storage.SnapshotPrefix(userID, weekKey)) {
		return fmt.Errorf("%w: snapshot %q does not belong to week %s", ErrValidationFailed, key, weekKey)
	}
	return nil
}

// ListSnapshots returns the archived versions of a week, newest first.
func (s *weekService) ListSnapshots(ctx context.Context, userID, weekKey string) ([]storage.SnapshotInfo, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	if err := validateWeekKey(weekKey); err != nil {
		return nil, err
	}
	return s.snapshots.ListSnapshots(ctx, storage.SnapshotPrefix(userID, weekKey))
}

// RestoreSnapshot replaces the week with an archived version.
// The current version is archived first, so a restore can itself be undone.
func (s *weekService) RestoreSnapshot(ctx context.Context, userID, weekKey, key string) (doc *domain.WeeklyDocument, err error) {
	defer func(start time.Time) { s.observe(OpRestore, start, err) }(time.Now())

	if err = s.snapshotKeyFor(userID, weekKey, key); err != nil {
		return nil, err
	}
	body, err := s.snapshots.GetSnapshot(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	var archived domain.WeeklyDocument
	if err = json.Unmarshal(body, &archived); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", domain.ErrMalformedWeek, key, err)
	}
	doc, err = weekly.NormalizeOrder(&archived)
	if err != nil {
		return nil, err
	}

	current, persisted, err := s.load(ctx, userID, weekKey)
	if err != nil {
		return nil, err
	}
	if !persisted {
		current = nil
	}
	snapshotKey, err := s.write(ctx, userID, weekKey, current, doc, OpRestore)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("week", weekKey).Str("restored", key).Str("snapshot", snapshotKey).Msg("week restored from snapshot")
	return doc, nil
}

// SnapshotURL returns a temporary download link for one snapshot.
func (s *weekService) SnapshotURL(ctx context.Context, userID, weekKey, key string) (string, error) {
	if err := s.snapshotKeyFor(userID, weekKey, key); err != nil {
		return "", err
	}
	url, err := s.snapshots.GeneratePresignedDownloadURL(ctx, key, storage.DefaultPresignedURLExpiry)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", ErrSnapshotNotFound
		}
		return "", err
	}
	return url, nil
}
