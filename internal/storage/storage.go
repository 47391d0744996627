package storage

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ErrObjectNotFound is returned when a snapshot key does not exist.
var ErrObjectNotFound = errors.New("object not found in storage")

// SnapshotInfo describes one archived weekly document.
type SnapshotInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// SnapshotStore archives weekly documents before they are replaced so a bad
// repair can be rolled back.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, body []byte) error
	GetSnapshot(ctx context.Context, key string) ([]byte, error)
	// ListSnapshots returns snapshots under prefix, newest first.
	ListSnapshots(ctx context.Context, prefix string) ([]SnapshotInfo, error)
	// GeneratePresignedDownloadURL creates a temporary GET URL for a snapshot.
	GeneratePresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// SnapshotPrefix is the key prefix of every snapshot of one week.
func SnapshotPrefix(userID, weekKey string) string {
	return path.Join("snapshots", userID, weekKey) + "/"
}

// SnapshotKey builds a unique, time-sortable key for a new snapshot.
func SnapshotKey(userID, weekKey, reason string, at time.Time) string {
	name := at.UTC().Format("20060102T150405.000Z") + "-" + reason + "-" + uuid.NewString()[:8] + ".json"
	return SnapshotPrefix(userID, weekKey) + name
}
