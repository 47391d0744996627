package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotKey(t *testing.T) {
	at := time.Date(2025, 9, 30, 8, 15, 0, 0, time.UTC)
	key := SnapshotKey("u1", "2025-09-22", "rebuild", at)
	assert.True(t, strings.HasPrefix(key, "snapshots/u1/2025-09-22/20250930T081500.000Z-rebuild-"), key)
	assert.True(t, strings.HasSuffix(key, ".json"))
	assert.NotEqual(t, key, SnapshotKey("u1", "2025-09-22", "rebuild", at))
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	older := SnapshotKey("u1", "2025-09-22", "normalize", time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC))
	newer := SnapshotKey("u1", "2025-09-22", "rebuild", time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, m.PutSnapshot(ctx, older, []byte(`{"a":1}`)))
	require.NoError(t, m.PutSnapshot(ctx, newer, []byte(`{"a":2}`)))
	require.NoError(t, m.PutSnapshot(ctx, SnapshotKey("u1", "2025-09-29", "rebuild", time.Now()), []byte(`{}`)))

	infos, err := m.ListSnapshots(ctx, SnapshotPrefix("u1", "2025-09-22"))
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, newer, infos[0].Key)
	assert.Equal(t, older, infos[1].Key)
	assert.Equal(t, int64(7), infos[0].Size)

	body, err := m.GetSnapshot(ctx, older)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	_, err = m.GetSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	url, err := m.GeneratePresignedDownloadURL(ctx, newer, 0)
	require.NoError(t, err)
	assert.Equal(t, "memory://"+newer, url)
}
