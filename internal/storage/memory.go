package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStorage keeps snapshots in process. Used by the memory storage mode and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	body     []byte
	modified time.Time
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: map[string]memoryObject{}}
}

func (m *MemoryStorage) PutSnapshot(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: append([]byte(nil), body...), modified: time.Now().UTC()}
	return nil
}

func (m *MemoryStorage) GetSnapshot(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), obj.body...), nil
}

func (m *MemoryStorage) ListSnapshots(_ context.Context, prefix string) ([]SnapshotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var infos []SnapshotInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, SnapshotInfo{Key: key, Size: int64(len(obj.body)), LastModified: obj.modified})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key > infos[j].Key })
	return infos, nil
}

func (m *MemoryStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[key]; !ok {
		return "", ErrObjectNotFound
	}
	return "memory://" + key, nil
}
