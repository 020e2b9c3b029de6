package kv

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryData struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// MemoryStore is a Store held in process memory, used by tests and the
// --ephemeral server mode.
type MemoryStore struct {
	data *memoryData
	hub  *Hub
	id   string
}

// Compile-time check that *MemoryStore satisfies Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a context over a fresh, empty blob map.
func NewMemoryStore(hub *Hub) *MemoryStore {
	if hub == nil {
		hub = NewHub(nil)
	}
	return &MemoryStore{
		data: &memoryData{blobs: make(map[string]Blob)},
		hub:  hub,
		id:   uuid.NewString(),
	}
}

// Sibling returns another context over the same map and hub.
func (m *MemoryStore) Sibling() *MemoryStore {
	return &MemoryStore{data: m.data, hub: m.hub, id: uuid.NewString()}
}

// ID identifies this context.
func (m *MemoryStore) ID() string { return m.id }

// Get returns the blob stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (Blob, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	b, ok := m.data.blobs[key]
	if !ok {
		return Blob{}, ErrNotFound
	}
	b.Value = append([]byte(nil), b.Value...)
	return b, nil
}

// Set overwrites the value under key.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) (int64, error) {
	m.data.mu.Lock()
	b := m.data.blobs[key]
	b.Key = key
	b.Value = append([]byte(nil), value...)
	b.Version++
	b.UpdatedAt = time.Now().UTC()
	m.data.blobs[key] = b
	m.data.mu.Unlock()

	m.hub.Publish(Change{Key: key, Value: append([]byte(nil), value...), Version: b.Version, Origin: m.id})
	return b.Version, nil
}

// Version returns the write counter of key, 0 if never written.
func (m *MemoryStore) Version(_ context.Context, key string) (int64, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	return m.data.blobs[key].Version, nil
}

// Subscribe registers fn for writes to key made through other contexts.
func (m *MemoryStore) Subscribe(key string, fn func(Change)) func() {
	return m.hub.Subscribe(m.id, key, fn)
}
