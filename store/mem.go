package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemStore is a minimal in-memory Store, used only by this module's own
// tests as a stand-in for the real durable, prefix-scannable, batch-
// writable byte store spec section 1 keeps external.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemStore) BatchWrite(_ context.Context, puts []KeyValue, deletes [][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range deletes {
		delete(m.data, string(d))
	}
	for _, kv := range puts {
		v := make([]byte, len(kv.Value))
		copy(v, kv.Value)
		m.data[string(kv.Key)] = v
	}
	return nil
}

func (m *MemStore) ScanPrefix(_ context.Context, prefix []byte, fn func(KeyValue) bool) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	snapshot := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, KeyValue{Key: []byte(k), Value: m.data[k]})
	}
	m.mu.RUnlock()

	for _, kv := range snapshot {
		if !fn(kv) {
			break
		}
	}
	return nil
}
