// Package store provides the record store boundary: records addressable by
// string key, with no schema beyond that. The engine only needs point reads
// and point writes per key; concurrent writes to the same key are
// last-write-wins.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Record is anything the store can persist.
type Record interface {
	Key() string
}

// RecordStore is the persistence boundary consumed by the cache and the
// extraction engine.
type RecordStore interface {
	// Get decodes the record stored under key into out and reports whether
	// it was found. A missing record is not an error.
	Get(ctx context.Context, key string, out any) (bool, error)
	Put(ctx context.Context, rec Record) error
	PutMany(ctx context.Context, recs []Record) error
}

// Memory is an in-process RecordStore used by tests and offline runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory record store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode record %q: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Put(_ context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", rec.Key(), err)
	}
	m.mu.Lock()
	m.data[rec.Key()] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) PutMany(ctx context.Context, recs []Record) error {
	for _, rec := range recs {
		if err := m.Put(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many records the store holds.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
