package kv

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used for tests and single-node development.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns the value stored under key, or ErrNotFound.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set writes value under key.
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

// SetIfMatch writes next only if the current value equals expected.
func (m *Memory) SetIfMatch(ctx context.Context, key string, expected, next []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.data[key]
	if !ok || !bytes.Equal(cur, expected) {
		return false, nil
	}
	v := make([]byte, len(next))
	copy(v, next)
	m.data[key] = v
	return true, nil
}

// Delete removes key if present.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// ScanPrefix returns all entries with the given key prefix, ordered by key.
func (m *Memory) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []Entry
	for k, v := range m.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		val := make([]byte, len(v))
		copy(val, v)
		entries = append(entries, Entry{Key: k, Value: val})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}
