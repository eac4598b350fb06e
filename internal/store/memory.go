package store

import (
	"context"
	"errors"
	"sync"
)

type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, id string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = copyBytes(value)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBytes(v), nil
}

func (m *Memory) Update(_ context.Context, id string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	next, err := fn(copyBytes(current))
	if errors.Is(err, ErrSkipUpdate) {
		return nil
	}
	if err != nil {
		return err
	}
	m.records[id] = copyBytes(next)
	return nil
}

// Scan works on a snapshot so callbacks may write back into the store.
func (m *Memory) Scan(ctx context.Context, fn ScanFunc) error {
	m.mu.RLock()
	snapshot := make(map[string][]byte, len(m.records))
	for k, v := range m.records {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for k, v := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, copyBytes(v)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Flush(context.Context) error { return nil }

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
