package storage

import (
	"context"
	"strings"
	"sync"
)

// MemoryMedium keeps values in process memory. Nothing survives a restart;
// it backs tests and the "memory" driver used for demos.
type MemoryMedium struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{values: make(map[string]string)}
}

func (m *MemoryMedium) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryMedium) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *MemoryMedium) Usage(_ context.Context, prefix string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var used int64
	for k, v := range m.values {
		if strings.HasPrefix(k, prefix) {
			used += int64(len(v))
		}
	}
	return used, nil
}

func (m *MemoryMedium) Close() error {
	return nil
}
