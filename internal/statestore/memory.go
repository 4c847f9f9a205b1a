package statestore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUnavailable is returned by a Memory store switched offline.
var ErrUnavailable = errors.New("state store unavailable")

// Memory is an in-process SliceStore for tests and offline runs.
type Memory struct {
	mu      sync.Mutex
	slices  map[string][]byte
	offline bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{slices: make(map[string][]byte)}
}

// SetOffline makes every call fail with ErrUnavailable.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	m.offline = offline
	m.mu.Unlock()
}

func (m *Memory) LoadSlice(_ context.Context, gameID, slice string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, false, ErrUnavailable
	}
	p, ok := m.slices[gameID+"/"+slice]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), p...), true, nil
}

func (m *Memory) SaveSlice(_ context.Context, gameID, slice string, payload []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return ErrUnavailable
	}
	m.slices[gameID+"/"+slice] = append([]byte(nil), payload...)
	return nil
}
