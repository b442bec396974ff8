package storage

import (
	"context"
	"sync"
)

type MemoryStorage struct {
	mu      sync.Mutex
	state   *State
	cookies []Cookie
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, nil
	}
	return *m.state, nil
}

func (m *MemoryStorage) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &state
	return nil
}

func (m *MemoryStorage) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}

// Has reports whether an entry is stored, which a zero State cannot tell.
func (m *MemoryStorage) Has() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != nil
}

func (m *MemoryStorage) Exists(_ context.Context) (bool, error) {
	return m.Has(), nil
}

func (m *MemoryStorage) LoadCookies(_ context.Context) ([]Cookie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Cookie(nil), m.cookies...), nil
}

func (m *MemoryStorage) SaveCookies(_ context.Context, cookies []Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies = append([]Cookie(nil), cookies...)
	return nil
}
