// Package state keeps per-chat conversation state between updates.
package state

import (
	"context"
	"fmt"
	"sync"
)

// Key identifies one user's conversation in one chat.
type Key struct {
	ChatID int64
	UserID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.UserID)
}

// Store persists the current state name and a small string map per Key.
// An empty state name means no conversation is in progress.
type Store interface {
	State(ctx context.Context, key Key) (string, error)
	SetState(ctx context.Context, key Key, state string) error
	Data(ctx context.Context, key Key) (map[string]string, error)
	UpdateData(ctx context.Context, key Key, data map[string]string) error
	Reset(ctx context.Context, key Key) error
	Close() error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.Mutex
	states map[Key]string
	data   map[Key]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[Key]string),
		data:   make(map[Key]map[string]string),
	}
}

func (s *MemoryStore) State(_ context.Context, key Key) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key], nil
}

func (s *MemoryStore) SetState(_ context.Context, key Key, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == "" {
		delete(s.states, key)
		return nil
	}
	s.states[key] = state
	return nil
}

func (s *MemoryStore) Data(_ context.Context, key Key) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.data[key]))
	for k, v := range s.data[key] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) UpdateData(_ context.Context, key Key, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.data[key]
	if m == nil {
		m = make(map[string]string, len(data))
		s.data[key] = m
	}
	for k, v := range data {
		m[k] = v
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
