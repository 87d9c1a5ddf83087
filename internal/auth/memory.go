// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// MemoryStore is an in-process SessionStore. Sessions are scoped to the
// lifetime of the process; a restart logs everyone out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// copySession returns a copy so callers cannot mutate stored state.
func copySession(s *Session) *Session {
	c := *s
	return &c
}

// Put stores a session under the token hash, replacing any existing entry.
func (m *MemoryStore) Put(_ context.Context, tokenHash string, session *Session) error {
	if session == nil {
		return oops.Errorf("session is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tokenHash] = copySession(session)
	return nil
}

// Get returns a copy of the session for the token hash.
func (m *MemoryStore) Get(_ context.Context, tokenHash string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	return copySession(session), nil
}

// Delete removes the session for the token hash.
func (m *MemoryStore) Delete(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[tokenHash]; !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	delete(m.sessions, tokenHash)
	return nil
}

// Len returns the number of active sessions. Used by readiness reporting and
// tests.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
