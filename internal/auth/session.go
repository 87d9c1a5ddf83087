// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// SessionTokenBytes is the size of the random session token (64 hex chars).
const SessionTokenBytes = 32

// Session is the server-held state proving a client has authenticated.
// It is valid only while its Fingerprint matches the fingerprint of the
// current request; on mismatch the session is forcibly torn down.
type Session struct {
	Username    string    `json:"username"`
	FullName    string    `json:"full_name"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionStore holds active sessions keyed by token hash. Implementations
// are dependency-injected into Manager; there is no process-wide session
// state. Get returns an error wrapping ErrNotFound for an unknown key.
type SessionStore interface {
	Put(ctx context.Context, tokenHash string, session *Session) error
	Get(ctx context.Context, tokenHash string) (*Session, error)
	Delete(ctx context.Context, tokenHash string) error
}

// MetricsRecorder receives session lifecycle events. The zero value of
// Manager records nothing.
type MetricsRecorder interface {
	SessionEstablished()
	SessionTornDown()
	FingerprintMismatch()
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token is held by the client; only the hash is stored
// server-side, so a leaked session store cannot be replayed.
func GenerateSessionToken() (token, hash string, err error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}

	token = hex.EncodeToString(buf)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA-256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks a plaintext token against a stored hash in
// constant time.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// Manager establishes and destroys authenticated sessions. A fresh token is
// issued on every privilege transition, so a fixated or stolen identifier
// stops working the moment the client authenticates or logs out.
type Manager struct {
	store   SessionStore
	metrics MetricsRecorder
	logger  *slog.Logger
}

// NewManager creates a session manager over the given store.
func NewManager(store SessionStore) (*Manager, error) {
	if store == nil {
		return nil, oops.Errorf("session store is required")
	}
	return &Manager{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}, nil
}

// NewManagerWithMetrics creates a session manager that reports lifecycle
// events to the given recorder.
func NewManagerWithMetrics(store SessionStore, metrics MetricsRecorder, logger *slog.Logger) (*Manager, error) {
	m, err := NewManager(store)
	if err != nil {
		return nil, err
	}
	m.metrics = metrics
	if logger != nil {
		m.logger = logger
	}
	return m, nil
}

// Establish rotates the session identifier and stores the session for the
// account, superseding any previous session content for the returned token.
// The caller replaces the client-held identifier with the returned token.
func (m *Manager) Establish(ctx context.Context, account *Account, fingerprint string) (string, *Session, error) {
	if account == nil {
		return "", nil, oops.Errorf("account is required")
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}

	session := &Session{
		Username:    account.Username,
		FullName:    account.FullName,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
	}

	if err := m.store.Put(ctx, tokenHash, session); err != nil {
		return "", nil, oops.Code("SESSION_ESTABLISH_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	if m.metrics != nil {
		m.metrics.SessionEstablished()
	}
	return token, session, nil
}

// Current returns the active session for the token, or nil when no session
// is active. If the stored fingerprint does not match the request's
// fingerprint the session is forcibly torn down before returning, so a
// mismatched client can never observe logged-in state.
func (m *Manager) Current(ctx context.Context, token, fingerprint string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	session, err := m.store.Get(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("SESSION_READ_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if subtle.ConstantTimeCompare([]byte(session.Fingerprint), []byte(fingerprint)) != 1 {
		m.logger.Warn("session fingerprint mismatch, forcing teardown",
			"username", session.Username,
		)
		if m.metrics != nil {
			m.metrics.FingerprintMismatch()
		}
		if err := m.Teardown(ctx, token); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return session, nil
}

// IsAuthenticated reports whether the token maps to a valid session for the
// request's fingerprint.
func (m *Manager) IsAuthenticated(ctx context.Context, token, fingerprint string) bool {
	session, err := m.Current(ctx, token, fingerprint)
	return err == nil && session != nil
}

// Teardown clears all server-side session state for the token. It is
// idempotent: tearing down an unknown or already-destroyed session is not an
// error. The transport layer additionally clears the client-held cookie with
// an immediate-expiry replacement.
func (m *Manager) Teardown(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, HashSessionToken(token)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_TEARDOWN_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if m.metrics != nil {
		m.metrics.SessionTornDown()
	}
	return nil
}
