// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Form is the raw field mapping submitted by a client.
type Form map[string]string

// Result is returned on successful registration or login. Token is the
// freshly rotated session identifier for the client to hold.
type Result struct {
	Token   string
	Session *Session
}

// Field and message texts surfaced to users. The credential mismatch message
// is identical for an unknown username and a wrong password so responses do
// not leak which accounts exist.
const (
	msgUsernameTaken      = "is already in use"
	msgCredentialMismatch = "and password do not match"
)

// dummyDigest is verified against when a username does not exist, so the
// login path performs the same hashing work whether or not the account is
// real. It is not a credential and can never match a password.
//
//nolint:gosec // G101: intentionally fake digest for timing-attack prevention.
const dummyDigest = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service orchestrates the credential lifecycle: validation, hashing,
// storage, and session establishment.
type Service struct {
	accounts AccountStore
	sessions *Manager
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewService creates a Service with a no-op logger.
func NewService(accounts AccountStore, sessions *Manager, hasher PasswordHasher) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("account store is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Service{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		logger:   slog.New(slog.DiscardHandler),
	}, nil
}

// NewServiceWithLogger creates a Service with the provided logger.
func NewServiceWithLogger(accounts AccountStore, sessions *Manager, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewService(accounts, sessions, hasher)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// Register creates an account from the submitted form and establishes a
// session for it (registration implies immediate login).
//
// All four fields are normalized and validated first, collecting every
// field's errors rather than stopping at the first. The username-taken check
// runs only after validation passes, so an invalid username is never
// reported as already in use. A non-nil error is an operational storage
// fault; the transport surfaces it via WebsiteError, never raw diagnostics.
func (s *Service) Register(ctx context.Context, form Form, fingerprint string) (*Result, FieldErrors, error) {
	username := NormalizeUsername(form["username"])
	password := form["password"]
	email := NormalizeEmail(form["email"])
	fullName := NormalizeFullName(form["full_name"])

	fieldErrs := FieldErrors{}
	fieldErrs.Add("username", ValidateUsername(username)...)
	fieldErrs.Add("password", ValidatePassword(password)...)
	fieldErrs.Add("email", ValidateEmail(email)...)
	fieldErrs.Add("full_name", ValidateFullName(fullName)...)
	if !fieldErrs.Empty() {
		return nil, fieldErrs, nil
	}

	// Must come after validation, otherwise an empty username could be
	// reported as taken.
	exists, err := s.accounts.Exists(ctx, username)
	if err != nil {
		return nil, nil, oops.Code(CodeStoreOpenFailed).
			With("operation", "check username exists").
			Wrap(err)
	}
	if exists {
		fieldErrs.Add("username", msgUsernameTaken)
		return nil, fieldErrs, nil
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account := &Account{
		Username:       username,
		PasswordDigest: digest,
		Email:          email,
		FullName:       fullName,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.accounts.Save(ctx, username, account); err != nil {
		return nil, nil, err
	}

	token, session, err := s.sessions.Establish(ctx, account, fingerprint)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("account registered", "username", username)
	return &Result{Token: token, Session: session}, nil, nil
}

// Login authenticates the submitted credentials and establishes a session.
//
// Only username and password shape are validated; account existence is not a
// validation concern. The store is always consulted with Load (no existence
// pre-branch) and exactly one digest verification runs on every attempt:
// against the stored digest when the record exists, against a constant dummy
// digest when it does not. Both paths do the same work. Unknown user and
// wrong password yield the identical field error.
func (s *Service) Login(ctx context.Context, form Form, fingerprint string) (*Result, FieldErrors, error) {
	username := NormalizeUsername(form["username"])
	password := form["password"]

	fieldErrs := FieldErrors{}
	fieldErrs.Add("username", ValidateUsername(username)...)
	fieldErrs.Add("password", ValidatePassword(password)...)
	if !fieldErrs.Empty() {
		return nil, fieldErrs, nil
	}

	target := dummyDigest
	var account *Account

	loaded, err := s.accounts.Load(ctx, username)
	switch {
	case err == nil:
		account = loaded
		target = account.PasswordDigest
	case errors.Is(err, ErrNotFound):
		// Keep going with the dummy digest.
	default:
		return nil, nil, err
	}

	valid, err := s.hasher.Verify(password, target)
	if err != nil {
		if account == nil {
			// The dummy digest never parses to a match; report the
			// usual mismatch rather than an internal error.
			fieldErrs.Add("username", msgCredentialMismatch)
			return nil, fieldErrs, nil
		}
		return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(err)
	}

	if account == nil || !valid {
		s.logger.Debug("login rejected", "username", username)
		fieldErrs.Add("username", msgCredentialMismatch)
		return nil, fieldErrs, nil
	}

	token, session, err := s.sessions.Establish(ctx, account, fingerprint)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("login succeeded", "username", username)
	return &Result{Token: token, Session: session}, nil, nil
}
