// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package postgres implements auth.AccountStore using PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Querier is the subset of pgxpool.Pool used by the repository. pgxmock
// satisfies it, so unit tests run without a database.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountStore on an accounts table.
// Save is an upsert, preserving the store contract that a write fully
// replaces the record; last writer wins, as with the flat-file store.
type AccountRepository struct {
	db Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db Querier) (*AccountRepository, error) {
	if db == nil {
		return nil, oops.Errorf("database connection is required")
	}
	return &AccountRepository{db: db}, nil
}

// Exists reports whether a record is present for the username.
func (r *AccountRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, oops.Code(auth.CodeStoreOpenFailed).
			With("operation", "check account exists").
			With("username", username).
			Wrap(err)
	}
	return exists, nil
}

// Load retrieves the account record for the username.
func (r *AccountRepository) Load(ctx context.Context, username string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT username, password_digest, email, full_name, created_at
		FROM accounts
		WHERE username = $1
	`, username)

	var account auth.Account
	err := row.Scan(
		&account.Username,
		&account.PasswordDigest,
		&account.Email,
		&account.FullName,
		&account.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, classify(err, "load account", username)
	}
	return &account, nil
}

// Save writes the record, creating the key if absent and overwriting if
// present.
func (r *AccountRepository) Save(ctx context.Context, username string, account *auth.Account) error {
	if account == nil {
		return oops.Code(auth.CodeStoreEncodeFailed).Errorf("account is required")
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (username, password_digest, email, full_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO UPDATE SET
			password_digest = EXCLUDED.password_digest,
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name
	`,
		account.Username,
		account.PasswordDigest,
		account.Email,
		account.FullName,
		account.CreatedAt,
	)
	if err != nil {
		return classify(err, "save account", username)
	}
	return nil
}

// classify maps a postgres error onto the store's fault taxonomy: data and
// constraint errors mean the record itself could not be written or read back
// sanely, everything else is a medium failure.
func classify(err error, operation, username string) error {
	code := auth.CodeStoreOpenFailed

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsDataException(pgErr.Code),
			pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
			code = auth.CodeStoreEncodeFailed
		case pgerrcode.IsConnectionException(pgErr.Code):
			code = auth.CodeStoreOpenFailed
		}
		return oops.Code(code).
			With("operation", operation).
			With("username", username).
			With("pg_code", pgErr.Code).
			Wrap(err)
	}

	return oops.Code(code).
		With("operation", operation).
		With("username", username).
		Wrap(err)
}
