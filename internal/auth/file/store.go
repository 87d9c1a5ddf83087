// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package file implements auth.AccountStore on a flat-file directory with
// one JSON record per username.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// schemaVersion tags persisted records so the on-disk format can evolve
// without guessing at old bytes.
const schemaVersion = 1

// record is the versioned on-disk shape of an account.
type record struct {
	SchemaVersion  int       `json:"schema_version"`
	Username       string    `json:"username"`
	PasswordDigest string    `json:"password_digest"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists one account record per username under a directory. The
// username is the storage key directly: it is validated to lowercase ASCII
// letters before it ever reaches the store, so it is safe as a file name.
//
// Writes go through a temp file and rename, so a reader never observes a
// torn record. There is no cross-process locking beyond that: two concurrent
// registrations for the same fresh username can both pass the existence
// check and both write, with the last writer winning.
type Store struct {
	dir string
}

// NewStore creates the data directory if needed and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, oops.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.Code(auth.CodeStoreOpenFailed).
			With("operation", "create data directory").
			With("dir", dir).
			Wrap(err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(username string) string {
	return filepath.Join(s.dir, username+".json")
}

// Exists reports whether a record is present for the username.
func (s *Store) Exists(_ context.Context, username string) (bool, error) {
	_, err := os.Stat(s.path(username))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, oops.Code(auth.CodeStoreOpenFailed).
		With("operation", "stat record").
		With("username", username).
		Wrap(err)
}

// Load reads and decodes the record for the username.
func (s *Store) Load(_ context.Context, username string) (*auth.Account, error) {
	data, err := os.ReadFile(s.path(username))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("ACCOUNT_NOT_FOUND").
				With("username", username).
				Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code(auth.CodeStoreOpenFailed).
			With("operation", "read record").
			With("username", username).
			Wrap(err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code(auth.CodeStoreDecodeFailed).
			With("operation", "decode record").
			With("username", username).
			Wrap(errors.Join(auth.ErrCorruptRecord, err))
	}
	if rec.SchemaVersion != schemaVersion || rec.Username == "" || rec.PasswordDigest == "" {
		return nil, oops.Code(auth.CodeStoreDecodeFailed).
			With("operation", "decode record").
			With("username", username).
			With("schema_version", rec.SchemaVersion).
			Wrap(auth.ErrCorruptRecord)
	}

	return &auth.Account{
		Username:       rec.Username,
		PasswordDigest: rec.PasswordDigest,
		Email:          rec.Email,
		FullName:       rec.FullName,
		CreatedAt:      rec.CreatedAt,
	}, nil
}

// Save encodes and writes the record, replacing any existing one.
func (s *Store) Save(_ context.Context, username string, account *auth.Account) error {
	if account == nil {
		return oops.Code(auth.CodeStoreEncodeFailed).Errorf("account is required")
	}

	data, err := json.Marshal(record{
		SchemaVersion:  schemaVersion,
		Username:       account.Username,
		PasswordDigest: account.PasswordDigest,
		Email:          account.Email,
		FullName:       account.FullName,
		CreatedAt:      account.CreatedAt,
	})
	if err != nil {
		return oops.Code(auth.CodeStoreEncodeFailed).
			With("operation", "encode record").
			With("username", username).
			Wrap(err)
	}

	tmp, err := os.CreateTemp(s.dir, username+".*.tmp")
	if err != nil {
		return oops.Code(auth.CodeStoreOpenFailed).
			With("operation", "create temp record").
			With("username", username).
			Wrap(err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return oops.Code(auth.CodeStoreOpenFailed).
			With("operation", "write temp record").
			With("username", username).
			Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return oops.Code(auth.CodeStoreOpenFailed).
			With("operation", "close temp record").
			With("username", username).
			Wrap(err)
	}

	if err := os.Rename(tmp.Name(), s.path(username)); err != nil {
		_ = os.Remove(tmp.Name())
		return oops.Code(auth.CodeStoreOpenFailed).
			With("operation", "rename record into place").
			With("username", username).
			Wrap(err)
	}

	return nil
}
