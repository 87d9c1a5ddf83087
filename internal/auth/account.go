// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"time"
)

// Account is the persisted record for one registered user. Username is the
// sole identity key: it is set exactly once by a successful registration and
// never changes. A record exists in the store if and only if its username has
// completed registration; accounts are never updated or deleted afterwards.
type Account struct {
	Username       string
	PasswordDigest string
	Email          string
	FullName       string
	CreatedAt      time.Time
}

// AccountStore is a durable mapping from username to account record.
// A save fully replaces the record; there are no merge semantics. The store
// performs no locking: two concurrent writers to the same key race, with the
// last writer winning.
//
// Failure kinds are distinct: an unreadable medium carries
// CodeStoreOpenFailed, corrupt persisted bytes carry CodeStoreDecodeFailed
// (wrapping ErrCorruptRecord), and a record that cannot be serialized carries
// CodeStoreEncodeFailed. A missing record wraps ErrNotFound.
type AccountStore interface {
	// Exists reports whether a record is present for the username.
	Exists(ctx context.Context, username string) (bool, error)

	// Load reads and decodes the record for the username.
	Load(ctx context.Context, username string) (*Account, error)

	// Save encodes and writes the record, creating the key if absent and
	// overwriting if present.
	Save(ctx context.Context, username string, account *Account) error
}
