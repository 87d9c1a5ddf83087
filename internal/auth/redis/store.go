// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package redis implements auth.SessionStore on Redis, for deployments where
// sessions must survive process restarts or be shared across instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// keyPrefix namespaces session keys in a shared Redis.
const keyPrefix = "gatehouse:session:"

// DefaultTTL bounds how long an untouched session survives.
const DefaultTTL = 24 * time.Hour

// Store is a Redis-backed auth.SessionStore. Session values are stored as
// JSON under the token hash with a TTL; Redis expiry is the only session
// lifetime mechanism, matching the client cookie's session scope loosely.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a Store over an existing client. A non-positive ttl
// falls back to DefaultTTL.
func NewStore(client *redis.Client, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, oops.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}, nil
}

func key(tokenHash string) string {
	return keyPrefix + tokenHash
}

// Put stores a session under the token hash, replacing any existing entry
// and resetting the TTL.
func (s *Store) Put(ctx context.Context, tokenHash string, session *auth.Session) error {
	if session == nil {
		return oops.Errorf("session is required")
	}

	blob, err := json.Marshal(session)
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").
			With("operation", "encode session").
			Wrap(err)
	}

	if err := s.client.Set(ctx, key(tokenHash), blob, s.ttl).Err(); err != nil {
		return oops.Code("SESSION_PUT_FAILED").
			With("operation", "redis set").
			Wrap(err)
	}
	return nil
}

// Get returns the session for the token hash. An expired or unknown key
// wraps auth.ErrNotFound; an undecodable value is deleted and reported the
// same way, since a corrupt session can never be validated.
func (s *Store) Get(ctx context.Context, tokenHash string) (*auth.Session, error) {
	blob, err := s.client.Get(ctx, key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "redis get").
			Wrap(err)
	}

	var session auth.Session
	if err := json.Unmarshal(blob, &session); err != nil {
		_ = s.client.Del(ctx, key(tokenHash)).Err()
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("operation", "decode session").
			Wrap(auth.ErrNotFound)
	}
	return &session, nil
}

// Delete removes the session for the token hash.
func (s *Store) Delete(ctx context.Context, tokenHash string) error {
	deleted, err := s.client.Del(ctx, key(tokenHash)).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "redis del").
			Wrap(err)
	}
	if deleted == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}
