// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/redis"
)

func newTestStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := redis.NewStore(client, time.Hour)
	require.NoError(t, err)
	return store, mr
}

func testSession() *auth.Session {
	return &auth.Session{
		Username:    "alice",
		FullName:    "Alice Smith",
		Fingerprint: "browser-a",
		CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewStore(t *testing.T) {
	t.Run("nil client is rejected", func(t *testing.T) {
		_, err := redis.NewStore(nil, time.Hour)
		assert.Error(t, err)
	})
}

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips a session", func(t *testing.T) {
		store, _ := newTestStore(t)

		require.NoError(t, store.Put(ctx, "hash1", testSession()))

		got, err := store.Get(ctx, "hash1")
		require.NoError(t, err)
		assert.Equal(t, testSession(), got)
	})

	t.Run("put replaces and resets TTL", func(t *testing.T) {
		store, mr := newTestStore(t)

		require.NoError(t, store.Put(ctx, "hash1", testSession()))
		mr.FastForward(30 * time.Minute)

		replaced := testSession()
		replaced.Fingerprint = "browser-b"
		require.NoError(t, store.Put(ctx, "hash1", replaced))
		mr.FastForward(45 * time.Minute)

		got, err := store.Get(ctx, "hash1")
		require.NoError(t, err)
		assert.Equal(t, "browser-b", got.Fingerprint)
	})

	t.Run("unknown hash wraps ErrNotFound", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("expired session is gone", func(t *testing.T) {
		store, mr := newTestStore(t)

		require.NoError(t, store.Put(ctx, "hash1", testSession()))
		mr.FastForward(2 * time.Hour)

		_, err := store.Get(ctx, "hash1")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("corrupt value is deleted and reported not found", func(t *testing.T) {
		store, mr := newTestStore(t)

		require.NoError(t, mr.Set("gatehouse:session:hash1", "{not json"))

		_, err := store.Get(ctx, "hash1")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.False(t, mr.Exists("gatehouse:session:hash1"))
	})

	t.Run("nil session is rejected", func(t *testing.T) {
		store, _ := newTestStore(t)
		assert.Error(t, store.Put(ctx, "hash1", nil))
	})
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the session", func(t *testing.T) {
		store, mr := newTestStore(t)

		require.NoError(t, store.Put(ctx, "hash1", testSession()))
		require.NoError(t, store.Delete(ctx, "hash1"))
		assert.False(t, mr.Exists("gatehouse:session:hash1"))
	})

	t.Run("unknown hash wraps ErrNotFound", func(t *testing.T) {
		store, _ := newTestStore(t)
		assert.ErrorIs(t, store.Delete(ctx, "missing"), auth.ErrNotFound)
	})
}

func TestStoreWithManager(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	manager, err := auth.NewManager(store)
	require.NoError(t, err)

	token, _, err := manager.Establish(ctx, &auth.Account{Username: "alice", FullName: "Alice Smith"}, "browser-a")
	require.NoError(t, err)

	session, err := manager.Current(ctx, token, "browser-a")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "alice", session.Username)

	require.NoError(t, manager.Teardown(ctx, token))
	session, err = manager.Current(ctx, token, "browser-a")
	require.NoError(t, err)
	assert.Nil(t, session)
}
