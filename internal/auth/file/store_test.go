// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package file_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/file"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func testAccount() *auth.Account {
	return &auth.Account{
		Username:       "alice",
		PasswordDigest: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		Email:          "alice@example.com",
		FullName:       "Alice Smith",
		CreatedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewStore(t *testing.T) {
	t.Run("creates the data directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "accounts")
		_, err := file.NewStore(dir)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("empty directory is rejected", func(t *testing.T) {
		_, err := file.NewStore("")
		assert.Error(t, err)
	})
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips a record", func(t *testing.T) {
		store, err := file.NewStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, "alice", testAccount()))

		got, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, testAccount(), got)
	})

	t.Run("save replaces an existing record", func(t *testing.T) {
		store, err := file.NewStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, "alice", testAccount()))

		updated := testAccount()
		updated.Email = "alice@example.org"
		require.NoError(t, store.Save(ctx, "alice", updated))

		got, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.org", got.Email)
	})

	t.Run("load of missing record wraps ErrNotFound", func(t *testing.T) {
		store, err := file.NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Load(ctx, "missing")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("nil account is rejected", func(t *testing.T) {
		store, err := file.NewStore(t.TempDir())
		require.NoError(t, err)

		err = store.Save(ctx, "alice", nil)
		errutil.AssertErrorCode(t, err, auth.CodeStoreEncodeFailed)
	})

	t.Run("no temp files remain after a save", func(t *testing.T) {
		dir := t.TempDir()
		store, err := file.NewStore(dir)
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, "alice", testAccount()))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "alice.json", entries[0].Name())
	})
}

func TestStoreExists(t *testing.T) {
	ctx := context.Background()
	store, err := file.NewStore(t.TempDir())
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save(ctx, "alice", testAccount()))

	exists, err = store.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStoreCorruptRecords(t *testing.T) {
	ctx := context.Background()

	write := func(t *testing.T, dir, name string, data []byte) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0o600))
	}

	t.Run("unparseable bytes report a decode fault", func(t *testing.T) {
		dir := t.TempDir()
		store, err := file.NewStore(dir)
		require.NoError(t, err)

		write(t, dir, "alice", []byte("{not json"))

		_, err = store.Load(ctx, "alice")
		assert.ErrorIs(t, err, auth.ErrCorruptRecord)
		errutil.AssertErrorCode(t, err, auth.CodeStoreDecodeFailed)
	})

	t.Run("unknown schema version reports a decode fault", func(t *testing.T) {
		dir := t.TempDir()
		store, err := file.NewStore(dir)
		require.NoError(t, err)

		data, err := json.Marshal(map[string]any{
			"schema_version":  99,
			"username":        "alice",
			"password_digest": "x",
		})
		require.NoError(t, err)
		write(t, dir, "alice", data)

		_, err = store.Load(ctx, "alice")
		assert.ErrorIs(t, err, auth.ErrCorruptRecord)
	})

	t.Run("missing required fields report a decode fault", func(t *testing.T) {
		dir := t.TempDir()
		store, err := file.NewStore(dir)
		require.NoError(t, err)

		write(t, dir, "alice", []byte(`{"schema_version":1,"username":"alice"}`))

		_, err = store.Load(ctx, "alice")
		assert.ErrorIs(t, err, auth.ErrCorruptRecord)
		errutil.AssertErrorCode(t, err, auth.CodeStoreDecodeFailed)
	})

	// A corrupt record still counts as present: registration must not
	// silently overwrite it.
	t.Run("corrupt record still exists", func(t *testing.T) {
		dir := t.TempDir()
		store, err := file.NewStore(dir)
		require.NoError(t, err)

		write(t, dir, "alice", []byte("{not json"))

		exists, err := store.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
