// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// memoryAccounts is an in-memory AccountStore for service tests.
type memoryAccounts struct {
	records map[string]*auth.Account
	failure error
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{records: make(map[string]*auth.Account)}
}

func (m *memoryAccounts) Exists(_ context.Context, username string) (bool, error) {
	if m.failure != nil {
		return false, m.failure
	}
	_, ok := m.records[username]
	return ok, nil
}

func (m *memoryAccounts) Load(_ context.Context, username string) (*auth.Account, error) {
	if m.failure != nil {
		return nil, m.failure
	}
	account, ok := m.records[username]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	copied := *account
	return &copied, nil
}

func (m *memoryAccounts) Save(_ context.Context, username string, account *auth.Account) error {
	if m.failure != nil {
		return m.failure
	}
	copied := *account
	m.records[username] = &copied
	return nil
}

func newTestService(t *testing.T, accounts auth.AccountStore) *auth.Service {
	t.Helper()
	sessions, err := auth.NewManager(auth.NewMemoryStore())
	require.NoError(t, err)
	svc, err := auth.NewService(accounts, sessions, auth.NewArgon2idHasher())
	require.NoError(t, err)
	return svc
}

func validRegistration() auth.Form {
	return auth.Form{
		"username":  "alice",
		"password":  "sw0rdfish",
		"email":     "alice@example.com",
		"full_name": "alice smith",
	}
}

func TestNewService_NilDependencies(t *testing.T) {
	accounts := newMemoryAccounts()
	sessions, err := auth.NewManager(auth.NewMemoryStore())
	require.NoError(t, err)
	hasher := auth.NewArgon2idHasher()

	tests := []struct {
		name        string
		accounts    auth.AccountStore
		sessions    *auth.Manager
		hasher      auth.PasswordHasher
		expectError string
	}{
		{"nil account store", nil, sessions, hasher, "account store is required"},
		{"nil session manager", accounts, nil, hasher, "session manager is required"},
		{"nil password hasher", accounts, sessions, nil, "password hasher is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.accounts, tt.sessions, tt.hasher)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account and establishes session", func(t *testing.T) {
		accounts := newMemoryAccounts()
		svc := newTestService(t, accounts)

		result, fieldErrs, err := svc.Register(ctx, validRegistration(), "browser-a")
		require.NoError(t, err)
		assert.Empty(t, fieldErrs)
		require.NotNil(t, result)
		assert.NotEmpty(t, result.Token)
		assert.Equal(t, "alice", result.Session.Username)
		assert.Equal(t, "Alice Smith", result.Session.FullName)

		stored := accounts.records["alice"]
		require.NotNil(t, stored)
		assert.Equal(t, "alice@example.com", stored.Email)
		assert.NotEqual(t, "sw0rdfish", stored.PasswordDigest)
		assert.False(t, stored.CreatedAt.IsZero())
	})

	t.Run("normalizes before storing", func(t *testing.T) {
		accounts := newMemoryAccounts()
		svc := newTestService(t, accounts)

		form := validRegistration()
		form["username"] = "  <b>Alice</b>  "
		form["full_name"] = " alice smith "

		result, fieldErrs, err := svc.Register(ctx, form, "browser-a")
		require.NoError(t, err)
		assert.Empty(t, fieldErrs)
		require.NotNil(t, result)
		assert.Contains(t, accounts.records, "alice")
		assert.Equal(t, "Alice Smith", accounts.records["alice"].FullName)
	})

	t.Run("collects all field errors", func(t *testing.T) {
		svc := newTestService(t, newMemoryAccounts())

		result, fieldErrs, err := svc.Register(ctx, auth.Form{}, "browser-a")
		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, []string{"must not be empty"}, fieldErrs["username"])
		assert.Equal(t, []string{"must not be empty"}, fieldErrs["password"])
		assert.Equal(t, []string{"must not be empty"}, fieldErrs["email"])
		assert.Equal(t, []string{"must not be empty"}, fieldErrs["full_name"])
	})

	t.Run("taken username reported after validation passes", func(t *testing.T) {
		accounts := newMemoryAccounts()
		svc := newTestService(t, accounts)

		_, _, err := svc.Register(ctx, validRegistration(), "browser-a")
		require.NoError(t, err)
		first := *accounts.records["alice"]

		form := validRegistration()
		form["password"] = "d1fferent"
		form["email"] = "impostor@example.com"

		result, fieldErrs, err := svc.Register(ctx, form, "browser-b")
		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, []string{"is already in use"}, fieldErrs["username"])

		// The rejected attempt leaves the first record untouched.
		assert.Equal(t, first, *accounts.records["alice"])
	})

	t.Run("invalid username is never reported as taken", func(t *testing.T) {
		svc := newTestService(t, newMemoryAccounts())

		form := validRegistration()
		form["username"] = ""

		_, fieldErrs, err := svc.Register(ctx, form, "browser-a")
		require.NoError(t, err)
		assert.Equal(t, []string{"must not be empty"}, fieldErrs["username"])
	})

	t.Run("store failure surfaces as operational error", func(t *testing.T) {
		accounts := newMemoryAccounts()
		accounts.failure = oops.Code(auth.CodeStoreOpenFailed).Errorf("disk on fire")
		svc := newTestService(t, accounts)

		result, fieldErrs, err := svc.Register(ctx, validRegistration(), "browser-a")
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Nil(t, fieldErrs)
		errutil.AssertErrorCode(t, err, auth.CodeStoreOpenFailed)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T) (*auth.Service, *memoryAccounts) {
		t.Helper()
		accounts := newMemoryAccounts()
		svc := newTestService(t, accounts)
		_, fieldErrs, err := svc.Register(ctx, validRegistration(), "browser-a")
		require.NoError(t, err)
		require.Empty(t, fieldErrs)
		return svc, accounts
	}

	t.Run("correct credentials establish a session", func(t *testing.T) {
		svc, _ := register(t)

		result, fieldErrs, err := svc.Login(ctx, auth.Form{
			"username": "alice",
			"password": "sw0rdfish",
		}, "browser-a")
		require.NoError(t, err)
		assert.Empty(t, fieldErrs)
		require.NotNil(t, result)
		assert.NotEmpty(t, result.Token)
		assert.Equal(t, "alice", result.Session.Username)
	})

	t.Run("username is normalized before lookup", func(t *testing.T) {
		svc, _ := register(t)

		result, fieldErrs, err := svc.Login(ctx, auth.Form{
			"username": "  ALICE  ",
			"password": "sw0rdfish",
		}, "browser-a")
		require.NoError(t, err)
		assert.Empty(t, fieldErrs)
		require.NotNil(t, result)
	})

	t.Run("wrong password and unknown user yield the same message", func(t *testing.T) {
		svc, _ := register(t)

		_, wrongPass, err := svc.Login(ctx, auth.Form{
			"username": "alice",
			"password": "wrongpassword",
		}, "browser-a")
		require.NoError(t, err)

		_, unknownUser, err := svc.Login(ctx, auth.Form{
			"username": "mallory",
			"password": "sw0rdfish",
		}, "browser-a")
		require.NoError(t, err)

		assert.Equal(t, []string{"and password do not match"}, wrongPass["username"])
		assert.Equal(t, wrongPass, unknownUser)
	})

	t.Run("shape validation precedes lookup", func(t *testing.T) {
		svc, _ := register(t)

		result, fieldErrs, err := svc.Login(ctx, auth.Form{
			"username": "a1",
			"password": "short",
		}, "browser-a")
		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, []string{"must be alphabetical"}, fieldErrs["username"])
		assert.Equal(t, []string{"must be at least 6 characters"}, fieldErrs["password"])
	})

	t.Run("store failure surfaces as operational error", func(t *testing.T) {
		svc, accounts := register(t)
		accounts.failure = oops.Code(auth.CodeStoreOpenFailed).Errorf("disk on fire")

		result, fieldErrs, err := svc.Login(ctx, auth.Form{
			"username": "alice",
			"password": "sw0rdfish",
		}, "browser-a")
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Nil(t, fieldErrs)
	})

	t.Run("corrupt stored digest is an operational error", func(t *testing.T) {
		svc, accounts := register(t)
		accounts.records["alice"].PasswordDigest = "not-a-digest"

		result, fieldErrs, err := svc.Login(ctx, auth.Form{
			"username": "alice",
			"password": "sw0rdfish",
		}, "browser-a")
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Nil(t, fieldErrs)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})

	t.Run("successive logins rotate the token", func(t *testing.T) {
		svc, _ := register(t)

		form := auth.Form{"username": "alice", "password": "sw0rdfish"}
		first, _, err := svc.Login(ctx, form, "browser-a")
		require.NoError(t, err)
		second, _, err := svc.Login(ctx, form, "browser-a")
		require.NoError(t, err)
		assert.NotEqual(t, first.Token, second.Token)
	})
}

func TestWebsiteError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"open fault", oops.Code(auth.CodeStoreOpenFailed).Errorf("x"), 1},
		{"decode fault", oops.Code(auth.CodeStoreDecodeFailed).Errorf("x"), 2},
		{"encode fault", oops.Code(auth.CodeStoreEncodeFailed).Errorf("x"), 3},
		{"unknown code", oops.Code("SOMETHING_ELSE").Errorf("x"), 0},
		{"plain error", assert.AnError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, auth.WebsiteCode(tt.err))
			assert.Contains(t, auth.WebsiteError(tt.err), "technical difficulties")
			assert.Contains(t, auth.WebsiteError(tt.err), "error code:")
		})
	}
}

func TestAccountTimestamps(t *testing.T) {
	ctx := context.Background()
	accounts := newMemoryAccounts()
	svc := newTestService(t, accounts)

	before := time.Now().UTC()
	_, _, err := svc.Register(ctx, validRegistration(), "browser-a")
	require.NoError(t, err)
	after := time.Now().UTC()

	created := accounts.records["alice"].CreatedAt
	assert.False(t, created.Before(before))
	assert.False(t, created.After(after))
}
