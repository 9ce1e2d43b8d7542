package authn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ragpipeline/internal/accounts"
	"github.com/example/ragpipeline/internal/password"
	"github.com/example/ragpipeline/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	store  *accounts.MemoryStore
	tokens *token.Issuer
	svc    *Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	hasher := password.NewBcrypt(bcrypt.MinCost)
	f.store = accounts.NewMemoryStore(hasher, accounts.WithClock(clock))
	_, err := accounts.SeedTestAccounts(context.Background(), f.store)
	require.NoError(t, err)

	f.tokens, err = token.NewIssuer(token.Options{Secret: []byte("test-secret"), Now: clock})
	require.NoError(t, err)

	f.svc, err = NewService(f.store, hasher, f.tokens, nil)
	require.NoError(t, err)
	return f
}

func (f *fixture) setStatus(t *testing.T, username string, st accounts.Status) *accounts.Account {
	t.Helper()
	acc, err := f.store.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	acc, err = f.store.Update(context.Background(), acc.ID, accounts.AccountUpdate{Status: &st})
	require.NoError(t, err)
	return acc
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		f := newFixture(t)
		acc, err := f.svc.Authenticate(ctx, "admin", "admin123")
		require.NoError(t, err)
		assert.Equal(t, "admin", acc.Username)
		assert.Equal(t, accounts.RoleAdmin, acc.Role)
	})

	tests := []struct {
		name     string
		username string
		password string
		status   accounts.Status
	}{
		{name: "wrong password", username: "admin", password: "wrong"},
		{name: "unknown username", username: "nobody", password: "admin123"},
		{name: "empty password", username: "user", password: ""},
		{name: "suspended account", username: "user", password: "user123", status: accounts.StatusSuspended},
		{name: "inactive account", username: "guest", password: "guest123", status: accounts.StatusInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.status != "" {
				f.setStatus(t, tt.username, tt.status)
			}
			acc, err := f.svc.Authenticate(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, ErrAuthenticationFailed)
			assert.Nil(t, acc)
		})
	}
}

type brokenStore struct {
	accounts.Store
}

var errStoreDown = errors.New("store down")

func (brokenStore) GetByUsername(context.Context, string) (*accounts.Account, error) {
	return nil, errStoreDown
}

func (brokenStore) GetByID(context.Context, int64) (*accounts.Account, error) {
	return nil, errStoreDown
}

func TestAuthenticate_StoreFailureIsNotMasked(t *testing.T) {
	f := newFixture(t)
	svc, err := NewService(brokenStore{f.store}, password.NewBcrypt(bcrypt.MinCost), f.tokens, nil)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "admin", "admin123")
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrAuthenticationFailed)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.svc.Login(ctx, "user", "user123")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, pair.ExpiresIn)
	require.NotNil(t, pair.Account.LastLogin)
	assert.True(t, pair.Account.LastLogin.Equal(f.now))

	access, err := f.tokens.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, token.KindAccess, access.Kind)
	assert.Equal(t, "user", access.Username)
	assert.Equal(t, pair.Account.ID, access.UserID)

	refresh, err := f.tokens.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, token.KindRefresh, refresh.Kind)

	stored, err := f.store.GetByUsername(ctx, "user")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)

	_, err = f.svc.Login(ctx, "user", "nope")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("access token", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.Login(ctx, "admin", "admin123")
		require.NoError(t, err)

		acc, err := f.svc.Resolve(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "admin", acc.Username)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.Login(ctx, "admin", "admin123")
		require.NoError(t, err)

		_, err = f.svc.Resolve(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("garbage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Resolve(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.Login(ctx, "admin", "admin123")
		require.NoError(t, err)

		f.now = f.now.Add(pair.ExpiresIn)
		_, err = f.svc.Resolve(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("deleted account", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.Login(ctx, "user", "user123")
		require.NoError(t, err)

		ok, err := f.store.Delete(ctx, pair.Account.ID)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = f.svc.Resolve(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("renamed account", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.Login(ctx, "user", "user123")
		require.NoError(t, err)

		name := "renamed"
		_, err = f.store.Update(ctx, pair.Account.ID, accounts.AccountUpdate{Username: &name})
		require.NoError(t, err)

		_, err = f.svc.Resolve(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("suspended after issue still resolves", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.svc.Login(ctx, "user", "user123")
		require.NoError(t, err)
		f.setStatus(t, "user", accounts.StatusSuspended)

		acc, err := f.svc.Resolve(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.ErrorIs(t, RequireActive(acc), ErrInactiveAccount)
	})
}

func TestGates(t *testing.T) {
	admin := &accounts.Account{Role: accounts.RoleAdmin, Status: accounts.StatusActive}
	user := &accounts.Account{Role: accounts.RoleUser, Status: accounts.StatusActive}
	inactive := &accounts.Account{Role: accounts.RoleAdmin, Status: accounts.StatusInactive}

	assert.NoError(t, RequireActive(admin))
	assert.NoError(t, RequireAdmin(admin))
	assert.NoError(t, RequireActive(user))
	assert.ErrorIs(t, RequireAdmin(user), ErrAuthorizationFailed)
	assert.ErrorIs(t, RequireActive(inactive), ErrInactiveAccount)
	assert.NoError(t, RequireAdmin(inactive))

	assert.NotErrorIs(t, ErrInactiveAccount, ErrAuthorizationFailed)
}
