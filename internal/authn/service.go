// Package authn turns credentials into an authenticated account and bearer
// tokens back into accounts.
//
// Authentication failures are uniform: an unknown username, a
// wrong password and a non-active account all produce
// ErrAuthenticationFailed. Authorization gates on an already resolved
// account are not hidden and return their own errors.
package authn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ragpipeline/internal/accounts"
	"github.com/example/ragpipeline/internal/password"
	"github.com/example/ragpipeline/internal/token"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAuthorizationFailed  = errors.New("not enough permissions")
	ErrInactiveAccount      = errors.New("inactive account")
)

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime.
	ExpiresIn time.Duration
	Account   *accounts.Account
}

// Service wires the credential store, the password hasher and the token
// issuer together.
type Service struct {
	store  accounts.Store
	hasher password.Hasher
	tokens *token.Issuer
	log    *slog.Logger

	// dummyHash is verified against when the username is unknown so that
	// the response time does not reveal which accounts exist.
	dummyHash string
}

func NewService(store accounts.Store, hasher password.Hasher, tokens *token.Issuer, log *slog.Logger) (*Service, error) {
	const op = "authn.NewService"

	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	dummy, err := hasher.Hash("dummy-password-for-unknown-users")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Service{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		log:       log,
		dummyHash: dummy,
	}, nil
}

// Authenticate checks username and password and requires the account to be
// active. Store failures other than "not found" are returned wrapped; every
// credential problem is ErrAuthenticationFailed.
func (s *Service) Authenticate(ctx context.Context, username, plain string) (*accounts.Account, error) {
	const op = "authn.Authenticate"

	log := s.log.With(slog.String("op", op))

	acc, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, accounts.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.hasher.Verify(plain, s.dummyHash)
		log.Debug("authentication failed", slog.String("reason", "unknown username"))
		return nil, ErrAuthenticationFailed
	}

	if !s.hasher.Verify(plain, acc.PasswordHash) {
		log.Debug("authentication failed", slog.String("reason", "password mismatch"), slog.Int64("user_id", acc.ID))
		return nil, ErrAuthenticationFailed
	}

	if !acc.IsActive() {
		log.Debug("authentication failed", slog.String("reason", "account not active"),
			slog.Int64("user_id", acc.ID), slog.String("status", string(acc.Status)))
		return nil, ErrAuthenticationFailed
	}

	return acc, nil
}

// Login authenticates, records the login time and issues an access and a
// refresh token.
func (s *Service) Login(ctx context.Context, username, plain string) (*TokenPair, error) {
	const op = "authn.Login"

	acc, err := s.Authenticate(ctx, username, plain)
	if err != nil {
		return nil, err
	}

	acc, err = s.store.UpdateLastLogin(ctx, acc.ID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			// deleted between the lookup and now
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access, err := s.tokens.IssueAccess(acc.Username, acc.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	refresh, err := s.tokens.IssueRefresh(acc.Username, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user logged in", slog.String("op", op), slog.Int64("user_id", acc.ID))

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.tokens.AccessTTL(),
		Account:      acc,
	}, nil
}

// Resolve maps a bearer access token to the current state of its account.
// Refresh tokens, tokens for deleted accounts and tokens whose subject no
// longer matches the account's username are rejected.
func (s *Service) Resolve(ctx context.Context, bearer string) (*accounts.Account, error) {
	const op = "authn.Resolve"

	id, err := s.tokens.Verify(bearer)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if id.Kind != token.KindAccess {
		s.log.Debug("bearer rejected", slog.String("op", op), slog.String("reason", "not an access token"))
		return nil, ErrAuthenticationFailed
	}

	acc, err := s.store.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if acc.Username != id.Username {
		s.log.Debug("bearer rejected", slog.String("op", op), slog.String("reason", "subject mismatch"), slog.Int64("user_id", acc.ID))
		return nil, ErrAuthenticationFailed
	}
	return acc, nil
}

// Introspect reports what a token asserts without touching the store.
func (s *Service) Introspect(raw string) (token.Identity, error) {
	return s.tokens.Verify(raw)
}

// RequireActive gates on account status.
func RequireActive(acc *accounts.Account) error {
	if !acc.IsActive() {
		return ErrInactiveAccount
	}
	return nil
}

// RequireAdmin gates on the administrator role.
func RequireAdmin(acc *accounts.Account) error {
	if !acc.IsAdmin() {
		return ErrAuthorizationFailed
	}
	return nil
}
