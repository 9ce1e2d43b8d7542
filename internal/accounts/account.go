// Package accounts owns the authoritative set of user accounts.
//
// A Store keeps email and username unique across all accounts, hands out
// strictly increasing identifiers that are never reused, and hashes the
// plaintext password on creation. Three backends implement Store: an
// in-memory map guarded by a single lock, SQLite and Postgres.
package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/ragpipeline/internal/password"
)

var (
	ErrNotFound          = errors.New("account not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrInvalidAccount    = errors.New("invalid account")
)

// Role is the authorization level of an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

// Status gates whether an account may authenticate.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	default:
		return false
	}
}

// Account is one user. PasswordHash never leaves the process in JSON.
type Account struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name,omitempty"`
	Role         Role       `json:"role"`
	Status       Status     `json:"status"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login"`
}

// IsActive is the single predicate every status gate uses.
func (a *Account) IsActive() bool { return a.Status == StatusActive }

// IsAdmin is the single predicate every role gate uses.
func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

func (a *Account) clone() *Account {
	c := *a
	if a.LastLogin != nil {
		t := *a.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// NewAccount is a registration candidate. Zero Role and Status default to
// RoleUser and StatusActive.
type NewAccount struct {
	Email    string
	Username string
	FullName string
	Password string
	Role     Role
	Status   Status
}

// build validates the candidate and hashes its password. The returned
// account has no identifier yet.
func (n NewAccount) build(h password.Hasher, now time.Time) (*Account, error) {
	if n.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidAccount)
	}
	if n.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidAccount)
	}
	if n.Role == "" {
		n.Role = RoleUser
	}
	if n.Status == "" {
		n.Status = StatusActive
	}
	if !n.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidAccount, n.Role)
	}
	if !n.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidAccount, n.Status)
	}

	hash, err := h.Hash(n.Password)
	if err != nil {
		if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
		}
		return nil, err
	}

	return &Account{
		Email:        n.Email,
		Username:     n.Username,
		FullName:     n.FullName,
		Role:         n.Role,
		Status:       n.Status,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// AccountUpdate is a partial update; nil fields are left untouched.
type AccountUpdate struct {
	Email    *string
	Username *string
	FullName *string
	Role     *Role
	Status   *Status
}

func (u AccountUpdate) validate() error {
	if u.Email != nil && *u.Email == "" {
		return fmt.Errorf("%w: email must not be empty", ErrInvalidAccount)
	}
	if u.Username != nil && *u.Username == "" {
		return fmt.Errorf("%w: username must not be empty", ErrInvalidAccount)
	}
	if u.Role != nil && !u.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidAccount, *u.Role)
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidAccount, *u.Status)
	}
	return nil
}

func (u AccountUpdate) apply(a *Account) {
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.Username != nil {
		a.Username = *u.Username
	}
	if u.FullName != nil {
		a.FullName = *u.FullName
	}
	if u.Role != nil {
		a.Role = *u.Role
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
}
