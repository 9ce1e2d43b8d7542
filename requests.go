package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/example/ragpipeline/internal/accounts"
	"github.com/example/ragpipeline/internal/password"
)

const maxBodyBytes = 1 << 20

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var (
	roleValues   = []any{accounts.RoleAdmin, accounts.RoleUser, accounts.RoleGuest}
	statusValues = []any{accounts.StatusActive, accounts.StatusInactive, accounts.StatusSuspended}
)

// decodeJSON reads a size limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

// LoginRequest only bounds field sizes; empty credentials fail
// authentication like any other mismatch.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(0, 100)),
		validation.Field(&r.Password, validation.Length(0, 128)),
	)
}

// RegisterRequest is the self service registration payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50), validation.Match(usernamePattern)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, password.MaxLength)),
		validation.Field(&r.FullName, validation.Length(0, 100)),
	)
}

// CreateAccountRequest is the administrator variant of RegisterRequest that
// may choose role and status.
type CreateAccountRequest struct {
	RegisterRequest
	Role   accounts.Role   `json:"role"`
	Status accounts.Status `json:"status"`
}

func (r CreateAccountRequest) Validate() error {
	if err := r.RegisterRequest.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.In(roleValues...)),
		validation.Field(&r.Status, validation.In(statusValues...)),
	)
}

// UpdateAccountRequest is a partial update; absent fields stay unchanged.
type UpdateAccountRequest struct {
	Email    *string          `json:"email"`
	Username *string          `json:"username"`
	FullName *string          `json:"full_name"`
	Role     *accounts.Role   `json:"role"`
	Status   *accounts.Status `json:"status"`
}

func (r UpdateAccountRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(3, 254), is.Email),
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.Length(3, 50), validation.Match(usernamePattern)),
		validation.Field(&r.FullName, validation.Length(0, 100)),
		validation.Field(&r.Role, validation.NilOrNotEmpty, validation.In(roleValues...)),
		validation.Field(&r.Status, validation.NilOrNotEmpty, validation.In(statusValues...)),
	)
}

func (r UpdateAccountRequest) update() accounts.AccountUpdate {
	return accounts.AccountUpdate{
		Email:    r.Email,
		Username: r.Username,
		FullName: r.FullName,
		Role:     r.Role,
		Status:   r.Status,
	}
}

type IntrospectRequest struct {
	Token string `json:"token"`
}

func (r IntrospectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}
