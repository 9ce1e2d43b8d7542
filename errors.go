package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/ragpipeline/internal/accounts"
	"github.com/example/ragpipeline/internal/authn"
	"github.com/example/ragpipeline/internal/logging"
)

const (
	msgBadCredentials   = "Incorrect username or password"
	msgInvalidToken     = "Could not validate credentials"
	msgInactiveUser     = "Inactive user"
	msgNotEnoughRights  = "Not enough permissions"
	msgInvalidBody      = "Invalid request body"
	msgInternal         = "Internal server error"
	msgAccountNotFound  = "User not found"
	msgInvalidAccount   = "Invalid account data"
	msgRegistrationOff  = "Registration is disabled"
	msgNotFound         = "Not Found"
	msgMethodNotAllowed = "Method Not Allowed"
)

// APIError is the body of every error response.
type APIError struct {
	Detail any `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("write json", logging.Err(err))
	}
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, APIError{Detail: detail})
}

// writeUnauthorized is the single 401 shape: it always carries the bearer
// challenge.
func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, detail)
}

// writeInternal logs err with the request scoped logger and hides it from
// the client.
func (a *App) writeInternal(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.FromContext(r.Context(), a.log).Error("request failed",
		slog.String("op", op), logging.Err(err))
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// writeStoreError maps credential store errors to responses.
func (a *App) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		writeError(w, http.StatusNotFound, msgAccountNotFound)
	case errors.Is(err, accounts.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, accounts.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, "Username already taken")
	case errors.Is(err, accounts.ErrInvalidAccount):
		writeError(w, http.StatusUnprocessableEntity, msgInvalidAccount)
	default:
		a.writeInternal(w, r, op, err)
	}
}

// writeGateError maps authorization gate failures. Authentication failures
// end up as 401 with the given detail.
func (a *App) writeGateError(w http.ResponseWriter, r *http.Request, op string, err error, unauthorized string) {
	switch {
	case errors.Is(err, authn.ErrAuthenticationFailed):
		writeUnauthorized(w, unauthorized)
	case errors.Is(err, authn.ErrInactiveAccount):
		writeError(w, http.StatusBadRequest, msgInactiveUser)
	case errors.Is(err, authn.ErrAuthorizationFailed):
		writeError(w, http.StatusForbidden, msgNotEnoughRights)
	default:
		a.writeInternal(w, r, op, err)
	}
}
