package main

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/example/ragpipeline/internal/accounts"
	"github.com/example/ragpipeline/internal/logging"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// validate writes a 422 with the per field messages when v is invalid.
func (a *App) validate(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	err := v.Validate()
	if err == nil {
		return true
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		writeError(w, http.StatusUnprocessableEntity, verrs)
		return false
	}
	a.writeInternal(w, r, "main.validate", err)
	return false
}

// HandleLogin accepts a JSON {username, password} body.
func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	a.login(w, r, req)
}

// HandleLoginForm accepts the OAuth2 password grant form encoding.
func (a *App) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if gt := r.PostForm.Get("grant_type"); gt != "" && gt != "password" {
		writeError(w, http.StatusBadRequest, "Unsupported grant_type")
		return
	}
	a.login(w, r, LoginRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	})
}

func (a *App) login(w http.ResponseWriter, r *http.Request, req LoginRequest) {
	const op = "main.login"

	if !a.validate(w, r, req) {
		return
	}
	pair, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeGateError(w, r, op, err, msgBadCredentials)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
		RefreshToken: pair.RefreshToken,
	})
}

// HandleRegister creates an active account with the user role.
func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "main.HandleRegister"

	if !a.cfg.AllowRegistration {
		writeError(w, http.StatusForbidden, msgRegistrationOff)
		return
	}

	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if !a.validate(w, r, req) {
		return
	}

	acc, err := a.store.Create(r.Context(), accounts.NewAccount{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
		Role:     accounts.RoleUser,
		Status:   accounts.StatusActive,
	})
	if err != nil {
		a.writeStoreError(w, r, op, err)
		return
	}
	logging.FromContext(r.Context(), a.log).Info("account registered", slog.Int64("user_id", acc.ID))
	writeJSON(w, http.StatusCreated, acc)
}

// HandleMe returns the caller's own account.
func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFromContext(r.Context())
	writeJSON(w, http.StatusOK, acc)
}

func (a *App) HandleAdminGreeting(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Hello admin!",
		"user":    acc.Username,
	})
}

// HandleInitTestUsers seeds the fixture accounts into an empty store.
func (a *App) HandleInitTestUsers(w http.ResponseWriter, r *http.Request) {
	const op = "main.HandleInitTestUsers"

	n, err := accounts.SeedTestAccounts(r.Context(), a.store)
	if err != nil {
		a.writeInternal(w, r, op, err)
		return
	}
	logging.FromContext(r.Context(), a.log).Info("test users initialized", slog.Int("created", n))
	writeJSON(w, http.StatusOK, messageResponse{Message: "Test users initialized successfully"})
}

type introspectResponse struct {
	Active    bool   `json:"active"`
	Sub       string `json:"sub,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
}

// HandleTokenIntrospect implements OAuth 2.0 token introspection. The token
// may come as JSON {"token": ...} or form encoded. Anything that does not
// verify is reported as inactive.
func (a *App) HandleTokenIntrospect(w http.ResponseWriter, r *http.Request) {
	var req IntrospectRequest
	if isForm(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		req.Token = r.PostForm.Get("token")
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if !a.validate(w, r, req) {
		return
	}

	id, err := a.auth.Introspect(req.Token)
	if err != nil {
		writeJSON(w, http.StatusOK, introspectResponse{Active: false})
		return
	}
	writeJSON(w, http.StatusOK, introspectResponse{
		Active:    true,
		Sub:       id.Username,
		UserID:    id.UserID,
		TokenType: string(id.Kind),
		Exp:       id.ExpiresAt.Unix(),
	})
}

func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}
