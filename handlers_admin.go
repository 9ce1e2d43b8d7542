package main

import (
	"log/slog"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gorilla/mux"

	"github.com/example/ragpipeline/internal/accounts"
	"github.com/example/ragpipeline/internal/logging"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

type usersResponse struct {
	Users  []*accounts.Account `json:"users"`
	Total  int                 `json:"total"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
}

// pageParams reads offset and limit from the query string.
func pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	params := struct{ Offset, Limit int }{0, defaultPageLimit}
	if v := q.Get("offset"); v != "" {
		if params.Offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, validation.Errors{"offset": err}
		}
	}
	if v := q.Get("limit"); v != "" {
		if params.Limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, validation.Errors{"limit": err}
		}
	}
	err = validation.ValidateStruct(&params,
		validation.Field(&params.Offset, validation.Min(0)),
		validation.Field(&params.Limit, validation.Required, validation.Min(1), validation.Max(maxPageLimit)),
	)
	return params.Offset, params.Limit, err
}

// HandleListUsers returns one page of accounts in identifier order.
func (a *App) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	const op = "main.HandleListUsers"

	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	users, err := a.store.List(r.Context(), offset, limit)
	if err != nil {
		a.writeInternal(w, r, op, err)
		return
	}
	total, err := a.store.Count(r.Context())
	if err != nil {
		a.writeInternal(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users, Total: total, Offset: offset, Limit: limit})
}

// HandleCreateUser lets an administrator create an account with any role.
func (a *App) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	const op = "main.HandleCreateUser"

	var req CreateAccountRequest
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
		Role:     req.Role,
		Status:   req.Status,
	})
	if err != nil {
		a.writeStoreError(w, r, op, err)
		return
	}
	logging.FromContext(r.Context(), a.log).Info("account created",
		slog.Int64("account_id", acc.ID), slog.String("role", string(acc.Role)))
	writeJSON(w, http.StatusCreated, acc)
}

func accountID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func (a *App) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	const op = "main.HandleGetUser"

	id, ok := accountID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgAccountNotFound)
		return
	}
	acc, err := a.store.GetByID(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// HandleUpdateUser applies a partial update.
func (a *App) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	const op = "main.HandleUpdateUser"

	id, ok := accountID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgAccountNotFound)
		return
	}
	var req UpdateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if !a.validate(w, r, req) {
		return
	}

	acc, err := a.store.Update(r.Context(), id, req.update())
	if err != nil {
		a.writeStoreError(w, r, op, err)
		return
	}
	logging.FromContext(r.Context(), a.log).Info("account updated", slog.Int64("account_id", acc.ID))
	writeJSON(w, http.StatusOK, acc)
}

// HandleDeleteUser removes an account. Administrators cannot delete
// themselves.
func (a *App) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	const op = "main.HandleDeleteUser"

	id, ok := accountID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgAccountNotFound)
		return
	}
	if self, _ := accountFromContext(r.Context()); self != nil && self.ID == id {
		writeError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	removed, err := a.store.Delete(r.Context(), id)
	if err != nil {
		a.writeInternal(w, r, op, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, msgAccountNotFound)
		return
	}
	logging.FromContext(r.Context(), a.log).Info("account deleted", slog.Int64("account_id", id))
	w.WriteHeader(http.StatusNoContent)
}
