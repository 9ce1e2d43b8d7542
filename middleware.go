package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/example/ragpipeline/internal/accounts"
	"github.com/example/ragpipeline/internal/authn"
	"github.com/example/ragpipeline/internal/logging"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type accountCtxKey struct{}

// accountFromContext returns the account resolved by Authenticated.
func accountFromContext(ctx context.Context) (*accounts.Account, bool) {
	acc, ok := ctx.Value(accountCtxKey{}).(*accounts.Account)
	return acc, ok && acc != nil
}

// bearerToken extracts the credentials of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// Authenticated resolves the bearer token to an account once per request
// and stores it in the request context.
func (a *App) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "main.Authenticated"

		tok, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "Not authenticated")
			return
		}
		acc, err := a.auth.Resolve(r.Context(), tok)
		if err != nil {
			a.writeGateError(w, r, op, err, msgInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), accountCtxKey{}, acc)
		ctx = logging.WithContext(ctx, logging.FromContext(ctx, a.log).With(slog.Int64("user_id", acc.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// gate wraps next with an account check. It must sit behind Authenticated.
func (a *App) gate(check func(*accounts.Account) error, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "main.gate"

		acc, ok := accountFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, msgInvalidToken)
			return
		}
		if err := check(acc); err != nil {
			a.writeGateError(w, r, op, err, msgInvalidToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActiveUser requires an authenticated, active account.
func (a *App) ActiveUser(next http.HandlerFunc) http.Handler {
	return a.Authenticated(a.gate(authn.RequireActive, next))
}

// AdminUser requires an authenticated, active administrator.
func (a *App) AdminUser(next http.HandlerFunc) http.Handler {
	return a.Authenticated(a.gate(authn.RequireActive, a.gate(authn.RequireAdmin, next)))
}

// CORS middleware handles CORS headers
func (a *App) CORS(next http.Handler) http.Handler {
	allowAny := slices.Contains(a.cfg.CORSOrigins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAny || slices.Contains(a.cfg.CORSOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Logging assigns a request id and writes one access log line per request.
func (a *App) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		log := a.log.With(slog.String("request_id", reqID))
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(logging.WithContext(r.Context(), log)))

		log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", wrapped.statusCode),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// Recover turns a handler panic into a 500.
func (a *App) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.FromContext(r.Context(), a.log).Error("panic",
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())))
				writeError(w, http.StatusInternalServerError, msgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
