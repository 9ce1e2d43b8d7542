package main

import (
	"context"
	"net/http"
	"time"
)

const serviceName = "RAG Pipeline GUI API"

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (a *App) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to " + serviceName,
		"version": a.cfg.AppVersion,
	})
}

func (a *App) HandleAPIInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        a.cfg.AppName,
		"version":     a.cfg.AppVersion,
		"environment": a.cfg.Environment,
		"endpoints": map[string]string{
			"health": "/api/v1/health",
			"auth":   "/api/v1/auth",
			"users":  "/api/v1/users",
		},
	})
}

func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": timestamp(),
		"service":   serviceName,
	})
}

// HandleHealthDetailed adds host metrics to the basic health response.
func (a *App) HandleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	const op = "main.HandleHealthDetailed"

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := a.metrics.Collect(ctx)
	if err != nil {
		a.writeInternal(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": timestamp(),
		"service":   serviceName,
		"uptime":    time.Since(a.started).Round(time.Second).String(),
		"system":    stats,
	})
}

// HandleReady reports 503 while any dependency is unreachable.
func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) {
	checks, err := a.ready.Check(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "not ready",
			"timestamp": timestamp(),
			"checks":    checks,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": timestamp(),
		"checks":    checks,
	})
}

func (a *App) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": timestamp(),
	})
}
