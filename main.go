package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/ragpipeline/internal/accounts"
	"github.com/example/ragpipeline/internal/authn"
	cfg "github.com/example/ragpipeline/internal/config"
	"github.com/example/ragpipeline/internal/health"
	"github.com/example/ragpipeline/internal/logging"
	"github.com/example/ragpipeline/internal/password"
	"github.com/example/ragpipeline/internal/token"
	"github.com/example/ragpipeline/migrations"
)

type App struct {
	cfg     *cfg.Config
	log     *slog.Logger
	store   accounts.Store
	auth    *authn.Service
	metrics health.Collector
	ready   *health.Readiness
	started time.Time
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	c, err := cfg.Load(configPath)
	if err != nil {
		return err
	}

	format := c.Log.Format
	if format == "" {
		format = logging.FormatFor(c.Environment)
	}
	level := c.Log.Level
	if c.Debug {
		level = "debug"
	}
	log := logging.New(os.Stdout, level, format)
	slog.SetDefault(log)

	hasher := password.NewBcrypt(c.Auth.BcryptCost)
	store, err := openStore(context.Background(), c, hasher, log)
	if err != nil {
		return err
	}
	defer store.Close()

	app, err := newApp(c, log, store, hasher, health.NewHostCollector())
	if err != nil {
		return err
	}

	if c.SeedTestUsers && c.IsDevelopment() {
		n, err := accounts.SeedTestAccounts(context.Background(), store)
		if err != nil {
			return fmt.Errorf("seeding test users: %w", err)
		}
		if n > 0 {
			log.Info("seeded test users", slog.Int("created", n))
		}
	}

	srv := &http.Server{
		Handler:      app.routes(),
		Addr:         c.Addr(),
		ReadTimeout:  c.HTTP.ReadTimeout,
		WriteTimeout: c.HTTP.WriteTimeout,
		IdleTimeout:  c.HTTP.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("addr", srv.Addr),
			slog.String("env", c.Environment), slog.String("store", c.DB.Adapter))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Info("server exited properly")
	return nil
}

// openStore builds the configured credential store. Postgres schemas are
// migrated before the first connection.
func openStore(ctx context.Context, c *cfg.Config, h password.Hasher, log *slog.Logger) (accounts.Store, error) {
	switch c.DB.Adapter {
	case cfg.AdapterSQLite:
		s, err := accounts.NewSQLiteStore(c.DB.SQLiteFile, h)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		log.Info("using sqlite store", slog.String("file", c.DB.SQLiteFile))
		return s, nil
	case cfg.AdapterPostgres:
		log.Info("applying database migrations")
		if err := migrations.Apply(c.DB.PostgresDSN, log); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		s, err := accounts.NewPostgresStore(ctx, c.DB.PostgresDSN, h)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		log.Info("connected to postgres")
		return s, nil
	default:
		log.Warn("using in-memory store, accounts are lost on restart")
		return accounts.NewMemoryStore(h), nil
	}
}

func newApp(c *cfg.Config, log *slog.Logger, store accounts.Store, h password.Hasher, metrics health.Collector) (*App, error) {
	issuer, err := token.NewIssuer(token.Options{
		Secret:    []byte(c.Auth.SecretKey),
		Algorithm: c.Auth.Algorithm,
		AccessTTL: c.AccessTTL(),
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	svc, err := authn.NewService(store, h, issuer, log)
	if err != nil {
		return nil, err
	}

	ready := health.NewReadiness(2 * time.Second)
	ready.Add("store", store)

	return &App{
		cfg:     c,
		log:     log,
		store:   store,
		auth:    svc,
		metrics: metrics,
		ready:   ready,
		started: time.Now(),
	}, nil
}

func (a *App) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	r.HandleFunc("/", a.HandleRoot).Methods("GET")
	r.HandleFunc("/api", a.HandleAPIInfo).Methods("GET")

	// Health check endpoints (no auth required)
	hc := r.PathPrefix("/api/v1/health").Subrouter()
	hc.HandleFunc("", a.HandleHealth).Methods("GET")
	hc.HandleFunc("/", a.HandleHealth).Methods("GET")
	hc.HandleFunc("/detailed", a.HandleHealthDetailed).Methods("GET")
	hc.HandleFunc("/ready", a.HandleReady).Methods("GET")
	hc.HandleFunc("/live", a.HandleLive).Methods("GET")

	auth := r.PathPrefix("/api/v1/auth").Subrouter()
	auth.HandleFunc("/login", a.HandleLogin).Methods("POST")
	auth.HandleFunc("/login/form", a.HandleLoginForm).Methods("POST")
	auth.HandleFunc("/register", a.HandleRegister).Methods("POST")
	auth.HandleFunc("/introspect", a.HandleTokenIntrospect).Methods("POST")
	auth.Handle("/me", a.ActiveUser(a.HandleMe)).Methods("GET")
	auth.Handle("/admin", a.AdminUser(a.HandleAdminGreeting)).Methods("GET")
	auth.Handle("/users", a.AdminUser(a.HandleListUsers)).Methods("GET")
	if a.cfg.IsDevelopment() {
		auth.HandleFunc("/init-test-users", a.HandleInitTestUsers).Methods("POST")
	}

	users := r.PathPrefix("/api/v1/users").Subrouter()
	users.Handle("", a.AdminUser(a.HandleListUsers)).Methods("GET")
	users.Handle("", a.AdminUser(a.HandleCreateUser)).Methods("POST")
	users.Handle("/{id:[0-9]+}", a.AdminUser(a.HandleGetUser)).Methods("GET")
	users.Handle("/{id:[0-9]+}", a.AdminUser(a.HandleUpdateUser)).Methods("PATCH")
	users.Handle("/{id:[0-9]+}", a.AdminUser(a.HandleDeleteUser)).Methods("DELETE")

	// CORS sits outside the router so preflights reach it for every path.
	var h http.Handler = r
	h = a.CORS(h)
	h = SecurityHeaders(h)
	h = a.Recover(h)
	h = a.Logging(h)
	return h
}
