// Package migrations embeds the Postgres schema and applies it with
// golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed *.sql
var files embed.FS

// ErrDirty means a previous migration failed half way and needs a manual
// Force before anything else can run.
var ErrDirty = errors.New("database is in a dirty migration state")

// Migrator wraps a migrate instance bound to one database.
type Migrator struct {
	db  *sql.DB
	m   *migrate.Migrate
	log *slog.Logger
}

// Open connects to dsn and prepares the embedded migrations.
func Open(dsn string, log *slog.Logger) (*Migrator, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrate driver: %w", err)
	}
	src, err := iofs.New(files, ".")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return &Migrator{db: db, m: m, log: log}, nil
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Version returns the applied version; zero with no error means nothing has
// been applied yet.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	version, dirty, err := mg.Version()
	if err != nil {
		return fmt.Errorf("checking migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w (version %d)", ErrDirty, version)
	}

	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.log.Info("database is up to date", slog.Uint64("version", uint64(version)))
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	if newVersion, _, err := mg.Version(); err == nil && newVersion != version {
		mg.log.Info("migrated database", slog.Uint64("from", uint64(version)), slog.Uint64("to", uint64(newVersion)))
	}
	return nil
}

// Down rolls back every migration.
func (mg *Migrator) Down() error {
	if err := mg.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

// Steps moves n migrations forward (n > 0) or back (n < 0).
func (mg *Migrator) Steps(n int) error {
	if err := mg.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("stepping migrations: %w", err)
	}
	return nil
}

// Force records version as applied and clears the dirty flag.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("forcing version: %w", err)
	}
	return nil
}

// Apply is the one-shot used at start-up: open, migrate up, close.
func Apply(dsn string, log *slog.Logger) error {
	mg, err := Open(dsn, log)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
