package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/ragpipeline/internal/password"
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`PRAGMA busy_timeout = 5000;`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT,
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_login TEXT
	);`,
}

var sqliteDialect = dialect{
	name:   "sqlite",
	rebind: func(q string) string { return q },
	timeArg: func(t time.Time) any {
		return t.UTC().Format(time.RFC3339Nano)
	},
	uniqueViolation: func(err error) error {
		msg := err.Error()
		if !strings.Contains(msg, "UNIQUE constraint failed") {
			return nil
		}
		switch {
		case strings.Contains(msg, "accounts.email"):
			return ErrDuplicateEmail
		case strings.Contains(msg, "accounts.username"):
			return ErrDuplicateUsername
		}
		return nil
	},
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path.
// AUTOINCREMENT keeps identifiers from being reused after deletes.
func NewSQLiteStore(path string, h password.Hasher, opts ...Option) (*SQLStore, error) {
	const op = "accounts.NewSQLiteStore"

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// one connection: SQLite serialises writers anyway, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	for _, q := range sqliteSchema {
		if _, err := db.ExecContext(context.Background(), q); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: init schema: %w", op, err)
		}
	}
	return newSQLStore(db, sqliteDialect, h, opts), nil
}
