package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/ragpipeline/internal/password"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

var postgresDialect = dialect{
	name:    "postgres",
	rebind:  rebindDollar,
	timeArg: func(t time.Time) any { return t.UTC() },
	uniqueViolation: func(err error) error {
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || pqErr.Code != pgUniqueViolation {
			return nil
		}
		switch pqErr.Constraint {
		case "accounts_email_key":
			return ErrDuplicateEmail
		case "accounts_username_key":
			return ErrDuplicateUsername
		}
		return nil
	},
}

// NewPostgresStore connects to Postgres. The schema is owned by the
// migrations package and must be applied beforehand.
func NewPostgresStore(ctx context.Context, dsn string, h password.Hasher, opts ...Option) (*SQLStore, error) {
	const op = "accounts.NewPostgresStore"

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}
	return newSQLStore(db, postgresDialect, h, opts), nil
}
