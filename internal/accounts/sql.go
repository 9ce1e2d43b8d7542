package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/ragpipeline/internal/password"
)

const accountColumns = `id, email, username, full_name, role, status, password_hash, created_at, updated_at, last_login`

// dialect isolates what differs between the SQL backends.
type dialect struct {
	// name prefixes connection errors.
	name string
	// rebind rewrites '?' placeholders for the driver.
	rebind func(q string) string
	// timeArg converts a timestamp into a driver argument.
	timeArg func(t time.Time) any
	// uniqueViolation maps a constraint error to ErrDuplicateEmail or
	// ErrDuplicateUsername, or returns nil.
	uniqueViolation func(err error) error
}

// SQLStore is a Store over database/sql. Uniqueness is enforced by the
// schema's UNIQUE constraints, so concurrent writers cannot both win.
type SQLStore struct {
	db     *sql.DB
	d      dialect
	hasher password.Hasher
	now    func() time.Time
}

func newSQLStore(db *sql.DB, d dialect, h password.Hasher, opts []Option) *SQLStore {
	o := buildOptions(opts)
	return &SQLStore{db: db, d: d, hasher: h, now: o.now}
}

// DB exposes the underlying handle for migrations and tests.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) GetByID(ctx context.Context, id int64) (*Account, error) {
	return s.getOne(ctx, "accounts.SQLStore.GetByID", "id", id)
}

func (s *SQLStore) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return s.getOne(ctx, "accounts.SQLStore.GetByUsername", "username", username)
}

func (s *SQLStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return s.getOne(ctx, "accounts.SQLStore.GetByEmail", "email", email)
}

func (s *SQLStore) getOne(ctx context.Context, op, column string, arg any) (*Account, error) {
	q := s.d.rebind(fmt.Sprintf(`SELECT %s FROM accounts WHERE %s = ?`, accountColumns, column))
	acc, err := scanAccount(s.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

func (s *SQLStore) List(ctx context.Context, offset, limit int) ([]*Account, error) {
	const op = "accounts.SQLStore.List"

	offset, limit = clampPage(offset, limit)
	if limit == 0 {
		return []*Account{}, nil
	}

	q := s.d.rebind(fmt.Sprintf(`SELECT %s FROM accounts ORDER BY id LIMIT ? OFFSET ?`, accountColumns))
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []*Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}
	return out, nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("accounts.SQLStore.Count: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Create(ctx context.Context, in NewAccount) (*Account, error) {
	const op = "accounts.SQLStore.Create"

	if err := s.precheckUnique(ctx, in.Email, in.Username); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	acc, err := in.build(s.hasher, stamp(s.now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q := s.d.rebind(`INSERT INTO accounts (email, username, full_name, role, status, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err = s.db.QueryRowContext(ctx, q,
		acc.Email, acc.Username, nullString(acc.FullName), string(acc.Role), string(acc.Status),
		acc.PasswordHash, s.d.timeArg(acc.CreatedAt), s.d.timeArg(acc.UpdatedAt),
	).Scan(&acc.ID)
	if err != nil {
		if dup := s.d.uniqueViolation(err); dup != nil {
			return nil, fmt.Errorf("%s: %w", op, dup)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// precheckUnique reports duplicates in the same order the memory store does
// (email first). The constraint still decides under concurrency.
func (s *SQLStore) precheckUnique(ctx context.Context, email, username string) error {
	if _, err := s.GetByEmail(ctx, email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := s.GetByUsername(ctx, username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, id int64, upd AccountUpdate) (*Account, error) {
	const op = "accounts.SQLStore.Update"

	if err := upd.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		sets []string
		args []any
	)
	if upd.Email != nil {
		sets, args = append(sets, "email = ?"), append(args, *upd.Email)
	}
	if upd.Username != nil {
		sets, args = append(sets, "username = ?"), append(args, *upd.Username)
	}
	if upd.FullName != nil {
		sets, args = append(sets, "full_name = ?"), append(args, nullString(*upd.FullName))
	}
	if upd.Role != nil {
		sets, args = append(sets, "role = ?"), append(args, string(*upd.Role))
	}
	if upd.Status != nil {
		sets, args = append(sets, "status = ?"), append(args, string(*upd.Status))
	}
	sets, args = append(sets, "updated_at = ?"), append(args, s.d.timeArg(stamp(s.now)))
	args = append(args, id)

	q := s.d.rebind(fmt.Sprintf(`UPDATE accounts SET %s WHERE id = ? RETURNING %s`,
		strings.Join(sets, ", "), accountColumns))
	acc, err := scanAccount(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		if dup := s.d.uniqueViolation(err); dup != nil {
			return nil, fmt.Errorf("%s: %w", op, dup)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

func (s *SQLStore) UpdateLastLogin(ctx context.Context, id int64) (*Account, error) {
	const op = "accounts.SQLStore.UpdateLastLogin"

	q := s.d.rebind(fmt.Sprintf(`UPDATE accounts SET last_login = ? WHERE id = ? RETURNING %s`, accountColumns))
	acc, err := scanAccount(s.db.QueryRowContext(ctx, q, s.d.timeArg(stamp(s.now)), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) (bool, error) {
	const op = "accounts.SQLStore.Delete"

	res, err := s.db.ExecContext(ctx, s.d.rebind(`DELETE FROM accounts WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s ping: %w", s.d.name, err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		acc              Account
		fullName         sql.NullString
		role, status     string
		created, updated dbTime
		lastLogin        dbTime
	)
	err := row.Scan(&acc.ID, &acc.Email, &acc.Username, &fullName, &role, &status,
		&acc.PasswordHash, &created, &updated, &lastLogin)
	if err != nil {
		return nil, err
	}
	acc.FullName = fullName.String
	acc.Role = Role(role)
	acc.Status = Status(status)
	acc.CreatedAt = created.Time
	acc.UpdatedAt = updated.Time
	if lastLogin.Valid {
		t := lastLogin.Time
		acc.LastLogin = &t
	}
	return &acc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// dbTime scans timestamps stored natively (Postgres) or as RFC 3339 text
// (SQLite).
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = x.UTC(), true
		return nil
	case string:
		return t.parse(x)
	case []byte:
		return t.parse(string(x))
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (t *dbTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time, t.Valid = parsed.UTC(), true
	return nil
}

// rebindDollar turns '?' placeholders into $1, $2, ...
func rebindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
