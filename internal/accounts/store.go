package accounts

import (
	"context"
	"time"
)

// Store is the credential store. Lookups that find nothing return
// ErrNotFound. Implementations must be safe for concurrent use.
type Store interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	// List returns up to limit accounts in insertion order starting at offset.
	List(ctx context.Context, offset, limit int) ([]*Account, error)
	Count(ctx context.Context) (int, error)

	Create(ctx context.Context, in NewAccount) (*Account, error)
	Update(ctx context.Context, id int64, upd AccountUpdate) (*Account, error)
	UpdateLastLogin(ctx context.Context, id int64) (*Account, error)
	Delete(ctx context.Context, id int64) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// Option tunes a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for timestamps written by the store.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// stamp normalises timestamps so every backend round-trips them unchanged.
func stamp(now func() time.Time) time.Time {
	return now().UTC().Truncate(time.Microsecond)
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	return offset, limit
}
