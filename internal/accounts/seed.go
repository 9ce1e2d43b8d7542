package accounts

import (
	"context"
	"errors"
	"fmt"
)

// TestAccounts are the development fixtures: one account per role.
var TestAccounts = []NewAccount{
	{Email: "admin@example.com", Username: "admin", Password: "admin123", FullName: "Administrator", Role: RoleAdmin},
	{Email: "user@example.com", Username: "user", Password: "user123", FullName: "Test User", Role: RoleUser},
	{Email: "guest@example.com", Username: "guest", Password: "guest123", FullName: "Guest User", Role: RoleGuest},
}

// SeedTestAccounts inserts TestAccounts into an empty store. It reports how
// many accounts were created; a non-empty store is left alone.
func SeedTestAccounts(ctx context.Context, s Store) (int, error) {
	const op = "accounts.SeedTestAccounts"

	n, err := s.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return 0, nil
	}

	created := 0
	for _, in := range TestAccounts {
		_, err := s.Create(ctx, in)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrDuplicateUsername):
			// raced with another seeder
		default:
			return created, fmt.Errorf("%s: %w", op, err)
		}
	}
	return created, nil
}
