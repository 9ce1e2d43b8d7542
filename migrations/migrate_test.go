package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestAccountsSchemaDeclaresUniqueColumns(t *testing.T) {
	b, err := fs.ReadFile(files, "000001_create_accounts.up.sql")
	require.NoError(t, err)
	schema := string(b)

	// Postgres names these constraints accounts_email_key and
	// accounts_username_key, which the store maps to duplicate errors.
	assert.Regexp(t, `(?m)^\s*email\s+TEXT\s+NOT NULL UNIQUE`, schema)
	assert.Regexp(t, `(?m)^\s*username\s+TEXT\s+NOT NULL UNIQUE`, schema)
}
