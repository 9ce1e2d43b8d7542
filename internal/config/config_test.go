package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"APP_NAME", "ENVIRONMENT", "PORT", "SECRET_KEY", "ALGORITHM",
	"ACCESS_TOKEN_EXPIRE_MINUTES", "DB_ADAPTER", "SQLITE_FILE", "POSTGRES_DSN",
	"POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_DB", "POSTGRES_PASSWORD", "CORS_ORIGINS", "LOG_LEVEL",
}

// clearEnv unsets every variable the tests touch and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func noDotEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load("", noDotEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "RAG Pipeline GUI", c.AppName)
	assert.Equal(t, "0.1.0", c.AppVersion)
	assert.Equal(t, "development", c.Environment)
	assert.True(t, c.IsDevelopment())
	assert.Equal(t, "0.0.0.0:8000", c.Addr())
	assert.Equal(t, "HS256", c.Auth.Algorithm)
	assert.Equal(t, 30*time.Minute, c.AccessTTL())
	assert.Equal(t, 12, c.Auth.BcryptCost)
	assert.Equal(t, AdapterMemory, c.DB.Adapter)
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.Equal(t, 10*time.Second, c.HTTP.ReadTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("DB_ADAPTER", "SQLite")

	c, err := Load("", noDotEnv(t))
	require.NoError(t, err)
	assert.Equal(t, "9090", c.HTTP.Port)
	assert.Equal(t, 5*time.Minute, c.AccessTTL())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CORSOrigins)
	assert.Equal(t, AdapterSQLite, c.DB.Adapter)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PORT=7100\nAPP_NAME=from-dotenv\n"), 0o600))

	c, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "7000", c.HTTP.Port)
	assert.Equal(t, "from-dotenv", c.AppName)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app_name: from-yaml
http:
  port: "8181"
log:
  level: warn
auth:
  access_token_expire_minutes: 15
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	c, err := Load(path, noDotEnv(t))
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", c.AppName)
	assert.Equal(t, "8181", c.HTTP.Port)
	assert.Equal(t, 15*time.Minute, c.AccessTTL())
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "non numeric port", env: map[string]string{"PORT": "http"}},
		{name: "unknown adapter", env: map[string]string{"DB_ADAPTER": "mongo"}},
		{name: "asymmetric algorithm", env: map[string]string{"ALGORITHM": "RS256"}},
		{name: "zero expiry", env: map[string]string{"ACCESS_TOKEN_EXPIRE_MINUTES": "0"}},
		{name: "default secret in production", env: map[string]string{"ENVIRONMENT": "production"}},
		{name: "placeholder secret in prod", env: map[string]string{"ENVIRONMENT": "prod", "SECRET_KEY": "change-me"}},
		{name: "postgres without host", env: map[string]string{"DB_ADAPTER": "postgres", "POSTGRES_HOST": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", noDotEnv(t))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ProductionWithSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SECRET_KEY", "a-real-secret")

	c, err := Load("", noDotEnv(t))
	require.NoError(t, err)
	assert.True(t, c.IsProduction())
	assert.False(t, c.IsDevelopment())
}

func TestBuildPostgresDSN(t *testing.T) {
	db := DB{PostgresDSN: "postgres://u@h/db"}
	dsn, err := db.BuildPostgresDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@h/db", dsn)

	db = DB{PostgresHost: "db", PostgresUser: "rag", PostgresDB: "auth", PostgresPassword: "pw"}
	dsn, err = db.BuildPostgresDSN()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=rag dbname=auth sslmode=disable password=pw", dsn)

	_, err = (&DB{PostgresHost: "db", PostgresDB: "auth"}).BuildPostgresDSN()
	assert.Error(t, err)
}
