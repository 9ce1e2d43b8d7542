package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultSecret is the placeholder signing key shipped in the defaults. It
// is refused in production.
const DefaultSecret = "your-secret-key-here"

const (
	AdapterMemory   = "memory"
	AdapterSQLite   = "sqlite"
	AdapterPostgres = "postgres"
)

type Config struct {
	AppName     string `yaml:"app_name" env:"APP_NAME" env-default:"RAG Pipeline GUI"`
	AppVersion  string `yaml:"app_version" env:"APP_VERSION" env-default:"0.1.0"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	Debug       bool   `yaml:"debug" env:"DEBUG" env-default:"false"`

	HTTP HTTP `yaml:"http"`
	Log  Log  `yaml:"log"`
	Auth Auth `yaml:"auth"`
	DB   DB   `yaml:"db"`

	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"*"`
	// SeedTestUsers inserts the fixture accounts into an empty store at start.
	SeedTestUsers     bool `yaml:"seed_test_users" env:"SEED_TEST_USERS" env-default:"true"`
	AllowRegistration bool `yaml:"allow_registration" env:"ALLOW_REGISTRATION" env-default:"true"`
}

type HTTP struct {
	Host            string        `yaml:"host" env:"HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"PORT" env-default:"8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	// Format is "text" or "json"; empty picks by environment.
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type Auth struct {
	SecretKey                string `yaml:"secret_key" env:"SECRET_KEY" env-default:"your-secret-key-here"`
	Algorithm                string `yaml:"algorithm" env:"ALGORITHM" env-default:"HS256"`
	AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"30"`
	BcryptCost               int    `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"12"`
}

type DB struct {
	Adapter    string `yaml:"adapter" env:"DB_ADAPTER" env-default:"memory"`
	SQLiteFile string `yaml:"sqlite_file" env:"SQLITE_FILE" env-default:"./data/accounts.db"`

	// PostgreSQL connection settings
	PostgresDSN      string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	PostgresHost     string `yaml:"postgres_host" env:"POSTGRES_HOST" env-default:"localhost"`
	PostgresPort     string `yaml:"postgres_port" env:"POSTGRES_PORT" env-default:"5432"`
	PostgresUser     string `yaml:"postgres_user" env:"POSTGRES_USER" env-default:"rag"`
	PostgresPassword string `yaml:"postgres_password" env:"POSTGRES_PASSWORD"`
	PostgresDB       string `yaml:"postgres_db" env:"POSTGRES_DB" env-default:"rag_pipeline"`
	PostgresSSLMode  string `yaml:"postgres_sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return c.HTTP.Host + ":" + c.HTTP.Port
}

// AccessTTL is the configured access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Environment)
	return env == "development" || env == "dev" || env == "local"
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *DB) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}
	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)
	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}
	return dsn, nil
}

// Load reads the configuration. Variables from envFiles (".env" when none
// are given) are exported first without overriding the real environment;
// missing files are ignored. When path is set the YAML file is read and
// environment variables override it.
func Load(path string, envFiles ...string) (*Config, error) {
	const op = "config.Load"

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: reading %s: %w", op, f, err)
		}
	}

	var c Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &c)
	} else {
		err = cleanenv.ReadEnv(&c)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	c.DB.Adapter = strings.ToLower(c.DB.Adapter)
	switch c.DB.Adapter {
	case AdapterMemory:
	case AdapterSQLite:
		if c.DB.SQLiteFile == "" {
			return errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case AdapterPostgres:
		dsn, err := c.DB.BuildPostgresDSN()
		if err != nil {
			return fmt.Errorf("postgres configuration error: %w", err)
		}
		c.DB.PostgresDSN = dsn
	default:
		return fmt.Errorf("unknown DB_ADAPTER %q (supported: memory, sqlite, postgres)", c.DB.Adapter)
	}

	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported ALGORITHM %q", c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("invalid ACCESS_TOKEN_EXPIRE_MINUTES: %d", c.Auth.AccessTokenExpireMinutes)
	}
	if c.IsProduction() && (c.Auth.SecretKey == "" || c.Auth.SecretKey == DefaultSecret || c.Auth.SecretKey == "change-me") {
		return errors.New("SECRET_KEY must be set in production")
	}
	if c.Auth.SecretKey == "" {
		return errors.New("SECRET_KEY must not be empty")
	}

	if _, err := strconv.Atoi(c.HTTP.Port); err != nil {
		return fmt.Errorf("invalid PORT: %s", c.HTTP.Port)
	}

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
	return nil
}
