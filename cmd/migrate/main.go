package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/ragpipeline/internal/config"
	"github.com/example/ragpipeline/internal/logging"
	"github.com/example/ragpipeline/migrations"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
		command    = flag.String("command", "up", "Migration command: up, down, version, force")
		steps      = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version    = flag.Int("version", -1, "Target version (for force command)")
	)
	flag.Parse()

	log := logging.New(os.Stderr, "info", logging.FormatText)

	if err := run(log, *configPath, *command, *steps, *version); err != nil {
		log.Error("migration failed", slog.String("command", *command), logging.Err(err))
		os.Exit(1)
	}
}

func run(log *slog.Logger, configPath, command string, steps, version int) error {
	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.DB.Adapter != config.AdapterPostgres {
		return fmt.Errorf("migrations only work with PostgreSQL, current adapter: %s", c.DB.Adapter)
	}

	m, err := migrations.Open(c.DB.PostgresDSN, log)
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
		if err != nil {
			return err
		}
		fmt.Println("✓ Migrations applied successfully")
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
		if err != nil {
			return err
		}
		fmt.Println("✓ Migrations rolled back successfully")
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("%w (version %d)", migrations.ErrDirty, v)
		}
		fmt.Printf("Current migration version: %d\n", v)
	case "force":
		if version < 0 {
			return errors.New("version required for force command (use -version flag)")
		}
		if err := m.Force(version); err != nil {
			return err
		}
		fmt.Printf("✓ Forced database to version %d\n", version)
	default:
		return fmt.Errorf("unknown command: %s (supported: up, down, version, force)", command)
	}
	return nil
}
