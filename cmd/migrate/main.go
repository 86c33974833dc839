package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/salonbook/internal/config"
	"github.com/wolfman30/salonbook/migrations"
	"github.com/wolfman30/salonbook/pkg/logging"
)

const usage = "usage: migrate [up | down [steps] | force <version> | version]"

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	cmd, err := parseCommand(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	m, closeDB, err := newMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Error("migrator setup failed", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	if err := cmd.run(m, logger); err != nil {
		logger.Error("migration failed", "command", cmd.name, "error", err)
		os.Exit(1)
	}
}

type command struct {
	name string
	arg  int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{name: "up"}, nil
	}
	switch args[0] {
	case "up", "version":
		return command{name: args[0]}, nil
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return command{}, fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		return command{name: "down", arg: steps}, nil
	case "force":
		if len(args) < 2 {
			return command{}, errors.New("force needs a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("invalid version %q", args[1])
		}
		return command{name: "force", arg: v}, nil
	}
	return command{}, fmt.Errorf("unknown command %q", args[0])
}

func (c command) run(m *migrate.Migrate, logger *logging.Logger) error {
	switch c.name {
	case "down":
		if err := m.Steps(-c.arg); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "force":
		if err := m.Force(c.arg); err != nil {
			return err
		}
	case "version":
	default:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("schema has no migrations applied", "command", c.name)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("schema version", "command", c.name, "version", version, "dirty", dirty)
	return nil
}

func newMigrator(databaseURL string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db driver: %w", err)
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", dbDriver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}
