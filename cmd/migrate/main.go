package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"ledgerscan/internal/config"
	"ledgerscan/internal/logging"
)

const usage = "Usage: migrate [up|down|steps N|force V|version]"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}
	logging.Setup(cfg.Log)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	source := os.Getenv("LEDGERSCAN_MIGRATIONS_SOURCE")
	if source == "" {
		source = "file://db/migrations"
	}
	m, err := migrate.New(source, cfg.DB.DSN())
	if err != nil {
		fatal("failed to create migrate instance", err)
	}
	defer m.Close()

	cmd := os.Args[1]
	switch cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal("migration up failed", err)
		}
		slog.Info("migrations applied successfully")

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal("migration down failed", err)
		}
		slog.Info("migrations reverted successfully")

	case "steps":
		n := intArg("steps")
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal("migration steps failed", err)
		}
		slog.Info("applied migration steps", "steps", n)

	case "force":
		v := intArg("force")
		if err := m.Force(v); err != nil {
			fatal("migration force failed", err)
		}
		slog.Info("forced migration version", "version", v)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			fatal("failed to get version", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", version, dirty)

	default:
		fmt.Printf("unknown command: %s\n", cmd)
		fmt.Println(usage)
		os.Exit(1)
	}
}

func intArg(cmd string) int {
	if len(os.Args) < 3 {
		fatal(cmd+" requires a number argument", nil)
	}
	n, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fatal("invalid "+cmd+" argument", err)
	}
	return n
}

func fatal(msg string, err error) {
	if err != nil {
		slog.Error(msg, "error", err)
	} else {
		slog.Error(msg)
	}
	os.Exit(1)
}
