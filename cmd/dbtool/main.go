package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"weatherstation-server/internal/config"
	"weatherstation-server/internal/db"
	"weatherstation-server/internal/logging"
)

// dbtool runs the database helpers the container entrypoint needs before the
// server starts: wait until the database accepts connections, then apply the
// schema.
//
//	dbtool wait
//	dbtool migrate

const appName = "dbtool"

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: dbtool <wait|migrate>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	switch os.Args[1] {
	case "wait":
		err = wait(cfg, logger)
	case "migrate":
		err = migrate(cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (usage: dbtool <wait|migrate>)\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		slog.Error("dbtool failed", "command", os.Args[1], "err", err)
		os.Exit(1)
	}
}

// wait polls the database until it accepts connections, retrying once per
// second for up to two minutes.
func wait(cfg config.Config, logger *slog.Logger) error {
	const (
		interval = time.Second
		deadline = 2 * time.Minute
	)

	slog.Info("waiting for database", "driver", cfg.DB.Driver, "host", cfg.DB.Host)
	start := time.Now()
	for {
		gdb, err := db.Open(cfg, logger)
		if err == nil {
			_ = db.Close(gdb)
			slog.Info("database available", "waited", time.Since(start).Round(time.Millisecond))
			return nil
		}
		if time.Since(start) > deadline {
			return fmt.Errorf("database unavailable after %s: %w", deadline, err)
		}
		slog.Info("database unavailable, retrying", "error", err)
		time.Sleep(interval)
	}
}

func migrate(cfg config.Config, logger *slog.Logger) error {
	gdb, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(gdb); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := db.Migrate(gdb); err != nil {
		return err
	}
	slog.Info("migrations applied")
	return nil
}
