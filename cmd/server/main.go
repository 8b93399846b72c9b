// Package main is the entry point for the music recommendation server.
//
// The main package stays minimal: read configuration, build the logger,
// hand both to internal/server. Two commands are available:
//
//	musicrec [serve]   run the HTTP server (default)
//	musicrec migrate   apply database migrations and exit
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/sakif/musicrec/internal/config"
	sqliteRepo "github.com/sakif/musicrec/internal/repository/sqlite"
	"github.com/sakif/musicrec/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "musicrec",
		Usage: "Music recommendations from favorite genres and artists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "override server.port",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending database migrations and exit",
				Action: migrate,
			},
		},
	}
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stdout)

	if !cfg.GitHub.Enabled() {
		logger.Info("GitHub sign-in disabled (github.client_id / github.client_secret not set)")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until ctx is cancelled by SIGINT/SIGTERM.
	return srv.Start(ctx)
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stdout)

	path, err := cfg.Database.SQLitePath()
	if err != nil {
		return err
	}

	// New applies pending migrations before returning.
	db, err := sqliteRepo.New(path)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	logger.Info("database up to date",
		slog.String("database", path),
		slog.Int("version", version),
	)
	return nil
}

// newLogger builds the process logger from log.level and log.format.
// Validate has already rejected unknown values.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
