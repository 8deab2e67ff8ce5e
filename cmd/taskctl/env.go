package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskquest/taskquest-bot/config"
	"github.com/taskquest/taskquest-bot/internal/app"
)

var verbose bool

// environment is what every subcommand opens.
type environment struct {
	cfg    *config.Config
	log    *slog.Logger
	stores *app.Stores
	svc    *app.Services
}

// open loads configuration and connects to the stores. needToken is set by
// commands that send Telegram messages.
func open(ctx context.Context, needToken bool) (*environment, error) {
	load := config.LoadWithoutToken
	if needToken {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}
	// taskctl never migrates implicitly.
	cfg.Database.AutoMigrate = false

	log := app.NewLogger(cfg).With(slog.String("process", "taskctl"))
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, log: log, stores: stores, svc: app.NewServices(stores, cfg, log)}, nil
}

func (e *environment) close() {
	e.stores.Close()
}

func (e *environment) requireDB() error {
	if e.stores.DB == nil {
		return fmt.Errorf("no database configured: set DATABASE_URL or DB_HOST")
	}
	return nil
}
