// Package main - точка входа фонового процесса TaskQuest.
//
// Worker запускает планировщик заданий:
//   - напоминания о близких и просроченных сроках
//   - утренняя сводка и вечернее напоминание о серии
//   - недельная статистика
//   - перестройка кэша лидерборда (только с Redis)
//
// и admin HTTP API для проверки здоровья и ручного запуска заданий.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskquest/taskquest-bot/config"
	"github.com/taskquest/taskquest-bot/internal/app"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/scheduler"
	httpserver "github.com/taskquest/taskquest-bot/internal/interface/http"
	"github.com/taskquest/taskquest-bot/internal/interface/http/handlers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := app.NewLogger(cfg).With(slog.String("process", "worker"))

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()
	svc := app.NewServices(stores, cfg, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := app.NewScheduler(cfg, stores, svc, app.NewTelegramClient(cfg, log), log)
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}
	sched.OnJobComplete(func(r scheduler.JobResult) {
		if !r.Success {
			log.Warn("job run failed", slog.String("job", r.JobName), slog.String("run_id", r.RunID), slog.String("error", r.Error))
		}
	})

	if stores.Leaderboard != nil {
		if n, err := svc.Engine.RebuildLeaderboard(ctx); err != nil {
			log.Warn("initial leaderboard rebuild failed", slog.Any("error", err))
		} else {
			log.Info("leaderboard cache warmed", slog.Int("users", n))
		}
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Warn("scheduler disabled, only manual runs are available")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ADMIN HTTP
	// ─────────────────────────────────────────────────────────────────────────
	var server *httpserver.Server
	var serverErr <-chan error
	if cfg.HTTP.Enabled {
		health := handlers.NewCompositeHealthChecker(cfg.App.Version)
		if stores.DB != nil {
			health.AddCheck("postgres", handlers.PingCheck(stores.DB))
		}
		if stores.Cache != nil {
			health.AddCheck("redis", handlers.PingCheck(stores.Cache))
		}

		server = httpserver.NewServer(httpserver.Config{
			Addr:           cfg.HTTP.Addr,
			AdminTokenHash: cfg.HTTP.AdminTokenHash,
		}, httpserver.Dependencies{Jobs: sched, Health: health, Logger: log})
		serverErr = server.StartAsync()
	}

	log.Info("worker started", slog.Int("jobs", len(sched.ListJobs())))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ОЖИДАНИЕ И ОСТАНОВКА
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error("admin HTTP server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("admin HTTP shutdown failed", slog.Any("error", err))
		}
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Stop(shutdownCtx); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			return err
		}
	}

	snap := sched.Metrics().Snapshot()
	log.Info("worker stopped",
		slog.Int64("executions", snap.TotalExecutions),
		slog.Int64("failures", snap.TotalFailures),
	)
	return nil
}
