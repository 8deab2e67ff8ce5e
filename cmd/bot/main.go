// Package main - точка входа Telegram-бота TaskQuest.
//
// Бот принимает обновления long polling'ом, регистрирует пользователей,
// ведёт их задачи и начисляет XP, серии и достижения.
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
	"github.com/taskquest/taskquest-bot/internal/interface/telegram"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/handler"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/middleware"
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
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := app.NewLogger(cfg).With(slog.String("process", "bot"))
	log.Info("starting TaskQuest bot",
		slog.String("version", cfg.App.Version),
		slog.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩА И СЦЕНАРИИ
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	svc := app.NewServices(stores, cfg, log)

	h := handler.New(handler.Deps{
		Register:         svc.Register,
		CreateTask:       svc.CreateTask,
		CompleteTask:     svc.CompleteTask,
		ManageTask:       svc.ManageTask,
		ReminderSettings: svc.ReminderSettings,
		Tasks:            svc.Tasks,
		Game:             svc.Engine,
		Users:            stores.Users,
		Location:         svc.Location,
		Clock:            svc.Clock,
		Logger:           log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 3. TELEGRAM
	// ─────────────────────────────────────────────────────────────────────────
	botCfg := telegram.DefaultBotConfig()
	botCfg.Logger = log
	botCfg.Debug = cfg.App.Debug
	botCfg.MaxConcurrentUpdates = cfg.Telegram.MaxConcurrentUpdates
	botCfg.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botCfg.RateLimit.RequestsPerMinute = cfg.Telegram.UserRateLimit
	botCfg.RateLimit.BurstSize = cfg.Telegram.UserRateLimitBurst
	botCfg.RateLimit.BanDuration = cfg.Telegram.UserRateLimitBan
	botCfg.RateLimit.WhitelistedUsers = whitelist(cfg.Telegram.AdminIDs)
	botCfg.Recovery = middleware.DefaultRecoveryConfig()

	bot := telegram.NewBot(botCfg, app.NewTelegramClient(cfg, log), h)

	err = bot.Run(ctx)
	stats := bot.Metrics()
	log.Info("bot stopped",
		slog.Int64("requests", stats.Requests),
		slog.Int64("errors", stats.Errors),
		slog.Duration("uptime", stats.Uptime),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func whitelist(ids []int64) map[int64]bool {
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
