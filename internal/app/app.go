// Package app wires configuration into stores, use cases and clients.
// The bot, the worker and taskctl build their object graphs from here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/taskquest/taskquest-bot/config"
	"github.com/taskquest/taskquest-bot/internal/application/command"
	appgame "github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/application/query"
	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/reminder"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/external/telegram"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/persistence/memory"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/persistence/postgres"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/persistence/redis"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// NewLogger builds the process logger and installs it as slog's default.
func NewLogger(cfg *config.Config) *slog.Logger {
	format := logger.Format(cfg.Observability.LogFormat)
	if cfg.IsDevelopment() && os.Getenv("LOG_FORMAT") == "" {
		format = logger.FormatText
	}
	return logger.Setup(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: format,
	}).With(slog.String("app", cfg.App.Name), slog.String("env", string(cfg.App.Environment)))
}

// ══════════════════════════════════════════════════════════════════════════════
// STORES
// ══════════════════════════════════════════════════════════════════════════════

// Stores holds the repositories behind every use case.
type Stores struct {
	Users     user.Repository
	Tasks     task.Repository
	Reminders reminder.Repository
	Progress  gamification.Store

	// DB is nil when the in-memory store is used.
	DB *postgres.Connection

	// Redis pieces are nil unless Redis is enabled.
	Cache       *redis.Cache
	Leaderboard *redis.LeaderboardCache
	JobLock     *redis.JobLock
}

// OpenStores connects to PostgreSQL, or falls back to the in-memory store
// when no database is configured, and to Redis when it is enabled.
func OpenStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Stores, error) {
	s := &Stores{}

	if cfg.Database.Configured() {
		conn, err := postgres.NewConnection(ctx, PostgresConfig(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.DB = conn
		s.Users = postgres.NewUserRepository(conn)
		s.Tasks = postgres.NewTaskRepository(conn)
		s.Reminders = postgres.NewReminderRepository(conn)
		s.Progress = postgres.NewProgressStore(conn)
		log.Info("database connection established")

		if cfg.Database.AutoMigrate {
			applied, err := postgres.NewMigrator(conn).Up(ctx)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			log.Info("migrations completed", slog.Int("applied", applied))
		}
	} else {
		store := memory.New()
		s.Users, s.Tasks, s.Reminders, s.Progress = store, store, store, store
		log.Warn("no database configured, using the in-memory store")
	}

	if cfg.Redis.Enabled {
		cache, err := redis.NewCache(RedisConfig(cfg.Redis))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		s.Cache = cache
		s.Leaderboard = redis.NewLeaderboardCache(cache, 0)
		s.JobLock = redis.NewJobLock(cache, cfg.Scheduler.JobTimeout)
		log.Info("redis connection established", slog.String("addr", cache.Client().Options().Addr))
	}
	return s, nil
}

// Close releases connections.
func (s *Stores) Close() {
	if s.Cache != nil {
		_ = s.Cache.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

// PostgresConfig maps the DATABASE section to pool settings.
func PostgresConfig(c config.DatabaseConfig) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = c.URL
	if c.Host != "" {
		pc.Host = c.Host
	}
	pc.Port = c.Port
	pc.Database = c.Name
	pc.User = c.User
	pc.Password = c.Password
	pc.SSLMode = c.SSLMode
	pc.MaxConns = int32(c.MaxConns)
	pc.MinConns = int32(c.MinConns)
	pc.MaxConnLifetime = c.ConnMaxLifetime
	pc.MaxConnIdleTime = c.ConnMaxIdleTime
	pc.ConnectTimeout = c.ConnectTimeout
	return pc
}

// RedisConfig maps the REDIS section to client settings.
func RedisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.MinIdleConns = c.MinIdleConns
	rc.DialTimeout = c.DialTimeout
	rc.ReadTimeout = c.ReadTimeout
	rc.WriteTimeout = c.WriteTimeout
	rc.KeyPrefix = c.KeyPrefix
	return rc
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICES
// ══════════════════════════════════════════════════════════════════════════════

// Services holds the use cases.
type Services struct {
	Clock    timeutil.Clock
	Location *time.Location

	Engine           *appgame.Engine
	Register         *command.RegisterUserHandler
	CreateTask       *command.CreateTaskHandler
	CompleteTask     *command.CompleteTaskHandler
	ManageTask       *command.ManageTaskHandler
	ReminderSettings *command.UpdateReminderSettingsHandler
	Tasks            *query.Tasks
	Reminders        *query.Reminders
}

// NewServices builds the use cases over s.
func NewServices(s *Stores, cfg *config.Config, log *slog.Logger) *Services {
	clock := timeutil.SystemClock()
	loc := cfg.App.Location

	gameCfg := appgame.Config{Location: loc, Clock: clock, Logger: log}
	if s.Leaderboard != nil {
		gameCfg.Cache = s.Leaderboard
	}
	engine := appgame.NewEngine(s.Progress, gameCfg)

	return &Services{
		Clock:            clock,
		Location:         loc,
		Engine:           engine,
		Register:         command.NewRegisterUserHandler(s.Users, clock, log),
		CreateTask:       command.NewCreateTaskHandler(s.Tasks, engine, clock, log),
		CompleteTask:     command.NewCompleteTaskHandler(s.Tasks, engine, loc, clock, log),
		ManageTask:       command.NewManageTaskHandler(s.Tasks, s.Reminders, clock),
		ReminderSettings: command.NewUpdateReminderSettingsHandler(s.Users),
		Tasks:            query.NewTasks(s.Tasks),
		Reminders:        query.NewReminders(s.Reminders, clock, loc),
	}
}

// NewTelegramClient builds the Bot API client with the default retry and breaker.
func NewTelegramClient(cfg *config.Config, log *slog.Logger) *telegram.Client {
	tc := telegram.DefaultClientConfig(cfg.Telegram.Token)
	tc.BaseURL = cfg.Telegram.BaseURL
	tc.PollTimeout = cfg.Telegram.PollTimeout
	if cfg.Telegram.RequestTimeout > 0 {
		tc.Timeout = cfg.Telegram.RequestTimeout
	}
	tc.Logger = log
	return telegram.NewClient(tc)
}
