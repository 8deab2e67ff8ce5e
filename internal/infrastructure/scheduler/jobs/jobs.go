// Package jobs contains the scheduled jobs of the bot: deadline and overdue
// reminders, morning summary, streak reminder, weekly stats and leaderboard rebuild.
package jobs

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	"github.com/taskquest/taskquest-bot/internal/domain/reminder"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/scheduler"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// Job names as they appear in config, logs and the admin API.
const (
	NameUpcomingDeadlines  = "check_upcoming_deadlines"
	NameOverdueTasks       = "check_overdue_tasks"
	NameDailySummary       = "daily_summary"
	NameStreakReminder     = "streak_reminder"
	NameWeeklyStats        = "weekly_stats"
	NameRebuildLeaderboard = "rebuild_leaderboard"
)

// DefaultSchedules maps every job to its default trigger.
var DefaultSchedules = map[string]string{
	NameUpcomingDeadlines:  "@every 30m",
	NameOverdueTasks:       "@every 1h",
	NameDailySummary:       "0 9 * * *",
	NameStreakReminder:     "0 21 * * *",
	NameWeeklyStats:        "0 20 * * 0",
	NameRebuildLeaderboard: "@every 10m",
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Reminders is the query layer the notification jobs read from.
// It is implemented by *query.Reminders.
type Reminders interface {
	Now() time.Time
	Today() timeutil.Date

	TasksForUpcomingReminder(ctx context.Context) ([]reminder.TaskWithOwner, error)
	OverdueTasks(ctx context.Context) ([]reminder.TaskWithOwner, error)
	DailySummary(ctx context.Context) ([]reminder.Digest, error)
	UsersWithStreakAtRisk(ctx context.Context) ([]*user.User, error)
	AllActiveUsers(ctx context.Context) ([]*user.User, error)
	WeeklyStats(ctx context.Context, userID shared.UserID) (reminder.WeeklyStats, error)

	MarkReminderSent(ctx context.Context, id shared.TaskID) error
	MarkOverdueReminderSent(ctx context.Context, id shared.TaskID) error
}

// Config contains settings shared by the notification jobs.
type Config struct {
	// Concurrency is the number of messages sent in parallel.
	Concurrency int

	// Location is the bot timezone used to render dates.
	Location *time.Location

	// MinStreak - минимальная серия, ради которой шлётся вечернее напоминание.
	MinStreak int

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 8,
		Location:    time.UTC,
		MinStreak:   3,
		Logger:      slog.Default(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	if c.MinStreak <= 0 {
		c.MinStreak = def.MinStreak
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN STATS
// ══════════════════════════════════════════════════════════════════════════════

// RunStats contains statistics from one run of a notification job.
type RunStats struct {
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Candidates  int           `json:"candidates"`
	Sent        int           `json:"sent"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
}

// lastRun holds the stats of the most recent run.
type lastRun struct {
	v atomic.Pointer[RunStats]
}

func (l *lastRun) store(s RunStats) { l.v.Store(&s) }

// LastRunStats returns statistics from the last run, nil before the first one.
func (l *lastRun) LastRunStats() *RunStats {
	return l.v.Load()
}

// outcome of a single delivery.
type outcome int

const (
	sent outcome = iota
	skipped
	failed
)

// fanOut calls deliver for every item through a bounded worker pool.
// Delivery failures and panics are counted, never returned: one recipient cannot fail the run.
func fanOut[T any](ctx context.Context, concurrency int, items []T, deliver func(ctx context.Context, item T) outcome) RunStats {
	stats := RunStats{StartedAt: time.Now(), Candidates: len(items)}

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, concurrency)
		mu        sync.Mutex
	)

loop:
	for _, item := range items {
		select {
		case <-ctx.Done():
			break loop
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-semaphore }()

			res := deliverSafely(ctx, item, deliver)

			mu.Lock()
			defer mu.Unlock()
			switch res {
			case sent:
				stats.Sent++
			case skipped:
				stats.Skipped++
			default:
				stats.Failed++
			}
		}(item)
	}
	wg.Wait()

	// Items never attempted because the context ended count as skipped.
	stats.Skipped += stats.Candidates - stats.Sent - stats.Skipped - stats.Failed

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	return stats
}

// deliverSafely turns a panic in deliver into a failed outcome.
func deliverSafely[T any](ctx context.Context, item T, deliver func(ctx context.Context, item T) outcome) (res outcome) {
	defer func() {
		if p := recover(); p != nil {
			logger.FromContext(ctx).Error("notification delivery panicked",
				slog.Any("panic", p), slog.String("stack", string(debug.Stack())))
			res = failed
		}
	}()
	return deliver(ctx, item)
}

// send delivers msg and logs a failure with the recipient attached.
func send(ctx context.Context, n notification.Notifier, msg notification.Message, log *slog.Logger, attrs ...any) outcome {
	if err := n.Notify(ctx, msg); err != nil {
		log.Error("notification failed", append(attrs, logger.ChatID(msg.ChatID), slog.String("kind", string(msg.Kind)), logger.Err(err))...)
		return failed
	}
	return sent
}

func logRun(log *slog.Logger, stats RunStats) {
	log.Info("notifications sent",
		slog.Int("candidates", stats.Candidates),
		slog.Int("sent", stats.Sent),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		logger.Latency(stats.Duration),
	)
}

func runLogger(ctx context.Context, base *slog.Logger, name string) *slog.Logger {
	log := base.With(logger.Job(name))
	if id := scheduler.RunID(ctx); id != "" {
		log = log.With(slog.String("run_id", id))
	}
	return log
}
