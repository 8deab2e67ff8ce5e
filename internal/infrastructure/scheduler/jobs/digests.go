package jobs

import (
	"context"
	"fmt"

	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	"github.com/taskquest/taskquest-bot/internal/domain/reminder"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY SUMMARY JOB
// ══════════════════════════════════════════════════════════════════════════════

// DailySummaryJob sends the morning digest of open tasks.
// Users without open tasks get nothing.
type DailySummaryJob struct {
	lastRun

	reminders Reminders
	notifier  notification.Notifier
	cfg       Config
}

// NewDailySummaryJob creates the job.
func NewDailySummaryJob(reminders Reminders, notifier notification.Notifier, cfg Config) *DailySummaryJob {
	return &DailySummaryJob{reminders: reminders, notifier: notifier, cfg: cfg.withDefaults()}
}

func (j *DailySummaryJob) Name() string { return NameDailySummary }

func (j *DailySummaryJob) Description() string {
	return "Sends the morning summary of open tasks"
}

func (j *DailySummaryJob) Run(ctx context.Context) error {
	log := runLogger(ctx, j.cfg.Logger, j.Name())

	digests, err := j.reminders.DailySummary(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}
	today := j.reminders.Today()

	stats := fanOut(ctx, j.cfg.Concurrency, digests, func(ctx context.Context, d reminder.Digest) outcome {
		if len(d.Tasks) == 0 {
			return skipped
		}
		msg := DailySummaryMessage(d, today, j.cfg.Location)
		return send(ctx, j.notifier, msg, log, logger.UserID(d.User.ID.Int64()))
	})

	j.store(stats)
	logRun(log, stats)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REMINDER JOB
// ══════════════════════════════════════════════════════════════════════════════

// StreakReminderJob warns users whose streak of at least MinStreak days
// will break unless they complete a task before midnight.
type StreakReminderJob struct {
	lastRun

	reminders Reminders
	notifier  notification.Notifier
	cfg       Config
}

// NewStreakReminderJob creates the job.
func NewStreakReminderJob(reminders Reminders, notifier notification.Notifier, cfg Config) *StreakReminderJob {
	return &StreakReminderJob{reminders: reminders, notifier: notifier, cfg: cfg.withDefaults()}
}

func (j *StreakReminderJob) Name() string { return NameStreakReminder }

func (j *StreakReminderJob) Description() string {
	return "Warns users whose streak is at risk today"
}

func (j *StreakReminderJob) Run(ctx context.Context) error {
	log := runLogger(ctx, j.cfg.Logger, j.Name())

	users, err := j.reminders.UsersWithStreakAtRisk(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}

	stats := fanOut(ctx, j.cfg.Concurrency, users, func(ctx context.Context, u *user.User) outcome {
		if u.Progress.CurrentStreak < j.cfg.MinStreak {
			return skipped
		}
		return send(ctx, j.notifier, StreakReminderMessage(u), log, logger.UserID(u.ID.Int64()))
	})

	j.store(stats)
	logRun(log, stats)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY STATS JOB
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyStatsJob sends every active user the totals of the trailing seven days.
type WeeklyStatsJob struct {
	lastRun

	reminders Reminders
	notifier  notification.Notifier
	cfg       Config
}

// NewWeeklyStatsJob creates the job.
func NewWeeklyStatsJob(reminders Reminders, notifier notification.Notifier, cfg Config) *WeeklyStatsJob {
	return &WeeklyStatsJob{reminders: reminders, notifier: notifier, cfg: cfg.withDefaults()}
}

func (j *WeeklyStatsJob) Name() string { return NameWeeklyStats }

func (j *WeeklyStatsJob) Description() string {
	return "Sends weekly totals to every active user"
}

func (j *WeeklyStatsJob) Run(ctx context.Context) error {
	log := runLogger(ctx, j.cfg.Logger, j.Name())

	users, err := j.reminders.AllActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}

	stats := fanOut(ctx, j.cfg.Concurrency, users, func(ctx context.Context, u *user.User) outcome {
		userAttr := logger.UserID(u.ID.Int64())
		week, err := j.reminders.WeeklyStats(ctx, u.ID)
		if err != nil {
			log.Error("load weekly stats", userAttr, logger.Err(err))
			return failed
		}
		return send(ctx, j.notifier, WeeklyStatsMessage(u, week), log, userAttr)
	})

	j.store(stats)
	logRun(log, stats)
	return nil
}
