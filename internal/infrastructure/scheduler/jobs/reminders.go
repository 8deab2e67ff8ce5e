package jobs

import (
	"context"
	"fmt"

	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	"github.com/taskquest/taskquest-bot/internal/domain/reminder"
	"github.com/taskquest/taskquest-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPCOMING DEADLINES JOB
// ══════════════════════════════════════════════════════════════════════════════

// UpcomingDeadlinesJob reminds owners about tasks due within the next 24 hours.
// Each task is reminded once: the flag is set only after a successful send.
type UpcomingDeadlinesJob struct {
	lastRun

	reminders Reminders
	notifier  notification.Notifier
	cfg       Config
}

// NewUpcomingDeadlinesJob creates the job.
func NewUpcomingDeadlinesJob(reminders Reminders, notifier notification.Notifier, cfg Config) *UpcomingDeadlinesJob {
	return &UpcomingDeadlinesJob{reminders: reminders, notifier: notifier, cfg: cfg.withDefaults()}
}

func (j *UpcomingDeadlinesJob) Name() string { return NameUpcomingDeadlines }

func (j *UpcomingDeadlinesJob) Description() string {
	return "Reminds about open tasks due within 24 hours"
}

func (j *UpcomingDeadlinesJob) Run(ctx context.Context) error {
	log := runLogger(ctx, j.cfg.Logger, j.Name())

	items, err := j.reminders.TasksForUpcomingReminder(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}
	now := j.reminders.Now()

	stats := fanOut(ctx, j.cfg.Concurrency, items, func(ctx context.Context, item reminder.TaskWithOwner) outcome {
		msg := UpcomingDeadlineMessage(item, now, j.cfg.Location)
		taskAttr := logger.TaskID(item.Task.ID.Int64())
		if res := send(ctx, j.notifier, msg, log, taskAttr); res != sent {
			return res
		}
		if err := j.reminders.MarkReminderSent(ctx, item.Task.ID); err != nil {
			log.Error("mark reminder sent", taskAttr, logger.Err(err))
			return failed
		}
		return sent
	})

	j.store(stats)
	logRun(log, stats)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OVERDUE TASKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// OverdueTasksJob notifies owners once about each open task past its deadline.
type OverdueTasksJob struct {
	lastRun

	reminders Reminders
	notifier  notification.Notifier
	cfg       Config
}

// NewOverdueTasksJob creates the job.
func NewOverdueTasksJob(reminders Reminders, notifier notification.Notifier, cfg Config) *OverdueTasksJob {
	return &OverdueTasksJob{reminders: reminders, notifier: notifier, cfg: cfg.withDefaults()}
}

func (j *OverdueTasksJob) Name() string { return NameOverdueTasks }

func (j *OverdueTasksJob) Description() string {
	return "Notifies about open tasks past their deadline"
}

func (j *OverdueTasksJob) Run(ctx context.Context) error {
	log := runLogger(ctx, j.cfg.Logger, j.Name())

	items, err := j.reminders.OverdueTasks(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}
	now := j.reminders.Now()

	stats := fanOut(ctx, j.cfg.Concurrency, items, func(ctx context.Context, item reminder.TaskWithOwner) outcome {
		msg := OverdueMessage(item, now, j.cfg.Location)
		taskAttr := logger.TaskID(item.Task.ID.Int64())
		if res := send(ctx, j.notifier, msg, log, taskAttr); res != sent {
			return res
		}
		if err := j.reminders.MarkOverdueReminderSent(ctx, item.Task.ID); err != nil {
			log.Error("mark overdue reminder sent", taskAttr, logger.Err(err))
			return failed
		}
		return sent
	})

	j.store(stats)
	logRun(log, stats)
	return nil
}
