package app

import (
	"fmt"
	"log/slog"

	"github.com/taskquest/taskquest-bot/config"
	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/scheduler"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/scheduler/jobs"
)

// NewScheduler registers every enabled job with its configured trigger.
// rebuild_leaderboard is registered only when the Redis cache exists.
func NewScheduler(cfg *config.Config, stores *Stores, svc *Services, notifier notification.Notifier, log *slog.Logger) (*scheduler.Scheduler, error) {
	schedCfg := scheduler.Config{
		Logger:       log,
		Location:     svc.Location,
		Clock:        svc.Clock,
		TickInterval: cfg.Scheduler.TickInterval,
		JobTimeout:   cfg.Scheduler.JobTimeout,
	}
	if stores.JobLock != nil {
		schedCfg.Locker = stores.JobLock
	}
	s := scheduler.New(schedCfg)

	jobCfg := jobs.Config{
		Concurrency: cfg.Scheduler.Concurrency,
		Location:    svc.Location,
		MinStreak:   cfg.Scheduler.MinStreak,
		Logger:      log,
	}

	all := []scheduler.Job{
		jobs.NewUpcomingDeadlinesJob(svc.Reminders, notifier, jobCfg),
		jobs.NewOverdueTasksJob(svc.Reminders, notifier, jobCfg),
		jobs.NewDailySummaryJob(svc.Reminders, notifier, jobCfg),
		jobs.NewStreakReminderJob(svc.Reminders, notifier, jobCfg),
		jobs.NewWeeklyStatsJob(svc.Reminders, notifier, jobCfg),
	}
	if stores.Leaderboard != nil {
		all = append(all, jobs.NewRebuildLeaderboardJob(svc.Engine, log))
	}

	for _, job := range all {
		name := job.Name()
		if !cfg.Scheduler.JobEnabled(name) {
			log.Info("job disabled by configuration", slog.String("job", name))
			continue
		}
		spec := cfg.Scheduler.ScheduleFor(name, jobs.DefaultSchedules[name])
		schedule, err := scheduler.ParseSchedule(spec, svc.Location)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", name, err)
		}
		if err := s.Register(job, schedule); err != nil {
			return nil, err
		}
	}

	for name := range cfg.Scheduler.Schedules {
		if _, known := jobs.DefaultSchedules[name]; !known {
			log.Warn("schedule override for unknown job ignored", slog.String("job", name))
		}
	}
	return s, nil
}
