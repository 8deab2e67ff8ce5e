// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/reminder"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER QUERIES
// Выборки для заданий планировщика. Текущий момент берётся из часов,
// "сегодня" считается в часовом поясе бота.
// ══════════════════════════════════════════════════════════════════════════════

// Reminders - слой запросов напоминаний поверх reminder.Repository.
type Reminders struct {
	repo reminder.Repository
	now  timeutil.Clock
	loc  *time.Location
}

// NewReminders создаёт слой запросов.
func NewReminders(repo reminder.Repository, clock timeutil.Clock, loc *time.Location) *Reminders {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Reminders{repo: repo, now: clock, loc: loc}
}

// Now возвращает текущий момент в UTC.
func (r *Reminders) Now() time.Time {
	return r.now().UTC()
}

// Today возвращает текущий день в часовом поясе бота.
func (r *Reminders) Today() timeutil.Date {
	return timeutil.DateOf(r.now(), r.loc)
}

// TasksForUpcomingReminder - задачи со сроком в ближайшие 24 часа без отправленного напоминания.
func (r *Reminders) TasksForUpcomingReminder(ctx context.Context) ([]reminder.TaskWithOwner, error) {
	now := r.Now()
	items, err := r.repo.TasksDueBetween(ctx, now, now.Add(reminder.UpcomingWindow))
	if err != nil {
		return nil, fmt.Errorf("query: upcoming reminders: %w", err)
	}
	return items, nil
}

// OverdueTasks - просроченные открытые задачи без отправленного напоминания.
func (r *Reminders) OverdueTasks(ctx context.Context) ([]reminder.TaskWithOwner, error) {
	items, err := r.repo.OverdueTasks(ctx, r.Now())
	if err != nil {
		return nil, fmt.Errorf("query: overdue tasks: %w", err)
	}
	return items, nil
}

// DailySummary - открытые задачи каждого пользователя для утренней сводки.
func (r *Reminders) DailySummary(ctx context.Context) ([]reminder.Digest, error) {
	items, err := r.repo.OpenTasksByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: daily summary: %w", err)
	}
	return items, nil
}

func (r *Reminders) MarkReminderSent(ctx context.Context, id shared.TaskID) error {
	return r.repo.MarkReminderSent(ctx, id)
}

func (r *Reminders) MarkOverdueReminderSent(ctx context.Context, id shared.TaskID) error {
	return r.repo.MarkOverdueReminderSent(ctx, id)
}

func (r *Reminders) ResetReminderFlags(ctx context.Context, id shared.TaskID) error {
	return r.repo.ResetReminderFlags(ctx, id)
}

// UsersWithStreakAtRisk - пользователи с серией, ещё ничего не выполнившие сегодня.
func (r *Reminders) UsersWithStreakAtRisk(ctx context.Context) ([]*user.User, error) {
	users, err := r.repo.UsersWithStreakAtRisk(ctx, r.Today())
	if err != nil {
		return nil, fmt.Errorf("query: streak at risk: %w", err)
	}
	return users, nil
}

// AllActiveUsers - пользователи с включёнными напоминаниями.
func (r *Reminders) AllActiveUsers(ctx context.Context) ([]*user.User, error) {
	users, err := r.repo.ActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: active users: %w", err)
	}
	return users, nil
}

// WeeklyStats - итоги пользователя за последние 7×24 часа.
func (r *Reminders) WeeklyStats(ctx context.Context, userID shared.UserID) (reminder.WeeklyStats, error) {
	now := r.Now()
	stats, err := r.repo.WeeklyStats(ctx, userID, now.Add(-reminder.WeeklyWindow), now)
	if err != nil {
		return reminder.WeeklyStats{}, fmt.Errorf("query: weekly stats: %w", err)
	}
	return stats, nil
}
