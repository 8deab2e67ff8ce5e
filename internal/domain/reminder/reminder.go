// Package reminder определяет выборки задач и пользователей для плановых уведомлений.
package reminder

import (
	"context"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// UpcomingWindow - за сколько до срока отправляется напоминание.
const UpcomingWindow = 24 * time.Hour

// WeeklyWindow - окно недельной статистики.
const WeeklyWindow = 7 * 24 * time.Hour

// TaskWithOwner - задача вместе с владельцем, которому уйдёт уведомление.
type TaskWithOwner struct {
	Task  *task.Task
	Owner *user.User
}

// Digest - открытые задачи пользователя для утренней сводки.
type Digest struct {
	User  *user.User
	Tasks []*task.Task
}

// WeeklyStats - итоги пользователя за последние 7×24 часа.
type WeeklyStats struct {
	XPEarned  int
	Completed int
	Created   int
}

// IsEmpty - за неделю ничего не произошло.
func (s WeeklyStats) IsEmpty() bool {
	return s.XPEarned == 0 && s.Completed == 0 && s.Created == 0
}

// Repository - выборки для заданий планировщика.
// Все выборки учитывают только пользователей с включёнными напоминаниями.
type Repository interface {
	// TasksDueBetween: срок в (from, to], задача открыта, reminder_sent = false.
	// Порядок: due_date, затем id.
	TasksDueBetween(ctx context.Context, from, to time.Time) ([]TaskWithOwner, error)

	// OverdueTasks: срок < now, задача открыта, overdue_reminder_sent = false.
	OverdueTasks(ctx context.Context, now time.Time) ([]TaskWithOwner, error)

	// OpenTasksByUser: для каждого пользователя его открытые задачи по приоритету (убыв.),
	// сроку (без срока - в конце) и id. Пользователи без задач не попадают, порядок по id.
	OpenTasksByUser(ctx context.Context) ([]Digest, error)

	MarkReminderSent(ctx context.Context, taskID shared.TaskID) error
	MarkOverdueReminderSent(ctx context.Context, taskID shared.TaskID) error
	ResetReminderFlags(ctx context.Context, taskID shared.TaskID) error

	// UsersWithStreakAtRisk: current_streak > 0 и last_completed_date != today.
	UsersWithStreakAtRisk(ctx context.Context, today timeutil.Date) ([]*user.User, error)

	// ActiveUsers - все пользователи с включёнными напоминаниями, по id.
	ActiveUsers(ctx context.Context) ([]*user.User, error)

	// WeeklyStats считает XP из журнала и задачи, созданные/выполненные в [from, to).
	WeeklyStats(ctx context.Context, userID shared.UserID, from, to time.Time) (WeeklyStats, error)
}
