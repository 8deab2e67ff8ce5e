package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskquest/taskquest-bot/internal/domain/reminder"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ReminderRepository implements reminder.Repository for PostgreSQL.
type ReminderRepository struct {
	conn *Connection
}

var _ reminder.Repository = (*ReminderRepository)(nil)

// NewReminderRepository creates a new ReminderRepository.
func NewReminderRepository(conn *Connection) *ReminderRepository {
	return &ReminderRepository{conn: conn}
}

const openTaskWithOwner = `
	SELECT ` + tasksPrefixed + `, ` + usersPrefixed + `
	FROM tasks t
	JOIN users u ON u.id = t.user_id
	WHERE u.reminders_enabled
	  AND t.status IN ('pending', 'in_progress')
	  AND t.due_date IS NOT NULL`

// TasksDueBetween returns open tasks due in (from, to] without a sent reminder.
func (r *ReminderRepository) TasksDueBetween(ctx context.Context, from, to time.Time) ([]reminder.TaskWithOwner, error) {
	query := openTaskWithOwner + `
	  AND NOT t.reminder_sent
	  AND t.due_date > $1 AND t.due_date <= $2
	ORDER BY t.due_date, t.id`

	rows, err := r.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: tasks due between: %w", err)
	}
	return scanTasksWithOwner(rows)
}

// OverdueTasks returns open tasks due before now without a sent overdue notice.
func (r *ReminderRepository) OverdueTasks(ctx context.Context, now time.Time) ([]reminder.TaskWithOwner, error) {
	query := openTaskWithOwner + `
	  AND NOT t.overdue_reminder_sent
	  AND t.due_date < $1
	ORDER BY t.due_date, t.id`

	rows, err := r.conn.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: overdue tasks: %w", err)
	}
	return scanTasksWithOwner(rows)
}

// OpenTasksByUser groups open tasks per user for the morning digest.
func (r *ReminderRepository) OpenTasksByUser(ctx context.Context) ([]reminder.Digest, error) {
	query := `
	SELECT ` + tasksPrefixed + `, ` + usersPrefixed + `
	FROM tasks t
	JOIN users u ON u.id = t.user_id
	WHERE u.reminders_enabled
	  AND t.status IN ('pending', 'in_progress')
	ORDER BY u.id, t.priority DESC, t.due_date ASC NULLS LAST, t.id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: open tasks by user: %w", err)
	}
	items, err := scanTasksWithOwner(rows)
	if err != nil {
		return nil, err
	}

	var out []reminder.Digest
	for _, item := range items {
		if n := len(out); n > 0 && out[n-1].User.ID == item.Owner.ID {
			out[n-1].Tasks = append(out[n-1].Tasks, item.Task)
			continue
		}
		out = append(out, reminder.Digest{User: item.Owner, Tasks: []*task.Task{item.Task}})
	}
	return out, nil
}

func (r *ReminderRepository) MarkReminderSent(ctx context.Context, taskID shared.TaskID) error {
	return r.setFlags(ctx, "reminder_sent = TRUE", taskID)
}

func (r *ReminderRepository) MarkOverdueReminderSent(ctx context.Context, taskID shared.TaskID) error {
	return r.setFlags(ctx, "overdue_reminder_sent = TRUE", taskID)
}

func (r *ReminderRepository) ResetReminderFlags(ctx context.Context, taskID shared.TaskID) error {
	return r.setFlags(ctx, "reminder_sent = FALSE, overdue_reminder_sent = FALSE", taskID)
}

// setFlags is a no-op for a deleted task.
func (r *ReminderRepository) setFlags(ctx context.Context, set string, taskID shared.TaskID) error {
	if _, err := r.conn.Exec(ctx, "UPDATE tasks SET "+set+" WHERE id = $1", int64(taskID)); err != nil {
		return fmt.Errorf("postgres: update reminder flags: %w", err)
	}
	return nil
}

// UsersWithStreakAtRisk returns users with a live streak and no completion today.
func (r *ReminderRepository) UsersWithStreakAtRisk(ctx context.Context, today timeutil.Date) ([]*user.User, error) {
	query := "SELECT " + userColumns + ` FROM users
		WHERE reminders_enabled
		  AND current_streak > 0
		  AND (last_completed_date IS NULL OR last_completed_date <> $1)
		ORDER BY id`

	rows, err := r.conn.Query(ctx, query, today.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: streak at risk: %w", err)
	}
	return scanUsers(rows)
}

func (r *ReminderRepository) ActiveUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := r.conn.Query(ctx, "SELECT "+userColumns+" FROM users WHERE reminders_enabled ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("postgres: active users: %w", err)
	}
	return scanUsers(rows)
}

// WeeklyStats sums the XP journal and task counts over [from, to).
func (r *ReminderRepository) WeeklyStats(ctx context.Context, userID shared.UserID, from, to time.Time) (reminder.WeeklyStats, error) {
	query := `
		SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM xp_events
				WHERE user_id = $1 AND created_at >= $2 AND created_at < $3),
			(SELECT COUNT(*) FROM tasks
				WHERE user_id = $1 AND status = 'completed' AND completed_at >= $2 AND completed_at < $3),
			(SELECT COUNT(*) FROM tasks
				WHERE user_id = $1 AND created_at >= $2 AND created_at < $3)
	`

	var stats reminder.WeeklyStats
	err := r.conn.QueryRow(ctx, query, int64(userID), from, to).
		Scan(&stats.XPEarned, &stats.Completed, &stats.Created)
	if err != nil {
		return reminder.WeeklyStats{}, fmt.Errorf("postgres: weekly stats: %w", err)
	}
	return stats, nil
}

func scanTasksWithOwner(rows pgx.Rows) ([]reminder.TaskWithOwner, error) {
	defer rows.Close()

	var out []reminder.TaskWithOwner
	for rows.Next() {
		var tr taskRow
		var ur userRow
		if err := rows.Scan(append(tr.dest(), ur.dest()...)...); err != nil {
			return nil, fmt.Errorf("postgres: scan task with owner: %w", err)
		}
		out = append(out, reminder.TaskWithOwner{Task: tr.build(), Owner: ur.build()})
	}
	return out, rows.Err()
}
