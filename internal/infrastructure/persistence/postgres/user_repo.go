package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

var _ user.Repository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

const userColumns = `
	id, telegram_id, chat_id, username, first_name, reminders_enabled,
	xp, level, current_streak, max_streak, last_completed_date,
	total_completed, total_created, tasks_completed_today, last_activity_date,
	created_at, updated_at`

// usersPrefixed is userColumns qualified with the "u." alias for joins.
const usersPrefixed = `
	u.id, u.telegram_id, u.chat_id, u.username, u.first_name, u.reminders_enabled,
	u.xp, u.level, u.current_streak, u.max_streak, u.last_completed_date,
	u.total_completed, u.total_created, u.tasks_completed_today, u.last_activity_date,
	u.created_at, u.updated_at`

// GetOrCreate inserts the user unless the Telegram ID is already registered.
func (r *UserRepository) GetOrCreate(ctx context.Context, u *user.User) (*user.User, bool, error) {
	query := `
		INSERT INTO users (telegram_id, chat_id, username, first_name, reminders_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING ` + userColumns

	stored, err := scanUser(r.conn.QueryRow(ctx, query,
		u.TelegramID.Int64(),
		u.ChatID,
		u.Username,
		u.FirstName,
		u.RemindersEnabled,
		u.CreatedAt,
		u.UpdatedAt,
	))
	if err == nil {
		return stored, true, nil
	}
	if !IsNoRows(err) {
		return nil, false, fmt.Errorf("postgres: create user: %w", err)
	}

	existing, err := r.GetByTelegramID(ctx, u.TelegramID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID returns shared.ErrUserNotFound when there is no such user.
func (r *UserRepository) GetByID(ctx context.Context, id shared.UserID) (*user.User, error) {
	return getUser(ctx, r.conn, "SELECT "+userColumns+" FROM users WHERE id = $1", int64(id))
}

// GetByTelegramID returns shared.ErrUserNotFound when there is no such user.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID shared.TelegramID) (*user.User, error) {
	return getUser(ctx, r.conn, "SELECT "+userColumns+" FROM users WHERE telegram_id = $1", telegramID.Int64())
}

// SetRemindersEnabled toggles scheduled notifications for the user.
func (r *UserRepository) SetRemindersEnabled(ctx context.Context, id shared.UserID, enabled bool) error {
	result, err := r.conn.Exec(ctx,
		"UPDATE users SET reminders_enabled = $1, updated_at = $2 WHERE id = $3",
		enabled, time.Now().UTC(), int64(id))
	if err != nil {
		return fmt.Errorf("postgres: set reminders: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func getUser(ctx context.Context, q Querier, query string, args ...any) (*user.User, error) {
	u, err := scanUser(q.QueryRow(ctx, query, args...))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("postgres: get user: %w", err)
	}
	return u, nil
}

// userRow holds scan destinations for userColumns.
type userRow struct {
	u              user.User
	id, telegramID int64
	lastCompleted  *time.Time
	lastActivity   *time.Time
}

func (r *userRow) dest() []any {
	p := &r.u.Progress
	return []any{
		&r.id, &r.telegramID, &r.u.ChatID, &r.u.Username, &r.u.FirstName, &r.u.RemindersEnabled,
		&p.XP, &p.Level, &p.CurrentStreak, &p.MaxStreak, &r.lastCompleted,
		&p.TotalCompleted, &p.TotalCreated, &p.TasksCompletedToday, &r.lastActivity,
		&r.u.CreatedAt, &r.u.UpdatedAt,
	}
}

func (r *userRow) build() *user.User {
	u := r.u
	u.ID = shared.UserID(r.id)
	u.TelegramID = shared.TelegramID(r.telegramID)
	u.Progress.UserID = u.ID
	u.Progress.LastCompletedDate = dateValue(r.lastCompleted)
	u.Progress.LastActivityDate = dateValue(r.lastActivity)
	return &u
}

// scanUser reads a row selected with userColumns. pgx.Rows satisfies pgx.Row.
func scanUser(row pgx.Row) (*user.User, error) {
	var r userRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.build(), nil
}

func scanUsers(rows pgx.Rows) ([]*user.User, error) {
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// dateArg encodes a calendar day for a DATE column; the zero date is NULL.
func dateArg(d timeutil.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.UTC()
}

func dateValue(t *time.Time) timeutil.Date {
	if t == nil {
		return timeutil.Date{}
	}
	return timeutil.DateFromTime(*t)
}
