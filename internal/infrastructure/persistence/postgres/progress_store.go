package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS STORE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressStore implements gamification.Store for PostgreSQL.
type ProgressStore struct {
	conn *Connection
}

var _ gamification.Store = (*ProgressStore)(nil)

// NewProgressStore creates a new ProgressStore.
func NewProgressStore(conn *Connection) *ProgressStore {
	return &ProgressStore{conn: conn}
}

// WithUserLock locks the user row for the duration of fn.
func (s *ProgressStore) WithUserLock(ctx context.Context, userID shared.UserID, fn func(tx gamification.Tx, p *user.Progress) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		u, err := getUser(ctx, tx, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", int64(userID))
		if err != nil {
			return err
		}
		progress := u.Progress
		return fn(&progressTx{tx: tx, userID: userID}, &progress)
	})
}

// progressTx implements gamification.Tx on top of a pgx transaction.
type progressTx struct {
	tx     pgx.Tx
	userID shared.UserID
}

func (t *progressTx) SaveProgress(ctx context.Context, p user.Progress) error {
	query := `
		UPDATE users SET
			xp = $1,
			level = $2,
			current_streak = $3,
			max_streak = $4,
			last_completed_date = $5,
			total_completed = $6,
			total_created = $7,
			tasks_completed_today = $8,
			last_activity_date = $9,
			updated_at = NOW()
		WHERE id = $10
	`

	_, err := t.tx.Exec(ctx, query,
		p.XP,
		p.Level,
		p.CurrentStreak,
		p.MaxStreak,
		dateArg(p.LastCompletedDate),
		p.TotalCompleted,
		p.TotalCreated,
		p.TasksCompletedToday,
		dateArg(p.LastActivityDate),
		int64(t.userID),
	)
	if err != nil {
		return fmt.Errorf("postgres: save progress: %w", err)
	}
	return nil
}

func (t *progressTx) UnlockedIDs(ctx context.Context) (map[achievement.ID]bool, error) {
	rows, err := t.tx.Query(ctx, "SELECT achievement_id FROM user_achievements WHERE user_id = $1", int64(t.userID))
	if err != nil {
		return nil, fmt.Errorf("postgres: unlocked ids: %w", err)
	}
	defer rows.Close()

	out := make(map[achievement.ID]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan achievement id: %w", err)
		}
		out[achievement.ID(id)] = true
	}
	return out, rows.Err()
}

// Unlock relies on the (user_id, achievement_id) unique constraint.
func (t *progressTx) Unlock(ctx context.Context, id achievement.ID, at time.Time) (bool, error) {
	result, err := t.tx.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, int64(t.userID), string(id), at)
	if err != nil {
		return false, fmt.Errorf("postgres: unlock achievement: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (t *progressTx) RecordXP(ctx context.Context, amount int, reason string, at time.Time) error {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO xp_events (user_id, amount, reason, created_at) VALUES ($1, $2, $3, $4)",
		int64(t.userID), amount, reason, at)
	if err != nil {
		return fmt.Errorf("postgres: record xp: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// ReadStats reads the user, achievement count and task counts from one snapshot.
func (s *ProgressStore) ReadStats(ctx context.Context, userID shared.UserID) (gamification.StatsData, error) {
	var data gamification.StatsData

	err := s.conn.WithTx(ctx, SnapshotTxOptions(), func(tx pgx.Tx) error {
		u, err := getUser(ctx, tx, "SELECT "+userColumns+" FROM users WHERE id = $1", int64(userID))
		if err != nil {
			return err
		}
		data.User = u

		if err := tx.QueryRow(ctx,
			"SELECT COUNT(*) FROM user_achievements WHERE user_id = $1", int64(userID),
		).Scan(&data.UnlockedCount); err != nil {
			return fmt.Errorf("postgres: count achievements: %w", err)
		}

		data.StatusCounts, err = countByStatus(ctx, tx, userID)
		return err
	})
	if err != nil {
		return gamification.StatsData{}, err
	}
	return data, nil
}

func (s *ProgressStore) UnlockedAchievements(ctx context.Context, userID shared.UserID) ([]achievement.Unlocked, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT achievement_id, unlocked_at FROM user_achievements
		WHERE user_id = $1
		ORDER BY unlocked_at, achievement_id
	`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("postgres: unlocked achievements: %w", err)
	}
	defer rows.Close()

	var out []achievement.Unlocked
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("postgres: scan unlocked achievement: %w", err)
		}
		out = append(out, achievement.Unlocked{UserID: userID, ID: achievement.ID(id), UnlockedAt: at})
	}
	return out, rows.Err()
}

// Leaderboard uses idx_users_leaderboard (xp DESC, id ASC).
func (s *ProgressStore) Leaderboard(ctx context.Context, limit int) ([]gamification.Score, error) {
	if limit <= 0 {
		return s.Scores(ctx)
	}
	rows, err := s.conn.Query(ctx, "SELECT id, xp FROM users ORDER BY xp DESC, id ASC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	return scanScores(rows)
}

func (s *ProgressStore) Scores(ctx context.Context) ([]gamification.Score, error) {
	rows, err := s.conn.Query(ctx, "SELECT id, xp FROM users ORDER BY xp DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("postgres: scores: %w", err)
	}
	return scanScores(rows)
}

func (s *ProgressStore) Profiles(ctx context.Context, ids []shared.UserID) (map[shared.UserID]*user.User, error) {
	out := make(map[shared.UserID]*user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}

	rows, err := s.conn.Query(ctx, "SELECT "+userColumns+" FROM users WHERE id = ANY($1)", raw)
	if err != nil {
		return nil, fmt.Errorf("postgres: profiles: %w", err)
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func scanScores(rows pgx.Rows) ([]gamification.Score, error) {
	defer rows.Close()

	var out []gamification.Score
	for rows.Next() {
		var id int64
		var xp int
		if err := rows.Scan(&id, &xp); err != nil {
			return nil, fmt.Errorf("postgres: scan score: %w", err)
		}
		out = append(out, gamification.Score{UserID: shared.UserID(id), XP: xp})
	}
	return out, rows.Err()
}
