// Package gamification turns task events into experience, levels, streaks and achievements.
package gamification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/progression"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// Config contains optional collaborators of the engine.
type Config struct {
	// Location is the bot timezone used for "today" and time-of-day achievements.
	Location *time.Location

	Clock timeutil.Clock

	// Cache is optional. When set, leaderboard reads go through it.
	Cache gamification.LeaderboardCache

	Logger *slog.Logger
}

// Engine applies gamification rules. Every mutation runs under the user's row lock.
type Engine struct {
	store  gamification.Store
	cache  gamification.LeaderboardCache
	loc    *time.Location
	now    timeutil.Clock
	logger *slog.Logger
}

// NewEngine creates a new Engine.
func NewEngine(store gamification.Store, cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:  store,
		cache:  cfg.Cache,
		loc:    cfg.Location,
		now:    cfg.Clock,
		logger: cfg.Logger.With(logger.Component("gamification")),
	}
}

// Location returns the timezone the engine evaluates days in.
func (e *Engine) Location() *time.Location { return e.loc }

func (e *Engine) today() timeutil.Date {
	return timeutil.DateOf(e.now(), e.loc)
}

// withUser runs fn under the user lock and reports whether the user exists.
func (e *Engine) withUser(ctx context.Context, userID shared.UserID, fn func(tx gamification.Tx, p *user.Progress) error) (bool, error) {
	err := e.store.WithUserLock(ctx, userID, fn)
	if errors.Is(err, shared.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// XP
// ══════════════════════════════════════════════════════════════════════════════

// XPResult is the outcome of AddXP.
type XPResult struct {
	NewXP     int
	NewLevel  int
	LeveledUp bool
}

// AddXP grants amount experience. Unknown users yield a zero result and no error.
// Non-positive amounts leave progress unchanged.
func (e *Engine) AddXP(ctx context.Context, userID shared.UserID, amount int, reason string) (XPResult, error) {
	var res XPResult
	changed := false

	found, err := e.withUser(ctx, userID, func(tx gamification.Tx, p *user.Progress) error {
		if amount <= 0 {
			res = XPResult{NewXP: p.XP, NewLevel: p.Level}
			return nil
		}
		leveled := p.AddXP(amount)
		if err := tx.SaveProgress(ctx, *p); err != nil {
			return err
		}
		if err := tx.RecordXP(ctx, amount, reason, e.now()); err != nil {
			return err
		}
		res = XPResult{NewXP: p.XP, NewLevel: p.Level, LeveledUp: leveled}
		changed = true
		return nil
	})
	if err != nil {
		return XPResult{}, fmt.Errorf("gamification: add xp: %w", err)
	}
	if !found {
		return XPResult{}, nil
	}

	if changed {
		e.logger.Debug("xp granted", logger.UserID(userID.Int64()), logger.XP(amount), slog.String("reason", reason))
		e.refreshCache(ctx, userID, res.NewXP)
	}
	return res, nil
}

func (e *Engine) refreshCache(ctx context.Context, userID shared.UserID, xp int) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Update(ctx, gamification.Score{UserID: userID, XP: xp}); err != nil {
		e.logger.Warn("leaderboard cache update failed", logger.UserID(userID.Int64()), logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK & COUNTERS
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStreak records a completion for today. Unknown users yield a zero result.
func (e *Engine) UpdateStreak(ctx context.Context, userID shared.UserID) (user.StreakResult, error) {
	var res user.StreakResult
	today := e.today()

	found, err := e.withUser(ctx, userID, func(tx gamification.Tx, p *user.Progress) error {
		res = p.ApplyStreak(today)
		return tx.SaveProgress(ctx, *p)
	})
	if err != nil {
		return user.StreakResult{}, fmt.Errorf("gamification: update streak: %w", err)
	}
	if !found {
		return user.StreakResult{}, nil
	}
	if res.Lost {
		e.logger.Info("streak lost", logger.UserID(userID.Int64()), slog.Int("old_streak", res.OldStreak))
	}
	return res, nil
}

// IncrementCompleted bumps the completed counters and returns the new total.
func (e *Engine) IncrementCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	var total int
	today := e.today()

	_, err := e.withUser(ctx, userID, func(tx gamification.Tx, p *user.Progress) error {
		total = p.IncrementCompleted(today)
		return tx.SaveProgress(ctx, *p)
	})
	if err != nil {
		return 0, fmt.Errorf("gamification: increment completed: %w", err)
	}
	return total, nil
}

// IncrementCreated bumps the created counter and returns the new total.
func (e *Engine) IncrementCreated(ctx context.Context, userID shared.UserID) (int, error) {
	var total int

	_, err := e.withUser(ctx, userID, func(tx gamification.Tx, p *user.Progress) error {
		total = p.IncrementCreated()
		return tx.SaveProgress(ctx, *p)
	})
	if err != nil {
		return 0, fmt.Errorf("gamification: increment created: %w", err)
	}
	return total, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// CheckAndUnlockAchievements unlocks every satisfied catalog entry the user does not own yet,
// in catalog order. It does not grant XP; see ApplyAchievementRewards.
func (e *Engine) CheckAndUnlockAchievements(ctx context.Context, userID shared.UserID, t *achievement.TaskSnapshot) ([]achievement.ID, error) {
	var unlocked []achievement.ID
	now := e.now()

	_, err := e.withUser(ctx, userID, func(tx gamification.Tx, p *user.Progress) error {
		unlocked = unlocked[:0]
		owned, err := tx.UnlockedIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range achievement.Satisfied(*p, t, now, e.loc, owned) {
			inserted, err := tx.Unlock(ctx, id, now)
			if err != nil {
				return err
			}
			if inserted {
				unlocked = append(unlocked, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gamification: check achievements: %w", err)
	}

	for _, id := range unlocked {
		e.logger.Info("achievement unlocked", logger.UserID(userID.Int64()), slog.String("achievement", string(id)))
	}
	return unlocked, nil
}

// UnlockAchievement unlocks a single catalog entry. Repeated calls return false.
func (e *Engine) UnlockAchievement(ctx context.Context, userID shared.UserID, id achievement.ID) (bool, error) {
	if _, ok := achievement.Lookup(id); !ok {
		return false, shared.ErrAchievementNotFound
	}

	var inserted bool
	_, err := e.withUser(ctx, userID, func(tx gamification.Tx, _ *user.Progress) error {
		var err error
		inserted, err = tx.Unlock(ctx, id, e.now())
		return err
	})
	if err != nil {
		return false, fmt.Errorf("gamification: unlock achievement: %w", err)
	}
	return inserted, nil
}

// ApplyAchievementRewards grants the catalog reward of each id through AddXP.
// The returned result reflects the final state; LeveledUp is true if any grant leveled up.
func (e *Engine) ApplyAchievementRewards(ctx context.Context, userID shared.UserID, ids []achievement.ID) (XPResult, error) {
	var total XPResult
	for _, id := range ids {
		reward := achievement.Reward(id)
		if reward <= 0 {
			continue
		}
		res, err := e.AddXP(ctx, userID, reward, "achievement:"+string(id))
		if err != nil {
			return total, err
		}
		total.NewXP = res.NewXP
		total.NewLevel = res.NewLevel
		total.LeveledUp = total.LeveledUp || res.LeveledUp
	}
	return total, nil
}

// AchievementStatus is one catalog entry as seen by a user.
type AchievementStatus struct {
	achievement.Definition
	Unlocked   bool
	UnlockedAt time.Time
}

// Achievements returns the whole catalog with the user's unlock state.
func (e *Engine) Achievements(ctx context.Context, userID shared.UserID) ([]AchievementStatus, error) {
	owned, err := e.store.UnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("gamification: achievements: %w", err)
	}
	at := make(map[achievement.ID]time.Time, len(owned))
	for _, u := range owned {
		at[u.ID] = u.UnlockedAt
	}

	defs := achievement.All()
	out := make([]AchievementStatus, 0, len(defs))
	for _, d := range defs {
		t, ok := at[d.ID]
		out = append(out, AchievementStatus{Definition: d, Unlocked: ok, UnlockedAt: t})
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// UserStats is the profile snapshot.
type UserStats struct {
	UserID      shared.UserID
	DisplayName string

	XP         int
	Level      int
	Title      string
	LevelEmoji string

	CurrentStreak  int
	MaxStreak      int
	TotalCompleted int
	TotalCreated   int
	TasksToday     int

	AchievementsUnlocked int
	AchievementsTotal    int

	StatusCounts map[task.Status]int

	XPForCurrentLevel int
	XPForNextLevel    int
}

// LevelProgress returns xp earned inside the current level and the level span.
func (s UserStats) LevelProgress() (current, needed int) {
	return s.XP - s.XPForCurrentLevel, s.XPForNextLevel - s.XPForCurrentLevel
}

// GetUserStats returns shared.ErrUserNotFound for unknown users.
func (e *Engine) GetUserStats(ctx context.Context, userID shared.UserID) (*UserStats, error) {
	data, err := e.store.ReadStats(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("gamification: get stats: %w", err)
	}

	p := data.User.Progress
	counts := make(map[task.Status]int, len(task.Statuses))
	for _, s := range task.Statuses {
		counts[s] = data.StatusCounts[s]
	}

	return &UserStats{
		UserID:               data.User.ID,
		DisplayName:          data.User.DisplayName(),
		XP:                   p.XP,
		Level:                p.Level,
		Title:                progression.Title(p.Level),
		LevelEmoji:           progression.LevelEmoji(p.Level),
		CurrentStreak:        p.CurrentStreak,
		MaxStreak:            p.MaxStreak,
		TotalCompleted:       p.TotalCompleted,
		TotalCreated:         p.TotalCreated,
		TasksToday:           p.TasksToday(e.today()),
		AchievementsUnlocked: data.UnlockedCount,
		AchievementsTotal:    achievement.Count(),
		StatusCounts:         counts,
		XPForCurrentLevel:    progression.XPForLevel(p.Level),
		XPForNextLevel:       progression.XPForLevel(p.Level + 1),
	}, nil
}
