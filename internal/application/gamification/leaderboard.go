package gamification

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/progression"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/pkg/logger"
)

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank        int
	UserID      shared.UserID
	DisplayName string
	Username    string
	XP          int
	Level       int
	LevelEmoji  string
}

// NormalizeLimit applies the default and the cap.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	default:
		return limit
	}
}

// GetLeaderboard ranks users by xp desc, lower id first on ties.
// Ranks are sequential positions starting at 1.
func (e *Engine) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	limit = NormalizeLimit(limit)

	scores, err := e.topScores(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("gamification: leaderboard: %w", err)
	}

	ids := make([]shared.UserID, len(scores))
	for i, s := range scores {
		ids[i] = s.UserID
	}
	profiles, err := e.store.Profiles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("gamification: leaderboard profiles: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(scores))
	for _, s := range scores {
		u, ok := profiles[s.UserID]
		if !ok {
			continue
		}
		level := progression.LevelFromXP(s.XP)
		entries = append(entries, LeaderboardEntry{
			Rank:        len(entries) + 1,
			UserID:      s.UserID,
			DisplayName: u.DisplayName(),
			Username:    u.Username,
			XP:          s.XP,
			Level:       level,
			LevelEmoji:  progression.LevelEmoji(level),
		})
	}
	return entries, nil
}

func (e *Engine) topScores(ctx context.Context, limit int) ([]gamification.Score, error) {
	if e.cache != nil {
		scores, err := e.cache.Top(ctx, limit)
		if err == nil {
			return scores, nil
		}
		if !errors.Is(err, gamification.ErrCacheMiss) {
			e.logger.Warn("leaderboard cache read failed, falling back to store", logger.Err(err))
		}
	}
	return e.store.Leaderboard(ctx, limit)
}

// RebuildLeaderboard reloads the cache from the store. No-op without a cache.
func (e *Engine) RebuildLeaderboard(ctx context.Context) (int, error) {
	if e.cache == nil {
		return 0, nil
	}
	scores, err := e.store.Scores(ctx)
	if err != nil {
		return 0, fmt.Errorf("gamification: load scores: %w", err)
	}
	if err := e.cache.Rebuild(ctx, scores); err != nil {
		return 0, fmt.Errorf("gamification: rebuild cache: %w", err)
	}
	return len(scores), nil
}

// HasCache reports whether a leaderboard cache is configured.
func (e *Engine) HasCache() bool { return e.cache != nil }
