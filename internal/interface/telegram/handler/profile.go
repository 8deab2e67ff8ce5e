package handler

import (
	"context"
	"errors"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE / LEADERBOARD / ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// leaderboardSize is how many rows /top shows.
const leaderboardSize = 10

// Profile shows level, xp, streak and counters.
func (h *Handlers) Profile(ctx context.Context, req Request) (*Response, error) {
	stats, err := h.deps.Game.GetUserStats(ctx, req.User.ID)
	if err != nil {
		return h.failure(err)
	}
	return &Response{
		Text:     h.profile.Profile(stats),
		Keyboard: h.keyboards.ProfileKeyboard(),
	}, nil
}

// DetailedStats shows status counts, completion rate and streaks.
func (h *Handlers) DetailedStats(ctx context.Context, req Request) (*Response, error) {
	stats, err := h.deps.Game.GetUserStats(ctx, req.User.ID)
	if err != nil {
		return h.failure(err)
	}
	return &Response{
		Text:     h.profile.DetailedStats(stats),
		Keyboard: h.keyboards.BackToProfileKeyboard(),
	}, nil
}

// Leaderboard shows the top users by xp.
func (h *Handlers) Leaderboard(ctx context.Context, req Request) (*Response, error) {
	entries, err := h.deps.Game.GetLeaderboard(ctx, leaderboardSize)
	if err != nil {
		return h.failure(err)
	}

	stats, err := h.deps.Game.GetUserStats(ctx, req.User.ID)
	if err != nil && !errors.Is(err, shared.ErrUserNotFound) {
		return h.failure(err)
	}
	return &Response{
		Text:     h.leaderboard.Format(entries, req.User.ID, stats),
		Keyboard: h.keyboards.BackToProfileKeyboard(),
	}, nil
}

// Achievements lists the catalog with the user's unlocks.
func (h *Handlers) Achievements(ctx context.Context, req Request) (*Response, error) {
	list, err := h.deps.Game.Achievements(ctx, req.User.ID)
	if err != nil {
		return h.failure(err)
	}
	return &Response{
		Text:     h.profile.Achievements(list),
		Keyboard: h.keyboards.BackToProfileKeyboard(),
	}, nil
}
