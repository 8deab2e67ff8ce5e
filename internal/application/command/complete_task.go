package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/progression"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE TASK COMMAND
// Marks the task completed exactly once, then runs the reward pipeline:
// task XP, streak, counters, achievements and their rewards.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteTaskCommand identifies the task to complete.
type CompleteTaskCommand struct {
	UserID shared.UserID `validate:"gt=0"`
	TaskID shared.TaskID `validate:"gt=0"`
}

// CompletionResult describes everything the completion earned.
type CompletionResult struct {
	Task *task.Task

	OnTime  bool
	SameDay bool

	// TaskXP is the reward for the task itself; BonusXP comes from achievements.
	TaskXP  int
	BonusXP int

	TotalXP   int
	Level     int
	LeveledUp bool

	Streak         user.StreakResult
	TotalCompleted int

	Achievements []achievement.Definition
}

// CompleteTaskHandler handles CompleteTaskCommand.
type CompleteTaskHandler struct {
	tasks  task.Repository
	game   Gamifier
	loc    *time.Location
	now    timeutil.Clock
	logger *slog.Logger
}

// NewCompleteTaskHandler creates a new CompleteTaskHandler. loc is the bot timezone.
func NewCompleteTaskHandler(tasks task.Repository, game Gamifier, loc *time.Location, clock timeutil.Clock, log *slog.Logger) *CompleteTaskHandler {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &CompleteTaskHandler{tasks: tasks, game: game, loc: loc, now: clock, logger: log}
}

// Handle executes the command. A second completion of the same task returns
// shared.ErrTaskAlreadyCompleted and grants nothing.
func (h *CompleteTaskHandler) Handle(ctx context.Context, cmd CompleteTaskCommand) (*CompletionResult, error) {
	if err := validateStruct("task", cmd); err != nil {
		return nil, err
	}

	t, err := h.tasks.Transition(ctx, cmd.UserID, cmd.TaskID, task.StatusCompleted, h.now())
	if err != nil {
		return nil, err
	}

	res := &CompletionResult{
		Task:    t,
		OnTime:  t.CompletedOnTime(),
		SameDay: t.CompletedSameDay(h.loc),
	}
	res.TaskXP = progression.TaskXP(int(t.Priority), res.OnTime, res.SameDay)

	xp, err := h.game.AddXP(ctx, cmd.UserID, res.TaskXP, "task:"+t.ID.String())
	if err != nil {
		return nil, fmt.Errorf("complete_task: %w", err)
	}
	res.TotalXP, res.Level, res.LeveledUp = xp.NewXP, xp.NewLevel, xp.LeveledUp

	if res.Streak, err = h.game.UpdateStreak(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("complete_task: %w", err)
	}
	if res.TotalCompleted, err = h.game.IncrementCompleted(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("complete_task: %w", err)
	}

	snap := &achievement.TaskSnapshot{Priority: int(t.Priority), CreatedAt: t.CreatedAt, DueDate: t.DueDate}
	ids, err := h.game.CheckAndUnlockAchievements(ctx, cmd.UserID, snap)
	if err != nil {
		return nil, fmt.Errorf("complete_task: %w", err)
	}
	res.Achievements = achievement.Definitions(ids)

	if len(ids) > 0 {
		bonus, err := h.game.ApplyAchievementRewards(ctx, cmd.UserID, ids)
		if err != nil {
			return nil, fmt.Errorf("complete_task: %w", err)
		}
		for _, d := range res.Achievements {
			res.BonusXP += d.XPReward
		}
		if bonus.NewLevel > 0 {
			res.TotalXP, res.Level = bonus.NewXP, bonus.NewLevel
		}
		res.LeveledUp = res.LeveledUp || bonus.LeveledUp
	}

	h.logger.Info("task completed",
		logger.UserID(cmd.UserID.Int64()),
		logger.TaskID(t.ID.Int64()),
		logger.XP(res.TaskXP+res.BonusXP),
		slog.Int("streak", res.Streak.NewStreak),
	)
	return res, nil
}
