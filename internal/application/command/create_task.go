package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE TASK COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateTaskCommand contains the data for a new task.
type CreateTaskCommand struct {
	UserID      shared.UserID `validate:"gt=0"`
	Title       string        `validate:"required,max=100"`
	Description string        `validate:"max=500"`
	Priority    int           `validate:"min=1,max=10"`
	DueDate     *time.Time
}

// CreateTaskResult contains the stored task and any unlocked achievements.
type CreateTaskResult struct {
	Task         *task.Task
	TotalCreated int
	Achievements []achievement.Definition
	Rewards      gamification.XPResult
}

// CreateTaskHandler handles CreateTaskCommand.
type CreateTaskHandler struct {
	tasks  task.Repository
	game   Gamifier
	now    timeutil.Clock
	logger *slog.Logger
}

// NewCreateTaskHandler creates a new CreateTaskHandler.
func NewCreateTaskHandler(tasks task.Repository, game Gamifier, clock timeutil.Clock, log *slog.Logger) *CreateTaskHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &CreateTaskHandler{tasks: tasks, game: game, now: clock, logger: log}
}

// Handle validates, stores the task and checks creation achievements.
func (h *CreateTaskHandler) Handle(ctx context.Context, cmd CreateTaskCommand) (*CreateTaskResult, error) {
	cmd.Title = strings.TrimSpace(cmd.Title)
	cmd.Description = strings.TrimSpace(cmd.Description)
	if err := validateStruct("task", cmd); err != nil {
		return nil, err
	}

	t, err := task.NewTask(task.NewTaskParams{
		UserID:      cmd.UserID,
		Title:       cmd.Title,
		Description: cmd.Description,
		Priority:    cmd.Priority,
		DueDate:     cmd.DueDate,
		Now:         h.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := h.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create_task: store: %w", err)
	}

	total, err := h.game.IncrementCreated(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("create_task: %w", err)
	}
	ids, err := h.game.CheckAndUnlockAchievements(ctx, cmd.UserID, nil)
	if err != nil {
		return nil, fmt.Errorf("create_task: %w", err)
	}
	rewards, err := h.game.ApplyAchievementRewards(ctx, cmd.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("create_task: %w", err)
	}

	h.logger.Info("task created", logger.UserID(cmd.UserID.Int64()), logger.TaskID(t.ID.Int64()))
	return &CreateTaskResult{
		Task:         t,
		TotalCreated: total,
		Achievements: achievement.Definitions(ids),
		Rewards:      rewards,
	}, nil
}
