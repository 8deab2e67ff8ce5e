package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/reminder"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE TASK COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateTaskCommand is a partial update; nil fields are left unchanged.
type UpdateTaskCommand struct {
	UserID      shared.UserID `validate:"gt=0"`
	TaskID      shared.TaskID `validate:"gt=0"`
	Title       *string       `validate:"omitnil,min=1,max=100"`
	Description *string       `validate:"omitnil,max=500"`
	Priority    *int          `validate:"omitnil,min=1,max=10"`

	// DueDate is applied when SetDueDate is true; a nil DueDate then clears the deadline.
	DueDate    *time.Time
	SetDueDate bool
}

// ManageTaskHandler handles task edits and status changes other than completion.
type ManageTaskHandler struct {
	tasks     task.Repository
	reminders reminder.Repository
	now       timeutil.Clock
}

// NewManageTaskHandler creates a new ManageTaskHandler.
func NewManageTaskHandler(tasks task.Repository, reminders reminder.Repository, clock timeutil.Clock) *ManageTaskHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	return &ManageTaskHandler{tasks: tasks, reminders: reminders, now: clock}
}

// Update applies the patch. Changing the deadline re-arms both reminders.
func (h *ManageTaskHandler) Update(ctx context.Context, cmd UpdateTaskCommand) (*task.Task, error) {
	if cmd.Title != nil {
		trimmed := strings.TrimSpace(*cmd.Title)
		cmd.Title = &trimmed
	}
	if err := validateStruct("task", cmd); err != nil {
		return nil, err
	}

	t, err := h.tasks.Get(ctx, cmd.UserID, cmd.TaskID)
	if err != nil {
		return nil, err
	}

	if cmd.Title != nil {
		t.Title = *cmd.Title
	}
	if cmd.Description != nil {
		t.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.Priority != nil {
		t.Priority = shared.Priority(*cmd.Priority)
	}
	dueChanged := false
	if cmd.SetDueDate {
		dueChanged = t.SetDueDate(cmd.DueDate)
	}
	t.UpdatedAt = h.now()

	if err := h.tasks.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update_task: %w", err)
	}
	if dueChanged {
		if err := h.reminders.ResetReminderFlags(ctx, t.ID); err != nil {
			return nil, fmt.Errorf("update_task: reset reminders: %w", err)
		}
	}
	return t, nil
}

// Start moves an open task to in_progress.
func (h *ManageTaskHandler) Start(ctx context.Context, userID shared.UserID, id shared.TaskID) (*task.Task, error) {
	return h.tasks.Transition(ctx, userID, id, task.StatusInProgress, h.now())
}

// Cancel moves an open task to cancelled.
func (h *ManageTaskHandler) Cancel(ctx context.Context, userID shared.UserID, id shared.TaskID) (*task.Task, error) {
	return h.tasks.Transition(ctx, userID, id, task.StatusCancelled, h.now())
}

// Delete removes the task. Counters and earned XP are kept.
func (h *ManageTaskHandler) Delete(ctx context.Context, userID shared.UserID, id shared.TaskID) error {
	return h.tasks.Delete(ctx, userID, id)
}
