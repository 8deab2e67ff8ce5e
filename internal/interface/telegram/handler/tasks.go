package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/presenter"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// NEW TASK
// ══════════════════════════════════════════════════════════════════════════════

// defaultPriority is used when /new has no priority part.
const defaultPriority = 1

// NewTaskInput is the parsed form of "/new title | priority | due".
type NewTaskInput struct {
	Title    string
	Priority int
	DueDate  *time.Time
}

// ParseNewTask splits the /new arguments. Priority and due date are optional;
// an empty priority part keeps the default.
func ParseNewTask(args string, now time.Time, loc *time.Location) (NewTaskInput, error) {
	parts := strings.Split(args, "|")
	in := NewTaskInput{Title: strings.TrimSpace(parts[0]), Priority: defaultPriority}
	if in.Title == "" {
		return in, shared.ErrEmptyTitle
	}
	if len(parts) > 3 {
		return in, shared.ValidationError("task", "args", "too many parts, expected title | priority | date")
	}

	if len(parts) > 1 {
		if raw := strings.TrimSpace(parts[1]); raw != "" {
			p, err := strconv.Atoi(raw)
			if err != nil {
				return in, shared.ValidationError("task", "priority", fmt.Sprintf("priority %q is not a number", raw))
			}
			in.Priority = p
		}
	}

	if len(parts) > 2 {
		if raw := strings.TrimSpace(parts[2]); raw != "" {
			due, err := timeutil.ParseDue(raw, now, loc)
			if err != nil {
				return in, shared.ValidationError("task", "due_date", err.Error())
			}
			in.DueDate = &due
		}
	}
	return in, nil
}

// NewTask handles /new.
func (h *Handlers) NewTask(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Args) == "" {
		return &Response{Text: presenter.MsgNewTaskPrompt}, nil
	}

	in, err := ParseNewTask(req.Args, h.now(), h.loc)
	if err != nil {
		return h.failure(err)
	}

	res, err := h.deps.CreateTask.Handle(ctx, command.CreateTaskCommand{
		UserID:   req.User.ID,
		Title:    in.Title,
		Priority: in.Priority,
		DueDate:  in.DueDate,
	})
	if err != nil {
		return h.failure(err)
	}

	return &Response{
		Text:     h.tasks.Created(res),
		Keyboard: h.keyboards.TaskDetailKeyboard(res.Task),
	}, nil
}

// AddTaskPrompt answers the "add task" button.
func (h *Handlers) AddTaskPrompt(_ context.Context, _ Request) (*Response, error) {
	return &Response{Text: presenter.MsgNewTaskPrompt}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST / DETAIL
// ══════════════════════════════════════════════════════════════════════════════

// TaskList renders a page of the user's tasks.
func (h *Handlers) TaskList(ctx context.Context, req Request, page int) (*Response, error) {
	p, err := h.deps.Tasks.List(ctx, req.User.ID, page)
	if err != nil {
		return h.failure(err)
	}
	return &Response{
		Text:     h.tasks.List(p, h.now()),
		Keyboard: h.keyboards.TaskListKeyboard(p),
	}, nil
}

// TaskDetail renders one task.
func (h *Handlers) TaskDetail(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	t, err := h.deps.Tasks.Get(ctx, req.User.ID, id)
	if err != nil {
		return h.failure(err)
	}
	return &Response{
		Text:     h.tasks.Card(t, h.now()),
		Keyboard: h.keyboards.TaskDetailKeyboard(t),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// CompleteTask runs the reward pipeline and shows its summary.
func (h *Handlers) CompleteTask(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	res, err := h.deps.CompleteTask.Handle(ctx, command.CompleteTaskCommand{UserID: req.User.ID, TaskID: id})
	if err != nil {
		return h.failure(err)
	}

	h.log.Info("task completed via bot",
		logger.UserID(req.User.ID.Int64()),
		logger.TaskID(id.Int64()),
		logger.XP(res.TaskXP+res.BonusXP),
	)
	return &Response{
		Text:     h.tasks.Completion(res),
		Keyboard: h.keyboards.BackToListKeyboard(),
		Toast:    fmt.Sprintf("+%d XP", res.TaskXP+res.BonusXP),
	}, nil
}

// StartTask moves a pending task to in_progress.
func (h *Handlers) StartTask(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	t, err := h.deps.ManageTask.Start(ctx, req.User.ID, id)
	if err != nil {
		return h.failure(err)
	}
	return &Response{
		Text:     h.tasks.Card(t, h.now()),
		Keyboard: h.keyboards.TaskDetailKeyboard(t),
		Toast:    "🔄 Задача в работе",
	}, nil
}

// CancelTask cancels an open task.
func (h *Handlers) CancelTask(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	t, err := h.deps.ManageTask.Cancel(ctx, req.User.ID, id)
	if err != nil {
		return h.failure(err)
	}
	return &Response{
		Text:     h.tasks.Card(t, h.now()),
		Keyboard: h.keyboards.TaskDetailKeyboard(t),
		Toast:    "❌ Задача отменена",
	}, nil
}

// DeleteTask asks for confirmation before removing the task.
func (h *Handlers) DeleteTask(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	if _, err := h.deps.Tasks.Get(ctx, req.User.ID, id); err != nil {
		return h.failure(err)
	}
	return &Response{Text: presenter.MsgConfirmDelete, Keyboard: h.keyboards.ConfirmDeleteKeyboard(id.Int64())}, nil
}

// ConfirmDeleteTask removes the task and returns to the list.
func (h *Handlers) ConfirmDeleteTask(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	if err := h.deps.ManageTask.Delete(ctx, req.User.ID, id); err != nil {
		return h.failure(err)
	}
	resp, err := h.TaskList(ctx, req, 0)
	if err != nil || resp.IsError {
		return resp, err
	}
	resp.Toast = "🗑 Задача удалена"
	return resp, nil
}
