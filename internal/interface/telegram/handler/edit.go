package handler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/presenter"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PENDING EDITS
// ══════════════════════════════════════════════════════════════════════════════

// editTTL bounds how long the bot waits for the new value.
const editTTL = 10 * time.Minute

type pendingEdit struct {
	taskID  shared.TaskID
	field   presenter.EditField
	expires time.Time
}

// editSessions remembers which field each user is editing.
type editSessions struct {
	mu      sync.Mutex
	now     timeutil.Clock
	pending map[shared.TelegramID]pendingEdit
}

func newEditSessions(clock timeutil.Clock) *editSessions {
	return &editSessions{now: clock, pending: make(map[shared.TelegramID]pendingEdit)}
}

func (s *editSessions) begin(tgID shared.TelegramID, id shared.TaskID, f presenter.EditField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[tgID] = pendingEdit{taskID: id, field: f, expires: s.now().Add(editTTL)}
}

func (s *editSessions) lookup(tgID shared.TelegramID) (pendingEdit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[tgID]
	if ok && !s.now().Before(p.expires) {
		delete(s.pending, tgID)
		return pendingEdit{}, false
	}
	return p, ok
}

func (s *editSessions) end(tgID shared.TelegramID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, tgID)
}

// AwaitingInput reports whether the user has an unexpired edit in progress.
func (h *Handlers) AwaitingInput(telegramID int64) bool {
	_, ok := h.edits.lookup(shared.TelegramID(telegramID))
	return ok
}

// DiscardInput drops the user's pending edit.
func (h *Handlers) DiscardInput(telegramID int64) {
	h.edits.end(shared.TelegramID(telegramID))
}

// ══════════════════════════════════════════════════════════════════════════════
// EDIT CALLBACKS
// ══════════════════════════════════════════════════════════════════════════════

// EditMenu lists the editable fields of a task.
func (h *Handlers) EditMenu(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	if _, err := h.deps.Tasks.Get(ctx, req.User.ID, id); err != nil {
		return h.failure(err)
	}
	return &Response{Text: presenter.MsgEditMenu, Keyboard: h.keyboards.EditTaskKeyboard(id.Int64())}, nil
}

func (h *Handlers) EditTitle(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	return h.beginEdit(ctx, req, id, presenter.EditTitle)
}

func (h *Handlers) EditDescription(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	return h.beginEdit(ctx, req, id, presenter.EditDescription)
}

func (h *Handlers) EditPriority(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	return h.beginEdit(ctx, req, id, presenter.EditPriority)
}

func (h *Handlers) EditDue(ctx context.Context, req Request, id shared.TaskID) (*Response, error) {
	return h.beginEdit(ctx, req, id, presenter.EditDue)
}

func (h *Handlers) beginEdit(ctx context.Context, req Request, id shared.TaskID, f presenter.EditField) (*Response, error) {
	if _, err := h.deps.Tasks.Get(ctx, req.User.ID, id); err != nil {
		return h.failure(err)
	}
	h.edits.begin(req.User.TelegramID, id, f)
	return &Response{Text: presenter.EditPrompt(f), Keyboard: h.keyboards.AwaitInputKeyboard()}, nil
}

// CancelEdit drops the pending edit and returns to the task when one was open.
func (h *Handlers) CancelEdit(ctx context.Context, req Request) (*Response, error) {
	p, ok := h.edits.lookup(req.User.TelegramID)
	h.edits.end(req.User.TelegramID)
	if !ok {
		return h.TaskList(ctx, req, 0)
	}
	resp, err := h.TaskDetail(ctx, req, p.taskID)
	if err != nil || resp.IsError {
		return resp, err
	}
	resp.Toast = presenter.MsgEditCancelled
	return resp, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EDIT INPUT
// ══════════════════════════════════════════════════════════════════════════════

// EditInput applies a plain text message to the pending edit. Invalid input
// keeps the edit open and repeats the prompt; without a pending edit the
// response is empty.
func (h *Handlers) EditInput(ctx context.Context, req Request) (*Response, error) {
	p, ok := h.edits.lookup(req.User.TelegramID)
	if !ok {
		return &Response{}, nil
	}

	cmd, err := h.editCommand(req, p)
	if err == nil {
		_, err = h.deps.ManageTask.Update(ctx, cmd)
	}
	switch {
	case err == nil:
	case shared.IsValidation(err):
		return &Response{
			Text:     presenter.EditRejected(p.field, validationMessage(err)),
			Keyboard: h.keyboards.AwaitInputKeyboard(),
			IsError:  true,
		}, nil
	default:
		h.edits.end(req.User.TelegramID)
		return h.failure(err)
	}

	h.edits.end(req.User.TelegramID)
	logger.FromContext(ctx).Info("task edited via bot",
		logger.UserID(req.User.ID.Int64()),
		logger.TaskID(p.taskID.Int64()),
		"field", string(p.field),
	)

	resp, err := h.TaskDetail(ctx, req, p.taskID)
	if err != nil || resp.IsError {
		return resp, err
	}
	resp.Text = presenter.EditDone(p.field) + "\n\n" + resp.Text
	return resp, nil
}

// clearValue removes an optional field.
const clearValue = "-"

func (h *Handlers) editCommand(req Request, p pendingEdit) (command.UpdateTaskCommand, error) {
	raw := strings.TrimSpace(req.Args)
	cmd := command.UpdateTaskCommand{UserID: req.User.ID, TaskID: p.taskID}

	switch p.field {
	case presenter.EditTitle:
		if raw == "" {
			return cmd, shared.ErrEmptyTitle
		}
		cmd.Title = &raw
	case presenter.EditDescription:
		if raw == clearValue {
			raw = ""
		}
		cmd.Description = &raw
	case presenter.EditPriority:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cmd, shared.ValidationError("task", "priority", "приоритет должен быть числом от 1 до 10")
		}
		cmd.Priority = &n
	case presenter.EditDue:
		cmd.SetDueDate = true
		if raw == clearValue || strings.EqualFold(raw, "удалить срок") {
			return cmd, nil
		}
		due, err := timeutil.ParseDue(raw, h.now(), h.loc)
		if err != nil {
			return cmd, shared.ValidationError("task", "due_date", err.Error())
		}
		cmd.DueDate = &due
	}
	return cmd, nil
}
