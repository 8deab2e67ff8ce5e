// Package handler contains Telegram command and callback handlers.
// Each handler follows the pattern: receive request → call application layer → format response.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/application/query"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/presenter"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE
// ══════════════════════════════════════════════════════════════════════════════

// Request is a command or callback from a resolved user.
type Request struct {
	User *user.User

	// Created is true when the user was registered by this update.
	Created bool

	// Args is the text after the command, or the callback data.
	Args string
}

// Response contains the response to send back.
type Response struct {
	// Text is the message text (HTML formatted).
	Text string

	// Keyboard is the inline keyboard to attach.
	Keyboard *presenter.InlineKeyboard

	// Toast is the callback answer; empty answers silently.
	Toast string
	Alert bool

	// IsError indicates if this is an error response.
	IsError bool
}

// Toast is a callback answer that leaves the message as it is.
func Toast(text string, alert bool) *Response {
	return &Response{Toast: text, Alert: alert, IsError: alert}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// Deps aggregates the application services used by the handlers.
type Deps struct {
	Register         *command.RegisterUserHandler
	CreateTask       *command.CreateTaskHandler
	CompleteTask     *command.CompleteTaskHandler
	ManageTask       *command.ManageTaskHandler
	ReminderSettings *command.UpdateReminderSettingsHandler
	Tasks            *query.Tasks
	Game             *gamification.Engine
	Users            user.Repository

	Location *time.Location
	Clock    timeutil.Clock
	Logger   *slog.Logger
}

// Handlers implements every bot command and callback.
type Handlers struct {
	deps Deps
	loc  *time.Location
	now  timeutil.Clock
	log  *slog.Logger

	keyboards   *presenter.KeyboardBuilder
	tasks       *presenter.TaskPresenter
	profile     *presenter.ProfilePresenter
	leaderboard *presenter.LeaderboardPresenter

	edits *editSessions
}

// New creates Handlers.
func New(deps Deps) *Handlers {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handlers{
		deps:        deps,
		loc:         deps.Location,
		now:         deps.Clock,
		log:         deps.Logger.With(logger.Component("telegram_handler")),
		keyboards:   presenter.NewKeyboardBuilder(),
		tasks:       presenter.NewTaskPresenter(deps.Location),
		profile:     presenter.NewProfilePresenter(deps.Location),
		leaderboard: presenter.NewLeaderboardPresenter(),
		edits:       newEditSessions(deps.Clock),
	}
}

// ResolveUser registers the sender on first contact.
func (h *Handlers) ResolveUser(ctx context.Context, cmd command.RegisterUserCommand) (*user.User, bool, error) {
	res, err := h.deps.Register.Handle(ctx, cmd)
	if err != nil {
		return nil, false, err
	}
	return res.User, res.Created, nil
}

// failure maps an application error to a user-facing response.
// Unexpected errors are returned so the bot logs them.
func (h *Handlers) failure(err error) (*Response, error) {
	switch {
	case errors.Is(err, shared.ErrTaskAlreadyCompleted):
		return &Response{Text: presenter.MsgTaskDone, Toast: presenter.MsgTaskDone, IsError: true}, nil
	case errors.Is(err, shared.ErrTaskClosed):
		return &Response{Text: presenter.MsgTaskClosed, Toast: presenter.MsgTaskClosed, IsError: true}, nil
	case shared.IsNotFound(err):
		return &Response{Text: presenter.MsgTaskNotFound, Toast: presenter.MsgTaskNotFound, IsError: true}, nil
	case shared.IsValidation(err):
		return &Response{Text: presenter.InvalidInput(validationMessage(err)), IsError: true}, nil
	}
	return &Response{Text: presenter.MsgGenericError, Toast: presenter.MsgGenericError, IsError: true}, err
}

func validationMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
