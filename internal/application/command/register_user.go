package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// Get-or-create on every /start, so repeated starts are harmless.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserCommand contains the Telegram identity of the caller.
type RegisterUserCommand struct {
	TelegramID int64 `validate:"gt=0"`
	ChatID     int64
	Username   string `validate:"max=64"`
	FirstName  string `validate:"max=128"`
}

// RegisterUserResult contains the stored user.
type RegisterUserResult struct {
	User    *user.User
	Created bool
}

// RegisterUserHandler handles RegisterUserCommand.
type RegisterUserHandler struct {
	users  user.Repository
	now    timeutil.Clock
	logger *slog.Logger
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(users user.Repository, clock timeutil.Clock, log *slog.Logger) *RegisterUserHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &RegisterUserHandler{users: users, now: clock, logger: log}
}

// Handle executes the command.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterUserResult, error) {
	if err := validateStruct("user", cmd); err != nil {
		return nil, err
	}

	u, err := user.NewUser(user.NewUserParams{
		TelegramID: cmd.TelegramID,
		ChatID:     cmd.ChatID,
		Username:   cmd.Username,
		FirstName:  cmd.FirstName,
		Now:        h.now(),
	})
	if err != nil {
		return nil, err
	}

	stored, created, err := h.users.GetOrCreate(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}
	if created {
		h.logger.Info("user registered", logger.UserID(stored.ID.Int64()), slog.Int64("telegram_id", cmd.TelegramID))
	}
	return &RegisterUserResult{User: stored, Created: created}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE REMINDER SETTINGS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateReminderSettingsCommand switches scheduled notifications on or off.
// A nil Enabled toggles the current value.
type UpdateReminderSettingsCommand struct {
	UserID  shared.UserID `validate:"gt=0"`
	Enabled *bool
}

// UpdateReminderSettingsHandler handles UpdateReminderSettingsCommand.
type UpdateReminderSettingsHandler struct {
	users user.Repository
}

// NewUpdateReminderSettingsHandler creates a new handler.
func NewUpdateReminderSettingsHandler(users user.Repository) *UpdateReminderSettingsHandler {
	return &UpdateReminderSettingsHandler{users: users}
}

// Handle returns the new setting.
func (h *UpdateReminderSettingsHandler) Handle(ctx context.Context, cmd UpdateReminderSettingsCommand) (bool, error) {
	if err := validateStruct("user", cmd); err != nil {
		return false, err
	}

	enabled := false
	if cmd.Enabled != nil {
		enabled = *cmd.Enabled
	} else {
		u, err := h.users.GetByID(ctx, cmd.UserID)
		if err != nil {
			return false, err
		}
		enabled = !u.RemindersEnabled
	}

	if err := h.users.SetRemindersEnabled(ctx, cmd.UserID, enabled); err != nil {
		return false, fmt.Errorf("update_reminder_settings: %w", err)
	}
	return enabled, nil
}
