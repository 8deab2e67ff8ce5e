package handler

import (
	"context"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// START / HELP
// ══════════════════════════════════════════════════════════════════════════════

// Start greets the user; registration already happened while resolving the sender.
func (h *Handlers) Start(_ context.Context, req Request) (*Response, error) {
	return &Response{
		Text:     presenter.Welcome(req.User.DisplayName(), req.Created),
		Keyboard: h.keyboards.MainMenuKeyboard(),
	}, nil
}

// Help lists the commands.
func (h *Handlers) Help(_ context.Context, _ Request) (*Response, error) {
	return &Response{Text: presenter.Help(), Keyboard: h.keyboards.MainMenuKeyboard()}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// Settings shows the reminder switch. The user is re-read so the state is current.
func (h *Handlers) Settings(ctx context.Context, req Request) (*Response, error) {
	u, err := h.deps.Users.GetByID(ctx, req.User.ID)
	if err != nil {
		return h.failure(err)
	}
	return &Response{
		Text:     presenter.Settings(u.RemindersEnabled),
		Keyboard: h.keyboards.SettingsKeyboard(u.RemindersEnabled),
	}, nil
}

// ToggleReminders flips the reminder switch.
func (h *Handlers) ToggleReminders(ctx context.Context, req Request) (*Response, error) {
	enabled, err := h.deps.ReminderSettings.Handle(ctx, command.UpdateReminderSettingsCommand{UserID: req.User.ID})
	if err != nil {
		return h.failure(err)
	}

	note := "🔕 Напоминания выключены"
	if enabled {
		note = "🔔 Напоминания включены"
	}
	return &Response{
		Text:     presenter.Settings(enabled),
		Keyboard: h.keyboards.SettingsKeyboard(enabled),
		Toast:    note,
	}, nil
}
