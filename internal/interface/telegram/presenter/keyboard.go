// Package presenter formats data for Telegram display.
// Presenters handle the conversion from application results to HTML
// messages and inline keyboards.
package presenter

import (
	"github.com/taskquest/taskquest-bot/internal/application/query"
	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// INLINE KEYBOARD TYPES
// ══════════════════════════════════════════════════════════════════════════════

// InlineKeyboard represents an inline keyboard.
type InlineKeyboard struct {
	Rows [][]notification.Button
}

// NewInlineKeyboard creates a new empty inline keyboard.
func NewInlineKeyboard() *InlineKeyboard {
	return &InlineKeyboard{}
}

// AddRow adds a row of buttons. Empty rows are dropped.
func (k *InlineKeyboard) AddRow(buttons ...notification.Button) *InlineKeyboard {
	if len(buttons) > 0 {
		k.Rows = append(k.Rows, buttons)
	}
	return k
}

// Buttons returns the rows; nil-safe.
func (k *InlineKeyboard) Buttons() [][]notification.Button {
	if k == nil {
		return nil
	}
	return k.Rows
}

// CallbackButton creates a callback button.
func CallbackButton(text, callbackData string) notification.Button {
	return notification.NewCallbackButton(text, callbackData)
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYBOARD BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// KeyboardBuilder builds inline keyboards for various handlers.
type KeyboardBuilder struct{}

// NewKeyboardBuilder creates a new KeyboardBuilder.
func NewKeyboardBuilder() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// ─────────────────────────────────────────────────────────────────────────────
// MAIN MENU
// ─────────────────────────────────────────────────────────────────────────────

// MainMenuKeyboard is attached to /start and /help.
func (b *KeyboardBuilder) MainMenuKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().
		AddRow(
			CallbackButton("📋 Мои задачи", notification.CallbackBackToList),
			CallbackButton("➕ Новая задача", notification.CallbackAddTask),
		).
		AddRow(
			CallbackButton("👤 Профиль", notification.CallbackBackToProfile),
			CallbackButton("🏆 Рейтинг", notification.CallbackShowLeaderboard),
		)
}

// ─────────────────────────────────────────────────────────────────────────────
// TASK KEYBOARDS
// ─────────────────────────────────────────────────────────────────────────────

// TaskListKeyboard lists the tasks of a page as buttons plus navigation.
func (b *KeyboardBuilder) TaskListKeyboard(page query.TaskPage) *InlineKeyboard {
	kb := NewInlineKeyboard()

	for _, t := range page.Tasks {
		kb.AddRow(CallbackButton(
			StatusIcon(t.Status)+" "+shortTitle(t.Title),
			notification.WithID(notification.PrefixTask, t.ID.Int64()),
		))
	}

	var nav []notification.Button
	if page.HasPrev() {
		nav = append(nav, CallbackButton("◀️ Назад", notification.WithID(notification.PrefixPage, int64(page.Page-1))))
	}
	if page.HasNext() {
		nav = append(nav, CallbackButton("Вперёд ▶️", notification.WithID(notification.PrefixPage, int64(page.Page+1))))
	}
	kb.AddRow(nav...)

	return kb.AddRow(
		CallbackButton("➕ Добавить", notification.CallbackAddTask),
		CallbackButton("👤 Профиль", notification.CallbackBackToProfile),
	)
}

// TaskDetailKeyboard offers the transitions allowed from the task's status.
func (b *KeyboardBuilder) TaskDetailKeyboard(t *task.Task) *InlineKeyboard {
	id := t.ID.Int64()
	kb := NewInlineKeyboard()

	switch t.Status {
	case task.StatusPending:
		kb.AddRow(
			CallbackButton("✅ Выполнено", notification.WithID(notification.PrefixDone, id)),
			CallbackButton("🔄 В работу", notification.WithID(notification.PrefixProgress, id)),
		)
		kb.AddRow(
			CallbackButton("✏️ Изменить", notification.WithID(notification.PrefixEdit, id)),
			CallbackButton("❌ Отменить", notification.WithID(notification.PrefixCancel, id)),
		)
	case task.StatusInProgress:
		kb.AddRow(
			CallbackButton("✅ Выполнено", notification.WithID(notification.PrefixDone, id)),
			CallbackButton("❌ Отменить", notification.WithID(notification.PrefixCancel, id)),
		)
		kb.AddRow(CallbackButton("✏️ Изменить", notification.WithID(notification.PrefixEdit, id)))
	}

	return kb.
		AddRow(CallbackButton("🗑 Удалить", notification.WithID(notification.PrefixDelete, id))).
		AddRow(CallbackButton("« К списку", notification.CallbackBackToList))
}

// EditTaskKeyboard picks the field to edit.
func (b *KeyboardBuilder) EditTaskKeyboard(id int64) *InlineKeyboard {
	return NewInlineKeyboard().
		AddRow(
			CallbackButton("📝 Название", notification.WithID(notification.PrefixEditTitle, id)),
			CallbackButton("📄 Описание", notification.WithID(notification.PrefixEditDescription, id)),
		).
		AddRow(
			CallbackButton("🎯 Приоритет", notification.WithID(notification.PrefixEditPriority, id)),
			CallbackButton("📅 Срок", notification.WithID(notification.PrefixEditDue, id)),
		).
		AddRow(CallbackButton("« К задаче", notification.WithID(notification.PrefixTask, id)))
}

// AwaitInputKeyboard is attached to an edit prompt.
func (b *KeyboardBuilder) AwaitInputKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().AddRow(CallbackButton("✖️ Не менять", notification.CallbackCancelEdit))
}

// ConfirmDeleteKeyboard asks before a task is removed.
func (b *KeyboardBuilder) ConfirmDeleteKeyboard(id int64) *InlineKeyboard {
	return NewInlineKeyboard().AddRow(
		CallbackButton("🗑 Да, удалить", notification.WithID(notification.PrefixConfirmDelete, id)),
		CallbackButton("« Нет", notification.WithID(notification.PrefixTask, id)),
	)
}

// BackToListKeyboard is shown after a task was removed or completed.
func (b *KeyboardBuilder) BackToListKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().AddRow(
		CallbackButton("📋 К списку", notification.CallbackBackToList),
		CallbackButton("👤 Профиль", notification.CallbackBackToProfile),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// PROFILE KEYBOARDS
// ─────────────────────────────────────────────────────────────────────────────

// ProfileKeyboard creates keyboard for the profile (/profile).
func (b *KeyboardBuilder) ProfileKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().
		AddRow(
			CallbackButton("🏅 Достижения", notification.CallbackShowAchievements),
			CallbackButton("🏆 Рейтинг", notification.CallbackShowLeaderboard),
		).
		AddRow(
			CallbackButton("📊 Подробнее", notification.CallbackDetailedStats),
			CallbackButton("📋 Мои задачи", notification.CallbackBackToList),
		)
}

// BackToProfileKeyboard is attached to the achievements and leaderboard screens.
func (b *KeyboardBuilder) BackToProfileKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().AddRow(CallbackButton("« Профиль", notification.CallbackBackToProfile))
}

// SettingsKeyboard toggles scheduled reminders.
func (b *KeyboardBuilder) SettingsKeyboard(remindersEnabled bool) *InlineKeyboard {
	label := "🔔 Включить напоминания"
	if remindersEnabled {
		label = "🔕 Выключить напоминания"
	}
	return NewInlineKeyboard().
		AddRow(CallbackButton(label, notification.CallbackToggleReminders)).
		AddRow(CallbackButton("« Профиль", notification.CallbackBackToProfile))
}
