package notification

import (
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALLBACK DATA
// Единый формат callback_data для кнопок бота и уведомлений планировщика.
// ══════════════════════════════════════════════════════════════════════════════

// Префиксы действий над задачей: "<prefix><id>".
const (
	PrefixDone     = "done_"
	PrefixTask     = "task_"
	PrefixProgress = "progress_"
	PrefixCancel   = "cancel_"
	PrefixDelete   = "delete_"
	PrefixPage     = "page_"

	// PrefixConfirmDelete удаляет задачу после подтверждения.
	PrefixConfirmDelete = "confirm_delete_"

	// PrefixEdit открывает меню редактирования, остальные ждут ввода нового значения.
	PrefixEdit            = "edit_"
	PrefixEditTitle       = "edit_title_"
	PrefixEditDescription = "edit_desc_"
	PrefixEditPriority    = "edit_priority_"
	PrefixEditDue         = "edit_due_"
)

// idPrefixes - от длинных к коротким: "edit_title_" проверяется раньше "edit_".
var idPrefixes = []string{
	PrefixConfirmDelete,
	PrefixEditTitle, PrefixEditDescription, PrefixEditPriority, PrefixEditDue, PrefixEdit,
	PrefixDone, PrefixTask, PrefixProgress, PrefixCancel, PrefixDelete, PrefixPage,
}

// Действия без параметров.
const (
	CallbackBackToList       = "back_to_list"
	CallbackBackToProfile    = "back_to_profile"
	CallbackAddTask          = "add_task_inline"
	CallbackShowAchievements = "show_achievements"
	CallbackShowLeaderboard  = "show_leaderboard"
	CallbackToggleReminders  = "toggle_reminders"
	CallbackDetailedStats    = "detailed_stats"
	CallbackCancelEdit       = "cancel_edit"
)

// WithID собирает callback_data вида "<prefix><id>".
func WithID(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

// ParseCallback разбирает callback_data на префикс и числовой аргумент.
// Для действий без параметров возвращает data целиком и hasID == false.
func ParseCallback(data string) (action string, id int64, hasID bool) {
	for _, prefix := range idPrefixes {
		if !strings.HasPrefix(data, prefix) {
			continue
		}
		n, err := strconv.ParseInt(data[len(prefix):], 10, 64)
		if err != nil || n < 0 {
			continue
		}
		return prefix, n, true
	}
	return data, 0, false
}
