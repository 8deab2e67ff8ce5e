package presenter

import (
	"fmt"

	"github.com/taskquest/taskquest-bot/pkg/textfmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATIC MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

const (
	MsgGenericError   = "😔 Что-то пошло не так. Попробуй ещё раз через минуту."
	MsgTaskNotFound   = "🔍 Задача не найдена."
	MsgTaskClosed     = "⚠️ Задача уже закрыта."
	MsgTaskDone       = "⚠️ Задача уже выполнена."
	MsgUnknownCommand = "🤔 Не знаю такой команды. Список команд: /help"
	MsgNewTaskPrompt  = "➕ <b>Новая задача</b>\n\n" +
		"Отправь команду в формате:\n" +
		"<code>/new Название | приоритет | дд.мм.гггг чч:мм</code>\n\n" +
		"Приоритет (1-10) и срок можно не указывать.\n" +
		"Вместо даты подойдут слова <i>сегодня</i> и <i>завтра</i>.\n\n" +
		"Пример: <code>/new Сдать отчёт | 8 | завтра</code>"
)

// Welcome приветствует нового или вернувшегося пользователя.
func Welcome(name string, created bool) string {
	greeting := fmt.Sprintf("С возвращением, <b>%s</b>! 👋", textfmt.Escape(name))
	if created {
		greeting = fmt.Sprintf("Привет, <b>%s</b>! 👋\n\nЯ TaskQuest - превращаю список дел в игру.", textfmt.Escape(name))
	}
	return greeting + "\n\n" +
		"✅ Выполняй задачи и получай XP\n" +
		"🔥 Держи серию дней подряд\n" +
		"🏅 Открывай достижения\n" +
		"🏆 Соревнуйся в рейтинге\n\n" +
		"Начни с команды /new или нажми кнопку ниже."
}

// Help - справка по командам.
func Help() string {
	return "📖 <b>Команды</b>\n\n" +
		"/new - создать задачу\n" +
		"/tasks - мои задачи\n" +
		"/profile - профиль и прогресс\n" +
		"/achievements - достижения\n" +
		"/top - рейтинг\n" +
		"/settings - напоминания\n" +
		"/help - эта справка\n\n" +
		"💎 <b>Опыт</b>\n" +
		"За задачу: 10 XP + 5 XP за каждый пункт приоритета.\n" +
		"Вовремя: ×1.5 • В день создания: +15 XP."
}

// Settings описывает текущее состояние напоминаний.
func Settings(remindersEnabled bool) string {
	state := "🔕 выключены"
	if remindersEnabled {
		state = "🔔 включены"
	}
	return "⚙️ <b>Настройки</b>\n\n" +
		"Напоминания: " + state + "\n\n" +
		"<i>Напоминания о сроках, утренняя сводка, серия и итоги недели.</i>"
}

// InvalidInput сообщает пользователю об ошибке ввода.
func InvalidInput(details string) string {
	return "⚠️ " + textfmt.Escape(details) + "\n\nФормат: <code>/new Название | приоритет | дд.мм.гггг чч:мм</code>"
}

// ══════════════════════════════════════════════════════════════════════════════
// EDITING
// ══════════════════════════════════════════════════════════════════════════════

// EditField - поле задачи, которое пользователь меняет текстовым сообщением.
type EditField string

const (
	EditTitle       EditField = "title"
	EditDescription EditField = "description"
	EditPriority    EditField = "priority"
	EditDue         EditField = "due"
)

const (
	MsgEditMenu      = "✏️ <b>Что изменить?</b>"
	MsgEditCancelled = "Изменения отменены."
	MsgConfirmDelete = "⚠️ <b>Удалить задачу?</b>\nЭто действие нельзя отменить."
)

// EditPrompt - подсказка, с которой бот ждёт новое значение поля.
func EditPrompt(f EditField) string {
	switch f {
	case EditTitle:
		return "📝 Отправь новое название задачи (до 100 символов)."
	case EditDescription:
		return "📄 Отправь новое описание (до 500 символов).\nЧтобы убрать описание, отправь <code>-</code>."
	case EditPriority:
		return "🎯 Отправь новый приоритет: число от 1 до 10."
	case EditDue:
		return "📅 Отправь новый срок: <code>дд.мм.гггг</code> или <code>дд.мм.гггг чч:мм</code>.\n" +
			"Подойдут слова <i>сегодня</i> и <i>завтра</i>. Чтобы убрать срок, отправь <code>-</code>."
	}
	return ""
}

// EditDone подтверждает сохранённое поле.
func EditDone(f EditField) string {
	switch f {
	case EditTitle:
		return "✅ Название обновлено!"
	case EditDescription:
		return "✅ Описание обновлено!"
	case EditPriority:
		return "✅ Приоритет обновлён!"
	case EditDue:
		return "✅ Срок обновлён!"
	}
	return ""
}

// EditRejected повторяет подсказку после неверного ввода.
func EditRejected(f EditField, details string) string {
	return "⚠️ " + textfmt.Escape(details) + "\n\n" + EditPrompt(f)
}
