package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	"github.com/taskquest/taskquest-bot/internal/domain/progression"
	"github.com/taskquest/taskquest-bot/internal/domain/reminder"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/textfmt"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE FORMATTING
// ══════════════════════════════════════════════════════════════════════════════

func taskButtons(id int64) [][]notification.Button {
	return [][]notification.Button{{
		notification.NewCallbackButton("✅ Выполнено", notification.WithID(notification.PrefixDone, id)),
		notification.NewCallbackButton("👁 Открыть", notification.WithID(notification.PrefixTask, id)),
	}}
}

// UpcomingDeadlineMessage - напоминание о сроке в ближайшие сутки.
func UpcomingDeadlineMessage(item reminder.TaskWithOwner, now time.Time, loc *time.Location) notification.Message {
	t := item.Task
	due := t.DueDate.In(loc)

	var sb strings.Builder
	sb.WriteString("⏰ <b>Напоминание о задаче!</b>\n\n")
	fmt.Fprintf(&sb, "📝 <b>%s</b>\n\n", textfmt.Escape(t.Title))
	fmt.Fprintf(&sb, "⏳ До дедлайна осталось: <b>%s</b>\n", textfmt.TimeLeft(t.DueDate.Sub(now)))
	fmt.Fprintf(&sb, "📅 Срок: %s\n", due.Format(timeutil.FormatRussianDateTime))
	fmt.Fprintf(&sb, "🎯 Приоритет: %s (%d/10)\n\n", textfmt.Stars(int(t.Priority)), t.Priority)
	sb.WriteString("💪 Не откладывай на потом!")

	return notification.Message{
		ChatID:  item.Owner.ChatID,
		Kind:    notification.KindUpcomingDeadline,
		Text:    sb.String(),
		Buttons: taskButtons(t.ID.Int64()),
	}
}

// OverdueMessage - уведомление о просроченной задаче.
func OverdueMessage(item reminder.TaskWithOwner, now time.Time, loc *time.Location) notification.Message {
	t := item.Task

	var sb strings.Builder
	sb.WriteString("🔴 <b>Задача просрочена!</b>\n\n")
	fmt.Fprintf(&sb, "📝 <b>%s</b>\n\n", textfmt.Escape(t.Title))
	fmt.Fprintf(&sb, "📅 Срок был: %s\n", t.DueDate.In(loc).Format(timeutil.FormatRussianDate))
	fmt.Fprintf(&sb, "⏰ Просрочена: %s\n", textfmt.TimeAgo(now.Sub(*t.DueDate)))
	fmt.Fprintf(&sb, "🎯 Приоритет: %d/10\n\n", t.Priority)
	sb.WriteString("⚡ Не забудь выполнить или обновить срок!")

	return notification.Message{
		ChatID:  item.Owner.ChatID,
		Kind:    notification.KindOverdue,
		Text:    sb.String(),
		Buttons: taskButtons(t.ID.Int64()),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// DAILY SUMMARY
// ─────────────────────────────────────────────────────────────────────────────

var morningPhrases = []string{
	"☀️ <b>Доброе утро!</b> Новый день - новые победы.",
	"🌅 <b>Привет!</b> Пора покорять задачи.",
	"🚀 <b>С добрым утром!</b> Сегодня отличный день, чтобы продвинуться вперёд.",
	"☕ <b>Утро!</b> Кофе и список дел уже ждут.",
	"🌞 <b>Доброе утро!</b> Маленький шаг сегодня - большой результат завтра.",
}

// summaryBuckets раскладывает открытые задачи по срокам относительно today.
type summaryBuckets struct {
	inProgress []*task.Task
	overdue    []*task.Task
	today      []*task.Task
	upcoming   []*task.Task
}

func bucketize(tasks []*task.Task, today timeutil.Date, loc *time.Location) summaryBuckets {
	var b summaryBuckets
	for _, t := range tasks {
		if t.Status == task.StatusInProgress {
			b.inProgress = append(b.inProgress, t)
		}
		if t.DueDate == nil {
			b.upcoming = append(b.upcoming, t)
			continue
		}
		day := timeutil.DateOf(*t.DueDate, loc)
		switch {
		case day.Before(today):
			b.overdue = append(b.overdue, t)
		case day == today:
			b.today = append(b.today, t)
		default:
			b.upcoming = append(b.upcoming, t)
		}
	}
	return b
}

func writeList(sb *strings.Builder, tasks []*task.Task, limit int, line func(*task.Task) string) {
	for i, t := range tasks {
		if i == limit {
			fmt.Fprintf(sb, "\n  <i>...и ещё %d</i>", len(tasks)-limit)
			break
		}
		sb.WriteString("\n• ")
		sb.WriteString(line(t))
	}
}

// DailySummaryMessage - утренняя сводка открытых задач пользователя.
func DailySummaryMessage(d reminder.Digest, today timeutil.Date, loc *time.Location) notification.Message {
	p := d.User.Progress
	b := bucketize(d.Tasks, today, loc)
	title := func(t *task.Task) string { return textfmt.Escape(t.Title) }

	var sb strings.Builder
	sb.WriteString(morningPhrases[today.In(loc).YearDay()%len(morningPhrases)])
	fmt.Fprintf(&sb, "\n\n%s <b>Уровень %d</b>", progression.LevelEmoji(p.Level), p.Level)
	if p.CurrentStreak > 0 {
		fmt.Fprintf(&sb, " | 🔥 Стрик: %d дн.", p.CurrentStreak)
	}

	if len(b.inProgress) > 0 {
		fmt.Fprintf(&sb, "\n\n🔄 <b>В работе (%d):</b>", len(b.inProgress))
		writeList(&sb, b.inProgress, 3, title)
	}
	if len(b.overdue) > 0 {
		fmt.Fprintf(&sb, "\n\n🔴 <b>Просрочено (%d):</b>", len(b.overdue))
		writeList(&sb, b.overdue, 3, func(t *task.Task) string {
			days := timeutil.DaysBetween(timeutil.DateOf(*t.DueDate, loc), today)
			return fmt.Sprintf("%s (-%d дн.)", textfmt.Escape(t.Title), days)
		})
	}
	if len(b.today) > 0 {
		fmt.Fprintf(&sb, "\n\n📅 <b>На сегодня (%d):</b>", len(b.today))
		writeList(&sb, b.today, 5, func(t *task.Task) string {
			if t.Priority >= 8 {
				return textfmt.Escape(t.Title) + " ❗"
			}
			return textfmt.Escape(t.Title)
		})
	} else if len(b.upcoming) > 0 {
		sb.WriteString("\n\n📋 <b>Предстоящие:</b>")
		upcoming := b.upcoming
		if len(upcoming) > 3 {
			upcoming = upcoming[:3]
		}
		writeList(&sb, upcoming, 3, func(t *task.Task) string {
			if t.DueDate == nil {
				return textfmt.Escape(t.Title)
			}
			return fmt.Sprintf("%s (до %s)", textfmt.Escape(t.Title), t.DueDate.In(loc).Format(timeutil.FormatRussianShort))
		})
	}

	active := len(b.overdue) + len(b.today) + len(b.upcoming)
	sb.WriteString("\n\n📊 <b>Статистика:</b>\n")
	fmt.Fprintf(&sb, "├ Активных задач: %d\n", active)
	fmt.Fprintf(&sb, "├ Выполнено всего: %d\n", p.TotalCompleted)
	fmt.Fprintf(&sb, "└ Сегодня выполнено: %d", p.TasksToday(today))

	switch {
	case len(b.overdue) > 0:
		sb.WriteString("\n\n⚡ <b>Совет дня:</b> Начни с просроченных задач!")
	case len(b.today) > 0:
		fmt.Fprintf(&sb, "\n\n💪 <b>Совет дня:</b> У тебя %s на сегодня. Ты справишься!", textfmt.Tasks(len(b.today)))
	case p.CurrentStreak >= 7:
		fmt.Fprintf(&sb, "\n\n🔥 <b>Отлично!</b> Твой стрик - %s! Продолжай в том же духе!", textfmt.Days(p.CurrentStreak))
	case p.CurrentStreak == 0:
		sb.WriteString("\n\n🌟 <b>Совет дня:</b> Выполни хотя бы одну задачу и начни новый стрик!")
	default:
		sb.WriteString("\n\n✨ <b>Отличного дня!</b> Пусть всё получится!")
	}

	return notification.Message{
		ChatID: d.User.ChatID,
		Kind:   notification.KindDailySummary,
		Text:   sb.String(),
		Buttons: [][]notification.Button{
			{
				notification.NewCallbackButton("📋 Мои задачи", notification.CallbackBackToList),
				notification.NewCallbackButton("➕ Добавить", notification.CallbackAddTask),
			},
			{notification.NewCallbackButton("👤 Профиль", notification.CallbackBackToProfile)},
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// STREAK & WEEKLY
// ─────────────────────────────────────────────────────────────────────────────

// StreakReminderMessage - вечернее предупреждение о серии под угрозой.
func StreakReminderMessage(u *user.User) notification.Message {
	var sb strings.Builder
	sb.WriteString("⚠️ <b>Внимание! Стрик под угрозой!</b>\n\n")
	fmt.Fprintf(&sb, "🔥 Твой текущий стрик: <b>%s</b>\n\n", textfmt.Days(u.Progress.CurrentStreak))
	sb.WriteString("Сегодня ещё не выполнено ни одной задачи.\n")
	sb.WriteString("Не дай стрику прерваться!\n\n")
	sb.WriteString("💪 До конца дня осталось совсем немного времени!")

	return notification.Message{
		ChatID:  u.ChatID,
		Kind:    notification.KindStreakReminder,
		Text:    sb.String(),
		Buttons: [][]notification.Button{{notification.NewCallbackButton("📋 Мои задачи", notification.CallbackBackToList)}},
	}
}

// WeeklyStatsMessage - итоги недели.
func WeeklyStatsMessage(u *user.User, w reminder.WeeklyStats) notification.Message {
	p := u.Progress

	var sb strings.Builder
	sb.WriteString("📊 <b>Твоя неделя в цифрах</b>\n\n")
	fmt.Fprintf(&sb, "%s Уровень: %d\n", progression.LevelEmoji(p.Level), p.Level)
	fmt.Fprintf(&sb, "💫 XP за неделю: +%d\n\n", w.XPEarned)
	sb.WriteString("<b>Задачи:</b>\n")
	fmt.Fprintf(&sb, "├ ✅ Выполнено: %d\n", w.Completed)
	fmt.Fprintf(&sb, "├ 📝 Создано: %d\n", w.Created)
	fmt.Fprintf(&sb, "└ 🔥 Лучший стрик: %d дн.\n\n", p.MaxStreak)

	switch {
	case w.Completed >= 20:
		sb.WriteString("🏆 <b>Невероятная продуктивность! Ты звезда!</b>")
	case w.Completed >= 10:
		sb.WriteString("🌟 <b>Отличная неделя! Так держать!</b>")
	case w.Completed >= 5:
		sb.WriteString("👍 <b>Хорошая работа! Можешь лучше!</b>")
	case w.Completed > 0:
		sb.WriteString("💪 <b>Неплохо! На следующей неделе сделаем больше!</b>")
	default:
		sb.WriteString("🌱 <b>Новая неделя - новые возможности!</b>")
	}

	return notification.Message{
		ChatID:  u.ChatID,
		Kind:    notification.KindWeeklyStats,
		Text:    sb.String(),
		Buttons: [][]notification.Button{{notification.NewCallbackButton("👤 Профиль", notification.CallbackBackToProfile)}},
	}
}
