package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/application/query"
	"github.com/taskquest/taskquest-bot/internal/domain/progression"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/pkg/textfmt"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

var statusLabels = map[task.Status]struct{ icon, name string }{
	task.StatusPending:    {"⏳", "Ожидает"},
	task.StatusInProgress: {"🔄", "В работе"},
	task.StatusCompleted:  {"✅", "Выполнена"},
	task.StatusCancelled:  {"❌", "Отменена"},
}

// StatusIcon returns the emoji for a status.
func StatusIcon(s task.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l.icon
	}
	return "•"
}

// StatusLabel returns "icon name".
func StatusLabel(s task.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l.icon + " " + l.name
	}
	return string(s)
}

func shortTitle(title string) string {
	return textfmt.Truncate(title, 30)
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK PRESENTER
// ══════════════════════════════════════════════════════════════════════════════

// TaskPresenter formats tasks in the bot timezone.
type TaskPresenter struct {
	loc *time.Location
}

// NewTaskPresenter creates a TaskPresenter. A nil loc means UTC.
func NewTaskPresenter(loc *time.Location) *TaskPresenter {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskPresenter{loc: loc}
}

// dueLine describes the deadline relative to now.
func (p *TaskPresenter) dueLine(t *task.Task, now time.Time) string {
	if t.DueDate == nil {
		return "📅 Без срока"
	}
	line := "📅 " + t.DueDate.In(p.loc).Format(timeutil.FormatRussianDateTime)
	if !t.Status.IsOpen() {
		return line
	}
	if t.DueDate.Before(now) {
		return line + " 🔴 просрочена " + textfmt.TimeAgo(now.Sub(*t.DueDate))
	}
	return line + " (осталось " + textfmt.TimeLeft(t.DueDate.Sub(now)) + ")"
}

// List renders one page of the task list.
func (p *TaskPresenter) List(page query.TaskPage, now time.Time) string {
	if page.Total == 0 {
		return "📋 <b>Мои задачи</b>\n\n" +
			"У тебя пока нет задач.\n" +
			"Создай первую: <code>/new Название | приоритет | дд.мм.гггг</code>"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>Мои задачи</b> (%s)\n", textfmt.Tasks(page.Total))
	if page.TotalPages > 1 {
		fmt.Fprintf(&sb, "<i>Страница %d из %d</i>\n", page.Page+1, page.TotalPages)
	}
	sb.WriteString("\n")

	for i, t := range page.Tasks {
		fmt.Fprintf(&sb, "%d. %s <b>%s</b>\n", page.Page*task.PageSize+i+1, StatusIcon(t.Status), textfmt.Escape(t.Title))
		fmt.Fprintf(&sb, "    🎯 %d/10 • %s\n", t.Priority, p.dueLine(t, now))
	}
	sb.WriteString("\nНажми на задачу, чтобы открыть её.")
	return sb.String()
}

// Card renders a single task.
func (p *TaskPresenter) Card(t *task.Task, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 <b>%s</b>\n\n", textfmt.Escape(t.Title))
	if t.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", textfmt.Escape(t.Description))
	}
	fmt.Fprintf(&sb, "📌 Статус: %s\n", StatusLabel(t.Status))
	fmt.Fprintf(&sb, "🎯 Приоритет: %s (%d/10)\n", textfmt.Stars(int(t.Priority)), t.Priority)
	fmt.Fprintf(&sb, "%s\n", p.dueLine(t, now))
	fmt.Fprintf(&sb, "🕐 Создана: %s\n", t.CreatedAt.In(p.loc).Format(timeutil.FormatRussianDateTime))
	if t.CompletedAt != nil {
		fmt.Fprintf(&sb, "🏁 Выполнена: %s\n", t.CompletedAt.In(p.loc).Format(timeutil.FormatRussianDateTime))
	}
	if t.Status.IsOpen() {
		fmt.Fprintf(&sb, "\n💎 Награда: до <b>%d XP</b>", progression.TaskXP(int(t.Priority), true, true))
	}
	return sb.String()
}

// Created confirms a new task and lists any achievements it unlocked.
func (p *TaskPresenter) Created(res *command.CreateTaskResult) string {
	t := res.Task

	var sb strings.Builder
	sb.WriteString("✅ <b>Задача создана!</b>\n\n")
	fmt.Fprintf(&sb, "📝 %s\n", textfmt.Escape(t.Title))
	fmt.Fprintf(&sb, "🎯 Приоритет: %d/10\n", t.Priority)
	if t.DueDate != nil {
		fmt.Fprintf(&sb, "📅 Срок: %s\n", t.DueDate.In(p.loc).Format(timeutil.FormatRussianDateTime))
	}
	for _, a := range res.Achievements {
		fmt.Fprintf(&sb, "\n🏅 Новое достижение: %s <b>%s</b> (+%d XP)", a.Icon, a.Name, a.XPReward)
	}
	if res.Rewards.LeveledUp {
		fmt.Fprintf(&sb, "\n\n🎉 <b>Новый уровень: %d!</b>", res.Rewards.NewLevel)
	}
	return sb.String()
}

// Completion summarises what a completed task earned.
func (p *TaskPresenter) Completion(res *command.CompletionResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 <b>Задача выполнена!</b>\n\n📝 %s\n\n", textfmt.Escape(res.Task.Title))

	fmt.Fprintf(&sb, "💎 +%d XP", res.TaskXP)
	var bonuses []string
	if res.OnTime {
		bonuses = append(bonuses, "вовремя")
	}
	if res.SameDay {
		bonuses = append(bonuses, "в тот же день")
	}
	if len(bonuses) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(bonuses, ", "))
	}
	sb.WriteString("\n")
	if res.BonusXP > 0 {
		fmt.Fprintf(&sb, "🎁 Бонус за достижения: +%d XP\n", res.BonusXP)
	}
	fmt.Fprintf(&sb, "⚡ Всего: %s XP • Уровень %d\n", textfmt.Number(res.TotalXP), res.Level)

	switch {
	case res.Streak.Lost:
		fmt.Fprintf(&sb, "💔 Серия прервалась (была %s). Новая серия: 1\n", textfmt.Days(res.Streak.OldStreak))
	case res.Streak.NewStreak > res.Streak.OldStreak:
		fmt.Fprintf(&sb, "🔥 Серия: %s\n", textfmt.Days(res.Streak.NewStreak))
	}

	if res.LeveledUp {
		fmt.Fprintf(&sb, "\n%s <b>Новый уровень: %d!</b> %s\n", progression.LevelEmoji(res.Level), res.Level, progression.Title(res.Level))
	}
	if len(res.Achievements) > 0 {
		sb.WriteString("\n🏅 <b>Новые достижения:</b>\n")
		for _, a := range res.Achievements {
			fmt.Fprintf(&sb, "%s %s (+%d XP)\n", a.Icon, a.Name, a.XPReward)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
