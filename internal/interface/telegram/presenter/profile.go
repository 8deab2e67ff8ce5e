package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/pkg/textfmt"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE PRESENTER
// Карточка пользователя: уровень, опыт, серия, счётчики задач и достижений.
// ══════════════════════════════════════════════════════════════════════════════

// progressBarLength - ширина полосы прогресса уровня.
const progressBarLength = 15

// ProfilePresenter форматирует профиль и список достижений.
type ProfilePresenter struct {
	loc *time.Location
}

// NewProfilePresenter создаёт презентер. nil loc означает UTC.
func NewProfilePresenter(loc *time.Location) *ProfilePresenter {
	if loc == nil {
		loc = time.UTC
	}
	return &ProfilePresenter{loc: loc}
}

// Profile выводит карточку пользователя.
func (p *ProfilePresenter) Profile(s *gamification.UserStats) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "👤 <b>%s</b>\n", textfmt.Escape(s.DisplayName))
	fmt.Fprintf(&sb, "%s Уровень <b>%d</b> - %s\n\n", s.LevelEmoji, s.Level, s.Title)

	current, needed := s.LevelProgress()
	fmt.Fprintf(&sb, "⚡ Опыт: <b>%s XP</b>\n", textfmt.Number(s.XP))
	fmt.Fprintf(&sb, "%s %d/%d\n", textfmt.ProgressBar(current, needed, progressBarLength), current, needed)
	fmt.Fprintf(&sb, "До уровня %d: %s XP\n\n", s.Level+1, textfmt.Number(needed-current))

	fmt.Fprintf(&sb, "🔥 Серия: <b>%s</b> (рекорд: %s)\n", textfmt.Days(s.CurrentStreak), textfmt.Days(s.MaxStreak))
	fmt.Fprintf(&sb, "📅 Сегодня выполнено: %d\n\n", s.TasksToday)

	sb.WriteString("📊 <b>Задачи</b>\n")
	fmt.Fprintf(&sb, "Создано: %d • Выполнено: %d\n", s.TotalCreated, s.TotalCompleted)
	for _, st := range task.Statuses {
		if n := s.StatusCounts[st]; n > 0 {
			fmt.Fprintf(&sb, "%s: %d\n", StatusLabel(st), n)
		}
	}

	fmt.Fprintf(&sb, "\n🏅 Достижения: %d/%d", s.AchievementsUnlocked, s.AchievementsTotal)
	return sb.String()
}

// DetailedStats выводит задачи по статусам, процент выполнения, серии и прогресс.
func (p *ProfilePresenter) DetailedStats(s *gamification.UserStats) string {
	total := 0
	for _, st := range task.Statuses {
		total += s.StatusCounts[st]
	}
	rate := 0.0
	if total > 0 {
		rate = float64(s.StatusCounts[task.StatusCompleted]) / float64(total) * 100
	}
	perDay := float64(s.TotalCompleted) / float64(max(s.MaxStreak, 1))

	var sb strings.Builder
	sb.WriteString("📊 <b>Подробная статистика</b>\n\n")

	sb.WriteString("📋 <b>Задачи по статусам:</b>\n")
	for _, st := range task.Statuses {
		fmt.Fprintf(&sb, "%s: %d\n", StatusLabel(st), s.StatusCounts[st])
	}

	sb.WriteString("\n📈 <b>Эффективность:</b>\n")
	fmt.Fprintf(&sb, "Всего задач: %d\n", total)
	fmt.Fprintf(&sb, "Процент выполнения: %.1f%%\n", rate)
	fmt.Fprintf(&sb, "В среднем за день серии: ~%.1f\n\n", perDay)

	sb.WriteString("🔥 <b>Серии:</b>\n")
	fmt.Fprintf(&sb, "Текущая: %s\n", textfmt.Days(s.CurrentStreak))
	fmt.Fprintf(&sb, "Рекорд: %s\n\n", textfmt.Days(s.MaxStreak))

	sb.WriteString("⭐ <b>Прогресс:</b>\n")
	fmt.Fprintf(&sb, "Всего XP: %s\n", textfmt.Number(s.XP))
	fmt.Fprintf(&sb, "Уровень: %d\n", s.Level)
	fmt.Fprintf(&sb, "Достижений: %d/%d", s.AchievementsUnlocked, s.AchievementsTotal)
	return sb.String()
}

var categoryNames = map[achievement.Category]string{
	achievement.CategoryFirstTime:     "Первые шаги",
	achievement.CategoryTaskCount:     "Количество задач",
	achievement.CategoryStreak:        "Серии",
	achievement.CategoryLevel:         "Уровни",
	achievement.CategoryTaskAttribute: "Особые задачи",
	achievement.CategoryTimeOfDay:     "Время суток",
}

// Achievements выводит каталог, сгруппированный по категориям, в порядке каталога.
func (p *ProfilePresenter) Achievements(list []gamification.AchievementStatus) string {
	unlocked := 0
	for _, a := range list {
		if a.Unlocked {
			unlocked++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏅 <b>Достижения</b> (%d/%d)\n", unlocked, len(list))

	var current achievement.Category
	for _, a := range list {
		if a.Category != current {
			current = a.Category
			name := categoryNames[current]
			if name == "" {
				name = string(current)
			}
			fmt.Fprintf(&sb, "\n<b>%s</b>\n", name)
		}
		if a.Unlocked {
			fmt.Fprintf(&sb, "%s <b>%s</b> - %s (%s)\n", a.Icon, a.Name, a.Description, a.UnlockedAt.In(p.loc).Format(timeutil.FormatRussianDate))
		} else {
			fmt.Fprintf(&sb, "🔒 %s - %s (+%d XP)\n", a.Name, a.Description, a.XPReward)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
