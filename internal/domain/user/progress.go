package user

import (
	"github.com/taskquest/taskquest-bot/internal/domain/progression"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress представляет игровой прогресс пользователя.
// Инварианты: Level == progression.LevelFromXP(XP), MaxStreak >= CurrentStreak.
type Progress struct {
	UserID shared.UserID

	// XP - накопленный опыт, никогда не уменьшается.
	XP    int
	Level int

	CurrentStreak int
	MaxStreak     int

	// LastCompletedDate - день последнего выполнения (по часовому поясу бота).
	LastCompletedDate timeutil.Date

	TotalCompleted      int
	TotalCreated        int
	TasksCompletedToday int

	// LastActivityDate - день, к которому относится TasksCompletedToday.
	LastActivityDate timeutil.Date
}

// NewProgress создаёт пустой прогресс первого уровня.
func NewProgress(userID shared.UserID) Progress {
	return Progress{UserID: userID, Level: 1}
}

// AddXP начисляет опыт и пересчитывает уровень.
// Отрицательные значения игнорируются.
func (p *Progress) AddXP(amount int) (leveledUp bool) {
	if amount <= 0 {
		return false
	}
	old := p.Level
	p.XP += amount
	p.Level = progression.LevelFromXP(p.XP)
	return p.Level > old
}

// StreakResult - итог обновления серии.
type StreakResult struct {
	NewStreak int
	OldStreak int

	// Lost - серия длиннее одного дня прервалась.
	Lost bool
}

// ApplyStreak обновляет серию по факту выполнения задачи в день today.
func (p *Progress) ApplyStreak(today timeutil.Date) StreakResult {
	res := StreakResult{OldStreak: p.CurrentStreak}

	switch {
	case p.LastCompletedDate.IsZero():
		res.NewStreak = 1
	case p.LastCompletedDate == today:
		res.NewStreak = p.CurrentStreak
	case p.LastCompletedDate.AddDays(1) == today:
		res.NewStreak = p.CurrentStreak + 1
	case p.LastCompletedDate.Before(today):
		res.NewStreak = 1
		res.Lost = p.CurrentStreak > 1
	default:
		// Дата из будущего (сменился часовой пояс) - серию не трогаем.
		res.NewStreak = p.CurrentStreak
	}

	p.CurrentStreak = res.NewStreak
	if p.CurrentStreak > p.MaxStreak {
		p.MaxStreak = p.CurrentStreak
	}
	p.LastCompletedDate = today
	return res
}

// IncrementCompleted увеличивает счётчики выполненных задач,
// сбрасывая дневной счётчик при смене дня.
func (p *Progress) IncrementCompleted(today timeutil.Date) int {
	if p.LastActivityDate != today {
		p.TasksCompletedToday = 0
	}
	p.TotalCompleted++
	p.TasksCompletedToday++
	p.LastActivityDate = today
	return p.TotalCompleted
}

// IncrementCreated увеличивает счётчик созданных задач.
func (p *Progress) IncrementCreated() int {
	p.TotalCreated++
	return p.TotalCreated
}

// TasksToday возвращает число задач, выполненных в день today.
func (p Progress) TasksToday(today timeutil.Date) int {
	if p.LastActivityDate != today {
		return 0
	}
	return p.TasksCompletedToday
}

// StreakAtRisk - серия есть, но сегодня задач ещё не было.
func (p Progress) StreakAtRisk(today timeutil.Date) bool {
	return p.CurrentStreak > 0 && p.LastCompletedDate != today
}
