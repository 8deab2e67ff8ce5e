package achievement

import (
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// Kind - класс условия получения достижения.
type Kind int

const (
	KindTasksCreated Kind = iota + 1
	KindTasksCompleted
	KindStreak
	KindLevel
	KindTasksToday

	// Условия ниже требуют снимок выполненной задачи.
	KindTaskPriority
	KindHourBefore
	KindBeforeDue
	KindSameDay
)

// NeedsTask - условие проверяется только при выполнении задачи.
func (k Kind) NeedsTask() bool {
	return k >= KindTaskPriority
}

// TaskSnapshot - данные выполненной задачи, нужные условиям.
type TaskSnapshot struct {
	Priority  int
	CreatedAt time.Time
	DueDate   *time.Time
}

// Predicate - условие получения достижения.
type Predicate struct {
	Kind      Kind
	Threshold int
}

// Evaluate проверяет условие. now - текущий момент, loc - часовой пояс бота,
// в котором считаются часы и календарные дни.
func (pr Predicate) Evaluate(p user.Progress, t *TaskSnapshot, now time.Time, loc *time.Location) bool {
	if pr.Kind.NeedsTask() && t == nil {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}

	switch pr.Kind {
	case KindTasksCreated:
		return p.TotalCreated >= pr.Threshold
	case KindTasksCompleted:
		return p.TotalCompleted >= pr.Threshold
	case KindStreak:
		return p.CurrentStreak >= pr.Threshold
	case KindLevel:
		return p.Level >= pr.Threshold
	case KindTasksToday:
		return p.TasksToday(today(now, loc)) >= pr.Threshold
	case KindTaskPriority:
		return t.Priority == pr.Threshold
	case KindHourBefore:
		return now.In(loc).Hour() < pr.Threshold
	case KindBeforeDue:
		return t.DueDate != nil && now.Before(*t.DueDate)
	case KindSameDay:
		return timeutil.SameDay(t.CreatedAt, now, loc)
	default:
		return false
	}
}
