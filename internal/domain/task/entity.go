// Package task содержит доменную модель задачи пользователя.
package task

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - состояние задачи.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses перечисляет статусы в порядке вывода.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsOpen - задача ещё может быть выполнена.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

func (s Status) String() string { return string(s) }

// ══════════════════════════════════════════════════════════════════════════════
// TASK
// ══════════════════════════════════════════════════════════════════════════════

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Task представляет задачу пользователя.
type Task struct {
	ID     shared.TaskID
	UserID shared.UserID

	Title       string
	Description string
	Priority    shared.Priority
	Status      Status

	CreatedAt   time.Time
	UpdatedAt   time.Time
	DueDate     *time.Time
	CompletedAt *time.Time

	// ReminderSent - отправлено напоминание о приближающемся сроке.
	ReminderSent bool

	// OverdueReminderSent - отправлено напоминание о просрочке.
	OverdueReminderSent bool
}

// NewTaskParams - параметры для создания задачи.
type NewTaskParams struct {
	UserID      shared.UserID
	Title       string
	Description string
	Priority    int
	DueDate     *time.Time
	Now         time.Time
}

// NewTask создаёт задачу в статусе pending.
func NewTask(params NewTaskParams) (*Task, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, shared.ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, shared.ValidationError("task", "title", "too long")
	}
	description := strings.TrimSpace(params.Description)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, shared.ValidationError("task", "description", "too long")
	}
	priority, err := shared.NewPriority(params.Priority)
	if err != nil {
		return nil, err
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	return &Task{
		UserID:      params.UserID,
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     params.DueDate,
	}, nil
}

// SetDueDate меняет срок. При изменении срока флаги напоминаний сбрасываются.
func (t *Task) SetDueDate(due *time.Time) (changed bool) {
	if sameInstant(t.DueDate, due) {
		return false
	}
	t.DueDate = due
	t.ReminderSent = false
	t.OverdueReminderSent = false
	return true
}

// Transition переводит открытую задачу в новый статус.
func (t *Task) Transition(to Status, at time.Time) error {
	if !to.IsValid() {
		return shared.NewDomainError("task", "Transition", shared.ErrInvalidInput, "unknown status")
	}
	if t.Status == StatusCompleted {
		return shared.ErrTaskAlreadyCompleted
	}
	if !t.Status.IsOpen() {
		return shared.ErrTaskClosed
	}
	t.Status = to
	t.UpdatedAt = at
	if to == StatusCompleted {
		completed := at
		t.CompletedAt = &completed
	}
	return nil
}

// IsOverdue - срок прошёл, а задача ещё открыта.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status.IsOpen() && t.DueDate != nil && t.DueDate.Before(now)
}

// CompletedOnTime - задача без срока всегда считается выполненной вовремя.
func (t *Task) CompletedOnTime() bool {
	if t.DueDate == nil {
		return true
	}
	if t.CompletedAt == nil {
		return false
	}
	return !t.CompletedAt.After(*t.DueDate)
}

// CompletedSameDay - задача выполнена в день создания (в часовом поясе loc).
func (t *Task) CompletedSameDay(loc *time.Location) bool {
	if t.CompletedAt == nil {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	y1, m1, d1 := t.CreatedAt.In(loc).Date()
	y2, m2, d2 := t.CompletedAt.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Clone возвращает глубокую копию задачи.
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
