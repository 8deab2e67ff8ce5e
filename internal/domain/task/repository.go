package task

import (
	"context"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
)

// PageSize - задач на одной странице списка.
const PageSize = 5

// ListOptions задаёт фильтр и пагинацию для List.
type ListOptions struct {
	// Status - nil означает все статусы.
	Status *Status
	Limit  int
	Offset int
}

// Repository определяет хранение задач. Все методы, кроме Create,
// ограничены владельцем: чужая задача неотличима от несуществующей.
type Repository interface {
	// Create сохраняет задачу и назначает ей ID.
	Create(ctx context.Context, t *Task) error

	// Get возвращает shared.ErrTaskNotFound, если задачи нет.
	Get(ctx context.Context, userID shared.UserID, id shared.TaskID) (*Task, error)

	// List возвращает задачи по убыванию created_at (затем id).
	List(ctx context.Context, userID shared.UserID, opts ListOptions) ([]*Task, error)

	Count(ctx context.Context, userID shared.UserID) (int, error)

	CountByStatus(ctx context.Context, userID shared.UserID) (map[Status]int, error)

	// Update сохраняет title, description, priority и due_date.
	// Флаги напоминаний меняет только reminder.Repository.
	Update(ctx context.Context, t *Task) error

	// Transition условно переводит открытую задачу в статус to.
	// Для уже выполненной задачи возвращает shared.ErrTaskAlreadyCompleted,
	// для отменённой - shared.ErrTaskClosed. Ровно один вызов с to == completed
	// может завершиться успехом.
	Transition(ctx context.Context, userID shared.UserID, id shared.TaskID, to Status, at time.Time) (*Task, error)

	Delete(ctx context.Context, userID shared.UserID, id shared.TaskID) error
}
