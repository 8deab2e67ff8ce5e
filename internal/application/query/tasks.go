package query

import (
	"context"
	"fmt"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK LIST QUERY
// ══════════════════════════════════════════════════════════════════════════════

// TaskPage - одна страница списка задач.
type TaskPage struct {
	Tasks []*task.Task

	// Page - номер страницы, начиная с 0.
	Page       int
	TotalPages int
	Total      int
}

// HasPrev / HasNext - есть ли соседние страницы.
func (p TaskPage) HasPrev() bool { return p.Page > 0 }
func (p TaskPage) HasNext() bool { return p.Page+1 < p.TotalPages }

// Tasks - запросы задач пользователя.
type Tasks struct {
	repo task.Repository
}

// NewTasks создаёт запросы задач.
func NewTasks(repo task.Repository) *Tasks {
	return &Tasks{repo: repo}
}

// Get возвращает задачу владельца или shared.ErrTaskNotFound.
func (q *Tasks) Get(ctx context.Context, userID shared.UserID, id shared.TaskID) (*task.Task, error) {
	return q.repo.Get(ctx, userID, id)
}

// List возвращает страницу задач (новые сверху). Номер страницы приводится к допустимому.
func (q *Tasks) List(ctx context.Context, userID shared.UserID, page int) (TaskPage, error) {
	total, err := q.repo.Count(ctx, userID)
	if err != nil {
		return TaskPage{}, fmt.Errorf("query: count tasks: %w", err)
	}

	pages := (total + task.PageSize - 1) / task.PageSize
	if page >= pages {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}

	tasks, err := q.repo.List(ctx, userID, task.ListOptions{Limit: task.PageSize, Offset: page * task.PageSize})
	if err != nil {
		return TaskPage{}, fmt.Errorf("query: list tasks: %w", err)
	}
	return TaskPage{Tasks: tasks, Page: page, TotalPages: pages, Total: total}, nil
}

// Count возвращает число задач пользователя.
func (q *Tasks) Count(ctx context.Context, userID shared.UserID) (int, error) {
	return q.repo.Count(ctx, userID)
}
