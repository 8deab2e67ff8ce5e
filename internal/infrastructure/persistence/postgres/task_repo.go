package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// TaskRepository implements task.Repository for PostgreSQL.
type TaskRepository struct {
	conn *Connection
}

var _ task.Repository = (*TaskRepository)(nil)

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(conn *Connection) *TaskRepository {
	return &TaskRepository{conn: conn}
}

const taskColumns = `
	id, user_id, title, description, priority, status, due_date, completed_at,
	reminder_sent, overdue_reminder_sent, created_at, updated_at`

const tasksPrefixed = `
	t.id, t.user_id, t.title, t.description, t.priority, t.status, t.due_date, t.completed_at,
	t.reminder_sent, t.overdue_reminder_sent, t.created_at, t.updated_at`

// Create inserts the task and assigns its ID.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	query := `
		INSERT INTO tasks (user_id, title, description, priority, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.conn.QueryRow(ctx, query,
		int64(t.UserID),
		t.Title,
		t.Description,
		int(t.Priority),
		string(t.Status),
		t.DueDate,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrUserNotFound
		}
		return fmt.Errorf("postgres: create task: %w", err)
	}

	t.ID = shared.TaskID(id)
	return nil
}

// Get returns shared.ErrTaskNotFound for a missing or foreign task.
func (r *TaskRepository) Get(ctx context.Context, userID shared.UserID, id shared.TaskID) (*task.Task, error) {
	t, err := scanTask(r.conn.QueryRow(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND user_id = $2",
		int64(id), int64(userID)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrTaskNotFound
		}
		return nil, fmt.Errorf("postgres: get task: %w", err)
	}
	return t, nil
}

// List returns the newest tasks first.
func (r *TaskRepository) List(ctx context.Context, userID shared.UserID, opts task.ListOptions) ([]*task.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE user_id = $1"
	args := []any{int64(userID)}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tasks: %w", err)
	}
	return scanTasks(rows)
}

func (r *TaskRepository) Count(ctx context.Context, userID shared.UserID) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM tasks WHERE user_id = $1", int64(userID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count tasks: %w", err)
	}
	return n, nil
}

func (r *TaskRepository) CountByStatus(ctx context.Context, userID shared.UserID) (map[task.Status]int, error) {
	return countByStatus(ctx, r.conn, userID)
}

func countByStatus(ctx context.Context, q Querier, userID shared.UserID) (map[task.Status]int, error) {
	rows, err := q.Query(ctx, "SELECT status, COUNT(*) FROM tasks WHERE user_id = $1 GROUP BY status", int64(userID))
	if err != nil {
		return nil, fmt.Errorf("postgres: count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[task.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan status count: %w", err)
		}
		counts[task.Status(status)] = n
	}
	return counts, rows.Err()
}

// Update stores the editable fields. Reminder flags are owned by the
// reminder repository and are never written from here.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	query := `
		UPDATE tasks SET
			title = $1,
			description = $2,
			priority = $3,
			due_date = $4,
			updated_at = $5
		WHERE id = $6 AND user_id = $7
	`

	result, err := r.conn.Exec(ctx, query,
		t.Title,
		t.Description,
		int(t.Priority),
		t.DueDate,
		t.UpdatedAt,
		int64(t.ID),
		int64(t.UserID),
	)
	if err != nil {
		return fmt.Errorf("postgres: update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrTaskNotFound
	}
	return nil
}

// Transition is a conditional UPDATE on open statuses; concurrent callers
// race on the row and only one of them sees it still open.
func (r *TaskRepository) Transition(ctx context.Context, userID shared.UserID, id shared.TaskID, to task.Status, at time.Time) (*task.Task, error) {
	if !to.IsValid() {
		return nil, shared.NewDomainError("task", "Transition", shared.ErrInvalidInput, "unknown status")
	}

	query := `
		UPDATE tasks SET
			status = $1,
			updated_at = $2,
			completed_at = CASE WHEN $3::boolean THEN $2 ELSE completed_at END
		WHERE id = $4 AND user_id = $5 AND status IN ('pending', 'in_progress')
		RETURNING ` + taskColumns

	t, err := scanTask(r.conn.QueryRow(ctx, query,
		string(to), at, to == task.StatusCompleted, int64(id), int64(userID)))
	if err == nil {
		return t, nil
	}
	if !IsNoRows(err) {
		return nil, fmt.Errorf("postgres: transition task: %w", err)
	}

	current, err := r.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if current.Status == task.StatusCompleted {
		return nil, shared.ErrTaskAlreadyCompleted
	}
	return nil, shared.ErrTaskClosed
}

func (r *TaskRepository) Delete(ctx context.Context, userID shared.UserID, id shared.TaskID) error {
	result, err := r.conn.Exec(ctx, "DELETE FROM tasks WHERE id = $1 AND user_id = $2", int64(id), int64(userID))
	if err != nil {
		return fmt.Errorf("postgres: delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrTaskNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

// taskRow holds scan destinations for taskColumns.
type taskRow struct {
	t          task.Task
	id, userID int64
	priority   int
	status     string
}

func (r *taskRow) dest() []any {
	return []any{
		&r.id, &r.userID, &r.t.Title, &r.t.Description, &r.priority, &r.status, &r.t.DueDate, &r.t.CompletedAt,
		&r.t.ReminderSent, &r.t.OverdueReminderSent, &r.t.CreatedAt, &r.t.UpdatedAt,
	}
}

func (r *taskRow) build() *task.Task {
	t := r.t
	t.ID = shared.TaskID(r.id)
	t.UserID = shared.UserID(r.userID)
	t.Priority = shared.Priority(r.priority)
	t.Status = task.Status(r.status)
	return &t
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var r taskRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.build(), nil
}

func scanTasks(rows pgx.Rows) ([]*task.Task, error) {
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
