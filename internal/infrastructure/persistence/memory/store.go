// Package memory provides an in-process implementation of every repository port.
// It mirrors the PostgreSQL semantics (row locks, conditional updates, ordering)
// and backs tests and local runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/reminder"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

type xpEvent struct {
	userID shared.UserID
	amount int
	reason string
	at     time.Time
}

// Store keeps all state in maps guarded by a single RWMutex.
// WithUserLock additionally serializes callers per user.
type Store struct {
	mu sync.RWMutex

	users      map[shared.UserID]*user.User
	byTelegram map[shared.TelegramID]shared.UserID
	tasks      map[shared.TaskID]*task.Task
	unlocked   map[shared.UserID]map[achievement.ID]time.Time
	xpEvents   []xpEvent

	nextUserID shared.UserID
	nextTaskID shared.TaskID

	lockMu    sync.Mutex
	userLocks map[shared.UserID]*sync.Mutex
}

// Compile-time interface checks.
var (
	_ user.Repository     = (*Store)(nil)
	_ task.Repository     = (*Store)(nil)
	_ reminder.Repository = (*Store)(nil)
	_ gamification.Store  = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:      make(map[shared.UserID]*user.User),
		byTelegram: make(map[shared.TelegramID]shared.UserID),
		tasks:      make(map[shared.TaskID]*task.Task),
		unlocked:   make(map[shared.UserID]map[achievement.ID]time.Time),
		userLocks:  make(map[shared.UserID]*sync.Mutex),
	}
}

func cloneUser(u *user.User) *user.User {
	c := *u
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) GetOrCreate(_ context.Context, u *user.User) (*user.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byTelegram[u.TelegramID]; ok {
		return cloneUser(s.users[id]), false, nil
	}

	s.nextUserID++
	stored := cloneUser(u)
	stored.ID = s.nextUserID
	stored.Progress.UserID = stored.ID
	if stored.Progress.Level == 0 {
		stored.Progress.Level = 1
	}
	s.users[stored.ID] = stored
	s.byTelegram[stored.TelegramID] = stored.ID
	return cloneUser(stored), true, nil
}

func (s *Store) GetByID(_ context.Context, id shared.UserID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetByTelegramID(_ context.Context, telegramID shared.TelegramID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTelegram[telegramID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) SetRemindersEnabled(_ context.Context, id shared.UserID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.RemindersEnabled = enabled
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TASKS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) Create(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[t.UserID]; !ok {
		return shared.ErrUserNotFound
	}
	s.nextTaskID++
	t.ID = s.nextTaskID
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *Store) ownedTask(userID shared.UserID, id shared.TaskID) (*task.Task, bool) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, false
	}
	return t, true
}

func (s *Store) Get(_ context.Context, userID shared.UserID, id shared.TaskID) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.ownedTask(userID, id)
	if !ok {
		return nil, shared.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *Store) List(_ context.Context, userID shared.UserID, opts task.ListOptions) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*task.Task
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if opts.Status != nil && t.Status != *opts.Status {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) Count(_ context.Context, userID shared.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.tasks {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountByStatus(_ context.Context, userID shared.UserID) (map[task.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countByStatus(userID), nil
}

func (s *Store) countByStatus(userID shared.UserID) map[task.Status]int {
	counts := make(map[task.Status]int)
	for _, t := range s.tasks {
		if t.UserID == userID {
			counts[t.Status]++
		}
	}
	return counts
}

func (s *Store) Update(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.ownedTask(t.UserID, t.ID)
	if !ok {
		return shared.ErrTaskNotFound
	}
	updated := stored.Clone()
	updated.Title = t.Title
	updated.Description = t.Description
	updated.Priority = t.Priority
	updated.DueDate = t.Clone().DueDate
	updated.UpdatedAt = t.UpdatedAt
	s.tasks[t.ID] = updated
	return nil
}

func (s *Store) Transition(_ context.Context, userID shared.UserID, id shared.TaskID, to task.Status, at time.Time) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.ownedTask(userID, id)
	if !ok {
		return nil, shared.ErrTaskNotFound
	}
	updated := stored.Clone()
	if err := updated.Transition(to, at); err != nil {
		return nil, err
	}
	s.tasks[id] = updated
	return updated.Clone(), nil
}

func (s *Store) Delete(_ context.Context, userID shared.UserID, id shared.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownedTask(userID, id); !ok {
		return shared.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER QUERIES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) tasksWithOwner(match func(t *task.Task) bool) []reminder.TaskWithOwner {
	var out []reminder.TaskWithOwner
	for _, t := range s.tasks {
		owner := s.users[t.UserID]
		if owner == nil || !owner.RemindersEnabled || !t.Status.IsOpen() || t.DueDate == nil {
			continue
		}
		if match(t) {
			out = append(out, reminder.TaskWithOwner{Task: t.Clone(), Owner: cloneUser(owner)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Task, out[j].Task
		if !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.Before(*b.DueDate)
		}
		return a.ID < b.ID
	})
	return out
}

func (s *Store) TasksDueBetween(_ context.Context, from, to time.Time) ([]reminder.TaskWithOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tasksWithOwner(func(t *task.Task) bool {
		return !t.ReminderSent && t.DueDate.After(from) && !t.DueDate.After(to)
	}), nil
}

func (s *Store) OverdueTasks(_ context.Context, now time.Time) ([]reminder.TaskWithOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tasksWithOwner(func(t *task.Task) bool {
		return !t.OverdueReminderSent && t.DueDate.Before(now)
	}), nil
}

func (s *Store) OpenTasksByUser(_ context.Context) ([]reminder.Digest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := make(map[shared.UserID][]*task.Task)
	for _, t := range s.tasks {
		owner := s.users[t.UserID]
		if owner == nil || !owner.RemindersEnabled || !t.Status.IsOpen() {
			continue
		}
		byUser[t.UserID] = append(byUser[t.UserID], t.Clone())
	}

	out := make([]reminder.Digest, 0, len(byUser))
	for id, tasks := range byUser {
		sort.Slice(tasks, func(i, j int) bool { return digestLess(tasks[i], tasks[j]) })
		out = append(out, reminder.Digest{User: cloneUser(s.users[id]), Tasks: tasks})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out, nil
}

// digestLess orders by priority desc, due date asc with nulls last, id asc.
func digestLess(a, b *task.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	switch {
	case a.DueDate == nil && b.DueDate != nil:
		return false
	case a.DueDate != nil && b.DueDate == nil:
		return true
	case a.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
		return a.DueDate.Before(*b.DueDate)
	}
	return a.ID < b.ID
}

func (s *Store) setFlags(id shared.TaskID, fn func(t *task.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	updated := t.Clone()
	fn(updated)
	s.tasks[id] = updated
	return nil
}

func (s *Store) MarkReminderSent(_ context.Context, id shared.TaskID) error {
	return s.setFlags(id, func(t *task.Task) { t.ReminderSent = true })
}

func (s *Store) MarkOverdueReminderSent(_ context.Context, id shared.TaskID) error {
	return s.setFlags(id, func(t *task.Task) { t.OverdueReminderSent = true })
}

func (s *Store) ResetReminderFlags(_ context.Context, id shared.TaskID) error {
	return s.setFlags(id, func(t *task.Task) {
		t.ReminderSent = false
		t.OverdueReminderSent = false
	})
}

func (s *Store) usersWhere(match func(u *user.User) bool) []*user.User {
	var out []*user.User
	for _, u := range s.users {
		if u.RemindersEnabled && match(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UsersWithStreakAtRisk(_ context.Context, today timeutil.Date) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.usersWhere(func(u *user.User) bool { return u.Progress.StreakAtRisk(today) }), nil
}

func (s *Store) ActiveUsers(_ context.Context) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.usersWhere(func(*user.User) bool { return true }), nil
}

func (s *Store) WeeklyStats(_ context.Context, userID shared.UserID, from, to time.Time) (reminder.WeeklyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }

	var stats reminder.WeeklyStats
	for _, e := range s.xpEvents {
		if e.userID == userID && in(e.at) {
			stats.XPEarned += e.amount
		}
	}
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if in(t.CreatedAt) {
			stats.Created++
		}
		if t.Status == task.StatusCompleted && t.CompletedAt != nil && in(*t.CompletedAt) {
			stats.Completed++
		}
	}
	return stats, nil
}
