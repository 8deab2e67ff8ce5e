package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
)

func (s *Store) userLock(id shared.UserID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	l, ok := s.userLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[id] = l
	}
	return l
}

// memTx buffers writes until fn returns without error.
type memTx struct {
	store    *Store
	userID   shared.UserID
	progress *user.Progress
	saved    bool
	unlocks  map[achievement.ID]time.Time
	events   []xpEvent
}

func (tx *memTx) SaveProgress(_ context.Context, p user.Progress) error {
	*tx.progress = p
	tx.saved = true
	return nil
}

func (tx *memTx) UnlockedIDs(_ context.Context) (map[achievement.ID]bool, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	out := make(map[achievement.ID]bool)
	for id := range tx.store.unlocked[tx.userID] {
		out[id] = true
	}
	for id := range tx.unlocks {
		out[id] = true
	}
	return out, nil
}

func (tx *memTx) Unlock(_ context.Context, id achievement.ID, at time.Time) (bool, error) {
	tx.store.mu.RLock()
	_, exists := tx.store.unlocked[tx.userID][id]
	tx.store.mu.RUnlock()

	if exists {
		return false, nil
	}
	if _, pending := tx.unlocks[id]; pending {
		return false, nil
	}
	tx.unlocks[id] = at
	return true, nil
}

func (tx *memTx) RecordXP(_ context.Context, amount int, reason string, at time.Time) error {
	tx.events = append(tx.events, xpEvent{userID: tx.userID, amount: amount, reason: reason, at: at})
	return nil
}

// WithUserLock serializes fn per user and commits buffered writes on success.
func (s *Store) WithUserLock(ctx context.Context, userID shared.UserID, fn func(tx gamification.Tx, p *user.Progress) error) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	u, ok := s.users[userID]
	var progress user.Progress
	if ok {
		progress = u.Progress
	}
	s.mu.RUnlock()
	if !ok {
		return shared.ErrUserNotFound
	}

	working := progress
	tx := &memTx{
		store:    s,
		userID:   userID,
		progress: &progress,
		unlocks:  make(map[achievement.ID]time.Time),
	}
	if err := fn(tx, &working); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.saved {
		s.users[userID].Progress = progress
	}
	if len(tx.unlocks) > 0 {
		owned := s.unlocked[userID]
		if owned == nil {
			owned = make(map[achievement.ID]time.Time)
			s.unlocked[userID] = owned
		}
		for id, at := range tx.unlocks {
			owned[id] = at
		}
	}
	s.xpEvents = append(s.xpEvents, tx.events...)
	return nil
}

func (s *Store) ReadStats(_ context.Context, userID shared.UserID) (gamification.StatsData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return gamification.StatsData{}, shared.ErrUserNotFound
	}
	return gamification.StatsData{
		User:          cloneUser(u),
		UnlockedCount: len(s.unlocked[userID]),
		StatusCounts:  s.countByStatus(userID),
	}, nil
}

func (s *Store) UnlockedAchievements(_ context.Context, userID shared.UserID) ([]achievement.Unlocked, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]achievement.Unlocked, 0, len(s.unlocked[userID]))
	for id, at := range s.unlocked[userID] {
		out = append(out, achievement.Unlocked{UserID: userID, ID: id, UnlockedAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.Before(out[j].UnlockedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SortScores orders by xp desc, then user id asc.
func SortScores(scores []gamification.Score) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].XP != scores[j].XP {
			return scores[i].XP > scores[j].XP
		}
		return scores[i].UserID < scores[j].UserID
	})
}

func (s *Store) Scores(_ context.Context) ([]gamification.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gamification.Score, 0, len(s.users))
	for id, u := range s.users {
		out = append(out, gamification.Score{UserID: id, XP: u.Progress.XP})
	}
	SortScores(out)
	return out, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]gamification.Score, error) {
	scores, err := s.Scores(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

func (s *Store) Profiles(_ context.Context, ids []shared.UserID) (map[shared.UserID]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[shared.UserID]*user.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = cloneUser(u)
		}
	}
	return out, nil
}
