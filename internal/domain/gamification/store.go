// Package gamification определяет порты хранилища игрового прогресса:
// атомарные изменения прогресса под блокировкой пользователя, журнал XP,
// полученные достижения и таблицу лидеров.
package gamification

import (
	"context"
	"errors"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
)

// Tx - операции, доступные внутри WithUserLock. Все изменения фиксируются
// вместе с прогрессом или откатываются вместе с ним.
type Tx interface {
	// SaveProgress записывает изменённый прогресс.
	SaveProgress(ctx context.Context, p user.Progress) error

	// UnlockedIDs возвращает уже полученные достижения пользователя.
	UnlockedIDs(ctx context.Context) (map[achievement.ID]bool, error)

	// Unlock вставляет запись, если её ещё нет. inserted == false для повторной вставки.
	Unlock(ctx context.Context, id achievement.ID, at time.Time) (inserted bool, err error)

	// RecordXP добавляет запись в журнал начислений.
	RecordXP(ctx context.Context, amount int, reason string, at time.Time) error
}

// Store - хранилище игрового прогресса.
type Store interface {
	// WithUserLock выполняет fn атомарно для одного пользователя.
	// В PostgreSQL это SELECT ... FOR UPDATE внутри транзакции.
	// Возвращает shared.ErrUserNotFound, если пользователя нет; ошибка fn откатывает изменения.
	WithUserLock(ctx context.Context, userID shared.UserID, fn func(tx Tx, p *user.Progress) error) error

	// ReadStats читает согласованный снимок для профиля.
	ReadStats(ctx context.Context, userID shared.UserID) (StatsData, error)

	// UnlockedAchievements возвращает полученные достижения по времени получения.
	UnlockedAchievements(ctx context.Context, userID shared.UserID) ([]achievement.Unlocked, error)

	// Leaderboard возвращает первых limit пользователей по XP (убыв.), затем по id.
	Leaderboard(ctx context.Context, limit int) ([]Score, error)

	// Scores возвращает XP всех пользователей, для перестройки кэша.
	Scores(ctx context.Context) ([]Score, error)

	// Profiles возвращает пользователей по id, отсутствующие пропускаются.
	Profiles(ctx context.Context, ids []shared.UserID) (map[shared.UserID]*user.User, error)
}

// StatsData - снимок данных пользователя, прочитанный одной транзакцией.
type StatsData struct {
	User          *user.User
	UnlockedCount int
	StatusCounts  map[task.Status]int
}

// Score - очки пользователя в таблице лидеров.
type Score struct {
	UserID shared.UserID
	XP     int
}

// ErrCacheMiss - кэш пуст или ещё не построен, нужно читать из хранилища.
var ErrCacheMiss = errors.New("leaderboard cache miss")

// LeaderboardCache - отсортированный кэш таблицы лидеров (Redis sorted set).
type LeaderboardCache interface {
	// Update записывает текущий XP пользователя. Меньшее значение, пришедшее
	// после большего, не перезаписывает его.
	Update(ctx context.Context, s Score) error

	// Top возвращает первых limit в порядке XP (убыв.), затем id (возр.).
	// ErrCacheMiss, если кэш не построен.
	Top(ctx context.Context, limit int) ([]Score, error)

	// Rebuild атомарно заменяет содержимое кэша.
	Rebuild(ctx context.Context, scores []Score) error
}
