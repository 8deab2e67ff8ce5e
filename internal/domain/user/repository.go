package user

import (
	"context"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
)

// Repository определяет хранение пользователей.
// Прогресс меняется только через gamification-хранилище под блокировкой строки.
type Repository interface {
	// GetOrCreate возвращает пользователя по Telegram ID, создавая его при первом обращении.
	// created == true, если пользователь был создан.
	GetOrCreate(ctx context.Context, u *User) (stored *User, created bool, err error)

	// GetByID возвращает shared.ErrUserNotFound, если пользователя нет.
	GetByID(ctx context.Context, id shared.UserID) (*User, error)

	GetByTelegramID(ctx context.Context, telegramID shared.TelegramID) (*User, error)

	// SetRemindersEnabled включает или выключает плановые уведомления.
	SetRemindersEnabled(ctx context.Context, id shared.UserID, enabled bool) error
}
