// Package user содержит доменную модель пользователя бота и его игровой прогресс.
package user

import (
	"strings"
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
)

// User представляет пользователя Telegram, зарегистрированного в боте.
type User struct {
	ID         shared.UserID
	TelegramID shared.TelegramID

	// ChatID - личный чат, куда бот шлёт напоминания.
	ChatID int64

	Username  string
	FirstName string

	// RemindersEnabled - получает ли пользователь плановые уведомления.
	RemindersEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time

	Progress Progress
}

// NewUserParams - параметры для создания пользователя.
type NewUserParams struct {
	TelegramID int64
	ChatID     int64
	Username   string
	FirstName  string
	Now        time.Time
}

// NewUser создаёт пользователя с включёнными напоминаниями.
// ID назначается хранилищем.
func NewUser(params NewUserParams) (*User, error) {
	tgID, err := shared.NewTelegramID(params.TelegramID)
	if err != nil {
		return nil, err
	}
	chatID := params.ChatID
	if chatID == 0 {
		chatID = params.TelegramID
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &User{
		TelegramID:       tgID,
		ChatID:           chatID,
		Username:         strings.TrimPrefix(strings.TrimSpace(params.Username), "@"),
		FirstName:        strings.TrimSpace(params.FirstName),
		RemindersEnabled: true,
		CreatedAt:        now,
		UpdatedAt:        now,
		Progress:         NewProgress(0),
	}, nil
}

// DisplayName возвращает имя для вывода в сообщениях.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "Пользователь " + u.TelegramID.String()
	}
}
