package achievement

import (
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
)

// Unlocked - полученное пользователем достижение. Пара (UserID, ID) уникальна.
type Unlocked struct {
	UserID     shared.UserID
	ID         ID
	UnlockedAt time.Time
}

// Definitions возвращает определения для ids, пропуская неизвестные.
func Definitions(ids []ID) []Definition {
	out := make([]Definition, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out
}
