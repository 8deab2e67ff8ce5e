package presenter

import (
	"fmt"
	"strings"

	"github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/pkg/textfmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD PRESENTER
// Форматирует рейтинг по XP для отображения в Telegram.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardPresenter форматирует данные рейтинга для Telegram.
type LeaderboardPresenter struct{}

// NewLeaderboardPresenter создаёт новый презентер рейтинга.
func NewLeaderboardPresenter() *LeaderboardPresenter {
	return &LeaderboardPresenter{}
}

// Format выводит рейтинг; строка текущего пользователя помечается "← Вы".
// Если пользователя нет в списке, внизу выводится его место.
func (p *LeaderboardPresenter) Format(entries []gamification.LeaderboardEntry, me shared.UserID, myStats *gamification.UserStats) string {
	var sb strings.Builder
	sb.WriteString("🏆 <b>Рейтинг по опыту</b>\n\n")

	if len(entries) == 0 {
		sb.WriteString("Пока никого нет. Выполни задачу и стань первым!")
		return sb.String()
	}

	found := false
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s <b>%s</b> - %s XP (ур. %d)",
			textfmt.Medal(e.Rank), e.LevelEmoji, textfmt.Escape(e.DisplayName), textfmt.Number(e.XP), e.Level)
		if e.UserID == me {
			sb.WriteString(" ← Вы")
			found = true
		}
		sb.WriteString("\n")
	}

	if !found && myStats != nil {
		fmt.Fprintf(&sb, "\n…\n%s <b>%s</b> - %s XP (ур. %d) ← Вы",
			myStats.LevelEmoji, textfmt.Escape(myStats.DisplayName), textfmt.Number(myStats.XP), myStats.Level)
	}
	return strings.TrimRight(sb.String(), "\n")
}
