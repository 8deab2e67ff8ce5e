package presenter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/application/query"
	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func callbacks(kb *InlineKeyboard) []string {
	var out []string
	for _, row := range kb.Buttons() {
		for _, b := range row {
			out = append(out, b.CallbackData)
		}
	}
	return out
}

func TestTaskDetailKeyboard_FollowsStatus(t *testing.T) {
	kb := NewKeyboardBuilder()

	pending := callbacks(kb.TaskDetailKeyboard(&task.Task{ID: 7, Status: task.StatusPending}))
	assert.Equal(t, []string{"done_7", "progress_7", "edit_7", "cancel_7", "delete_7", "back_to_list"}, pending)

	inProgress := callbacks(kb.TaskDetailKeyboard(&task.Task{ID: 7, Status: task.StatusInProgress}))
	assert.Equal(t, []string{"done_7", "cancel_7", "edit_7", "delete_7", "back_to_list"}, inProgress)

	done := callbacks(kb.TaskDetailKeyboard(&task.Task{ID: 7, Status: task.StatusCompleted}))
	assert.Equal(t, []string{"delete_7", "back_to_list"}, done)
}

func TestEditAndConfirmKeyboards(t *testing.T) {
	kb := NewKeyboardBuilder()
	assert.Equal(t, []string{"edit_title_7", "edit_desc_7", "edit_priority_7", "edit_due_7", "task_7"}, callbacks(kb.EditTaskKeyboard(7)))
	assert.Equal(t, []string{"confirm_delete_7", "task_7"}, callbacks(kb.ConfirmDeleteKeyboard(7)))
	assert.Equal(t, []string{"cancel_edit"}, callbacks(kb.AwaitInputKeyboard()))
	assert.Contains(t, callbacks(kb.ProfileKeyboard()), "detailed_stats")
}

func TestTaskListKeyboard_Navigation(t *testing.T) {
	kb := NewKeyboardBuilder()
	page := query.TaskPage{
		Tasks:      []*task.Task{{ID: 11, Title: "A", Status: task.StatusPending}},
		Page:       1,
		TotalPages: 3,
		Total:      11,
	}

	got := callbacks(kb.TaskListKeyboard(page))
	assert.Equal(t, []string{"task_11", "page_0", "page_2", "add_task_inline", "back_to_profile"}, got)

	first := callbacks(kb.TaskListKeyboard(query.TaskPage{TotalPages: 1}))
	assert.Equal(t, []string{"add_task_inline", "back_to_profile"}, first)
}

func TestSettingsKeyboard_Label(t *testing.T) {
	kb := NewKeyboardBuilder()
	assert.Contains(t, kb.SettingsKeyboard(true).Rows[0][0].Text, "Выключить")
	assert.Contains(t, kb.SettingsKeyboard(false).Rows[0][0].Text, "Включить")
}

func TestTaskPresenter_List(t *testing.T) {
	p := NewTaskPresenter(time.UTC)

	assert.Contains(t, p.List(query.TaskPage{}, now), "нет задач")

	due := now.Add(-26 * time.Hour)
	text := p.List(query.TaskPage{
		Tasks:      []*task.Task{{ID: 1, Title: "<b>x</b>", Priority: 3, Status: task.StatusPending, DueDate: &due}},
		Page:       1,
		TotalPages: 2,
		Total:      6,
	}, now)
	assert.Contains(t, text, "6 задач")
	assert.Contains(t, text, "Страница 2 из 2")
	assert.Contains(t, text, "6. ⏳ <b>&lt;b&gt;x&lt;/b&gt;</b>")
	assert.Contains(t, text, "просрочена вчера")
}

func TestTaskPresenter_Card(t *testing.T) {
	p := NewTaskPresenter(time.UTC)
	due := now.Add(5 * time.Hour)
	card := p.Card(&task.Task{ID: 1, Title: "Отчёт", Priority: 4, Status: task.StatusInProgress, CreatedAt: now, DueDate: &due}, now)

	assert.Contains(t, card, "🔄 В работе")
	assert.Contains(t, card, "10.03.2024 17:00 (осталось 5 часов)")
	assert.Contains(t, card, "до <b>60 XP</b>")
}

func TestTaskPresenter_Completion(t *testing.T) {
	p := NewTaskPresenter(time.UTC)
	text := p.Completion(&command.CompletionResult{
		Task:      &task.Task{Title: "Отчёт"},
		OnTime:    true,
		TaskXP:    30,
		BonusXP:   10,
		TotalXP:   1250,
		Level:     4,
		LeveledUp: true,
		Streak:    user.StreakResult{NewStreak: 3, OldStreak: 2},
		Achievements: []achievement.Definition{
			{Name: "Разгон", Icon: "🔥", XPReward: 10},
		},
	})

	assert.Contains(t, text, "+30 XP (вовремя)")
	assert.Contains(t, text, "Бонус за достижения: +10 XP")
	assert.Contains(t, text, "1 250 XP")
	assert.Contains(t, text, "Серия: 3 дня")
	assert.Contains(t, text, "Новый уровень: 4!")
	assert.Contains(t, text, "🔥 Разгон (+10 XP)")

	lost := p.Completion(&command.CompletionResult{
		Task:   &task.Task{Title: "x"},
		Streak: user.StreakResult{NewStreak: 1, OldStreak: 5, Lost: true},
	})
	assert.Contains(t, lost, "Серия прервалась (была 5 дней)")
}

func TestLeaderboard_MarksCurrentUser(t *testing.T) {
	p := NewLeaderboardPresenter()
	entries := []gamification.LeaderboardEntry{
		{Rank: 1, UserID: 5, DisplayName: "Аня", XP: 1200, Level: 5, LevelEmoji: "🌳"},
		{Rank: 2, UserID: 9, DisplayName: "Боб", XP: 900, Level: 4, LevelEmoji: "🌿"},
		{Rank: 4, UserID: 3, DisplayName: "Вера", XP: 100, Level: 1, LevelEmoji: "🌱"},
	}

	text := p.Format(entries, 9, nil)
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "🥇 🌳 <b>Аня</b> - 1 200 XP (ур. 5)", lines[2])
	assert.True(t, strings.HasSuffix(lines[3], "← Вы"))
	assert.True(t, strings.HasPrefix(lines[4], "4."))

	outside := p.Format(entries, 42, &gamification.UserStats{DisplayName: "Я", XP: 5, Level: 1, LevelEmoji: "🌱"})
	assert.Contains(t, outside, "🌱 <b>Я</b> - 5 XP (ур. 1) ← Вы")

	assert.Contains(t, p.Format(nil, 1, nil), "Пока никого нет")
}

func TestProfile(t *testing.T) {
	p := NewProfilePresenter(time.UTC)
	text := p.Profile(&gamification.UserStats{
		DisplayName:          "Аня",
		XP:                   150,
		Level:                2,
		Title:                "Новичок",
		LevelEmoji:           "🌱",
		CurrentStreak:        2,
		MaxStreak:            5,
		TotalCreated:         4,
		TotalCompleted:       3,
		AchievementsUnlocked: 2,
		AchievementsTotal:    20,
		StatusCounts:         map[task.Status]int{task.StatusPending: 1, task.StatusCompleted: 3},
		XPForCurrentLevel:    100,
		XPForNextLevel:       250,
	})

	assert.Contains(t, text, "🌱 Уровень <b>2</b> - Новичок")
	assert.Contains(t, text, "█████░░░░░░░░░░ 50/150")
	assert.Contains(t, text, "До уровня 3: 100 XP")
	assert.Contains(t, text, "Серия: <b>2 дня</b> (рекорд: 5 дней)")
	assert.Contains(t, text, "⏳ Ожидает: 1")
	assert.NotContains(t, text, "В работе")
	assert.Contains(t, text, "Достижения: 2/20")
}

func TestAchievements_GroupsByCategory(t *testing.T) {
	p := NewProfilePresenter(time.UTC)
	text := p.Achievements([]gamification.AchievementStatus{
		{Definition: achievement.Definition{Name: "Первый шаг", Icon: "🎯", Description: "Создать первую задачу", Category: achievement.CategoryFirstTime}, Unlocked: true, UnlockedAt: now},
		{Definition: achievement.Definition{Name: "Разгон", Description: "3 дня подряд", XPReward: 30, Category: achievement.CategoryStreak}},
	})

	assert.Contains(t, text, "(1/2)")
	assert.Contains(t, text, "<b>Первые шаги</b>")
	assert.Contains(t, text, "🎯 <b>Первый шаг</b> - Создать первую задачу (10.03.2024)")
	assert.Contains(t, text, "<b>Серии</b>\n🔒 Разгон - 3 дня подряд (+30 XP)")
}

func TestDetailedStats(t *testing.T) {
	p := NewProfilePresenter(time.UTC)
	text := p.DetailedStats(&gamification.UserStats{
		XP:                   420,
		Level:                3,
		CurrentStreak:        2,
		MaxStreak:            4,
		TotalCompleted:       6,
		AchievementsUnlocked: 3,
		AchievementsTotal:    20,
		StatusCounts: map[task.Status]int{
			task.StatusPending:    1,
			task.StatusInProgress: 1,
			task.StatusCompleted:  6,
			task.StatusCancelled:  2,
		},
	})

	assert.Contains(t, text, "⏳ Ожидает: 1")
	assert.Contains(t, text, "❌ Отменена: 2")
	assert.Contains(t, text, "Всего задач: 10")
	assert.Contains(t, text, "Процент выполнения: 60.0%")
	assert.Contains(t, text, "В среднем за день серии: ~1.5")
	assert.Contains(t, text, "Достижений: 3/20")

	empty := p.DetailedStats(&gamification.UserStats{})
	assert.Contains(t, empty, "Процент выполнения: 0.0%")
}

func TestEditPrompts(t *testing.T) {
	for _, f := range []EditField{EditTitle, EditDescription, EditPriority, EditDue} {
		assert.NotEmpty(t, EditPrompt(f), f)
		assert.NotEmpty(t, EditDone(f), f)
	}
}
