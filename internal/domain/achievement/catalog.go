// Package achievement содержит статический каталог достижений и их условия.
package achievement

import (
	"time"

	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ID - идентификатор достижения, хранится в user_achievements.
type ID string

const (
	FirstTask         ID = "first_task"
	Planner10         ID = "planner_10"
	Planner50         ID = "planner_50"
	TaskMaster10      ID = "task_master_10"
	TaskMaster50      ID = "task_master_50"
	TaskMaster100     ID = "task_master_100"
	TaskMaster500     ID = "task_master_500"
	Streak3           ID = "streak_3"
	Streak7           ID = "streak_7"
	Streak30          ID = "streak_30"
	Streak100         ID = "streak_100"
	Level5            ID = "level_5"
	Level10           ID = "level_10"
	Level25           ID = "level_25"
	SpeedDemon        ID = "speed_demon"
	HighPriority      ID = "high_priority"
	EarlyBird         ID = "early_bird"
	NightOwl          ID = "night_owl"
	Perfectionist     ID = "perfectionist"
	NoProcrastination ID = "no_procrastination"
)

// Category группирует достижения для вывода.
type Category string

const (
	CategoryFirstTime     Category = "first_time"
	CategoryTaskCount     Category = "task_count"
	CategoryStreak        Category = "streak"
	CategoryLevel         Category = "level"
	CategoryTaskAttribute Category = "task_attribute"
	CategoryTimeOfDay     Category = "time_of_day"
)

// Definition описывает достижение из каталога.
type Definition struct {
	ID          ID
	Name        string
	Icon        string
	Description string
	XPReward    int
	Category    Category
	Predicate   Predicate
}

// catalog задаёт порядок проверки и вывода.
var catalog = []Definition{
	{FirstTask, "Первый шаг", "🎯", "Создать первую задачу", 10, CategoryFirstTime, Predicate{KindTasksCreated, 1}},
	{Planner10, "Планировщик", "📝", "Создать 10 задач", 30, CategoryTaskCount, Predicate{KindTasksCreated, 10}},
	{Planner50, "Стратег", "🗺", "Создать 50 задач", 80, CategoryTaskCount, Predicate{KindTasksCreated, 50}},
	{TaskMaster10, "Деятель", "✅", "Выполнить 10 задач", 50, CategoryTaskCount, Predicate{KindTasksCompleted, 10}},
	{TaskMaster50, "Трудяга", "💼", "Выполнить 50 задач", 100, CategoryTaskCount, Predicate{KindTasksCompleted, 50}},
	{TaskMaster100, "Машина продуктивности", "⚙️", "Выполнить 100 задач", 250, CategoryTaskCount, Predicate{KindTasksCompleted, 100}},
	{TaskMaster500, "Непобедимый", "🏆", "Выполнить 500 задач", 1000, CategoryTaskCount, Predicate{KindTasksCompleted, 500}},
	{Streak3, "Разгон", "🔥", "3 дня подряд", 30, CategoryStreak, Predicate{KindStreak, 3}},
	{Streak7, "Неделя огня", "🔥", "7 дней подряд", 75, CategoryStreak, Predicate{KindStreak, 7}},
	{Streak30, "Железная воля", "💪", "30 дней подряд", 300, CategoryStreak, Predicate{KindStreak, 30}},
	{Streak100, "Несгибаемый", "🦾", "100 дней подряд", 1000, CategoryStreak, Predicate{KindStreak, 100}},
	{Level5, "Подмастерье", "📚", "Достичь 5 уровня", 50, CategoryLevel, Predicate{KindLevel, 5}},
	{Level10, "Мастер", "🧙", "Достичь 10 уровня", 150, CategoryLevel, Predicate{KindLevel, 10}},
	{Level25, "Легенда", "👑", "Достичь 25 уровня", 500, CategoryLevel, Predicate{KindLevel, 25}},
	{SpeedDemon, "Скорострел", "⚡", "Выполнить 5 задач за день", 50, CategoryTaskCount, Predicate{KindTasksToday, 5}},
	{HighPriority, "Главное - первым", "🚨", "Выполнить задачу с приоритетом 10", 25, CategoryTaskAttribute, Predicate{KindTaskPriority, 10}},
	{EarlyBird, "Ранняя пташка", "🐦", "Выполнить задачу до 7 утра", 25, CategoryTimeOfDay, Predicate{KindHourBefore, 7}},
	{NightOwl, "Ночная сова", "🦉", "Выполнить задачу между полуночью и 5 утра", 25, CategoryTimeOfDay, Predicate{KindHourBefore, 5}},
	{Perfectionist, "Перфекционист", "💎", "Выполнить задачу раньше срока", 20, CategoryTaskAttribute, Predicate{Kind: KindBeforeDue}},
	{NoProcrastination, "Без прокрастинации", "🚀", "Выполнить задачу в день создания", 20, CategoryTaskAttribute, Predicate{Kind: KindSameDay}},
}

var byID = func() map[ID]Definition {
	m := make(map[ID]Definition, len(catalog))
	for _, d := range catalog {
		m[d.ID] = d
	}
	return m
}()

// All возвращает копию каталога в порядке определения.
func All() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Count - размер каталога.
func Count() int {
	return len(catalog)
}

// Lookup возвращает определение по ID.
func Lookup(id ID) (Definition, bool) {
	d, ok := byID[id]
	return d, ok
}

// Reward возвращает награду в XP (0 для неизвестного ID).
func Reward(id ID) int {
	return byID[id].XPReward
}

// Satisfied возвращает ID из каталога, условия которых выполнены, в порядке каталога.
// Уже полученные достижения (skip) пропускаются.
func Satisfied(p user.Progress, t *TaskSnapshot, now time.Time, loc *time.Location, skip map[ID]bool) []ID {
	var out []ID
	for _, d := range catalog {
		if skip[d.ID] {
			continue
		}
		if d.Predicate.Evaluate(p, t, now, loc) {
			out = append(out, d.ID)
		}
	}
	return out
}

// today - вспомогательная функция для условий "за день".
func today(now time.Time, loc *time.Location) timeutil.Date {
	return timeutil.DateOf(now, loc)
}
