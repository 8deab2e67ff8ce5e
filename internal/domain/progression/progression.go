// Package progression содержит чистые правила геймификации:
// кривую опыта по уровням, награду за выполненную задачу и звания.
package progression

import "github.com/taskquest/taskquest-bot/internal/domain/shared"

// ══════════════════════════════════════════════════════════════════════════════
// XP CURVE
// ══════════════════════════════════════════════════════════════════════════════

// XPForLevel возвращает суммарный опыт, необходимый для достижения уровня.
// Кривая 50·L·(L−1): уровень 2 = 100, 5 = 1000, 10 = 4500, 25 = 30000.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return 50 * level * (level - 1)
}

// LevelFromXP возвращает наибольший уровень L, для которого XPForLevel(L) <= xp.
func LevelFromXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	level := 1
	for XPForLevel(level+1) <= xp {
		level++
	}
	return level
}

// LevelProgress возвращает опыт внутри текущего уровня и размер уровня.
func LevelProgress(xp int) (current, needed int) {
	level := LevelFromXP(xp)
	floor := XPForLevel(level)
	return xp - floor, XPForLevel(level+1) - floor
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK REWARD
// ══════════════════════════════════════════════════════════════════════════════

const (
	baseTaskXP     = 10
	xpPerPriority  = 5
	sameDayBonusXP = 15
)

// TaskXP считает награду за выполненную задачу.
// Приоритет ограничивается диапазоном 1..10; выполнение в срок даёт ×1.5
// (с округлением вниз), выполнение в день создания добавляет 15.
func TaskXP(priority int, onTime, sameDay bool) int {
	p := int(shared.Priority(priority).Clamp())
	xp := baseTaskXP + xpPerPriority*p
	if onTime {
		xp = xp * 3 / 2
	}
	if sameDay {
		xp += sameDayBonusXP
	}
	return xp
}

// ══════════════════════════════════════════════════════════════════════════════
// TITLES
// ══════════════════════════════════════════════════════════════════════════════

type rank struct {
	minLevel int
	title    string
	emoji    string
}

// ranks отсортированы по возрастанию minLevel.
var ranks = []rank{
	{1, "Новичок", "🌱"},
	{3, "Ученик", "🌿"},
	{5, "Исполнитель", "🌳"},
	{10, "Мастер задач", "⭐"},
	{15, "Эксперт", "🌟"},
	{20, "Гуру продуктивности", "💫"},
	{25, "Легенда", "👑"},
}

func rankFor(level int) rank {
	r := ranks[0]
	for _, candidate := range ranks {
		if level >= candidate.minLevel {
			r = candidate
		}
	}
	return r
}

// Title возвращает звание для уровня.
func Title(level int) string {
	return rankFor(level).title
}

// LevelEmoji возвращает значок уровня.
func LevelEmoji(level int) string {
	return rankFor(level).emoji
}
