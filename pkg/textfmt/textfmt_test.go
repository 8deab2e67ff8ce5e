package textfmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlural(t *testing.T) {
	cases := map[int]string{
		1: "день", 2: "дня", 4: "дня", 5: "дней", 11: "дней",
		12: "дней", 21: "день", 22: "дня", 111: "дней", 0: "дней",
	}
	for n, want := range cases {
		assert.Equal(t, want, Plural(n, "день", "дня", "дней"), "n=%d", n)
	}
	assert.Equal(t, "3 задачи", Tasks(3))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", ProgressBar(50, 100, 10))
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(0, 0, 10))
	assert.Equal(t, "██████████", ProgressBar(300, 100, 10))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "999", Number(999))
	assert.Equal(t, "1 000", Number(1000))
	assert.Equal(t, "1 234 567", Number(1234567))
	assert.Equal(t, "-12 345", Number(-12345))
}

func TestRelativeTime(t *testing.T) {
	assert.Equal(t, "менее часа", TimeLeft(30*time.Minute))
	assert.Equal(t, "1 час", TimeLeft(90*time.Minute))
	assert.Equal(t, "23 часа", TimeLeft(23*time.Hour+59*time.Minute))

	assert.Equal(t, "менее часа назад", TimeAgo(10*time.Minute))
	assert.Equal(t, "5 часов назад", TimeAgo(5*time.Hour))
	assert.Equal(t, "вчера", TimeAgo(30*time.Hour))
	assert.Equal(t, "3 дня назад", TimeAgo(73*time.Hour))
}

func TestEscapeAndTruncate(t *testing.T) {
	assert.Equal(t, "&lt;b&gt; &amp;", Escape("<b> &"))
	assert.Equal(t, "Прив…", Truncate("Привет", 5))
	assert.Equal(t, "Привет", Truncate("Привет", 6))
	assert.Equal(t, "🥇", Medal(1))
	assert.Equal(t, "4.", Medal(4))
	assert.Equal(t, "⭐⭐⭐⭐⭐", Stars(9))
}
