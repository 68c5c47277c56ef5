package mohe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/functionx37/yiyin-bot/internal/resource"
)

func TestDrawTimesWindow(t *testing.T) {
	now := time.Date(2026, 8, 25, 0, 0, 0, 0, time.Local)
	for i := 0; i < 50; i++ {
		times := drawTimes(now)
		require.Len(t, times, 2)
		assert.True(t, times[0].Before(times[1]))
		for _, at := range times {
			assert.GreaterOrEqual(t, at.Hour(), 9)
			assert.Less(t, at.Hour(), 22)
			assert.Equal(t, now.Day(), at.Day())
		}
	}
}

func TestDrawTimesSkipsPast(t *testing.T) {
	// Late in the evening most draws are already behind us.
	now := time.Date(2026, 8, 25, 21, 59, 0, 0, time.Local)
	for i := 0; i < 50; i++ {
		for _, at := range drawTimes(now) {
			assert.True(t, at.After(now))
		}
	}
}

func TestMidnightReschedule(t *testing.T) {
	now := time.Date(2026, 8, 25, 13, 30, 0, 0, time.Local)
	next := midnightReschedule(now)
	assert.Equal(t, time.Date(2026, 8, 26, 0, 5, 0, 0, time.Local), next)
}

func TestPickCount(t *testing.T) {
	pool := make([]item, 10)
	for i := range pool {
		pool[i] = item{text: string(rune('a' + i))}
	}
	for i := 0; i < 50; i++ {
		got := pick(pool)
		assert.GreaterOrEqual(t, len(got), 3)
		assert.LessOrEqual(t, len(got), 5)
	}
}

func TestPickSmallPool(t *testing.T) {
	pool := []item{{text: "a"}, {text: "b"}}
	got := pick(pool)
	assert.Len(t, got, 2)
}

func TestPoolUsesResourceDir(t *testing.T) {
	res, err := resource.Ensure(t.TempDir())
	require.NoError(t, err)
	p := New(res)
	assert.NotEmpty(t, p.pool())
}
