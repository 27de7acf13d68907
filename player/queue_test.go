package player

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vasilala/model"
)

func makeTracks(n int) []model.Track {
	out := make([]model.Track, n)
	for i := range out {
		out[i] = model.Track{
			ID:       fmt.Sprintf("t%d", i),
			Title:    fmt.Sprintf("Track %d", i),
			AudioURL: fmt.Sprintf("https://cdn.example/t%d.mp3", i),
			Duration: 180,
		}
	}
	return out
}

func TestQueueSequentialAdvance(t *testing.T) {
	q := NewQueue()
	q.Set(makeTracks(3), 0)

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "t1", next.ID)

	next, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, "t2", next.ID)

	// Exhausted with repeat off: stop, pointer stays at the end.
	_, ok = q.Next()
	assert.False(t, ok)
	current, _ := q.Current()
	assert.Equal(t, "t2", current.ID)
}

func TestQueueRepeatAllWraps(t *testing.T) {
	q := NewQueue()
	q.Set(makeTracks(3), 2)
	q.SetRepeatMode(model.RepeatAll)

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "t0", next.ID, "repeat-all wraps to the head")
}

func TestQueueRepeatOneStaysPut(t *testing.T) {
	q := NewQueue()
	q.Set(makeTracks(3), 1)
	q.SetRepeatMode(model.RepeatOne)

	for i := 0; i < 3; i++ {
		next, ok := q.Next()
		require.True(t, ok)
		assert.Equal(t, "t1", next.ID)
	}
	assert.Equal(t, 1, q.Position(), "pointer never moves under repeat-one")
	assert.Zero(t, q.HistoryDepth(), "replays are not pushed to history")
}

func TestShufflePlaysEveryTrackOnce(t *testing.T) {
	tracks := makeTracks(8)
	q := NewQueue()
	q.Set(tracks, 0)
	q.SetShuffle(true)

	seen := map[string]bool{}
	current, ok := q.Current()
	require.True(t, ok)
	seen[current.ID] = true

	for {
		next, ok := q.Next()
		if !ok {
			break
		}
		assert.False(t, seen[next.ID], "no repeats before the pass completes")
		seen[next.ID] = true
	}
	assert.Len(t, seen, len(tracks), "every track plays exactly once per pass")
}

func TestShuffleRepeatAllAvoidsImmediateRepeat(t *testing.T) {
	q := NewQueue()
	q.Set(makeTracks(5), 0)
	q.SetShuffle(true)
	q.SetRepeatMode(model.RepeatAll)

	prev, _ := q.Current()
	for i := 0; i < 50; i++ {
		next, ok := q.Next()
		require.True(t, ok)
		assert.NotEqual(t, prev.ID, next.ID, "wrap never replays the track that just ended")
		prev = next
	}
}

func TestQueuePointerPrevious(t *testing.T) {
	q := NewQueue()
	q.Set(makeTracks(3), 0)
	strategy := QueuePointerPrevious{}

	q.Next()
	q.Next()
	require.Equal(t, 2, q.Position())

	prev, ok := strategy.Previous(q)
	require.True(t, ok)
	assert.Equal(t, "t1", prev.ID)

	strategy.Previous(q)
	// At the head the pointer stays put.
	prev, ok = strategy.Previous(q)
	require.True(t, ok)
	assert.Equal(t, "t0", prev.ID)
	assert.Equal(t, 0, q.Position())
}

func TestHistoryStackPrevious(t *testing.T) {
	q := NewQueue()
	q.Set(makeTracks(3), 0)
	strategy := HistoryStackPrevious{}

	q.Next() // history: t0
	q.Next() // history: t0, t1

	prev, ok := strategy.Previous(q)
	require.True(t, ok)
	assert.Equal(t, "t1", prev.ID)
	assert.Equal(t, 1, q.Position())

	prev, ok = strategy.Previous(q)
	require.True(t, ok)
	assert.Equal(t, "t0", prev.ID)

	// Empty history: stay on the current track.
	prev, ok = strategy.Previous(q)
	require.True(t, ok)
	assert.Equal(t, "t0", prev.ID)
}

func TestHistoryIsBounded(t *testing.T) {
	q := NewQueue()
	q.Set(makeTracks(3), 0)
	q.SetRepeatMode(model.RepeatAll)

	for i := 0; i < historyLimit*3; i++ {
		_, ok := q.Next()
		require.True(t, ok)
	}
	assert.Equal(t, historyLimit, q.HistoryDepth())
}

func TestQueueSetClampsStartIndex(t *testing.T) {
	q := NewQueue()
	q.Set(makeTracks(3), 99)
	assert.Equal(t, 0, q.Position())

	q.Set(nil, 0)
	_, ok := q.Current()
	assert.False(t, ok)
	_, ok = q.Next()
	assert.False(t, ok)
}
