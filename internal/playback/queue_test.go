package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moosync/moosyncd/internal/models"
)

func songs(n int) []models.Song {
	out := make([]models.Song, n)
	for i := range out {
		out[i] = models.Song{ID: string(rune('a' + i))}
	}
	return out
}

func TestQueue_PlayNow(t *testing.T) {
	q := NewQueue(nil)
	q.PlayNow(songs(3))

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.ID)
	assert.True(t, q.Snapshot().Valid())
}

func TestQueue_EmptyHasNoCurrentIndex(t *testing.T) {
	q := NewQueue(nil)
	assert.True(t, q.Snapshot().Valid())
	_, ok := q.Current()
	assert.False(t, ok)
}

func TestQueue_PlayNext_InsertsAfterCurrent(t *testing.T) {
	q := NewQueue(nil)
	q.PlayNow(songs(2)) // a, b ; current = a
	q.PlayNext([]models.Song{{ID: "x"}})

	snap := q.Snapshot()
	ids := []string{snap.Songs[0].ID, snap.Songs[1].ID, snap.Songs[2].ID}
	assert.Equal(t, []string{"a", "x", "b"}, ids)
}

func TestQueue_Next_RepeatNone_StopsAtEnd(t *testing.T) {
	q := NewQueue(nil)
	q.PlayNow(songs(2))

	_, ok := q.Next()
	require.True(t, ok)

	_, ok = q.Next()
	assert.False(t, ok, "repeat=None must not advance past the last song")
}

func TestQueue_Next_RepeatAll_Wraps(t *testing.T) {
	q := NewQueue(nil)
	q.PlayNow(songs(2))
	q.SetRepeat(models.RepeatAll)

	_, ok := q.Next()
	require.True(t, ok)

	wrapped, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "a", wrapped.ID)
}

func TestQueue_Next_RepeatOne_ReplaysCurrent(t *testing.T) {
	q := NewQueue(nil)
	q.PlayNow(songs(2))
	q.SetRepeat(models.RepeatOne)

	first, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "a", first.ID)

	second, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "a", second.ID)
}

func TestQueue_Prev_AtStart_NoOpWithoutRepeatAll(t *testing.T) {
	q := NewQueue(nil)
	q.PlayNow(songs(2))

	song, ok := q.Prev()
	assert.False(t, ok)
	assert.Equal(t, "a", song.ID)
}

func TestQueue_Prev_AtStart_WrapsWithRepeatAll(t *testing.T) {
	q := NewQueue(nil)
	q.PlayNow(songs(2))
	q.SetRepeat(models.RepeatAll)

	song, ok := q.Prev()
	require.True(t, ok)
	assert.Equal(t, "b", song.ID)
}

func TestQueue_Goto_OutOfRange(t *testing.T) {
	q := NewQueue(nil)
	q.PlayNow(songs(2))

	_, ok := q.Goto(5)
	assert.False(t, ok)

	_, ok = q.Goto(1)
	assert.True(t, ok)
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue(nil)
	q.PlayNow(songs(2))
	q.Clear()

	assert.True(t, q.Snapshot().Valid())
	_, ok := q.Current()
	assert.False(t, ok)
}
