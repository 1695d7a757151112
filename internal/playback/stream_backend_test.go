package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moosync/moosyncd/internal/models"
)

func TestStreamBackend_CanPlay_OnlyHTTPSchemes(t *testing.T) {
	b := NewStreamBackend()
	defer b.Close()

	assert.True(t, b.CanPlay(models.Song{PlaybackURL: "https://example.com/stream.mp3"}))
	assert.True(t, b.CanPlay(models.Song{PlaybackURL: "http://example.com/stream.mp3"}))
	assert.False(t, b.CanPlay(models.Song{Type: models.SongTypeLocal, PlaybackURL: "file:///a.flac"}))
}

func TestStreamBackend_NameIsDistinctFromLocal(t *testing.T) {
	b := NewStreamBackend()
	defer b.Close()
	assert.Equal(t, "stream", b.Name())
}

func TestStreamBackend_Provides(t *testing.T) {
	b := NewStreamBackend()
	defer b.Close()
	provides := b.Provides()
	assert.Contains(t, provides, models.SongTypeURL)
	assert.Contains(t, provides, models.SongTypeStream)
	assert.Contains(t, provides, models.SongTypeDash)
	assert.Contains(t, provides, models.SongTypeHLS)
}
