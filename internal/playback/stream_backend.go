package playback

import (
	"strings"

	"github.com/moosync/moosyncd/internal/models"
)

// StreamBackend wraps a download-while-playing HTTP(S) source into the same
// worker shape as LocalBackend ("wraps a download-while-playing stream into
// the local decoder", §4.9) -- it IS a LocalBackend underneath, just with a
// different CanPlay/Provides declaration so PlaybackCoordinator's priority
// ordering picks it for remote URLs rather than bare file paths.
type StreamBackend struct {
	*LocalBackend
}

func NewStreamBackend() *StreamBackend {
	return &StreamBackend{LocalBackend: NewLocalBackend()}
}

func (b *StreamBackend) Name() string { return "stream" }

func (b *StreamBackend) Provides() []models.SongType {
	return []models.SongType{models.SongTypeURL, models.SongTypeStream, models.SongTypeDash, models.SongTypeHLS}
}

func (b *StreamBackend) CanPlay(song models.Song) bool {
	return strings.HasPrefix(song.PlaybackURL, "http://") || strings.HasPrefix(song.PlaybackURL, "https://")
}
