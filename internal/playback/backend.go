package playback

import "github.com/moosync/moosyncd/internal/models"

// Backend is the PlaybackBackend contract (§4.10). Implementations run
// their own worker goroutine; calls from PlaybackCoordinator are
// fire-and-forget commands consumed strictly in send order. Stop MUST be
// idempotent and clear any pending frames.
type Backend interface {
	Name() string
	Initialize() error
	Load(src string, autoplay bool)
	Play()
	Pause()
	Stop()
	Seek(seconds float64)
	SetVolume(volume int)
	GetVolume() int
	Provides() []models.SongType
	CanPlay(song models.Song) bool
	Subscribe() <-chan Event
	Close()

	// EmitsTimeUpdates reports whether this backend itself publishes
	// TimeUpdate events with real granularity. Backends that can't (e.g.
	// a Spotify Connect backend) return false, and PlaybackCoordinator
	// runs a 1-second simulated timer instead (§4.9).
	EmitsTimeUpdates() bool
}
