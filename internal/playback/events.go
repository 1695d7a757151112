// Package playback implements PlaybackCoordinator, the PlaybackBackend
// contract plus its three implementations, and QueueManager. The backend
// worker shape (a command channel drained by one goroutine, emitting events
// onto a subscriber channel) is grounded directly in
// original_source/core/rodio_player/src/lib.rs's RodioPlayer.
package playback

// EventKind enumerates PlayerEvent variants (§4.9).
type EventKind string

const (
	EventPlay       EventKind = "Play"
	EventPause      EventKind = "Pause"
	EventLoading    EventKind = "Loading"
	EventTimeUpdate EventKind = "TimeUpdate"
	EventEnded      EventKind = "Ended"
	EventError      EventKind = "Error"
)

// Event is the tagged union a PlaybackBackend emits onto its subscriber
// channel. Only the field matching Kind is meaningful.
type Event struct {
	Kind         EventKind
	TimeSeconds  float64
	ErrorMessage string
}
