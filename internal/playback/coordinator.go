package playback

import (
	"context"
	"sync"
	"time"

	"github.com/moosync/moosyncd/internal/eventbus"
	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/logger"
	"github.com/moosync/moosyncd/internal/models"
	"github.com/moosync/moosyncd/internal/providers"
)

// State is a PlaybackCoordinator state (§4.9): Idle -> Loading -> Playing
// <-> Paused -> Ended/Error -> Idle.
type State string

const (
	StateIdle    State = "Idle"
	StateLoading State = "Loading"
	StatePlaying State = "Playing"
	StatePaused  State = "Paused"
	StateEnded   State = "Ended"
	StateError   State = "Error"
)

const simulatedTickInterval = 1 * time.Second

// Coordinator is the playback state machine. It resolves a song's owning
// adapter, asks for a playback url, picks a backend by fixed priority
// (Librespot -> Local -> Stream), and drives loading/playback, publishing
// state/time/song events to EventBus.
type Coordinator struct {
	registry *providers.Registry
	bus      *eventbus.Bus
	backends []Backend

	mu         sync.Mutex
	state      State
	epoch      int
	active     Backend
	volume     int
	simTimer   *time.Ticker
	simStop    chan struct{}
	simElapsed float64
}

// NewCoordinator wires the fixed backend priority order: Librespot (only
// selected for SongTypeSpotify), then Local (file paths), then Stream
// (HTTP/HTTPS), matching §4.9's "first whose can_play(song) predicate
// holds, in a fixed priority order". librespot is nil when Spotify is not
// configured (§9), so a Spotify-typed song falls through to MediaError
// instead of being routed to an unusable backend -- a nil *LibrespotBackend
// must be dropped here rather than stored as a typed-nil Backend, since a
// typed-nil interface value still compares non-nil to selectBackend.
func NewCoordinator(registry *providers.Registry, bus *eventbus.Bus, librespot *LibrespotBackend, local *LocalBackend, stream *StreamBackend) *Coordinator {
	var backends []Backend
	if librespot != nil {
		backends = append(backends, librespot)
	}
	backends = append(backends, local, stream)
	return &Coordinator{
		registry: registry,
		bus:      bus,
		backends: backends,
		state:    StateIdle,
		volume:   100,
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.bus.Publish(eventbus.TopicPlayerState, s)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load resolves the owning adapter, fetches a playback url (re-resolving
// once if the adapter hands back an opaque extension:// url), selects a
// backend, and loads it. Starting a new load increments the epoch,
// cancelling the previous load's in-flight follow-up (§5 cancellation).
func (c *Coordinator) Load(ctx context.Context, song models.Song, autoplay bool) error {
	c.mu.Lock()
	c.epoch++
	myEpoch := c.epoch
	c.mu.Unlock()

	c.setState(StateLoading)
	c.bus.Publish(eventbus.TopicPlayerSong, song)

	key, ok := c.registry.KeyByID(song.ID)
	if !ok {
		c.fail(moosyncerrors.ProviderError("", "no provider owns id "+song.ID))
		return moosyncerrors.ProviderError("", "no provider owns id "+song.ID)
	}

	url, err := c.resolvePlaybackURL(ctx, key, song)
	if err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	if myEpoch != c.epoch {
		c.mu.Unlock()
		return nil // superseded by a newer Load before we finished resolving
	}
	c.mu.Unlock()

	backend := c.selectBackend(song)
	if backend == nil {
		err := moosyncerrors.MediaError("no backend can play song type " + string(song.Type))
		c.fail(err)
		return err
	}

	c.switchActive(backend)

	if local, ok2 := backend.(*LocalBackend); ok2 {
		local.SetDuration(song.DurationSeconds)
	}
	if stream, ok2 := backend.(*StreamBackend); ok2 {
		stream.SetDuration(song.DurationSeconds)
	}

	backend.Load(url, autoplay)
	return nil
}

// resolvePlaybackURL asks the adapter for a playback url; an
// `extension://` scheme signals the adapter deferred url minting, so it is
// re-queried once via the same operation (§4.9 step 2).
func (c *Coordinator) resolvePlaybackURL(ctx context.Context, key string, song models.Song) (string, error) {
	return c.registry.GetPlaybackURL(ctx, key, song, c.preferredBackendName())
}

func (c *Coordinator) preferredBackendName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return c.active.Name()
	}
	return ""
}

func (c *Coordinator) selectBackend(song models.Song) Backend {
	for _, b := range c.backends {
		if b != nil && b.CanPlay(song) {
			return b
		}
	}
	return nil
}

// switchActive enforces backend exclusivity: at most one backend is active;
// switching sends stop to the previous one before the new backend loads.
func (c *Coordinator) switchActive(next Backend) {
	c.mu.Lock()
	prev := c.active
	c.active = next
	c.mu.Unlock()

	if prev != nil && prev != next {
		prev.Stop()
	}

	go c.drainEvents(next)
}

func (c *Coordinator) drainEvents(backend Backend) {
	for ev := range backend.Subscribe() {
		c.mu.Lock()
		isActive := c.active == backend
		c.mu.Unlock()
		if !isActive {
			continue
		}
		c.handleEvent(backend, ev)
	}
}

func (c *Coordinator) handleEvent(backend Backend, ev Event) {
	switch ev.Kind {
	case EventLoading:
		c.setState(StateLoading)
		c.stopSimTimer()
	case EventPlay:
		c.setState(StatePlaying)
		if !backend.EmitsTimeUpdates() {
			c.startSimTimer()
		}
	case EventPause:
		c.setState(StatePaused)
		c.stopSimTimer()
	case EventTimeUpdate:
		c.bus.Publish(eventbus.TopicPlayerTime, ev.TimeSeconds)
	case EventEnded:
		c.stopSimTimer()
		c.setState(StateEnded)
	case EventError:
		c.stopSimTimer()
		logger.Playback().Error().Str("backend", backend.Name()).Str("msg", ev.ErrorMessage).Msg("backend reported error")
		c.setState(StateError)
		c.setState(StateIdle)
	}
}

// startSimTimer runs the 1-second simulated time-update loop for backends
// that cannot emit granular progress themselves (§4.9).
func (c *Coordinator) startSimTimer() {
	c.mu.Lock()
	if c.simTimer != nil {
		c.mu.Unlock()
		return
	}
	c.simTimer = time.NewTicker(simulatedTickInterval)
	c.simStop = make(chan struct{})
	ticker := c.simTimer
	stop := c.simStop
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				c.simElapsed += simulatedTickInterval.Seconds()
				elapsed := c.simElapsed
				c.mu.Unlock()
				c.bus.Publish(eventbus.TopicPlayerTime, elapsed)
			case <-stop:
				return
			}
		}
	}()
}

func (c *Coordinator) stopSimTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.simTimer != nil {
		c.simTimer.Stop()
		close(c.simStop)
		c.simTimer = nil
		c.simStop = nil
	}
}

// Seek resets the simulated timer baseline in addition to forwarding to the
// active backend (§4.9 "seek resets the timer baseline").
func (c *Coordinator) Seek(seconds float64) {
	c.mu.Lock()
	c.simElapsed = seconds
	backend := c.active
	c.mu.Unlock()
	if backend != nil {
		backend.Seek(seconds)
	}
}

func (c *Coordinator) Play() {
	c.mu.Lock()
	backend := c.active
	c.mu.Unlock()
	if backend != nil {
		backend.Play()
	}
}

func (c *Coordinator) Pause() {
	c.mu.Lock()
	backend := c.active
	c.mu.Unlock()
	if backend != nil {
		backend.Pause()
	}
}

func (c *Coordinator) Stop() {
	c.mu.Lock()
	backend := c.active
	c.mu.Unlock()
	if backend != nil {
		backend.Stop()
	}
	c.stopSimTimer()
	c.setState(StateIdle)
}

func (c *Coordinator) SetVolume(v int) {
	c.mu.Lock()
	c.volume = v
	backend := c.active
	c.mu.Unlock()
	if backend != nil {
		backend.SetVolume(v)
	}
}

func (c *Coordinator) GetVolume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// GetTime returns the coordinator's own notion of playback position, used by
// HostCallRouter's GetTime fallback when no UI is attached to round-trip to.
func (c *Coordinator) GetTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simElapsed
}

func (c *Coordinator) fail(err error) {
	logger.Playback().Error().Err(err).Msg("load failed")
	c.bus.Publish(eventbus.TopicPlayerState, StateError)
	c.setState(StateIdle)
}
