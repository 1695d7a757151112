package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moosync/moosyncd/internal/eventbus"
	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/models"
	"github.com/moosync/moosyncd/internal/providers"
)

// fakeBackend is a minimal Backend double whose CanPlay matches a single
// declared SongType, driven entirely by test-pushed events rather than a
// real media library.
type fakeBackend struct {
	name     string
	provides models.SongType
	events   chan Event
	loaded   string
	stopped  bool
	emitsTU  bool
}

func newFakeBackend(name string, provides models.SongType) *fakeBackend {
	return &fakeBackend{name: name, provides: provides, events: make(chan Event, 8)}
}

func (f *fakeBackend) Name() string                       { return f.name }
func (f *fakeBackend) Initialize() error                  { return nil }
func (f *fakeBackend) Load(src string, autoplay bool)     { f.loaded = src }
func (f *fakeBackend) Play()                              {}
func (f *fakeBackend) Pause()                             {}
func (f *fakeBackend) Stop()                              { f.stopped = true }
func (f *fakeBackend) Seek(seconds float64)                {}
func (f *fakeBackend) SetVolume(volume int)                {}
func (f *fakeBackend) GetVolume() int                      { return 100 }
func (f *fakeBackend) Provides() []models.SongType         { return []models.SongType{f.provides} }
func (f *fakeBackend) CanPlay(song models.Song) bool       { return song.Type == f.provides }
func (f *fakeBackend) Subscribe() <-chan Event             { return f.events }
func (f *fakeBackend) Close()                              { close(f.events) }
func (f *fakeBackend) EmitsTimeUpdates() bool               { return f.emitsTU }

func newTestRegistry() (*providers.Registry, *fakeAdapterForCoordinator) {
	registry := providers.NewRegistry(eventbus.New(), nil)
	adapter := &fakeAdapterForCoordinator{}
	adapter.BaseAdapter = providers.NewBaseAdapter("local", "local", models.ScopePlaybackDetails)
	registry.Register(adapter)
	return registry, adapter
}

type fakeAdapterForCoordinator struct {
	providers.BaseAdapter
	url string
}

func (a *fakeAdapterForCoordinator) GetPlaybackURL(ctx context.Context, song models.Song, preferredBackend string) (string, error) {
	return a.url, nil
}

func waitForState(t *testing.T, c *Coordinator, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("coordinator did not reach state %q, stuck at %q", want, c.State())
}

func TestCoordinator_Load_SelectsBackendByPriorityAndLoads(t *testing.T) {
	registry, adapter := newTestRegistry()
	adapter.url = "file:///music/a.flac"
	local := newFakeBackend("local", models.SongTypeLocal)

	c := &Coordinator{
		registry: registry,
		bus:      eventbus.New(),
		backends: []Backend{local},
		state:    StateIdle,
		volume:   100,
	}

	err := c.Load(context.Background(), models.Song{ID: "local:song-1", Type: models.SongTypeLocal}, true)
	require.NoError(t, err)
	assert.Equal(t, "file:///music/a.flac", local.loaded)
}

func TestCoordinator_Load_NoMatchingBackendFails(t *testing.T) {
	registry, adapter := newTestRegistry()
	adapter.url = "https://example.com/stream"
	local := newFakeBackend("local", models.SongTypeLocal)

	c := &Coordinator{
		registry: registry,
		bus:      eventbus.New(),
		backends: []Backend{local},
		state:    StateIdle,
		volume:   100,
	}

	err := c.Load(context.Background(), models.Song{ID: "local:song-1", Type: models.SongTypeStream}, true)
	require.Error(t, err)
	waitForState(t, c, StateIdle)
}

func TestCoordinator_Load_UnknownProviderFails(t *testing.T) {
	registry := providers.NewRegistry(eventbus.New(), nil)
	c := &Coordinator{
		registry: registry,
		bus:      eventbus.New(),
		state:    StateIdle,
		volume:   100,
	}

	err := c.Load(context.Background(), models.Song{ID: "unknown:song-1", Type: models.SongTypeLocal}, true)
	assert.Error(t, err)
}

func TestCoordinator_SwitchActive_StopsPreviousBackend(t *testing.T) {
	registry, adapter := newTestRegistry()
	adapter.url = "file:///a.flac"
	local := newFakeBackend("local", models.SongTypeLocal)
	stream := newFakeBackend("stream", models.SongTypeStream)

	c := &Coordinator{
		registry: registry,
		bus:      eventbus.New(),
		backends: []Backend{local, stream},
		state:    StateIdle,
		volume:   100,
	}

	require.NoError(t, c.Load(context.Background(), models.Song{ID: "local:1", Type: models.SongTypeLocal}, true))

	adapter.url = "https://example.com/s"
	require.NoError(t, c.Load(context.Background(), models.Song{ID: "local:2", Type: models.SongTypeStream}, true))

	assert.True(t, local.stopped)
}

func TestCoordinator_HandleEvent_PlayThenPauseTransitions(t *testing.T) {
	registry, adapter := newTestRegistry()
	adapter.url = "file:///a.flac"
	local := newFakeBackend("local", models.SongTypeLocal)
	local.emitsTU = true

	c := NewCoordinator(registry, eventbus.New(), nil, nil, nil)
	c.backends = []Backend{local}

	require.NoError(t, c.Load(context.Background(), models.Song{ID: "local:1", Type: models.SongTypeLocal}, true))
	local.events <- Event{Kind: EventPlay}
	waitForState(t, c, StatePlaying)

	local.events <- Event{Kind: EventPause}
	waitForState(t, c, StatePaused)
}

func TestCoordinator_VolumeGetSet(t *testing.T) {
	c := NewCoordinator(nil, eventbus.New(), nil, nil, nil)
	c.SetVolume(42)
	assert.Equal(t, 42, c.GetVolume())
}

// TestCoordinator_Load_SpotifySongWithoutLibrespotIsMediaError exercises
// scenario 3: when Spotify is not configured, librespot is nil, and a
// Spotify-typed song must fail with MediaError instead of reaching a
// backend that cannot play it.
func TestCoordinator_Load_SpotifySongWithoutLibrespotIsMediaError(t *testing.T) {
	registry, adapter := newTestRegistry()
	adapter.url = "spotify:track:xyz"

	c := NewCoordinator(registry, eventbus.New(), nil, NewLocalBackend(), nil)

	err := c.Load(context.Background(), models.Song{ID: "local:1", Type: models.SongTypeSpotify}, true)
	require.Error(t, err)
	assert.True(t, moosyncerrors.Is(err, moosyncerrors.KindMedia))
}
