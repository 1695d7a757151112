package playback

import (
	"sync"

	"github.com/moosync/moosyncd/internal/logger"
	"github.com/moosync/moosyncd/internal/models"
)

type librespotCommandKind int

const (
	librespotCmdLoad librespotCommandKind = iota
	librespotCmdPlay
	librespotCmdPause
	librespotCmdStop
	librespotCmdSeek
	librespotCmdVolume
)

type librespotCommand struct {
	kind   librespotCommandKind
	src    string
	auto   bool
	volume int
}

// LibrespotBackend models a Spotify Connect session's command/event shape,
// grounded in original_source/core/librespot/src/spirc.rs's SpircWrapper
// (Message{Play,Pause,Load,Seek,Volume,...} over a worker channel paired
// with a PlayerEvent receiver). It does not itself decode audio -- playback
// actually happens on whatever device the Spotify Connect session targets
// -- so it reports no granular time updates; PlaybackCoordinator runs a
// simulated 1-second timer while this backend is active.
type LibrespotBackend struct {
	cmds   chan librespotCommand
	events chan Event

	mu      sync.Mutex
	volume  int
	loaded  bool
}

func NewLibrespotBackend() *LibrespotBackend {
	b := &LibrespotBackend{
		cmds:   make(chan librespotCommand, 16),
		events: make(chan Event, 16),
		volume: 100,
	}
	go b.run()
	return b
}

func (b *LibrespotBackend) Name() string { return "librespot" }

func (b *LibrespotBackend) Initialize() error { return nil }

func (b *LibrespotBackend) Load(src string, autoplay bool) {
	b.cmds <- librespotCommand{kind: librespotCmdLoad, src: src, auto: autoplay}
}
func (b *LibrespotBackend) Play()  { b.cmds <- librespotCommand{kind: librespotCmdPlay} }
func (b *LibrespotBackend) Pause() { b.cmds <- librespotCommand{kind: librespotCmdPause} }
func (b *LibrespotBackend) Stop()  { b.cmds <- librespotCommand{kind: librespotCmdStop} }
func (b *LibrespotBackend) Seek(seconds float64) {
	b.cmds <- librespotCommand{kind: librespotCmdSeek}
}
func (b *LibrespotBackend) SetVolume(volume int) {
	b.cmds <- librespotCommand{kind: librespotCmdVolume, volume: volume}
}

func (b *LibrespotBackend) GetVolume() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

func (b *LibrespotBackend) Provides() []models.SongType {
	return []models.SongType{models.SongTypeSpotify}
}

func (b *LibrespotBackend) CanPlay(song models.Song) bool {
	return song.Type == models.SongTypeSpotify
}

func (b *LibrespotBackend) Subscribe() <-chan Event { return b.events }

func (b *LibrespotBackend) EmitsTimeUpdates() bool { return false }

func (b *LibrespotBackend) Close() { close(b.cmds) }

func (b *LibrespotBackend) send(e Event) {
	select {
	case b.events <- e:
	default:
		logger.Playback().Warn().Str("backend", "librespot").Msg("dropping player event, subscriber buffer full")
	}
}

func (b *LibrespotBackend) run() {
	for cmd := range b.cmds {
		switch cmd.kind {
		case librespotCmdLoad:
			b.send(Event{Kind: EventLoading})
			b.mu.Lock()
			b.loaded = true
			b.mu.Unlock()
			if cmd.auto {
				b.send(Event{Kind: EventPlay})
			}
		case librespotCmdPlay:
			b.send(Event{Kind: EventPlay})
		case librespotCmdPause:
			b.send(Event{Kind: EventPause})
		case librespotCmdStop:
			b.mu.Lock()
			b.loaded = false
			b.mu.Unlock()
			b.send(Event{Kind: EventPause})
		case librespotCmdSeek:
			// Seeking a remote Connect session has no local time to report;
			// the next TimeUpdate a UI sees is the coordinator's simulated one.
		case librespotCmdVolume:
			b.mu.Lock()
			b.volume = cmd.volume
			b.mu.Unlock()
		}
	}
}
