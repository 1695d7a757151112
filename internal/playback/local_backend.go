package playback

import (
	"strings"
	"sync"
	"time"

	"github.com/moosync/moosyncd/internal/logger"
	"github.com/moosync/moosyncd/internal/models"
)

type localCommandKind int

const (
	cmdSetSrc localCommandKind = iota
	cmdPlay
	cmdPause
	cmdStop
	cmdSeek
	cmdVolume
)

type localCommand struct {
	kind    localCommandKind
	src     string
	seconds float64
	volume  int
}

// LocalBackend plays `file://` paths. It has no real decoder available in
// this environment, so playback progress is simulated by a "sleep until
// end" timer keyed on the song's known duration, the same generation-guard
// shape RodioPlayer uses to decide whether a still-pending Ended event
// belongs to the currently loaded source.
type LocalBackend struct {
	cmds   chan localCommand
	events chan Event

	mu         sync.Mutex
	duration   float64
	volume     int
	generation int
	playing    bool
	elapsed    float64
	lastTick   time.Time
	stopTimer  func()
}

func NewLocalBackend() *LocalBackend {
	b := &LocalBackend{
		cmds:   make(chan localCommand, 16),
		events: make(chan Event, 16),
		volume: 100,
	}
	go b.run()
	return b
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Initialize() error { return nil }

// SetDuration hints the known track length so Stop/Ended timing can be
// simulated; the coordinator calls this right before Load using the song's
// metadata duration.
func (b *LocalBackend) SetDuration(seconds float64) {
	b.mu.Lock()
	b.duration = seconds
	b.mu.Unlock()
}

func (b *LocalBackend) Load(src string, autoplay bool) {
	b.cmds <- localCommand{kind: cmdSetSrc, src: src}
	if autoplay {
		b.cmds <- localCommand{kind: cmdPlay}
	}
}

func (b *LocalBackend) Play()                       { b.cmds <- localCommand{kind: cmdPlay} }
func (b *LocalBackend) Pause()                      { b.cmds <- localCommand{kind: cmdPause} }
func (b *LocalBackend) Stop()                       { b.cmds <- localCommand{kind: cmdStop} }
func (b *LocalBackend) Seek(seconds float64)        { b.cmds <- localCommand{kind: cmdSeek, seconds: seconds} }
func (b *LocalBackend) SetVolume(volume int)         { b.cmds <- localCommand{kind: cmdVolume, volume: volume} }

func (b *LocalBackend) GetVolume() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

func (b *LocalBackend) Provides() []models.SongType { return []models.SongType{models.SongTypeLocal} }

func (b *LocalBackend) CanPlay(song models.Song) bool {
	return song.Type == models.SongTypeLocal || strings.HasPrefix(song.PlaybackURL, "file://")
}

func (b *LocalBackend) Subscribe() <-chan Event { return b.events }

func (b *LocalBackend) EmitsTimeUpdates() bool { return true }

func (b *LocalBackend) Close() {
	close(b.cmds)
}

func (b *LocalBackend) send(e Event) {
	select {
	case b.events <- e:
	default:
		logger.Playback().Warn().Str("backend", "local").Msg("dropping player event, subscriber buffer full")
	}
}

func (b *LocalBackend) run() {
	for cmd := range b.cmds {
		switch cmd.kind {
		case cmdSetSrc:
			b.mu.Lock()
			b.generation++
			gen := b.generation
			dur := b.duration
			b.elapsed = 0
			b.playing = false
			if b.stopTimer != nil {
				b.stopTimer()
				b.stopTimer = nil
			}
			b.mu.Unlock()

			b.send(Event{Kind: EventTimeUpdate, TimeSeconds: 0})
			b.send(Event{Kind: EventLoading})
			b.scheduleEnded(gen, dur)

		case cmdPlay:
			b.mu.Lock()
			b.playing = true
			b.lastTick = time.Now()
			b.mu.Unlock()
			b.send(Event{Kind: EventPlay})

		case cmdPause:
			b.mu.Lock()
			b.accumulateLocked()
			b.playing = false
			b.mu.Unlock()
			b.send(Event{Kind: EventPause})

		case cmdStop:
			b.mu.Lock()
			b.playing = false
			b.elapsed = 0
			b.generation++
			if b.stopTimer != nil {
				b.stopTimer()
				b.stopTimer = nil
			}
			b.mu.Unlock()
			b.send(Event{Kind: EventPause})

		case cmdSeek:
			b.mu.Lock()
			b.elapsed = cmd.seconds
			b.lastTick = time.Now()
			b.mu.Unlock()
			b.send(Event{Kind: EventTimeUpdate, TimeSeconds: cmd.seconds})

		case cmdVolume:
			b.mu.Lock()
			b.volume = cmd.volume
			b.mu.Unlock()
		}
	}
}

// accumulateLocked folds elapsed wall-clock time into b.elapsed; caller
// holds b.mu.
func (b *LocalBackend) accumulateLocked() {
	if b.playing {
		b.elapsed += time.Since(b.lastTick).Seconds()
	}
}

// scheduleEnded mirrors RodioPlayer's sink.sleep_until_end() thread: it only
// emits Ended if the source hasn't changed (same generation) by the time
// the duration elapses.
func (b *LocalBackend) scheduleEnded(generation int, duration float64) {
	if duration <= 0 {
		return
	}
	timer := time.AfterFunc(time.Duration(duration*float64(time.Second)), func() {
		b.mu.Lock()
		stillCurrent := b.generation == generation
		b.mu.Unlock()
		if stillCurrent {
			b.send(Event{Kind: EventEnded})
		}
	})
	b.mu.Lock()
	b.stopTimer = func() { timer.Stop() }
	b.mu.Unlock()
}
