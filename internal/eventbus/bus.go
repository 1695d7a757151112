// Package eventbus implements EventBus: topic-based fan-out of player,
// library, queue, and provider-status events to the UI, scrobble
// dispatcher, and any plugin that declared a matching scope.
//
// Delivery is at-most-once. Per §4.12, `player.time` is lossy under
// backpressure (coalesce to latest); every other topic is lossless up to a
// bounded buffer, after which each new event for a slow subscriber is
// dropped with a logged warning; the subscriber itself stays registered and
// is never disconnected. This mirrors the teacher's websocket hub: a bounded per-client
// send channel with a non-blocking write and a drop-on-full policy,
// generalized from per-client delivery to per-topic delivery.
package eventbus

import (
	"sync"

	"github.com/moosync/moosyncd/internal/logger"
)

// Topic names (§4.12).
const (
	TopicPlayerState      = "player.state"
	TopicPlayerTime       = "player.time"
	TopicPlayerSong       = "player.song"
	TopicQueueChanged     = "queue.changed"
	TopicLibrarySong      = "library.song"
	TopicLibraryPlaylist  = "library.playlist"
	TopicProviderStatus   = "provider.status"
)

const subscriberBuffer = 32

// Subscription is a live handle returned by Subscribe; call Close to stop
// receiving and release the channel.
type Subscription struct {
	ID      uint64
	Topic   string
	ch      chan any
	bus     *Bus
}

// C returns the channel events are delivered on.
func (s *Subscription) C() <-chan any { return s.ch }

// Close unsubscribes and drains nothing further.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.Topic, s.ID)
}

type subscriber struct {
	id   uint64
	ch   chan any
	kind string // "ui", "scrobbler", "extension:<pkg>"
}

// Bus is the in-process fan-out hub. One Bus per process.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]subscriber
	nextID      uint64

	remote *remoteBridge
}

func New() *Bus {
	return &Bus{subscribers: make(map[string][]subscriber)}
}

// Subscribe registers a new listener for topic, identified by kind for logging.
func (b *Bus) Subscribe(topic, kind string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := subscriber{id: id, ch: make(chan any, subscriberBuffer), kind: kind}
	b.subscribers[topic] = append(b.subscribers[topic], sub)

	return &Subscription{ID: id, Topic: topic, ch: sub.ch, bus: b}
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, s := range subs {
		if s.id == id {
			close(s.ch)
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish fans event out to every subscriber of topic, in publish order per
// subscriber. `player.time` uses coalesce-to-latest (drains every stale pending
// value before enqueuing); every other topic drops a subscriber's *new*
// event (not kicking the subscriber) when its buffer is full, logging a
// warning -- the subscriber stays registered and simply misses that event,
// matching "lossless... slow subscribers are dropped" read as per-event drop
// rather than a full disconnect, so a momentarily slow scrobbler does not
// lose its subscription permanently.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		if topic == TopicPlayerTime {
			coalesceSend(s.ch, payload)
			continue
		}
		select {
		case s.ch <- payload:
		default:
			logger.EventBus().Warn().Str("topic", topic).Str("subscriber", s.kind).Msg("dropping event for slow subscriber")
		}
	}

	if b.remote != nil {
		b.remote.publish(topic, payload)
	}
}

// coalesceSend drops every stale buffered value before sending the latest,
// implementing "coalesce to latest" for a bounded channel.
func coalesceSend(ch chan any, payload any) {
	for {
		select {
		case <-ch:
			continue
		default:
		}
		select {
		case ch <- payload:
			return
		default:
		}
	}
}
