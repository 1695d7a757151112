package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicPlayerState, "ui")
	defer sub.Close()

	b.Publish(TopicPlayerState, "Playing")

	select {
	case v := <-sub.C():
		assert.Equal(t, "Playing", v)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestBus_PublishToDifferentTopicIsNotDelivered(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicPlayerState, "ui")
	defer sub.Close()

	b.Publish(TopicQueueChanged, "queue update")

	select {
	case v := <-sub.C():
		t.Fatalf("unexpected delivery on wrong topic: %v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_MultipleSubscribersAllReceive(t *testing.T) {
	b := New()
	subA := b.Subscribe(TopicLibrarySong, "a")
	subB := b.Subscribe(TopicLibrarySong, "b")
	defer subA.Close()
	defer subB.Close()

	b.Publish(TopicLibrarySong, 42)

	for _, sub := range []*Subscription{subA, subB} {
		select {
		case v := <-sub.C():
			assert.Equal(t, 42, v)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBus_CloseStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicPlayerState, "ui")
	sub.Close()

	// Publishing after close must not panic and must not deliver anything,
	// since the channel is already removed from the subscriber list.
	require.NotPanics(t, func() { b.Publish(TopicPlayerState, "Idle") })
}

func TestBus_PlayerTimeCoalescesToLatest(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicPlayerTime, "ui")
	defer sub.Close()

	// Publish far more than the buffer size in rapid succession; coalescing
	// means the subscriber should only ever see the most recent value once
	// it finally reads, never block the publisher.
	for i := 0; i < subscriberBuffer*4; i++ {
		b.Publish(TopicPlayerTime, float64(i))
	}

	select {
	case v := <-sub.C():
		assert.Equal(t, float64(subscriberBuffer*4-1), v)
	case <-time.After(time.Second):
		t.Fatal("expected coalesced value was not delivered")
	}
}

func TestBus_NonTimeTopicDropsNewEventWhenBufferFull(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicQueueChanged, "ui")
	defer sub.Close()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(TopicQueueChanged, i)
	}

	// The buffer holds the first subscriberBuffer values; later publishes
	// are dropped rather than overwriting, so draining should yield the
	// earliest values in order, not the latest ones.
	first, ok := <-sub.C()
	require.True(t, ok)
	assert.Equal(t, 0, first)
}
