package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBus(t *testing.T, cfg Config) *Bus {
	t.Helper()
	b := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)
	return b
}

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	b := startBus(t, Config{RingSize: 8})
	sub := b.Subscribe("s1", nil, "room1")

	b.Publish(Event{Seq: 1, Kind: "task_added", Room: "room1", Data: []byte(`{}`)})

	select {
	case e := <-sub.Events():
		assert.Equal(t, int64(1), e.Seq)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishSkipsNonMatchingRoomAndKind(t *testing.T) {
	b := startBus(t, Config{RingSize: 8})
	sub := b.Subscribe("s1", []string{"task_added"}, "room1")

	b.Publish(Event{Seq: 1, Kind: "task_added", Room: "room2", Data: []byte(`{}`)})
	b.Publish(Event{Seq: 2, Kind: "agent_joined", Room: "room1", Data: []byte(`{}`)})

	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected delivery: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSinceSeqReplaysBufferedEvents(t *testing.T) {
	b := startBus(t, Config{RingSize: 8})
	sub := b.Subscribe("s1", nil, "room1")

	for i := int64(1); i <= 3; i++ {
		b.Publish(Event{Seq: i, Kind: "k", Room: "room1", Data: []byte(`{}`)})
	}

	events, ok := sub.SinceSeq(1)
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, int64(3), events[1].Seq)
}

func TestSinceSeqReportsGapPastRingFloor(t *testing.T) {
	b := startBus(t, Config{RingSize: 2})
	sub := b.Subscribe("s1", nil, "room1")

	for i := int64(1); i <= 4; i++ {
		b.Publish(Event{Seq: i, Kind: "k", Room: "room1", Data: []byte(`{}`)})
	}
	// ring capacity 2 now holds only seq 3,4; seq 1 is long gone.
	_, ok := sub.SinceSeq(1)
	assert.False(t, ok)
}

func TestSinceSeqOnEmptyRingHasNoGap(t *testing.T) {
	b := startBus(t, Config{RingSize: 8})
	sub := b.Subscribe("s1", nil, "room1")

	events, ok := sub.SinceSeq(100)
	assert.True(t, ok)
	assert.Empty(t, events)
}

func TestPublishEmitsLagEventWhenRingEvicts(t *testing.T) {
	b := startBus(t, Config{RingSize: 2})
	sub := b.Subscribe("s1", nil, "room1")

	b.Publish(Event{Seq: 1, Kind: "k", Room: "room1", Data: []byte(`{}`)})
	b.Publish(Event{Seq: 2, Kind: "k", Room: "room1", Data: []byte(`{}`)})
	drainEvent(t, sub) // seq 1
	drainEvent(t, sub) // seq 2, ring now full (cap 2)

	// This publish evicts seq 1 from the ring: the still-connected
	// subscriber must be told it is lagging, not just find out on its
	// next reconnect.
	b.Publish(Event{Seq: 3, Kind: "k", Room: "room1", Data: []byte(`{}`)})

	e := drainEvent(t, sub)
	assert.Equal(t, int64(3), e.Seq)

	lag := drainEvent(t, sub)
	assert.Equal(t, "lag", lag.Kind)
	assert.Contains(t, string(lag.Data), `"floor_seq":2`)
}

func drainEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case e := <-sub.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("expected event not delivered")
		return Event{}
	}
}

func TestUnsubscribeClosesSubscriber(t *testing.T) {
	b := startBus(t, Config{RingSize: 8})
	sub := b.Subscribe("s1", nil, "room1")
	b.Unsubscribe(sub)

	select {
	case <-sub.Closed():
	case <-time.After(time.Second):
		t.Fatal("subscriber not closed")
	}
}

func TestSubscriberCountTracksRegistrations(t *testing.T) {
	b := startBus(t, Config{RingSize: 8})
	assert.Equal(t, 0, b.SubscriberCount())

	sub := b.Subscribe("s1", nil, "room1")
	// Subscribe/Unsubscribe go through the register channel asynchronously.
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	b.Unsubscribe(sub)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, time.Millisecond)
}
