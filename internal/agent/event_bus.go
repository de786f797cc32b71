package agent

import (
	"context"
	"sync"

	"github.com/haasonsaas/aisopod/pkg/models"
)

// DefaultSubscriberQueueSize is the default bounded queue depth for an
// EventBus subscriber.
const DefaultSubscriberQueueSize = 256

// Lagged is sent on a subscriber's channel in place of a dropped event once
// the subscriber's queue has overflowed, so consumers can detect gaps in
// the stream instead of silently missing events.
type Lagged struct {
	// Dropped is the number of events discarded since the last delivered
	// event (or since subscription start).
	Dropped uint64
}

// BusEvent is either an AgentEvent or a Lagged marker, delivered to
// EventBus subscribers over a single channel.
type BusEvent struct {
	Event  *models.AgentEvent
	Lagged *Lagged
}

// EventBus fans out agent events to any number of subscribers, each with
// its own BoundedQueue. A slow subscriber never blocks the publisher or
// other subscribers: once its queue is full, the oldest queued event is
// dropped to make room and a Lagged marker replaces it so the subscriber
// can detect the gap.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[uint64]*busSubscriber
	nextID      uint64
	queueSize   int
}

type busSubscriber struct {
	queue *BoundedQueue[BusEvent]
}

func busEventLagged(n uint64) BusEvent {
	return BusEvent{Lagged: &Lagged{Dropped: n}}
}

// NewEventBus creates an EventBus whose subscribers each get a bounded
// queue of queueSize. A non-positive queueSize uses DefaultSubscriberQueueSize.
func NewEventBus(queueSize int) *EventBus {
	if queueSize <= 0 {
		queueSize = DefaultSubscriberQueueSize
	}
	return &EventBus{
		subscribers: make(map[uint64]*busSubscriber),
		queueSize:   queueSize,
	}
}

// Subscribe registers a new subscriber and returns its channel along with
// an unsubscribe function. The channel is closed when Unsubscribe is called.
func (b *EventBus) Subscribe() (<-chan BusEvent, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &busSubscriber{queue: NewBoundedQueue(b.queueSize, busEventLagged)}
	b.subscribers[id] = sub
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if s, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			s.queue.Close()
		}
		b.mu.Unlock()
	}
	return sub.queue.Chan(), unsubscribe
}

// Publish delivers e to every current subscriber. Delivery is always
// non-blocking: a full subscriber queue has its oldest entry evicted to
// make room, and that subscriber's next delivery carries a Lagged marker
// reporting how many events were dropped.
func (b *EventBus) Publish(e models.AgentEvent) {
	b.mu.Lock()
	subs := make([]*busSubscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.queue.Push(BusEvent{Event: &e})
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *EventBus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Sink returns an EventSink that publishes to this bus, letting EventBus
// plug into the same emitter/sink machinery as other sinks.
func (b *EventBus) Sink() EventSink {
	return &eventBusSink{bus: b}
}

type eventBusSink struct {
	bus *EventBus
}

func (s *eventBusSink) Emit(_ context.Context, e models.AgentEvent) {
	s.bus.Publish(e)
}
