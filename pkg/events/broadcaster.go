// Package events fans session lifecycle events out to in-process
// subscribers (the websocket gateway, tests). Delivery is at-most-once per
// subscriber: a full subscriber buffer drops the event rather than
// blocking the producer.
package events

import (
	"sync"
	"time"

	"github.com/ferdian/memoir/internal/observability"
	"github.com/rs/zerolog"
)

// Kind classifies a broadcast event.
type Kind string

const (
	KindNewPrompt         Kind = "new_prompt"
	KindSessionStarted    Kind = "session_started"
	KindObservationQueued Kind = "observation_queued"
	KindSessionCompleted  Kind = "session_completed"
	KindProcessingStatus  Kind = "processing_status"
)

// Event is one broadcast unit. Seq is assigned by Publish and strictly
// increases across all kinds, so subscribers can detect drops.
type Event struct {
	Seq       int64       `json:"seq"`
	Kind      Kind        `json:"kind"`
	SessionID string      `json:"memory_session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProcessingStatus is the payload of processing_status events.
type ProcessingStatus struct {
	ActiveSessions int `json:"active_sessions"`
	PendingDepth   int `json:"pending_depth"`
}

const subscriberBuffer = 64

// Broadcaster fans events out to subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	seq    int64
	subs   map[int]chan Event
	nextID int
	logger zerolog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	observability.EnsureRegistered()
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its event channel plus
// an unsubscribe function. The channel is closed on unsubscribe.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish assigns the next sequence number and delivers to every
// subscriber. A subscriber whose buffer is full loses this event; the
// producer and the other subscribers are never blocked.
func (b *Broadcaster) Publish(kind Kind, sessionID string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	event := Event{
		Seq:       b.seq,
		Kind:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	delivered, dropped := 0, 0
	for _, ch := range b.subs {
		select {
		case ch <- event:
			delivered++
		default:
			dropped++
		}
	}

	observability.RecordBroadcast(delivered, dropped)
	if dropped > 0 {
		b.logger.Warn().
			Str("kind", string(kind)).
			Int64("seq", event.Seq).
			Int("dropped", dropped).
			Msg("Dropped event for slow subscribers")
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
