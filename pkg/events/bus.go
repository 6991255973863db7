// Package events implements the realtime event bus: many publishers, many
// subscribers, best-effort at-most-once delivery. Nothing is persisted; a
// slow subscriber misses events rather than slowing publishers down.
package events

import (
	"sync"
	"time"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
)

// Channel names events by topic.
type Channel string

const (
	ChannelModelStatus   Channel = "model:status"
	ChannelModelDownload Channel = "model:download-progress"
	ChannelModelError    Channel = "model:error"
	ChannelJobProgress   Channel = "job:progress"
	ChannelJobComplete   Channel = "job:complete"
	ChannelQueueUpdate   Channel = "queue:update"
)

// Event is one published message.
type Event struct {
	Channel Channel   `json:"channel"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// ModelStatusPayload reports model residency changes. It is a snapshot:
// replaying the latest one fully describes current state.
type ModelStatusPayload struct {
	Status   string     `json:"status"`
	ModelKey string     `json:"modelKey,omitempty"`
	LoadedAt *time.Time `json:"loadedAt,omitempty"`
}

// DownloadProgressPayload reports model weight download progress.
type DownloadProgressPayload struct {
	ModelKey string `json:"modelKey"`
	Progress int    `json:"progress"`
	Bytes    int64  `json:"bytes,omitempty"`
}

// ModelErrorPayload reports a model lifecycle failure.
type ModelErrorPayload struct {
	ModelKey string `json:"modelKey,omitempty"`
	Message  string `json:"message"`
}

// JobProgressPayload reports per-job stage transitions.
type JobProgressPayload struct {
	JobID    string `json:"jobId"`
	MediaID  string `json:"mediaId"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
}

// JobCompletePayload reports terminal job outcomes.
type JobCompletePayload struct {
	JobID        string `json:"jobId"`
	MediaID      string `json:"mediaId"`
	Success      bool   `json:"success"`
	ArtifactKind string `json:"artifactKind,omitempty"`
	ModelKey     string `json:"modelKey,omitempty"`
	Cached       bool   `json:"cached,omitempty"`
}

// QueueUpdatePayload reports queue depth changes.
type QueueUpdatePayload struct {
	Length     int64  `json:"length"`
	Current    string `json:"current,omitempty"`
	Processing bool   `json:"processing"`
}

// subscriberBufferSize absorbs short bursts before drops begin.
const subscriberBufferSize = 64

// Subscription is one subscriber's event feed. Events() closes after
// Unsubscribe.
type Subscription struct {
	bus *Bus
	ch  chan Event
	id  int
}

// Events returns the subscriber's receive channel.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Unsubscribe detaches from the bus and closes the feed.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}

// Bus fans events out to subscribers. The latest model:status event is
// retained and replayed to new subscribers so they start with a snapshot.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*Subscription
	nextID      int
	lastStatus  *Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]*Subscription)}
}

// Subscribe attaches a new subscriber. The opening event is always a
// model:status snapshot: the latest published one, or a synthetic
// "unloaded" when nothing has been published yet, so every subscriber
// starts with known model state.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		bus: b,
		ch:  make(chan Event, subscriberBufferSize),
		id:  b.nextID,
	}
	b.nextID++
	b.subscribers[sub.id] = sub

	opening := Event{
		Channel: ChannelModelStatus,
		Payload: ModelStatusPayload{Status: "unloaded"},
		At:      time.Now(),
	}
	if b.lastStatus != nil {
		opening = *b.lastStatus
	}
	sub.ch <- opening
	return sub
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Publish delivers an event to every subscriber without blocking. A
// subscriber whose buffer is full misses the event.
func (b *Bus) Publish(channel Channel, payload any) {
	event := Event{Channel: channel, Payload: payload, At: time.Now()}

	// Sends are non-blocking, so fanning out under the lock is cheap and
	// keeps Unsubscribe from closing a channel mid-send.
	b.mu.Lock()
	defer b.mu.Unlock()

	if channel == ChannelModelStatus {
		retained := event
		b.lastStatus = &retained
	}
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			logger.Debug("Dropping event for slow subscriber", "channel", channel, "subscriber", sub.id)
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
