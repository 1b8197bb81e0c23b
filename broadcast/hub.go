package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ellemouton/lndboard/comments"
)

type EventType string

const (
	EventMessage  EventType = "MESSAGE"
	EventNumUsers EventType = "NUM_USERS"
)

// defaultBuffer is how many events a subscriber may fall behind by before it
// is dropped.
const defaultBuffer = 64

type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

func NewCommentEvent(c *comments.Comment) *Event {
	cloned := c.Clone()
	return &Event{Type: EventMessage, Data: &cloned}
}

func NewPresenceEvent(count int) *Event {
	return &Event{Type: EventNumUsers, Data: count}
}

// Subscriber is a single live feed connection.
type Subscriber struct {
	id     string
	events chan *Event
	done   chan struct{}
}

func (s *Subscriber) ID() string {
	return s.id
}

// Events delivers published events. It is closed once the subscriber is
// removed from the hub.
func (s *Subscriber) Events() <-chan *Event {
	return s.events
}

// Done is closed once the subscriber is removed from the hub.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Hub fans events out to every connected subscriber. It is safe for
// concurrent use.
type Hub struct {
	log    *logrus.Entry
	buffer int

	mu   sync.Mutex
	subs map[string]*Subscriber

	onPresence func(count int)
}

type Option func(*Hub)

// WithBuffer sets how many undelivered events a subscriber may hold.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		h.buffer = n
	}
}

// WithPresenceHook calls fn with the subscriber count after every change.
func WithPresenceHook(fn func(count int)) Option {
	return func(h *Hub) {
		h.onPresence = fn
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		log:    logrus.StandardLogger().WithField("type", "broadcast/hub"),
		buffer: defaultBuffer,
		subs:   make(map[string]*Subscriber),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Subscribe registers a new subscriber and announces the new count to
// everyone, the new subscriber included.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:     uuid.New().String(),
		events: make(chan *Event, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs[sub.id] = sub
	h.log.WithField("subscriber", sub.id).Debug("subscriber connected")

	h.publishLocked(h.presenceLocked())

	return sub
}

// Unsubscribe removes sub and announces the new count. Removing a subscriber
// twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.remove(sub) {
		return
	}
	h.log.WithField("subscriber", sub.id).Debug("subscriber disconnected")

	h.publishLocked(h.presenceLocked())
}

// Publish delivers e to every subscriber. Subscribers that can't keep up are
// dropped, which doesn't affect delivery to the others.
func (h *Hub) Publish(e *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.publishLocked(e)
}

func (h *Hub) publishLocked(e *Event) {
	for {
		var dropped []*Subscriber
		for _, sub := range h.subs {
			select {
			case sub.events <- e:
			default:
				dropped = append(dropped, sub)
			}
		}

		if len(dropped) == 0 {
			return
		}

		for _, sub := range dropped {
			h.remove(sub)
			h.log.WithField("subscriber", sub.id).
				Warn("subscriber is not keeping up, dropping it")
		}

		// Everyone left sees the lower count.
		e = h.presenceLocked()
	}
}

// presenceLocked returns the presence event for the current count and runs
// the presence hook.
func (h *Hub) presenceLocked() *Event {
	count := len(h.subs)
	if h.onPresence != nil {
		h.onPresence(count)
	}

	return NewPresenceEvent(count)
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Close removes every subscriber without announcing anything.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		h.remove(sub)
	}
}

// remove must be called with mu held.
func (h *Hub) remove(sub *Subscriber) bool {
	if _, ok := h.subs[sub.id]; !ok {
		return false
	}

	delete(h.subs, sub.id)
	close(sub.done)
	close(sub.events)

	return true
}
