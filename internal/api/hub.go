package api

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultSubscriberBufferSize = 64
	defaultBroadcastBufferSize  = 256
	defaultHistorySize          = 256
)

// Message kinds published besides the pipeline result kinds.
const (
	KindImportProgress = "import_progress"
	KindImportComplete = "import_complete"
)

// Message is one SSE event. ID is assigned by the hub and increases by one
// per published message.
type Message struct {
	ID   uint64
	Kind string
	Data any
}

// Subscriber represents an SSE client connection.
type Subscriber struct {
	events chan Message
	done   chan struct{}
	after  uint64 // replay history newer than this id; 0 replays nothing
}

// Events returns the channel for receiving messages.
func (s *Subscriber) Events() <-chan Message {
	return s.events
}

// Done returns a channel that is closed when the subscriber is unsubscribed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Hub manages SSE subscribers and broadcasts messages.
// Uses 1 goroutine + channel management pattern for thread safety.
type Hub struct {
	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan Message
	stop       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once

	subscriberBufferSize int
	historySize          int
	logger               *slog.Logger

	dropped  atomic.Uint64
	dropWarn rate.Sometimes
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubSubscriberBufferSize sets the buffer size for subscriber channels.
func WithHubSubscriberBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.subscriberBufferSize = size
		}
	}
}

// WithHubHistorySize sets how many recent messages are kept for
// Last-Event-ID replay.
func WithHubHistorySize(size int) HubOption {
	return func(h *Hub) {
		if size >= 0 {
			h.historySize = size
		}
	}
}

// WithHubLogger sets the logger for the Hub.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates a new SSE hub.
// Call Run() to start the hub's event loop.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		register:             make(chan *Subscriber),
		unregister:           make(chan *Subscriber),
		broadcast:            make(chan Message, defaultBroadcastBufferSize),
		stop:                 make(chan struct{}),
		stopped:              make(chan struct{}),
		subscriberBufferSize: defaultSubscriberBufferSize,
		historySize:          defaultHistorySize,
		logger:               slog.Default(),
		dropWarn:             rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub's event loop.
// This method blocks until Stop() is called.
// Should be called in a goroutine: go hub.Run()
func (h *Hub) Run() {
	clients := make(map[*Subscriber]struct{})
	history := make([]Message, 0, h.historySize)
	var seq uint64
	defer close(h.stopped)

	for {
		select {
		case sub := <-h.register:
			if sub.after > 0 {
				for _, m := range history {
					if m.ID <= sub.after {
						continue
					}
					select {
					case sub.events <- m:
					default:
						h.drop(m, "replay")
					}
				}
			}
			clients[sub] = struct{}{}
			h.logger.Debug("subscriber registered", "count", len(clients))

		case sub := <-h.unregister:
			if _, ok := clients[sub]; ok {
				delete(clients, sub)
				close(sub.done)
				close(sub.events)
				h.logger.Debug("subscriber unregistered", "count", len(clients))
			}

		case m := <-h.broadcast:
			seq++
			m.ID = seq
			if h.historySize > 0 {
				if len(history) == h.historySize {
					copy(history, history[1:])
					history = history[:len(history)-1]
				}
				history = append(history, m)
			}
			for sub := range clients {
				select {
				case sub.events <- m:
				default:
					// Channel full, drop message for this subscriber
					h.drop(m, "subscriber")
				}
			}

		case <-h.stop:
			for sub := range clients {
				close(sub.done)
				close(sub.events)
			}
			return
		}
	}
}

func (h *Hub) drop(m Message, where string) {
	n := h.dropped.Add(1)
	h.dropWarn.Do(func() {
		h.logger.Warn("sse message dropped",
			"where", where,
			"kind", m.Kind,
			"id", m.ID,
			"dropped_total", n,
		)
	})
}

// Dropped returns how many messages were dropped so far.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Stop stops the hub's event loop.
// Blocks until the hub has fully stopped.
// Safe to call multiple times (idempotent).
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.stopped
}

// Subscribe creates a new subscriber.
// The caller must call Unsubscribe when done.
func (h *Hub) Subscribe() *Subscriber {
	return h.SubscribeAfter(0)
}

// SubscribeAfter creates a subscriber that first receives the retained
// messages with an id greater than lastID.
func (h *Hub) SubscribeAfter(lastID uint64) *Subscriber {
	sub := &Subscriber{
		events: make(chan Message, h.subscriberBufferSize),
		done:   make(chan struct{}),
		after:  lastID,
	}

	select {
	case h.register <- sub:
		return sub
	case <-h.stopped:
		// Hub is stopped, return a closed subscriber
		close(sub.done)
		close(sub.events)
		return sub
	}
}

// Unsubscribe removes a subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	select {
	case h.unregister <- sub:
	case <-h.stopped:
	}
}

// Publish sends a message to all subscribers.
// Non-blocking: if the broadcast channel is full, the message is dropped.
func (h *Hub) Publish(kind string, data any) {
	if kind == "" {
		return
	}
	m := Message{Kind: kind, Data: data}

	select {
	case h.broadcast <- m:
	case <-h.stopped:
	default:
		h.drop(m, "broadcast")
	}
}
