package broadcast

import (
	"context"
	"log/slog"
	"sync"
)

const subscriberBuffer = 16

// Hub is an in-process Channel that delivers events to subscribers over
// buffered channels. A subscriber that falls behind loses events rather
// than blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe registers interest in a topic. The returned cancel function
// removes the subscription and closes the channel.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[topic] = append(h.subs[topic], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		subs := h.subs[topic]
		for i, sub := range subs {
			if sub == ch {
				h.subs[topic] = append(subs[:i], subs[i+1:]...)
				close(ch)

				return
			}
		}
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber of the topic without
// blocking.
func (h *Hub) Publish(_ context.Context, topic string, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[topic] {
		select {
		case sub <- event:
		default:
			slog.Debug("dropping event for slow subscriber",
				slog.String("topic", topic),
				slog.String("session_id", event.SessionID),
			)
		}
	}

	return nil
}
