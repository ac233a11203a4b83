package watch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sessiond-dev/sessiond/internal/session"
)

// subBuffer is the per-subscriber queue depth. A subscriber that lets its
// queue fill is dropped rather than allowed to block the fan-out.
const subBuffer = 32

// Hub fans change events out to independent subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan session.ChangeEvent
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{subs: make(map[string]chan session.ChangeEvent), log: log}
}

// Subscribe registers a new listener and returns its id and channel. The
// channel is closed when the subscriber is dropped or unsubscribed.
func (h *Hub) Subscribe() (string, <-chan session.ChangeEvent) {
	id := uuid.NewString()
	ch := make(chan session.ChangeEvent, subBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish delivers ev to every subscriber without blocking. A subscriber
// whose queue is full is disconnected.
func (h *Hub) Publish(ev session.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Warn("dropping slow subscriber", zap.String("subscriber", id))
			delete(h.subs, id)
			close(ch)
		}
	}
}

// SubscriberCount reports the number of open subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// RunKeepAlive publishes a ping frame on every interval so intermediary
// infrastructure does not time idle streams out. Blocks until ctx ends.
func (h *Hub) RunKeepAlive(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Publish(session.ChangeEvent{Kind: session.EventPing})
		}
	}
}
