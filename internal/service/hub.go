package service

import (
	"context"
	"errors"
	"sync"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

// subscriberBuffer is how many events a slow stream may lag before events
// are dropped for it.
const subscriberBuffer = 16

// Hub fans notification events out to live subscribers of the recipient.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]chan *model.NotificationEvent
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]chan *model.NotificationEvent)}
}

// Subscribe registers a stream for userID. The returned cancel func must be
// called once the stream ends; it closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan *model.NotificationEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan *model.NotificationEvent, subscriberBuffer)
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[uint64]chan *model.NotificationEvent)
	}
	h.subs[userID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], id)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(ch)
		})
	}
}

// Subscribers returns the number of open streams for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// PublishNotification delivers event to every stream of its recipient.
// Full streams miss the event rather than block the sender.
func (h *Hub) PublishNotification(_ context.Context, event *model.NotificationEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[event.Notification.RecipientID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Notifiers combines several notifiers. Every notifier is called; their
// errors are joined.
func Notifiers(notifiers ...Notifier) Notifier {
	var list multiNotifier
	for _, n := range notifiers {
		if n != nil {
			list = append(list, n)
		}
	}
	return list
}

type multiNotifier []Notifier

func (m multiNotifier) PublishNotification(ctx context.Context, event *model.NotificationEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.PublishNotification(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
