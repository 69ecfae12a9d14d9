package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

const defaultBuffer = 16

// Subscription is one live connection's handle on a user's event stream.
type Subscription struct {
	id     string
	userID int64
	events chan domain.OrderStatusEvent
}

func (s *Subscription) ID() string {
	return s.id
}

func (s *Subscription) UserID() int64 {
	return s.userID
}

// Events is closed once the subscription is removed from the hub.
func (s *Subscription) Events() <-chan domain.OrderStatusEvent {
	return s.events
}

// Hub is an in-process publish/subscribe registry with one group per user.
// Delivery is at most once: events published while nobody is subscribed are
// lost, and a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	groups map[int64]map[string]*Subscription
	buffer int
	logger *slog.Logger

	active    metric.Int64UpDownCounter
	delivered metric.Int64Counter
	dropped   metric.Int64Counter
}

func NewHub(buffer int, logger *slog.Logger) (*Hub, error) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	meter := otel.Meter("notify")

	active, err := meter.Int64UpDownCounter("notify.subscriptions.active",
		metric.WithDescription("Live order status subscriptions"))
	if err != nil {
		return nil, err
	}

	delivered, err := meter.Int64Counter("notify.events.delivered",
		metric.WithDescription("Status events handed to a subscriber"))
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("notify.events.dropped",
		metric.WithDescription("Status events dropped because a subscriber was not keeping up"))
	if err != nil {
		return nil, err
	}

	return &Hub{
		groups:    make(map[int64]map[string]*Subscription),
		buffer:    buffer,
		logger:    logger,
		active:    active,
		delivered: delivered,
		dropped:   dropped,
	}, nil
}

func (h *Hub) Subscribe(ctx context.Context, userID int64) *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		userID: userID,
		events: make(chan domain.OrderStatusEvent, h.buffer),
	}

	h.mu.Lock()
	group, ok := h.groups[userID]
	if !ok {
		group = make(map[string]*Subscription)
		h.groups[userID] = group
	}
	group[sub.id] = sub
	h.mu.Unlock()

	h.active.Add(ctx, 1)
	h.logger.Debug("subscribed", "user_id", userID, "subscription_id", sub.id)
	return sub
}

// Unsubscribe removes sub and closes its channel. Once it returns no further
// event reaches sub. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(ctx context.Context, sub *Subscription) {
	h.mu.Lock()
	group, ok := h.groups[sub.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := group[sub.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(group, sub.id)
	if len(group) == 0 {
		delete(h.groups, sub.userID)
	}
	close(sub.events)
	h.mu.Unlock()

	h.active.Add(ctx, -1)
	h.logger.Debug("unsubscribed", "user_id", sub.userID, "subscription_id", sub.id)
}

// Publish hands event to every current subscription of userID without
// blocking. It never fails; the error return lets the hub stand in for a
// remote publisher.
func (h *Hub) Publish(ctx context.Context, userID int64, event domain.OrderStatusEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.groups[userID] {
		select {
		case sub.events <- event:
			h.delivered.Add(ctx, 1)
		default:
			h.dropped.Add(ctx, 1)
			h.logger.Warn("subscriber too slow, dropping event",
				"user_id", userID, "subscription_id", sub.id, "order_id", event.OrderID)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[userID])
}
