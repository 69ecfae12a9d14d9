package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type EventWriter interface {
	Publish(ctx context.Context, key string, event any) error
}

// KafkaPublisher sends status changes to the shared topic so that every
// instance, including this one, can deliver them to its local subscribers.
// Messages are keyed by user id to keep one user's events in order.
type KafkaPublisher struct {
	writer EventWriter
	now    func() time.Time
}

func NewKafkaPublisher(writer EventWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, now: time.Now}
}

func (p *KafkaPublisher) Publish(ctx context.Context, userID int64, event domain.OrderStatusEvent) error {
	msg := domain.OrderStatusChanged{
		UserID:    userID,
		OrderID:   event.OrderID,
		Status:    event.Status,
		Timestamp: p.now().UTC(),
	}
	return p.writer.Publish(ctx, strconv.FormatInt(userID, 10), msg)
}

type EventSource interface {
	Consume(ctx context.Context, handler func(ctx context.Context, payload []byte) error) error
}

// Relay feeds status changes read from the topic into the local hub.
type Relay struct {
	source EventSource
	hub    *Hub
	logger *slog.Logger
}

func NewRelay(source EventSource, hub *Hub, logger *slog.Logger) *Relay {
	return &Relay{source: source, hub: hub, logger: logger}
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("status relay started")

	err := r.source.Consume(ctx, r.handle)
	if ctx.Err() != nil {
		r.logger.Info("status relay stopped")
		return nil
	}
	return err
}

func (r *Relay) handle(ctx context.Context, payload []byte) error {
	var msg domain.OrderStatusChanged
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.logger.Error("skipping malformed status message", "error", err)
		return nil
	}

	return r.hub.Publish(ctx, msg.UserID, msg.Event())
}
