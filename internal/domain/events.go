package domain

import "time"

// OrderStatusEvent is the payload pushed to a user's live connections.
type OrderStatusEvent struct {
	OrderID int64       `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// OrderStatusChanged is the envelope relayed between instances over Kafka.
type OrderStatusChanged struct {
	UserID    int64       `json:"user_id"`
	OrderID   int64       `json:"order_id"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

func (e OrderStatusChanged) Event() OrderStatusEvent {
	return OrderStatusEvent{OrderID: e.OrderID, Status: e.Status}
}
