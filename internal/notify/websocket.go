package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/httpx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// WebSocketHandler streams a user's order status changes over a WebSocket.
// It must run behind auth.Authenticator.Required.
type WebSocketHandler struct {
	hub        *Hub
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	pongWait   time.Duration
}

func NewWebSocketHandler(hub *Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Connections are authorized by token, not by origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
}

// HandleOrderStatus serves GET /ws/orders/{userId}. A user may only listen
// to their own stream; admins may listen to anyone's.
func (h *WebSocketHandler) HandleOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		httpx.WriteError(w, h.logger, domain.ErrUnauthenticated)
		return
	}

	userID, err := httpx.PathID(r, "userId")
	if err != nil {
		httpx.BadRequest(w, h.logger, err.Error())
		return
	}

	if actor.UserID != userID && !actor.Admin {
		httpx.WriteError(w, h.logger, domain.ErrForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "user_id", userID)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx := context.WithoutCancel(r.Context())
	sub := h.hub.Subscribe(ctx, userID)
	defer h.hub.Unsubscribe(ctx, sub)

	h.logger.Info("order status stream opened", "user_id", userID, "subscription_id", sub.ID())

	closed := make(chan struct{})
	go h.readLoop(conn, closed)
	h.writeLoop(conn, sub, closed)

	h.logger.Info("order status stream closed", "user_id", userID, "subscription_id", sub.ID())
}

// readLoop discards inbound messages and keeps the read deadline moving on
// pongs. It closes closed when the peer goes away.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
	}
}

func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, sub *Subscription, closed <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			if err := h.write(conn, event); err != nil {
				h.logger.Warn("websocket write failed", "error", err, "user_id", sub.UserID())
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, event domain.OrderStatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
