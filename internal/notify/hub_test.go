package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T, buffer int) *Hub {
	t.Helper()
	hub, err := NewHub(buffer, discardLogger())
	require.NoError(t, err)
	return hub
}

func TestHub(t *testing.T) {
	ctx := context.Background()
	shipped := domain.OrderStatusEvent{OrderID: 7, Status: domain.OrderStatusShipped}

	t.Run("delivers to every subscription of the user only", func(t *testing.T) {
		hub := newTestHub(t, 4)
		first := hub.Subscribe(ctx, 1)
		second := hub.Subscribe(ctx, 1)
		other := hub.Subscribe(ctx, 2)

		require.NoError(t, hub.Publish(ctx, 1, shipped))

		assert.Equal(t, shipped, <-first.Events())
		assert.Equal(t, shipped, <-second.Events())
		assert.Empty(t, other.Events())
	})

	t.Run("publish without subscribers is a no-op", func(t *testing.T) {
		hub := newTestHub(t, 4)
		require.NoError(t, hub.Publish(ctx, 42, shipped))
		assert.Zero(t, hub.Subscribers(42))
	})

	t.Run("no replay for late subscribers", func(t *testing.T) {
		hub := newTestHub(t, 4)
		require.NoError(t, hub.Publish(ctx, 1, shipped))

		sub := hub.Subscribe(ctx, 1)
		assert.Empty(t, sub.Events())
	})

	t.Run("unsubscribe stops delivery and closes the channel", func(t *testing.T) {
		hub := newTestHub(t, 4)
		sub := hub.Subscribe(ctx, 1)
		hub.Unsubscribe(ctx, sub)
		hub.Unsubscribe(ctx, sub)

		require.NoError(t, hub.Publish(ctx, 1, shipped))

		_, open := <-sub.Events()
		assert.False(t, open)
		assert.Zero(t, hub.Subscribers(1))
	})

	t.Run("a full buffer drops instead of blocking", func(t *testing.T) {
		hub := newTestHub(t, 1)
		sub := hub.Subscribe(ctx, 1)

		require.NoError(t, hub.Publish(ctx, 1, shipped))
		require.NoError(t, hub.Publish(ctx, 1, domain.OrderStatusEvent{OrderID: 7, Status: domain.OrderStatusDelivered}))

		assert.Equal(t, shipped, <-sub.Events())
		assert.Empty(t, sub.Events())
	})

	t.Run("concurrent subscribe, publish and unsubscribe", func(t *testing.T) {
		hub := newTestHub(t, 8)

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				sub := hub.Subscribe(ctx, int64(i%3))
				hub.Unsubscribe(ctx, sub)
			}()
			go func() {
				defer wg.Done()
				_ = hub.Publish(ctx, int64(i%3), shipped)
			}()
		}
		wg.Wait()

		for u := range int64(3) {
			assert.Zero(t, hub.Subscribers(u))
		}
	})
}
