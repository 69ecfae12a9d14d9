package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

const (
	productA int64 = 1
	productB int64 = 2
)

var (
	alice = domain.Actor{UserID: 10}
	bob   = domain.Actor{UserID: 11}
	admin = domain.Actor{UserID: 1, Admin: true}
)

func newTestService(t *testing.T) (*Service, *memDB, *recordingPublisher) {
	t.Helper()

	db := newMemDB()
	pub := &recordingPublisher{}
	svc, err := NewService(db, db.ledger(), pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return svc, db, pub
}

func TestService_PlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves stock, totals lines and clears the cart", func(t *testing.T) {
		svc, db, _ := newTestService(t)
		db.addProduct(productA, "A", "9.99", 5)
		db.addProduct(productB, "B", "3.00", 1)
		db.addToCart(alice.UserID, productA, 2)
		db.addToCart(alice.UserID, productB, 1)

		order, err := svc.PlaceOrder(ctx, alice)
		require.NoError(t, err)

		assert.True(t, decimal.RequireFromString("22.98").Equal(order.TotalPrice), "total was %s", order.TotalPrice)
		assert.Equal(t, domain.OrderStatusPending, order.Status)
		assert.Equal(t, alice.UserID, order.UserID)
		require.Len(t, order.Lines, 2)
		assert.Equal(t, productA, order.Lines[0].ProductID)
		assert.Equal(t, 2, order.Lines[0].Quantity)
		assert.Equal(t, productB, order.Lines[1].ProductID)

		assert.Equal(t, 3, db.stock(productA))
		assert.Equal(t, 0, db.stock(productB))
		assert.Empty(t, db.cartLines(alice.UserID))

		stored, err := db.ledger().GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, order.TotalPrice.Equal(stored.TotalPrice))
		assert.Len(t, stored.Lines, 2)
	})

	t.Run("a later line out of stock rolls back every line", func(t *testing.T) {
		svc, db, _ := newTestService(t)
		db.addProduct(productA, "A", "9.99", 5)
		db.addProduct(productB, "B", "3.00", 0)
		db.addToCart(alice.UserID, productA, 2)
		db.addToCart(alice.UserID, productB, 1)

		order, err := svc.PlaceOrder(ctx, alice)
		require.Error(t, err)
		assert.Nil(t, order)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		var stockErr *domain.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, "B", stockErr.Product)

		assert.Equal(t, 5, db.stock(productA))
		assert.Equal(t, 0, db.stock(productB))
		assert.Len(t, db.cartLines(alice.UserID), 2)

		orders, err := svc.List(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("empty cart", func(t *testing.T) {
		svc, db, _ := newTestService(t)

		_, err := svc.PlaceOrder(ctx, alice)
		assert.ErrorIs(t, err, domain.ErrEmptyCart)
		assert.Empty(t, db.state.orders)
	})

	t.Run("exact stock drains to zero", func(t *testing.T) {
		svc, db, _ := newTestService(t)
		db.addProduct(productA, "A", "1.50", 3)
		db.addToCart(alice.UserID, productA, 3)

		order, err := svc.PlaceOrder(ctx, alice)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("4.50").Equal(order.TotalPrice))
		assert.Equal(t, 0, db.stock(productA))
	})

	t.Run("locks products in id order before reserving in cart order", func(t *testing.T) {
		svc, db, _ := newTestService(t)
		db.addProduct(productA, "A", "1.00", 5)
		db.addProduct(productB, "B", "2.00", 5)
		db.addToCart(alice.UserID, productB, 1)
		db.addToCart(alice.UserID, productA, 1)

		order, err := svc.PlaceOrder(ctx, alice)
		require.NoError(t, err)

		assert.Equal(t, []string{"lock [1 2]", "reserve 2", "reserve 1"}, db.calls)
		require.Len(t, order.Lines, 2)
		assert.Equal(t, productB, order.Lines[0].ProductID)
	})

	t.Run("second placement finds the cart empty", func(t *testing.T) {
		svc, db, _ := newTestService(t)
		db.addProduct(productA, "A", "1.00", 10)
		db.addToCart(alice.UserID, productA, 1)

		_, err := svc.PlaceOrder(ctx, alice)
		require.NoError(t, err)

		_, err = svc.PlaceOrder(ctx, alice)
		assert.ErrorIs(t, err, domain.ErrEmptyCart)
		assert.Equal(t, 9, db.stock(productA))
	})

	t.Run("uses the price at placement time", func(t *testing.T) {
		svc, db, _ := newTestService(t)
		db.addProduct(productA, "A", "2.00", 10)
		db.addToCart(alice.UserID, productA, 2)
		db.addProduct(productA, "A", "5.00", 10)

		order, err := svc.PlaceOrder(ctx, alice)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("10.00").Equal(order.TotalPrice))
		assert.True(t, decimal.RequireFromString("5.00").Equal(order.Lines[0].UnitPrice))
	})
}

func placeOne(t *testing.T, svc *Service, db *memDB, actor domain.Actor) *domain.Order {
	t.Helper()

	db.addProduct(productA, "A", "9.99", 100)
	db.addToCart(actor.UserID, productA, 1)
	order, err := svc.PlaceOrder(context.Background(), actor)
	require.NoError(t, err)
	return order
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown order is reported before privileges", func(t *testing.T) {
		svc, _, pub := newTestService(t)

		_, err := svc.UpdateStatus(ctx, alice, 999, domain.OrderStatusShipped)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Empty(t, pub.events)
	})

	t.Run("owner without admin rights is forbidden", func(t *testing.T) {
		svc, db, pub := newTestService(t)
		order := placeOne(t, svc, db, alice)

		_, err := svc.UpdateStatus(ctx, alice, order.ID, domain.OrderStatusShipped)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		stored, err := db.ledger().GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPending, stored.Status)
		assert.Empty(t, pub.events)
	})

	t.Run("forbidden is reported before an invalid status", func(t *testing.T) {
		svc, db, _ := newTestService(t)
		order := placeOne(t, svc, db, alice)

		_, err := svc.UpdateStatus(ctx, bob, order.ID, "lost")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("invalid status leaves the order unchanged", func(t *testing.T) {
		svc, db, pub := newTestService(t)
		order := placeOne(t, svc, db, alice)

		_, err := svc.UpdateStatus(ctx, admin, order.ID, "lost")
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)

		stored, err := db.ledger().GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPending, stored.Status)
		assert.Empty(t, pub.events)
	})

	t.Run("admin update notifies the owner once", func(t *testing.T) {
		svc, db, pub := newTestService(t)
		order := placeOne(t, svc, db, alice)

		updated, err := svc.UpdateStatus(ctx, admin, order.ID, domain.OrderStatusShipped)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusShipped, updated.Status)

		require.Len(t, pub.events, 1)
		assert.Equal(t, alice.UserID, pub.events[0].userID)
		assert.Equal(t, domain.OrderStatusEvent{OrderID: order.ID, Status: domain.OrderStatusShipped}, pub.events[0].event)
	})

	t.Run("any status may follow any other", func(t *testing.T) {
		svc, db, _ := newTestService(t)
		order := placeOne(t, svc, db, alice)

		_, err := svc.UpdateStatus(ctx, admin, order.ID, domain.OrderStatusDelivered)
		require.NoError(t, err)
		updated, err := svc.UpdateStatus(ctx, admin, order.ID, domain.OrderStatusPending)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPending, updated.Status)
	})

	t.Run("publish failure does not fail the update", func(t *testing.T) {
		svc, db, pub := newTestService(t)
		pub.err = errors.New("broker down")
		order := placeOne(t, svc, db, alice)

		_, err := svc.UpdateStatus(ctx, admin, order.ID, domain.OrderStatusShipped)
		require.NoError(t, err)

		stored, err := db.ledger().GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusShipped, stored.Status)
	})

	t.Run("an unresponsive publisher only delays the update briefly", func(t *testing.T) {
		svc, db, pub := newTestService(t)
		svc.publishTimeout = 50 * time.Millisecond
		pub.hang = true
		order := placeOne(t, svc, db, alice)

		start := time.Now()
		updated, err := svc.UpdateStatus(ctx, admin, order.ID, domain.OrderStatusShipped)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusShipped, updated.Status)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("a cancelled request still publishes", func(t *testing.T) {
		svc, db, pub := newTestService(t)
		order := placeOne(t, svc, db, alice)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.UpdateStatus(cancelled, admin, order.ID, domain.OrderStatusShipped)
		require.NoError(t, err)
		assert.Len(t, pub.events, 1)
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)

	placeOne(t, svc, db, alice)
	placeOne(t, svc, db, alice)
	placeOne(t, svc, db, bob)

	orders, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, alice.UserID, o.UserID)
	}

	orders, err = svc.List(ctx, domain.Actor{UserID: 99})
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}
