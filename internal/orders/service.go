package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

var tracer = otel.Tracer("orders")

// publishTimeout bounds how long a status update waits on the publisher.
const publishTimeout = time.Second

type Inventory interface {
	LockProducts(ctx context.Context, productIDs []int64) error
	Reserve(ctx context.Context, productID int64, quantity int) (*domain.Product, error)
}

type Carts interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error)
	Lines(ctx context.Context, cartID int64) ([]domain.CartLine, error)
	Clear(ctx context.Context, cartID int64) error
}

type Ledger interface {
	Create(ctx context.Context, userID int64) (*domain.Order, error)
	AddLine(ctx context.Context, orderID int64, line domain.OrderLine) error
	Finalize(ctx context.Context, orderID int64, total decimal.Decimal) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
}

// Stores are the collaborators of one placement, all bound to the same
// transaction.
type Stores struct {
	Inventory Inventory
	Carts     Carts
	Orders    Ledger
}

// Transactor runs fn atomically. If fn returns an error none of the writes
// made through its Stores are kept.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// Publisher delivers a status event to every live connection of a user.
type Publisher interface {
	Publish(ctx context.Context, userID int64, event domain.OrderStatusEvent) error
}

type Service struct {
	tx        Transactor
	ledger    Ledger
	publisher Publisher
	logger    *slog.Logger

	publishTimeout time.Duration

	placed        metric.Int64Counter
	placeFailures metric.Int64Counter
	statusUpdates metric.Int64Counter
}

func NewService(tx Transactor, ledger Ledger, publisher Publisher, logger *slog.Logger) (*Service, error) {
	meter := otel.Meter("orders")

	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders placed successfully"))
	if err != nil {
		return nil, err
	}

	placeFailures, err := meter.Int64Counter("orders.place_failures",
		metric.WithDescription("Order placements rejected or failed, by kind"))
	if err != nil {
		return nil, err
	}

	statusUpdates, err := meter.Int64Counter("orders.status_updates",
		metric.WithDescription("Order status changes, by new status"))
	if err != nil {
		return nil, err
	}

	return &Service{
		tx:            tx,
		ledger:        ledger,
		publisher:      publisher,
		logger:         logger,
		publishTimeout: publishTimeout,
		placed:         placed,
		placeFailures:  placeFailures,
		statusUpdates:  statusUpdates,
	}, nil
}

// PlaceOrder turns the actor's cart into an order. Stock for every line is
// reserved in cart order; the first line that cannot be reserved aborts the
// whole placement and nothing of it is persisted, so the cart and all stock
// levels are left as they were.
func (s *Service) PlaceOrder(ctx context.Context, actor domain.Actor) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", actor.UserID))

	var order *domain.Order
	err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		c, err := st.Carts.GetOrCreate(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("resolve cart: %w", err)
		}

		lines, err := st.Carts.Lines(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("load cart lines: %w", err)
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		ids := make([]int64, len(lines))
		for i, line := range lines {
			ids[i] = line.ProductID
		}
		if err := st.Inventory.LockProducts(ctx, ids); err != nil {
			return err
		}

		order, err = st.Orders.Create(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		total := decimal.Zero
		for _, line := range lines {
			product, err := st.Inventory.Reserve(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}

			ol := domain.OrderLine{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
			}
			if err := st.Orders.AddLine(ctx, order.ID, ol); err != nil {
				return fmt.Errorf("add order line: %w", err)
			}

			order.Lines = append(order.Lines, ol)
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		if err := st.Orders.Finalize(ctx, order.ID, total); err != nil {
			return fmt.Errorf("finalize order: %w", err)
		}
		order.TotalPrice = total

		if err := st.Carts.Clear(ctx, c.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		kind := domain.KindOf(err)
		s.placeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
		span.SetStatus(codes.Error, err.Error())
		if kind == domain.KindInternal {
			span.RecordError(err)
		}
		return nil, err
	}

	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	s.logger.Info("order placed",
		"order_id", order.ID,
		"user_id", actor.UserID,
		"lines", len(order.Lines),
		"total", order.TotalPrice.StringFixed(2),
	)

	return order, nil
}

// UpdateStatus sets the status of an order and notifies its owner. Only
// admins may change a status; any known status may replace any other.
// Notification is best effort: a failed publish is logged and the update
// still succeeds.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, orderID int64, status domain.OrderStatus) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", string(status)),
	)

	if _, err := s.ledger.GetByID(ctx, orderID); err != nil {
		return nil, err
	}

	if !actor.Admin {
		return nil, fmt.Errorf("only admins can update order status: %w", domain.ErrForbidden)
	}

	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	order, err := s.ledger.UpdateStatus(ctx, orderID, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.statusUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
	s.logger.Info("order status updated", "order_id", order.ID, "status", order.Status, "actor_id", actor.UserID)

	// The update is already committed; neither a slow broker nor a client
	// that hung up may hold it back.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	event := domain.OrderStatusEvent{OrderID: order.ID, Status: order.Status}
	if err := s.publisher.Publish(pubCtx, order.UserID, event); err != nil {
		s.logger.Error("failed to publish order status", "error", err, "order_id", order.ID, "user_id", order.UserID)
	}

	return order, nil
}

// List returns the actor's own orders.
func (s *Service) List(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	orders, err := s.ledger.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
