package cart

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type Store interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error)
	Lines(ctx context.Context, cartID int64) ([]domain.CartLine, error)
	Quantity(ctx context.Context, cartID, productID int64) (int, error)
	AddLine(ctx context.Context, cartID, productID int64, quantity int) error
	RemoveLine(ctx context.Context, cartID, productID int64) error
}

type StockReader interface {
	GetStock(ctx context.Context, productID int64) (*domain.StockLevel, error)
}

type Service struct {
	store  Store
	stock  StockReader
	logger *slog.Logger
}

func NewService(store Store, stock StockReader, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		stock:  stock,
		logger: logger,
	}
}

func (s *Service) View(ctx context.Context, actor domain.Actor) (*domain.Cart, error) {
	c, err := s.store.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	c.Lines, err = s.store.Lines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Add puts quantity units of a product into the actor's cart. The request
// is rejected when it would take the line past the product's current stock;
// other users' carts are not taken into account. The store repeats the
// stock check atomically with the write, which catches concurrent adds.
func (s *Service) Add(ctx context.Context, actor domain.Actor, productID int64, quantity int) error {
	if quantity < 1 {
		return domain.NewValidationError("quantity", "must be at least 1")
	}

	stock, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		return err
	}

	c, err := s.store.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return err
	}

	inCart, err := s.store.Quantity(ctx, c.ID, productID)
	if err != nil {
		return err
	}

	if quantity > stock.Available-inCart {
		return &domain.InsufficientStockError{Product: stock.Name}
	}

	if err := s.store.AddLine(ctx, c.ID, productID, quantity); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return &domain.InsufficientStockError{Product: stock.Name}
		}
		return err
	}

	s.logger.Info("cart line added", "user_id", actor.UserID, "product_id", productID, "quantity", quantity)
	return nil
}

func (s *Service) Remove(ctx context.Context, actor domain.Actor, productID int64) error {
	c, err := s.store.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return err
	}

	if err := s.store.RemoveLine(ctx, c.ID, productID); err != nil {
		return err
	}

	s.logger.Info("cart line removed", "user_id", actor.UserID, "product_id", productID)
	return nil
}
