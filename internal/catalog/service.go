package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type Store interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

// Service exposes the catalog. Anyone may read it; only admins may change
// it.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, actor domain.Actor, c *domain.Category) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := validateCategory(c); err != nil {
		return err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return err
	}

	s.logger.Info("category created", "category_id", c.ID, "name", c.Name)
	return nil
}

func (s *Service) UpdateCategory(ctx context.Context, actor domain.Actor, c *domain.Category) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := validateCategory(c); err != nil {
		return err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return err
	}

	s.logger.Info("category updated", "category_id", c.ID)
	return nil
}

func (s *Service) DeleteCategory(ctx context.Context, actor domain.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}

	s.logger.Info("category deleted", "category_id", id)
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, p *domain.Product) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return err
	}

	s.logger.Info("product created", "product_id", p.ID, "name", p.Name)
	return nil
}

func (s *Service) UpdateProduct(ctx context.Context, actor domain.Actor, p *domain.Product) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return err
	}

	s.logger.Info("product updated", "product_id", p.ID)
	return nil
}

func (s *Service) DeleteProduct(ctx context.Context, actor domain.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logger.Info("product deleted", "product_id", id)
	return nil
}

func requireAdmin(actor domain.Actor) error {
	if !actor.Admin {
		return fmt.Errorf("only admins can change the catalog: %w", domain.ErrForbidden)
	}
	return nil
}

func validateCategory(c *domain.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	switch {
	case c.Name == "":
		return domain.NewValidationError("name", "is required")
	case len(c.Name) > 100:
		return domain.NewValidationError("name", "must be at most 100 characters")
	}
	return nil
}

func validateProduct(p *domain.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return domain.NewValidationError("name", "is required")
	case len(p.Name) > 100:
		return domain.NewValidationError("name", "must be at most 100 characters")
	case p.Price.IsNegative():
		return domain.NewValidationError("price", "must not be negative")
	case !p.Price.Equal(p.Price.Round(2)):
		return domain.NewValidationError("price", "must have at most 2 decimal places")
	case p.Stock < 0:
		return domain.NewValidationError("stock", "must not be negative")
	case p.CategoryID == 0:
		return domain.NewValidationError("category_id", "is required")
	}
	return nil
}
