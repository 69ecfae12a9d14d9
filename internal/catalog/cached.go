package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/shopflow/internal/cache"
	"github.com/joao-fontenele/shopflow/internal/domain"
)

const (
	categoriesKey = "catalog:categories"
	productsKey   = "catalog:products"
)

// CachedStore serves the two list reads from a cache, filling it on a miss.
// Every write drops both lists, since a product embeds its category. Cache
// failures are logged and the read falls through to the store.
type CachedStore struct {
	Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger

	lookups metric.Int64Counter
}

func NewCachedStore(store Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) (*CachedStore, error) {
	lookups, err := otel.Meter("catalog").Int64Counter("catalog.cache.lookups",
		metric.WithDescription("Catalog list cache lookups, by key and result"))
	if err != nil {
		return nil, err
	}

	return &CachedStore{
		Store:   store,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
		lookups: lookups,
	}, nil
}

func (s *CachedStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return cachedList(ctx, s, categoriesKey, s.Store.ListCategories)
}

func (s *CachedStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return cachedList(ctx, s, productsKey, s.Store.ListProducts)
}

func cachedList[T any](ctx context.Context, s *CachedStore, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	data, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.logger.Warn("catalog cache read failed", "error", err, "key", key)
	case ok:
		var items []T
		if err := json.Unmarshal(data, &items); err == nil {
			s.record(ctx, key, "hit")
			return items, nil
		}
		s.logger.Warn("discarding undecodable catalog cache entry", "key", key)
	}
	s.record(ctx, key, "miss")

	items, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(items); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			s.logger.Warn("catalog cache write failed", "error", err, "key", key)
		}
	}

	return items, nil
}

func (s *CachedStore) record(ctx context.Context, key, result string) {
	s.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
		attribute.String("result", result),
	))
}

func (s *CachedStore) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, categoriesKey, productsKey); err != nil {
		s.logger.Warn("catalog cache invalidation failed", "error", err)
	}
}

func (s *CachedStore) CreateCategory(ctx context.Context, c *domain.Category) error {
	defer s.invalidate(ctx)
	return s.Store.CreateCategory(ctx, c)
}

func (s *CachedStore) UpdateCategory(ctx context.Context, c *domain.Category) error {
	defer s.invalidate(ctx)
	return s.Store.UpdateCategory(ctx, c)
}

func (s *CachedStore) DeleteCategory(ctx context.Context, id int64) error {
	defer s.invalidate(ctx)
	return s.Store.DeleteCategory(ctx, id)
}

func (s *CachedStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	defer s.invalidate(ctx)
	return s.Store.CreateProduct(ctx, p)
}

func (s *CachedStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	defer s.invalidate(ctx)
	return s.Store.UpdateProduct(ctx, p)
}

func (s *CachedStore) DeleteProduct(ctx context.Context, id int64) error {
	defer s.invalidate(ctx)
	return s.Store.DeleteProduct(ctx, id)
}
