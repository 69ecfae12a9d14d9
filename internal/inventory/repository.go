package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"

	"github.com/joao-fontenele/shopflow/internal/database"
	"github.com/joao-fontenele/shopflow/internal/domain"
)

type InventoryRepository struct {
	db database.DBTX
}

func NewInventoryRepository(db database.DBTX) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) ListAll(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, stock
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.StockLevel{}
	for rows.Next() {
		var stock domain.StockLevel
		if err := rows.Scan(&stock.ProductID, &stock.Name, &stock.Available); err != nil {
			return nil, err
		}
		items = append(items, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *InventoryRepository) GetStock(ctx context.Context, productID int64) (*domain.StockLevel, error) {
	stock := &domain.StockLevel{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, stock
		FROM products
		WHERE id = $1
	`, productID).Scan(&stock.ProductID, &stock.Name, &stock.Available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return stock, nil
}

// LockProducts takes row locks on the given products in ascending id order.
// It must run inside a transaction. Transactions that reserve several
// products lock them here first, so they always queue on rows in the same
// order and cannot deadlock on each other.
func (r *InventoryRepository) LockProducts(ctx context.Context, productIDs []int64) error {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
	}
	return rows.Err()
}

// Reserve decrements stock by quantity in a single conditional update, so
// concurrent reservations for the same product serialize on the row and
// stock never drops below zero. It returns the product as of the update.
func (r *InventoryRepository) Reserve(ctx context.Context, productID int64, quantity int) (*domain.Product, error) {
	p := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING id, name, description, price, stock, category_id
	`, productID, quantity).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reserve product %d: %w", productID, err)
	}

	stock, err := r.GetStock(ctx, productID)
	if err != nil {
		return nil, err
	}
	return nil, &domain.InsufficientStockError{Product: stock.Name}
}
