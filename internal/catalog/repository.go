package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/shopflow/internal/database"
	"github.com/joao-fontenele/shopflow/internal/domain"
)

type CatalogRepository struct {
	db database.DBTX
}

func NewCatalogRepository(db database.DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description
		FROM categories
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *CatalogRepository) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	c := &domain.Category{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description FROM categories WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return c, nil
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, description) VALUES ($1, $2)
		RETURNING id
	`, c.Name, c.Description).Scan(&c.ID)
	return database.TranslateConstraint(err, "name")
}

func (r *CatalogRepository) UpdateCategory(ctx context.Context, c *domain.Category) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = $2, description = $3 WHERE id = $1
	`, c.ID, c.Name, c.Description)
	if err != nil {
		return database.TranslateConstraint(err, "name")
	}
	return expectRow(result)
}

// DeleteCategory also removes the category's products.
func (r *CatalogRepository) DeleteCategory(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

const productSelect = `
	SELECT p.id, p.name, p.description, p.price, p.stock, p.category_id,
	       c.id, c.name, c.description
	FROM products p
	JOIN categories c ON c.id = p.category_id
`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{Category: &domain.Category{}}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID,
		&p.Category.ID, &p.Category.Name, &p.Category.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, productSelect+` ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, id))
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, stock, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.Name, p.Description, p.Price, p.Stock, p.CategoryID).Scan(&p.ID)
	return database.TranslateConstraint(err, "category_id")
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, stock = $5, category_id = $6
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Price, p.Stock, p.CategoryID)
	if err != nil {
		return database.TranslateConstraint(err, "category_id")
	}
	return expectRow(result)
}

func (r *CatalogRepository) DeleteProduct(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
