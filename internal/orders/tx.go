package orders

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/shopflow/internal/cart"
	"github.com/joao-fontenele/shopflow/internal/database"
	"github.com/joao-fontenele/shopflow/internal/inventory"
)

// SQLTransactor binds the inventory, cart and order repositories to a
// single database transaction.
type SQLTransactor struct {
	db *sql.DB
}

func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

func (t *SQLTransactor) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return database.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		return fn(ctx, Stores{
			Inventory: inventory.NewInventoryRepository(tx),
			Carts:     cart.NewCartRepository(tx),
			Orders:    NewOrderRepository(tx),
		})
	})
}
