package orders

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type memCart struct {
	id     int64
	userID int64
	lines  []domain.CartLine
}

type memState struct {
	products    map[int64]domain.Product
	carts       map[int64]*memCart
	orders      map[int64]*domain.Order
	nextOrderID int64
}

func (s *memState) clone() *memState {
	c := &memState{
		products:    make(map[int64]domain.Product, len(s.products)),
		carts:       make(map[int64]*memCart, len(s.carts)),
		orders:      make(map[int64]*domain.Order, len(s.orders)),
		nextOrderID: s.nextOrderID,
	}
	for id, p := range s.products {
		c.products[id] = p
	}
	for id, mc := range s.carts {
		cp := *mc
		cp.lines = append([]domain.CartLine(nil), mc.lines...)
		c.carts[id] = &cp
	}
	for id, o := range s.orders {
		cp := *o
		cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
		c.orders[id] = &cp
	}
	return c
}

// memDB keeps committed state and applies a transaction's writes only when
// its function returns nil.
type memDB struct {
	mu    sync.Mutex
	state *memState
	calls []string
}

func newMemDB() *memDB {
	return &memDB{state: &memState{
		products: map[int64]domain.Product{},
		carts:    map[int64]*memCart{},
		orders:   map[int64]*domain.Order{},
	}}
}

func (db *memDB) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	work := db.state.clone()
	st := &memStores{s: work, calls: &db.calls}
	if err := fn(ctx, Stores{Inventory: st, Carts: st, Orders: st}); err != nil {
		return err
	}
	db.state = work
	return nil
}

// ledger reads and writes committed state directly, outside any transaction.
func (db *memDB) ledger() Ledger {
	return committedLedger{db: db}
}

type committedLedger struct {
	db *memDB
}

func (l committedLedger) stores() *memStores {
	return &memStores{s: l.db.state}
}

func (l committedLedger) Create(ctx context.Context, userID int64) (*domain.Order, error) {
	return l.stores().Create(ctx, userID)
}

func (l committedLedger) AddLine(ctx context.Context, orderID int64, line domain.OrderLine) error {
	return l.stores().AddLine(ctx, orderID, line)
}

func (l committedLedger) Finalize(ctx context.Context, orderID int64, total decimal.Decimal) error {
	return l.stores().Finalize(ctx, orderID, total)
}

func (l committedLedger) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return l.stores().GetByID(ctx, id)
}

func (l committedLedger) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	return l.stores().UpdateStatus(ctx, id, status)
}

func (l committedLedger) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return l.stores().ListByUser(ctx, userID)
}

func (db *memDB) addProduct(id int64, name, price string, stock int) {
	db.state.products[id] = domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func (db *memDB) addToCart(userID, productID int64, quantity int) {
	st := &memStores{s: db.state}
	c, _ := st.GetOrCreate(context.Background(), userID)
	mc := db.state.carts[c.ID]
	p := db.state.products[productID]
	mc.lines = append(mc.lines, domain.CartLine{ProductID: productID, ProductName: p.Name, UnitPrice: p.Price, Quantity: quantity})
}

func (db *memDB) stock(productID int64) int {
	return db.state.products[productID].Stock
}

func (db *memDB) cartLines(userID int64) []domain.CartLine {
	for _, mc := range db.state.carts {
		if mc.userID == userID {
			return mc.lines
		}
	}
	return nil
}

type memStores struct {
	s     *memState
	calls *[]string
}

func (m *memStores) record(format string, args ...any) {
	if m.calls != nil {
		*m.calls = append(*m.calls, fmt.Sprintf(format, args...))
	}
}

func (m *memStores) LockProducts(_ context.Context, productIDs []int64) error {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	m.record("lock %v", ids)
	return nil
}

func (m *memStores) Reserve(_ context.Context, productID int64, quantity int) (*domain.Product, error) {
	m.record("reserve %d", productID)
	p, ok := m.s.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Stock < quantity {
		return nil, &domain.InsufficientStockError{Product: p.Name}
	}
	p.Stock -= quantity
	m.s.products[productID] = p
	return &p, nil
}

func (m *memStores) GetOrCreate(_ context.Context, userID int64) (*domain.Cart, error) {
	for _, mc := range m.s.carts {
		if mc.userID == userID {
			return &domain.Cart{ID: mc.id, UserID: userID}, nil
		}
	}
	id := int64(len(m.s.carts) + 1)
	m.s.carts[id] = &memCart{id: id, userID: userID}
	return &domain.Cart{ID: id, UserID: userID}, nil
}

func (m *memStores) Lines(_ context.Context, cartID int64) ([]domain.CartLine, error) {
	mc, ok := m.s.carts[cartID]
	if !ok {
		return []domain.CartLine{}, nil
	}
	return append([]domain.CartLine{}, mc.lines...), nil
}

func (m *memStores) Clear(_ context.Context, cartID int64) error {
	if mc, ok := m.s.carts[cartID]; ok {
		mc.lines = nil
	}
	return nil
}

func (m *memStores) Create(_ context.Context, userID int64) (*domain.Order, error) {
	m.s.nextOrderID++
	now := time.Now().UTC()
	o := &domain.Order{
		ID:         m.s.nextOrderID,
		UserID:     userID,
		Lines:      []domain.OrderLine{},
		TotalPrice: decimal.Zero,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.s.orders[o.ID] = o

	cp := *o
	cp.Lines = []domain.OrderLine{}
	return &cp, nil
}

func (m *memStores) AddLine(_ context.Context, orderID int64, line domain.OrderLine) error {
	o, ok := m.s.orders[orderID]
	if !ok {
		return domain.NewValidationError("order_id", "does not exist")
	}
	for _, l := range o.Lines {
		if l.ProductID == line.ProductID {
			return domain.NewValidationError("product_id", "already exists")
		}
	}
	o.Lines = append(o.Lines, line)
	return nil
}

func (m *memStores) Finalize(_ context.Context, orderID int64, total decimal.Decimal) error {
	if o, ok := m.s.orders[orderID]; ok {
		o.TotalPrice = total
	}
	return nil
}

func (m *memStores) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	o, ok := m.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	cp.Lines = append([]domain.OrderLine{}, o.Lines...)
	return &cp, nil
}

func (m *memStores) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	o, ok := m.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return m.GetByID(ctx, id)
}

func (m *memStores) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	out := []domain.Order{}
	for _, o := range m.s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type published struct {
	userID int64
	event  domain.OrderStatusEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
	// hang blocks Publish until its context ends, like an unreachable broker.
	hang bool
}

func (p *recordingPublisher) Publish(ctx context.Context, userID int64, event domain.OrderStatusEvent) error {
	if p.hang {
		<-ctx.Done()
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{userID: userID, event: event})
	return p.err
}
