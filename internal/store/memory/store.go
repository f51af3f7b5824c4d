// Package memory is an in-process store with optimistic concurrency. Every
// record carries a version; a transaction remembers the versions it read and
// commit fails with a conflict if any of them moved.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/store"
)

type productRecord struct {
	product domain.Product
	version uint64
}

type orderRecord struct {
	order   domain.Order
	version uint64
}

type Store struct {
	mu       sync.RWMutex
	products map[string]productRecord
	orders   map[string]orderRecord
	numbers  map[string]string
	// versions come from one counter so a deleted and re-created record
	// never reuses a version a transaction already saw
	clock uint64

	beforeCommit func()
}

func New() *Store {
	return &Store{
		products: make(map[string]productRecord),
		orders:   make(map[string]orderRecord),
		numbers:  make(map[string]string),
	}
}

// UpsertProduct seeds or replaces a catalog product.
func (s *Store) UpsertProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = productRecord{product: p, version: s.tick()}
}

func (s *Store) tick() uint64 {
	s.clock++
	return s.clock
}

func (s *Store) DeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.products, id)
}

// SetBeforeCommitHook runs fn after a transaction body and before its commit.
// Tests use it to widen race windows.
func (s *Store) SetBeforeCommitHook(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.beforeCommit = fn
}

func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	tx := newTx(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	s.mu.RLock()
	hook := s.beforeCommit
	s.mu.RUnlock()
	if hook != nil {
		hook()
	}

	return s.commit(tx)
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, seen := range tx.productReads {
		rec, ok := s.products[id]
		if seen.exists != ok || (ok && rec.version != seen.version) {
			return fmt.Errorf("product %s changed: %w", id, apperrors.ErrTxConflict)
		}
	}
	for id, seen := range tx.orderReads {
		rec, ok := s.orders[id]
		if seen.exists != ok || (ok && rec.version != seen.version) {
			return fmt.Errorf("order %s changed: %w", id, apperrors.ErrTxConflict)
		}
	}

	numbers := make(map[string]struct{}, len(tx.newOrders))
	for _, o := range tx.newOrders {
		if _, ok := s.orders[o.ID]; ok {
			return fmt.Errorf("order %s already exists: %w", o.ID, apperrors.ErrTxConflict)
		}
		if _, ok := s.numbers[o.OrderNumber]; ok {
			return fmt.Errorf("order number %s: %w", o.OrderNumber, apperrors.ErrDuplicateOrderNumber)
		}
		if _, ok := numbers[o.OrderNumber]; ok {
			return fmt.Errorf("order number %s: %w", o.OrderNumber, apperrors.ErrDuplicateOrderNumber)
		}
		numbers[o.OrderNumber] = struct{}{}
	}
	for id, w := range tx.stockWrites {
		if _, ok := s.products[id]; !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", id))
		}
		if w.stock < 0 {
			return fmt.Errorf("product %s: stock would become %d", id, w.stock)
		}
	}
	for id := range tx.orderUpdates {
		if _, ok := s.orders[id]; !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
		}
	}

	// validated; apply
	for _, o := range tx.newOrders {
		s.orders[o.ID] = orderRecord{order: o, version: s.tick()}
		s.numbers[o.OrderNumber] = o.ID
	}
	for id, w := range tx.stockWrites {
		rec := s.products[id]
		rec.product.Stock = w.stock
		rec.product.UpdatedAt = w.updatedAt
		rec.version = s.tick()
		s.products[id] = rec
	}
	for id, updated := range tx.orderUpdates {
		rec := s.orders[id]
		applyMutable(&rec.order, updated)
		rec.version = s.tick()
		s.orders[id] = rec
	}

	return nil
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	o := cloneOrder(rec.order)
	return &o, nil
}

func (s *Store) ListOrdersBySeller(ctx context.Context, sellerID string, page store.Page) ([]domain.Order, error) {
	return s.listOrders(page, func(o domain.Order) bool { return o.SellerID == sellerID }), nil
}

func (s *Store) ListOrdersByCustomerEmail(ctx context.Context, email string, page store.Page) ([]domain.Order, error) {
	return s.listOrders(page, func(o domain.Order) bool { return o.Customer.Email == email }), nil
}

func (s *Store) listOrders(page store.Page, match func(domain.Order) bool) []domain.Order {
	page = page.Normalize()

	s.mu.RLock()
	var matched []domain.Order
	for _, rec := range s.orders {
		if match(rec.order) {
			matched = append(matched, cloneOrder(rec.order))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].OrderNumber > matched[j].OrderNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if page.Offset >= len(matched) {
		return []domain.Order{}
	}
	end := page.Offset + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[page.Offset:end]
}

func (s *Store) FindProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.products[id]; ok {
			products = append(products, rec.product)
		}
	}
	return products, nil
}

type readMark struct {
	version uint64
	exists  bool
}

type stockWrite struct {
	stock     int
	updatedAt time.Time
}

type memTx struct {
	s            *Store
	productReads map[string]readMark
	orderReads   map[string]readMark
	newOrders    []domain.Order
	stockWrites  map[string]stockWrite
	orderUpdates map[string]domain.Order
}

func newTx(s *Store) *memTx {
	return &memTx{
		s:            s,
		productReads: make(map[string]readMark),
		orderReads:   make(map[string]readMark),
		stockWrites:  make(map[string]stockWrite),
		orderUpdates: make(map[string]domain.Order),
	}
}

func (t *memTx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	t.s.mu.RLock()
	rec, ok := t.s.products[id]
	t.s.mu.RUnlock()

	if _, seen := t.productReads[id]; !seen {
		t.productReads[id] = readMark{version: rec.version, exists: ok}
	}
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", id))
	}
	p := rec.product
	return &p, nil
}

func (t *memTx) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	t.s.mu.RLock()
	rec, ok := t.s.orders[id]
	t.s.mu.RUnlock()

	if _, seen := t.orderReads[id]; !seen {
		t.orderReads[id] = readMark{version: rec.version, exists: ok}
	}
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	o := cloneOrder(rec.order)
	return &o, nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	t.newOrders = append(t.newOrders, cloneOrder(*order))
	return nil
}

func (t *memTx) SetProductStock(ctx context.Context, productID string, stock int, updatedAt time.Time) error {
	t.stockWrites[productID] = stockWrite{stock: stock, updatedAt: updatedAt}
	return nil
}

func (t *memTx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	t.orderUpdates[order.ID] = cloneOrder(*order)
	return nil
}

func applyMutable(dst *domain.Order, src domain.Order) {
	dst.Status = src.Status
	dst.PaymentStatus = src.PaymentStatus
	dst.Tracking = src.Tracking
	dst.UpdatedAt = src.UpdatedAt
	dst.ShippedAt = src.ShippedAt
	dst.DeliveredAt = src.DeliveredAt
}

func cloneOrder(o domain.Order) domain.Order {
	out := o
	out.Items = append([]domain.LineItem(nil), o.Items...)
	if o.Tracking != nil {
		t := *o.Tracking
		out.Tracking = &t
	}
	if o.ShippedAt != nil {
		at := *o.ShippedAt
		out.ShippedAt = &at
	}
	if o.DeliveredAt != nil {
		at := *o.DeliveredAt
		out.DeliveredAt = &at
	}
	return out
}
