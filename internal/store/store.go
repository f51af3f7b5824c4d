// Package store defines the transactional contract the order engine runs on.
//
// A transaction reads first and writes after. Backends either lock rows
// (MySQL) or track versions and compare-and-swap on commit (DynamoDB,
// memory). Lost races surface as errors wrapping apperrors.ErrTxConflict.
package store

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain"
)

// ErrReadAfterWrite is a programming error: a transaction read a record after
// it had started writing.
var ErrReadAfterWrite = errors.New("read after write in transaction")

// Tx is one atomic unit of work. Get methods return an apperrors.NotFoundError
// when the record is missing.
type Tx interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	CreateOrder(ctx context.Context, order *domain.Order) error
	SetProductStock(ctx context.Context, productID string, stock int, updatedAt time.Time) error
	// UpdateOrder persists only the mutable order fields: status, payment
	// status, tracking and the lifecycle timestamps.
	UpdateOrder(ctx context.Context, order *domain.Order) error
}

type TxFunc func(ctx context.Context, tx Tx) error

// TxRunner commits everything fn wrote, or nothing when fn or the commit
// fails. It makes a single attempt; retrying is the caller's job.
type TxRunner interface {
	RunInTx(ctx context.Context, fn TxFunc) error
}

type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// OrderFinder serves the dashboard reads. Lists are newest first.
type OrderFinder interface {
	FindOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID string, page Page) ([]domain.Order, error)
	ListOrdersByCustomerEmail(ctx context.Context, email string, page Page) ([]domain.Order, error)
}

type ProductFinder interface {
	FindProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

type Store interface {
	TxRunner
	OrderFinder
	ProductFinder
}
