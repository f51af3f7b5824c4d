package store

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// phasedTx enforces reads-before-writes on any backend, including ones that
// would tolerate interleaving.
type phasedTx struct {
	tx      Tx
	writing bool
}

// TwoPhase wraps tx so that a read following a write fails with ErrReadAfterWrite.
func TwoPhase(tx Tx) Tx {
	if p, ok := tx.(*phasedTx); ok {
		return p
	}
	return &phasedTx{tx: tx}
}

func (p *phasedTx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if p.writing {
		return nil, ErrReadAfterWrite
	}
	return p.tx.GetProduct(ctx, id)
}

func (p *phasedTx) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if p.writing {
		return nil, ErrReadAfterWrite
	}
	return p.tx.GetOrder(ctx, id)
}

func (p *phasedTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	p.writing = true
	return p.tx.CreateOrder(ctx, order)
}

func (p *phasedTx) SetProductStock(ctx context.Context, productID string, stock int, updatedAt time.Time) error {
	p.writing = true
	return p.tx.SetProductStock(ctx, productID, stock, updatedAt)
}

func (p *phasedTx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	p.writing = true
	return p.tx.UpdateOrder(ctx, order)
}
