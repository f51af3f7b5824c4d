package product

import (
	"context"

	"storefront/internal/domain"
)

type SearchUseCase interface {
	SearchProducts(ctx context.Context, req SearchProductsRequest) (*SearchProductsResponse, error)
}

type Service interface {
	GetProductsByIDs(ctx context.Context, ids []string, sellerID string) (found []domain.Product, notFoundIDs []string, err error)
}

// Repository is satisfied by every store backend.
type Repository interface {
	FindProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}
