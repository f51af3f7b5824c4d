package product

import (
	"context"
	"fmt"

	"storefront/internal/domain"
)

type productService struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &productService{repo: repo}
}

// GetProductsByIDs looks products up by id. With a non-empty sellerID,
// products of other sellers count as not found.
func (s *productService) GetProductsByIDs(ctx context.Context, ids []string, sellerID string) ([]domain.Product, []string, error) {
	products, err := s.repo.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("finding products: %w", err)
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		if sellerID != "" && p.SellerID != sellerID {
			continue
		}
		byID[p.ID] = p
	}

	found := make([]domain.Product, 0, len(byID))
	var notFoundIDs []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := byID[id]; ok {
			found = append(found, p)
		} else {
			notFoundIDs = append(notFoundIDs, id)
		}
	}

	return found, notFoundIDs, nil
}
