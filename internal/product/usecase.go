package product

import (
	"context"

	"storefront/internal/domain"
)

type searchUseCase struct {
	service Service
}

func NewSearchUseCase(service Service) SearchUseCase {
	return &searchUseCase{service: service}
}

func (uc *searchUseCase) SearchProducts(ctx context.Context, req SearchProductsRequest) (*SearchProductsResponse, error) {
	found, missing, err := uc.service.GetProductsByIDs(ctx, req.ProductIDs, req.SellerID)
	if err != nil {
		return nil, err
	}

	resp := &SearchProductsResponse{
		Products: make([]ProductDTO, len(found)),
		NotFound: append([]string{}, missing...),
	}
	for i, p := range found {
		resp.Products[i] = toProductDTO(p)
	}
	return resp, nil
}

func toProductDTO(p domain.Product) ProductDTO {
	return ProductDTO{
		ID:       p.ID,
		SellerID: p.SellerID,
		Name:     p.Name,
		Price:    p.Price.StringFixed(2),
		Stock:    p.Stock,
		HasStock: p.HasStock(1),
	}
}
