package product

type SearchProductsRequest struct {
	SellerID   string   `json:"sellerId"`
	ProductIDs []string `json:"productIds"`
}

type SearchProductsResponse struct {
	Products []ProductDTO `json:"products"`
	NotFound []string     `json:"notFound"`
}

type ProductDTO struct {
	ID       string `json:"id"`
	SellerID string `json:"sellerId"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Stock    int    `json:"stock"`
	HasStock bool   `json:"hasStock"`
}
