package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is owned by the catalog. The order engine reads Stock, Price and
// Name and writes only Stock.
type Product struct {
	ID        string
	SellerID  string
	Name      string
	Price     decimal.Decimal
	Stock     int
	UpdatedAt time.Time
}

func (p Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}
