package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "storefront/internal/errors"
)

// Item is a caller-supplied cart line. Name and price are display values; the
// order engine re-reads both from the product when it places the order.
type Item struct {
	ProductID   string
	SellerID    string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

type Cart struct {
	Items []Item
}

// Partition is the slice of a cart owned by one seller.
type Partition struct {
	SellerID string
	Items    []Item
}

// PartitionBySeller groups cart items per owning seller. Partitions come out
// in order of each seller's first item and keep cart order inside.
func PartitionBySeller(c Cart) ([]Partition, error) {
	if len(c.Items) == 0 {
		return nil, apperrors.NewValidationError("cart is empty", apperrors.ValidationDetail{
			Field:   "items",
			Message: "items must not be empty",
		})
	}

	var details []apperrors.ValidationDetail
	index := make(map[string]int)
	var partitions []Partition

	for i, item := range c.Items {
		sellerID := strings.TrimSpace(item.SellerID)
		if sellerID == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("items[%d].sellerId", i),
				Message: "sellerId is required",
			})
			continue
		}

		pos, ok := index[sellerID]
		if !ok {
			pos = len(partitions)
			index[sellerID] = pos
			partitions = append(partitions, Partition{SellerID: sellerID})
		}
		partitions[pos].Items = append(partitions[pos].Items, item)
	}

	if len(details) > 0 {
		return nil, apperrors.NewValidationError("validation failed", details...)
	}

	return partitions, nil
}
