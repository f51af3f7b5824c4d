package dto

import "storefront/internal/domain"

type CheckoutStatus string

const (
	CheckoutAllSuccess CheckoutStatus = "ALL_SUCCESS"
	CheckoutPartial    CheckoutStatus = "PARTIAL"
	CheckoutAllFailed  CheckoutStatus = "ALL_FAILED"
)

// ItemRequest is one requested line of an order.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

type PlaceOrderRequest struct {
	SellerID      string
	Customer      domain.Customer
	Items         []ItemRequest
	PaymentMethod domain.PaymentMethod
	CustomerNotes string
}

// SellerResult is the outcome of one seller's partition. Exactly one of Order
// and Err is set.
type SellerResult struct {
	SellerID string
	Order    *domain.Order
	Err      error
}

type CheckoutResult struct {
	Status  CheckoutStatus
	Results []SellerResult
}

func (r CheckoutResult) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// StatusOf summarizes per-seller results.
func StatusOf(results []SellerResult) CheckoutStatus {
	ok := 0
	for _, res := range results {
		if res.Err == nil {
			ok++
		}
	}
	switch {
	case ok == len(results):
		return CheckoutAllSuccess
	case ok == 0:
		return CheckoutAllFailed
	default:
		return CheckoutPartial
	}
}
