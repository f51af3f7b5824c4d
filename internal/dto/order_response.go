package dto

import "time"

type LineItemDTO struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   string `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"lineTotal"`
}

type OrderDTO struct {
	ID            string        `json:"id"`
	OrderNumber   string        `json:"orderNumber"`
	SellerID      string        `json:"sellerId"`
	Customer      CustomerDTO   `json:"customer"`
	Items         []LineItemDTO `json:"items"`
	Subtotal      string        `json:"subtotal"`
	Shipping      string        `json:"shipping"`
	Tax           string        `json:"tax"`
	Total         string        `json:"total"`
	Currency      string        `json:"currency"`
	Status        string        `json:"status"`
	PaymentStatus string        `json:"paymentStatus"`
	PaymentMethod string        `json:"paymentMethod"`
	CustomerNotes string        `json:"customerNotes,omitempty"`
	Tracking      *TrackingDTO  `json:"tracking,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	ShippedAt     *time.Time    `json:"shippedAt,omitempty"`
	DeliveredAt   *time.Time    `json:"deliveredAt,omitempty"`
}

type OrderResponse struct {
	TraceID   string    `json:"traceId"`
	Order     OrderDTO  `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderListResponse struct {
	TraceID   string     `json:"traceId"`
	Orders    []OrderDTO `json:"orders"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	Timestamp time.Time  `json:"timestamp"`
}

type SellerResultDTO struct {
	SellerID string        `json:"sellerId"`
	Success  bool          `json:"success"`
	Order    *OrderDTO     `json:"order,omitempty"`
	Error    *ErrorBodyDTO `json:"error,omitempty"`
}

type CheckoutResponse struct {
	TraceID   string            `json:"traceId"`
	Status    string            `json:"status"`
	Results   []SellerResultDTO `json:"results"`
	Timestamp time.Time         `json:"timestamp"`
}

type ErrorBodyDTO struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails carries the fields a client needs to act on a specific error.
type ErrorDetails struct {
	ProductID   string `json:"productId,omitempty"`
	ProductName string `json:"productName,omitempty"`
	Requested   int    `json:"requested,omitempty"`
	Available   *int   `json:"available,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
}

type ErrorResponse struct {
	TraceID   string        `json:"traceId"`
	Status    int           `json:"status"`
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	Details   *ErrorDetails `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
