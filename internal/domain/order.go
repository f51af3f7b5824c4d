package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodOnline   PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodOnline:
		return true
	}
	return false
}

type Address struct {
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Customer is copied into the order at placement time and never refreshed.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address Address
}

// LineItem snapshots the product name and price read when the order committed.
type LineItem struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	LineTotal   decimal.Decimal
}

type Tracking struct {
	Carrier        string
	TrackingNumber string
	URL            string
}

// Order belongs to exactly one seller. Only Status, PaymentStatus, Tracking,
// UpdatedAt, ShippedAt and DeliveredAt change after creation.
type Order struct {
	ID            string
	OrderNumber   string
	SellerID      string
	Customer      Customer
	Items         []LineItem
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	CustomerNotes string
	Tracking      *Tracking
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
}

// Quantities sums line quantities per distinct product.
func (o Order) Quantities() map[string]int {
	out := make(map[string]int, len(o.Items))
	for _, item := range o.Items {
		out[item.ProductID] += item.Quantity
	}
	return out
}
