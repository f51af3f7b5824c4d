package dynamo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// timeLayout is fixed width so string order matches time order in index sort
// keys.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const numberClaimPrefix = "number#"

type productItem struct {
	ID        string `dynamodbav:"id"`
	SellerID  string `dynamodbav:"sellerId"`
	Name      string `dynamodbav:"name"`
	Price     string `dynamodbav:"price"`
	Stock     int    `dynamodbav:"stock"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	Version   int64  `dynamodbav:"version"`
}

type lineItem struct {
	ProductID   string `dynamodbav:"productId"`
	ProductName string `dynamodbav:"productName"`
	UnitPrice   string `dynamodbav:"unitPrice"`
	Quantity    int    `dynamodbav:"quantity"`
	LineTotal   string `dynamodbav:"lineTotal"`
}

type trackingItem struct {
	Carrier        string `dynamodbav:"carrier"`
	TrackingNumber string `dynamodbav:"trackingNumber"`
	URL            string `dynamodbav:"url,omitempty"`
}

type orderItem struct {
	PK            string        `dynamodbav:"pk"`
	OrderNumber   string        `dynamodbav:"orderNumber"`
	SellerID      string        `dynamodbav:"sellerId"`
	CustomerName  string        `dynamodbav:"customerName"`
	CustomerEmail string        `dynamodbav:"customerEmail"`
	CustomerPhone string        `dynamodbav:"customerPhone"`
	Street        string        `dynamodbav:"street"`
	City          string        `dynamodbav:"city"`
	PostalCode    string        `dynamodbav:"postalCode"`
	Country       string        `dynamodbav:"country"`
	Items         []lineItem    `dynamodbav:"items"`
	Subtotal      string        `dynamodbav:"subtotal"`
	Shipping      string        `dynamodbav:"shipping"`
	Tax           string        `dynamodbav:"tax"`
	Total         string        `dynamodbav:"total"`
	Status        string        `dynamodbav:"status"`
	PaymentStatus string        `dynamodbav:"paymentStatus"`
	PaymentMethod string        `dynamodbav:"paymentMethod"`
	CustomerNotes string        `dynamodbav:"customerNotes,omitempty"`
	Tracking      *trackingItem `dynamodbav:"tracking,omitempty"`
	CreatedAt     string        `dynamodbav:"createdAt"`
	UpdatedAt     string        `dynamodbav:"updatedAt"`
	ShippedAt     string        `dynamodbav:"shippedAt,omitempty"`
	DeliveredAt   string        `dynamodbav:"deliveredAt,omitempty"`
	Version       int64         `dynamodbav:"version"`
}

// numberClaim reserves an order number in the orders table. It has no
// sellerId or customerEmail, so it never shows up in the listing indexes.
type numberClaim struct {
	PK      string `dynamodbav:"pk"`
	OrderID string `dynamodbav:"orderId"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func fromProductItem(it productItem) (*domain.Product, error) {
	price, err := decimal.NewFromString(it.Price)
	if err != nil {
		return nil, fmt.Errorf("product %s price: %w", it.ID, err)
	}
	p := &domain.Product{
		ID:       it.ID,
		SellerID: it.SellerID,
		Name:     it.Name,
		Price:    price,
		Stock:    it.Stock,
	}
	if it.UpdatedAt != "" {
		if p.UpdatedAt, err = parseTime(it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("product %s updatedAt: %w", it.ID, err)
		}
	}
	return p, nil
}

func toOrderItem(o *domain.Order, version int64) orderItem {
	items := make([]lineItem, len(o.Items))
	for i, li := range o.Items {
		items[i] = lineItem{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			UnitPrice:   li.UnitPrice.String(),
			Quantity:    li.Quantity,
			LineTotal:   li.LineTotal.String(),
		}
	}

	it := orderItem{
		PK:            o.ID,
		OrderNumber:   o.OrderNumber,
		SellerID:      o.SellerID,
		CustomerName:  o.Customer.Name,
		CustomerEmail: o.Customer.Email,
		CustomerPhone: o.Customer.Phone,
		Street:        o.Customer.Address.Street,
		City:          o.Customer.Address.City,
		PostalCode:    o.Customer.Address.PostalCode,
		Country:       o.Customer.Address.Country,
		Items:         items,
		Subtotal:      o.Subtotal.String(),
		Shipping:      o.Shipping.String(),
		Tax:           o.Tax.String(),
		Total:         o.Total.String(),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: string(o.PaymentMethod),
		CustomerNotes: o.CustomerNotes,
		CreatedAt:     formatTime(o.CreatedAt),
		UpdatedAt:     formatTime(o.UpdatedAt),
		ShippedAt:     formatOptionalTime(o.ShippedAt),
		DeliveredAt:   formatOptionalTime(o.DeliveredAt),
		Version:       version,
	}
	if o.Tracking != nil {
		it.Tracking = &trackingItem{
			Carrier:        o.Tracking.Carrier,
			TrackingNumber: o.Tracking.TrackingNumber,
			URL:            o.Tracking.URL,
		}
	}
	return it
}

func fromOrderItem(it orderItem) (*domain.Order, error) {
	money := func(field, v string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("order %s %s: %w", it.PK, field, err)
		}
		return d, nil
	}

	o := &domain.Order{
		ID:          it.PK,
		OrderNumber: it.OrderNumber,
		SellerID:    it.SellerID,
		Customer: domain.Customer{
			Name:  it.CustomerName,
			Email: it.CustomerEmail,
			Phone: it.CustomerPhone,
			Address: domain.Address{
				Street:     it.Street,
				City:       it.City,
				PostalCode: it.PostalCode,
				Country:    it.Country,
			},
		},
		Status:        domain.OrderStatus(it.Status),
		PaymentStatus: domain.PaymentStatus(it.PaymentStatus),
		PaymentMethod: domain.PaymentMethod(it.PaymentMethod),
		CustomerNotes: it.CustomerNotes,
	}

	var err error
	if o.Subtotal, err = money("subtotal", it.Subtotal); err != nil {
		return nil, err
	}
	if o.Shipping, err = money("shipping", it.Shipping); err != nil {
		return nil, err
	}
	if o.Tax, err = money("tax", it.Tax); err != nil {
		return nil, err
	}
	if o.Total, err = money("total", it.Total); err != nil {
		return nil, err
	}

	o.Items = make([]domain.LineItem, len(it.Items))
	for i, li := range it.Items {
		unit, err := money("unitPrice", li.UnitPrice)
		if err != nil {
			return nil, err
		}
		total, err := money("lineTotal", li.LineTotal)
		if err != nil {
			return nil, err
		}
		o.Items[i] = domain.LineItem{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			UnitPrice:   unit,
			Quantity:    li.Quantity,
			LineTotal:   total,
		}
	}

	if it.Tracking != nil {
		o.Tracking = &domain.Tracking{
			Carrier:        it.Tracking.Carrier,
			TrackingNumber: it.Tracking.TrackingNumber,
			URL:            it.Tracking.URL,
		}
	}

	if o.CreatedAt, err = parseTime(it.CreatedAt); err != nil {
		return nil, fmt.Errorf("order %s createdAt: %w", it.PK, err)
	}
	if o.UpdatedAt, err = parseTime(it.UpdatedAt); err != nil {
		return nil, fmt.Errorf("order %s updatedAt: %w", it.PK, err)
	}
	if o.ShippedAt, err = parseOptionalTime(it.ShippedAt); err != nil {
		return nil, fmt.Errorf("order %s shippedAt: %w", it.PK, err)
	}
	if o.DeliveredAt, err = parseOptionalTime(it.DeliveredAt); err != nil {
		return nil, fmt.Errorf("order %s deliveredAt: %w", it.PK, err)
	}
	return o, nil
}
