package dto

type AddressDTO struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type CustomerDTO struct {
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Phone   string     `json:"phone"`
	Address AddressDTO `json:"address"`
}

type CheckoutRequest struct {
	Customer      CustomerDTO       `json:"customer"`
	Items         []CheckoutItemDTO `json:"items"`
	PaymentMethod string            `json:"paymentMethod"`
	CustomerNotes string            `json:"customerNotes"`
}

// CheckoutItemDTO mirrors a cart line. Name and price are informational; the
// order keeps the values read from the product at commit time.
type CheckoutItemDTO struct {
	ProductID   string `json:"productId"`
	SellerID    string `json:"sellerId"`
	ProductName string `json:"productName"`
	UnitPrice   string `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
}

type PlaceOrderBody struct {
	Customer      CustomerDTO    `json:"customer"`
	Items         []OrderItemDTO `json:"items"`
	PaymentMethod string         `json:"paymentMethod"`
	CustomerNotes string         `json:"customerNotes"`
}

type OrderItemDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type TrackingDTO struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"trackingNumber"`
	URL            string `json:"url,omitempty"`
}

type UpdateStatusRequest struct {
	Status   string       `json:"status"`
	Tracking *TrackingDTO `json:"tracking,omitempty"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus"`
}
