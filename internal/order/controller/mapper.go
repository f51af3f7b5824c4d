package controller

import (
	"strings"

	"storefront/internal/domain"
	"storefront/internal/dto"
)

func toCustomer(c dto.CustomerDTO) domain.Customer {
	return domain.Customer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
		Address: domain.Address{
			Street:     strings.TrimSpace(c.Address.Street),
			City:       strings.TrimSpace(c.Address.City),
			PostalCode: strings.TrimSpace(c.Address.PostalCode),
			Country:    strings.TrimSpace(c.Address.Country),
		},
	}
}

func toTracking(t *dto.TrackingDTO) *domain.Tracking {
	if t == nil {
		return nil
	}
	return &domain.Tracking{Carrier: t.Carrier, TrackingNumber: t.TrackingNumber, URL: t.URL}
}

func toOrderDTO(o *domain.Order, currency string) dto.OrderDTO {
	items := make([]dto.LineItemDTO, len(o.Items))
	for i, item := range o.Items {
		items[i] = dto.LineItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal.StringFixed(2),
		}
	}

	out := dto.OrderDTO{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		SellerID:    o.SellerID,
		Customer: dto.CustomerDTO{
			Name:  o.Customer.Name,
			Email: o.Customer.Email,
			Phone: o.Customer.Phone,
			Address: dto.AddressDTO{
				Street:     o.Customer.Address.Street,
				City:       o.Customer.Address.City,
				PostalCode: o.Customer.Address.PostalCode,
				Country:    o.Customer.Address.Country,
			},
		},
		Items:         items,
		Subtotal:      o.Subtotal.StringFixed(2),
		Shipping:      o.Shipping.StringFixed(2),
		Tax:           o.Tax.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		Currency:      currency,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: string(o.PaymentMethod),
		CustomerNotes: o.CustomerNotes,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
	}
	if o.Tracking != nil {
		out.Tracking = &dto.TrackingDTO{
			Carrier:        o.Tracking.Carrier,
			TrackingNumber: o.Tracking.TrackingNumber,
			URL:            o.Tracking.URL,
		}
	}
	return out
}

func toOrderDTOs(orders []domain.Order, currency string) []dto.OrderDTO {
	out := make([]dto.OrderDTO, len(orders))
	for i := range orders {
		out[i] = toOrderDTO(&orders[i], currency)
	}
	return out
}
