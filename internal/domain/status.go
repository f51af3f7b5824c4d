package domain

import (
	"time"

	apperrors "storefront/internal/errors"
)

const (
	AxisFulfillment = "fulfillment"
	AxisPayment     = "payment"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckNotTerminal fails with the error matching the order's terminal status.
func (o *Order) CheckNotTerminal() error {
	switch o.Status {
	case OrderStatusCancelled:
		return apperrors.NewAlreadyCancelledError(o.ID)
	case OrderStatusDelivered:
		return apperrors.NewAlreadyDeliveredError(o.ID)
	}
	return nil
}

// ApplyStatus moves the fulfillment axis. Any known status is reachable from
// a non-terminal one; step order is a UI convention only. Shipping stamps
// ShippedAt and stores tracking when given, delivery stamps DeliveredAt.
// Re-sending shipped with tracking replaces the tracking and keeps ShippedAt.
// It reports false when nothing changed.
func (o *Order) ApplyStatus(next OrderStatus, tracking *Tracking, at time.Time) (bool, error) {
	if !next.Valid() {
		return false, apperrors.NewInvalidTransitionError(AxisFulfillment, o.Status.String(), next.String())
	}
	if err := o.CheckNotTerminal(); err != nil {
		return false, err
	}
	if next == o.Status {
		if next != OrderStatusShipped || tracking == nil {
			return false, nil
		}
		if o.Tracking != nil && *o.Tracking == *tracking {
			return false, nil
		}
		t := *tracking
		o.Tracking = &t
		o.UpdatedAt = at
		return true, nil
	}

	o.Status = next
	o.UpdatedAt = at
	switch next {
	case OrderStatusShipped:
		shippedAt := at
		o.ShippedAt = &shippedAt
		if tracking != nil {
			t := *tracking
			o.Tracking = &t
		}
	case OrderStatusDelivered:
		deliveredAt := at
		o.DeliveredAt = &deliveredAt
	}
	return true, nil
}

// ApplyPaymentStatus moves the payment axis: pending to paid or failed, paid
// to refunded. It is not coupled to the fulfillment axis.
func (o *Order) ApplyPaymentStatus(next PaymentStatus, at time.Time) (bool, error) {
	if !next.Valid() {
		return false, apperrors.NewInvalidTransitionError(AxisPayment, o.PaymentStatus.String(), next.String())
	}
	if next == o.PaymentStatus {
		return false, nil
	}
	if !o.PaymentStatus.CanTransitionTo(next) {
		return false, apperrors.NewInvalidTransitionError(AxisPayment, o.PaymentStatus.String(), next.String())
	}

	o.PaymentStatus = next
	o.UpdatedAt = at
	return true, nil
}
