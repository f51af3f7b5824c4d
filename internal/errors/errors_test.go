package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_IsNotFoundError(t *testing.T) {
	err := NewNotFoundError("product p1 not found")

	nfe, ok := IsNotFoundError(err)
	assert.True(t, ok)
	assert.Equal(t, "product p1 not found", nfe.Message)
	assert.Equal(t, "product p1 not found", err.Error())
}

func TestNotFoundError_Wrapped(t *testing.T) {
	err := fmt.Errorf("reading product: %w", NewNotFoundError("missing"))

	_, ok := IsNotFoundError(err)
	assert.True(t, ok)
}

func TestNotFoundError_WithOtherError(t *testing.T) {
	nfe, ok := IsNotFoundError(errors.New("some other error"))
	assert.False(t, ok)
	assert.Nil(t, nfe)
}

func TestValidationError_Creation(t *testing.T) {
	details := []ValidationDetail{
		{Field: "customer.email", Message: "email is required"},
		{Field: "items", Message: "items must not be empty"},
	}

	err := NewValidationError("validation failed", details...)

	ve, ok := IsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, "validation failed", ve.Error())
	assert.Len(t, ve.Details, 2)
}

func TestInsufficientStockError_CarriesQuantities(t *testing.T) {
	err := fmt.Errorf("placing order: %w", NewInsufficientStockError("p2", "Mug", 3, 1))

	se, ok := IsInsufficientStockError(err)
	assert.True(t, ok)
	assert.Equal(t, "p2", se.ProductID)
	assert.Equal(t, 3, se.Requested)
	assert.Equal(t, 1, se.Available)
	assert.Contains(t, err.Error(), "Mug")
}

func TestCancellationErrors_AreDistinct(t *testing.T) {
	cancelled := NewAlreadyCancelledError("o1")
	delivered := NewAlreadyDeliveredError("o1")

	_, ok := IsAlreadyCancelledError(cancelled)
	assert.True(t, ok)
	_, ok = IsAlreadyDeliveredError(cancelled)
	assert.False(t, ok)

	_, ok = IsAlreadyDeliveredError(delivered)
	assert.True(t, ok)
	_, ok = IsAlreadyCancelledError(delivered)
	assert.False(t, ok)

	_, ok = IsOrderNotFoundError(cancelled)
	assert.False(t, ok)
}

func TestTransactionConflictError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("commit: %w", ErrTxConflict)
	err := NewTransactionConflictError(5, cause)

	tce, ok := IsTransactionConflictError(err)
	assert.True(t, ok)
	assert.Equal(t, 5, tce.Attempts)
	assert.True(t, errors.Is(err, ErrTxConflict))
	assert.Contains(t, err.Error(), "5 attempts")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "conflict", err: fmt.Errorf("x: %w", ErrTxConflict), want: true},
		{name: "duplicate order number", err: fmt.Errorf("x: %w", ErrDuplicateOrderNumber), want: true},
		{name: "insufficient stock", err: NewInsufficientStockError("p", "n", 2, 1), want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestInternalError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewInternalError("wrapper", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "wrapper: underlying error", err.Error())
}

func TestInternalError_NilCause(t *testing.T) {
	err := NewInternalError("no cause", nil)

	assert.Equal(t, "no cause", err.Error())
	assert.Nil(t, err.Unwrap())
}
