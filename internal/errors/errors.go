package errors

import (
	stderrors "errors"
	"fmt"
)

// Retryable store failures. Stores wrap these; the order service retries
// the whole transaction when it sees them.
var (
	ErrTxConflict           = stderrors.New("transaction conflict")
	ErrDuplicateOrderNumber = stderrors.New("duplicate order number")
)

// IsRetryable reports whether err is a store conflict worth retrying.
func IsRetryable(err error) bool {
	return stderrors.Is(err, ErrTxConflict) || stderrors.Is(err, ErrDuplicateOrderNumber)
}

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// NotFoundError is returned by stores when a record is missing.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nfe *NotFoundError
	if stderrors.As(err, &nfe) {
		return nfe, true
	}
	return nil, false
}

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func NewProductNotFoundError(productID string) *ProductNotFoundError {
	return &ProductNotFoundError{ProductID: productID}
}

func IsProductNotFoundError(err error) (*ProductNotFoundError, bool) {
	var pe *ProductNotFoundError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type OrderNotFoundError struct {
	OrderID string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

func NewOrderNotFoundError(orderID string) *OrderNotFoundError {
	return &OrderNotFoundError{OrderID: orderID}
}

func IsOrderNotFoundError(err error) (*OrderNotFoundError, bool) {
	var oe *OrderNotFoundError
	if stderrors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (%s): requested %d, available %d",
		e.ProductID, e.ProductName, e.Requested, e.Available)
}

func NewInsufficientStockError(productID, productName string, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{
		ProductID:   productID,
		ProductName: productName,
		Requested:   requested,
		Available:   available,
	}
}

func IsInsufficientStockError(err error) (*InsufficientStockError, bool) {
	var se *InsufficientStockError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

type AlreadyCancelledError struct {
	OrderID string
}

func (e *AlreadyCancelledError) Error() string {
	return fmt.Sprintf("order %s is already cancelled", e.OrderID)
}

func NewAlreadyCancelledError(orderID string) *AlreadyCancelledError {
	return &AlreadyCancelledError{OrderID: orderID}
}

func IsAlreadyCancelledError(err error) (*AlreadyCancelledError, bool) {
	var ce *AlreadyCancelledError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type AlreadyDeliveredError struct {
	OrderID string
}

func (e *AlreadyDeliveredError) Error() string {
	return fmt.Sprintf("order %s is already delivered", e.OrderID)
}

func NewAlreadyDeliveredError(orderID string) *AlreadyDeliveredError {
	return &AlreadyDeliveredError{OrderID: orderID}
}

func IsAlreadyDeliveredError(err error) (*AlreadyDeliveredError, bool) {
	var de *AlreadyDeliveredError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// InvalidTransitionError rejects a status change the state machine does not allow.
type InvalidTransitionError struct {
	Axis string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %q to %q", e.Axis, e.From, e.To)
}

func NewInvalidTransitionError(axis, from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{Axis: axis, From: from, To: to}
}

func IsInvalidTransitionError(err error) (*InvalidTransitionError, bool) {
	var te *InvalidTransitionError
	if stderrors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// TransactionConflictError means optimistic retries were exhausted. Nothing
// was applied; the caller should retry the whole operation.
type TransactionConflictError struct {
	Attempts int
	Cause    error
}

func (e *TransactionConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transaction conflict after %d attempts: %v", e.Attempts, e.Cause)
	}
	return fmt.Sprintf("transaction conflict after %d attempts", e.Attempts)
}

func (e *TransactionConflictError) Unwrap() error {
	return e.Cause
}

func NewTransactionConflictError(attempts int, cause error) *TransactionConflictError {
	return &TransactionConflictError{Attempts: attempts, Cause: cause}
}

func IsTransactionConflictError(err error) (*TransactionConflictError, bool) {
	var tce *TransactionConflictError
	if stderrors.As(err, &tce) {
		return tce, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}
