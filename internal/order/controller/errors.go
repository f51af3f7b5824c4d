package controller

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
)

// errorBody maps a domain error to its HTTP status and wire body.
func errorBody(err error) (int, dto.ErrorBodyDTO) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		return http.StatusBadRequest, dto.ErrorBodyDTO{Code: "VALIDATION_ERROR", Message: ve.Message}
	}
	if e, ok := apperrors.IsProductNotFoundError(err); ok {
		return http.StatusNotFound, dto.ErrorBodyDTO{
			Code:    "PRODUCT_NOT_FOUND",
			Message: e.Error(),
			Details: &dto.ErrorDetails{ProductID: e.ProductID},
		}
	}
	if e, ok := apperrors.IsOrderNotFoundError(err); ok {
		return http.StatusNotFound, dto.ErrorBodyDTO{
			Code:    "ORDER_NOT_FOUND",
			Message: e.Error(),
			Details: &dto.ErrorDetails{OrderID: e.OrderID},
		}
	}
	if e, ok := apperrors.IsNotFoundError(err); ok {
		return http.StatusNotFound, dto.ErrorBodyDTO{Code: "NOT_FOUND", Message: e.Message}
	}
	if e, ok := apperrors.IsInsufficientStockError(err); ok {
		available := e.Available
		return http.StatusConflict, dto.ErrorBodyDTO{
			Code:    "INSUFFICIENT_STOCK",
			Message: e.Error(),
			Details: &dto.ErrorDetails{
				ProductID:   e.ProductID,
				ProductName: e.ProductName,
				Requested:   e.Requested,
				Available:   &available,
			},
		}
	}
	if e, ok := apperrors.IsAlreadyCancelledError(err); ok {
		return http.StatusConflict, dto.ErrorBodyDTO{
			Code:    "ALREADY_CANCELLED",
			Message: e.Error(),
			Details: &dto.ErrorDetails{OrderID: e.OrderID},
		}
	}
	if e, ok := apperrors.IsAlreadyDeliveredError(err); ok {
		return http.StatusConflict, dto.ErrorBodyDTO{
			Code:    "ALREADY_DELIVERED",
			Message: e.Error(),
			Details: &dto.ErrorDetails{OrderID: e.OrderID},
		}
	}
	if e, ok := apperrors.IsInvalidTransitionError(err); ok {
		return http.StatusConflict, dto.ErrorBodyDTO{
			Code:    "INVALID_TRANSITION",
			Message: e.Error(),
			Details: &dto.ErrorDetails{From: e.From, To: e.To},
		}
	}
	if e, ok := apperrors.IsTransactionConflictError(err); ok {
		return http.StatusConflict, dto.ErrorBodyDTO{
			Code:    "TRANSACTION_CONFLICT",
			Message: "the order could not be committed, please retry",
			Details: &dto.ErrorDetails{Attempts: e.Attempts},
		}
	}
	return http.StatusInternalServerError, dto.ErrorBodyDTO{Code: "INTERNAL_ERROR", Message: "an unexpected error occurred"}
}

type validationErrorResponse struct {
	TraceID string                       `json:"traceId"`
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *OrderController) handleError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		logger.Error("unexpected error", zap.Error(err))
	} else {
		logger.Info("request rejected", zap.String("code", body.Code), zap.Error(err))
	}

	c.writeJSON(w, status, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Code:      body.Code,
		Message:   body.Message,
		Details:   body.Details,
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	c.writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}
