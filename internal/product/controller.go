package product

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "storefront/internal/errors"
)

const maxSearchIDs = 100

type Controller struct {
	useCase SearchUseCase
	logger  *zap.Logger
}

func NewController(useCase SearchUseCase, logger *zap.Logger) *Controller {
	return &Controller{useCase: useCase, logger: logger}
}

func (c *Controller) Routes(r chi.Router) {
	r.Post("/products/search", c.HandleSearchProducts)
}

// HandleSearchProducts answers the cart's availability lookup.
func (c *Controller) HandleSearchProducts(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	var req SearchProductsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.respond(w, http.StatusBadRequest, errorResponse{
			TraceID: traceID,
			Error:   "VALIDATION_ERROR",
			Message: "invalid JSON body",
			Details: []apperrors.ValidationDetail{{Field: "body", Message: "request body must be valid JSON"}},
		}, logger)
		return
	}

	if details := validateSearch(req); len(details) > 0 {
		c.respond(w, http.StatusBadRequest, errorResponse{
			TraceID: traceID,
			Error:   "VALIDATION_ERROR",
			Message: details[0].Message,
			Details: details,
		}, logger)
		return
	}

	resp, err := c.useCase.SearchProducts(r.Context(), req)
	if err != nil {
		logger.Error("product search failed", zap.Int("ids", len(req.ProductIDs)), zap.Error(err))
		c.respond(w, http.StatusInternalServerError, errorResponse{
			TraceID: traceID,
			Error:   "INTERNAL_ERROR",
			Message: "an unexpected error occurred",
		}, logger)
		return
	}

	c.respond(w, http.StatusOK, resp, logger)
}

func validateSearch(req SearchProductsRequest) []apperrors.ValidationDetail {
	var details []apperrors.ValidationDetail
	switch n := len(req.ProductIDs); {
	case n == 0:
		details = append(details, apperrors.ValidationDetail{Field: "productIds", Message: "productIds must not be empty"})
	case n > maxSearchIDs:
		details = append(details, apperrors.ValidationDetail{
			Field:   "productIds",
			Message: fmt.Sprintf("productIds exceeds maximum of %d", maxSearchIDs),
		})
	}
	for i, id := range req.ProductIDs {
		if strings.TrimSpace(id) == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("productIds[%d]", i),
				Message: "productId must be a non-empty string",
			})
		}
	}
	return details
}

type errorResponse struct {
	TraceID string                       `json:"traceId"`
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details,omitempty"`
}

func (c *Controller) respond(w http.ResponseWriter, status int, body any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("encoding response", zap.Error(err))
	}
}
