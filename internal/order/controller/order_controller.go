package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/order/usecase"
	"storefront/internal/store"
)

type CheckoutUseCase interface {
	Checkout(ctx context.Context, req usecase.CheckoutRequest) (*dto.CheckoutResult, error)
}

type OrderUseCase interface {
	PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, tracking *domain.Tracking) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListSellerOrders(ctx context.Context, sellerID string, page store.Page) ([]domain.Order, error)
	ListCustomerOrders(ctx context.Context, email string, page store.Page) ([]domain.Order, error)
}

type OrderController struct {
	checkout CheckoutUseCase
	orders   OrderUseCase
	currency string
	logger   *zap.Logger
}

func NewOrderController(checkout CheckoutUseCase, orders OrderUseCase, currency string, logger *zap.Logger) *OrderController {
	return &OrderController{
		checkout: checkout,
		orders:   orders,
		currency: currency,
		logger:   logger,
	}
}

func (c *OrderController) Routes(r chi.Router) {
	r.Post("/checkout", c.Checkout)
	r.Post("/sellers/{sellerId}/orders", c.PlaceOrder)
	r.Get("/sellers/{sellerId}/orders", c.ListSellerOrders)
	r.Get("/customers/orders", c.ListCustomerOrders)
	r.Get("/orders/{orderId}", c.GetOrder)
	r.Post("/orders/{orderId}/cancel", c.CancelOrder)
	r.Put("/orders/{orderId}/status", c.UpdateStatus)
	r.Put("/orders/{orderId}/payment-status", c.UpdatePaymentStatus)
}

func (c *OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	var req dto.CheckoutRequest
	if !c.decode(w, r, traceID, logger, &req) {
		return
	}

	items := make([]usecase.CheckoutItem, len(req.Items))
	var details []apperrors.ValidationDetail
	for i, item := range req.Items {
		price := decimal.Zero
		if item.UnitPrice != "" {
			p, err := decimal.NewFromString(item.UnitPrice)
			if err != nil {
				details = append(details, apperrors.ValidationDetail{
					Field:   "items[" + strconv.Itoa(i) + "].unitPrice",
					Message: "unitPrice must be a decimal number",
				})
			}
			price = p
		}
		items[i] = usecase.CheckoutItem{
			ProductID:   item.ProductID,
			SellerID:    item.SellerID,
			ProductName: item.ProductName,
			UnitPrice:   price,
			Quantity:    item.Quantity,
		}
	}
	if len(details) > 0 {
		c.writeValidationError(w, traceID, "validation failed", details...)
		return
	}

	result, err := c.checkout.Checkout(r.Context(), usecase.CheckoutRequest{
		Customer:      toCustomer(req.Customer),
		Items:         items,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		CustomerNotes: req.CustomerNotes,
	})
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}

	results := make([]dto.SellerResultDTO, len(result.Results))
	for i, res := range result.Results {
		results[i] = dto.SellerResultDTO{SellerID: res.SellerID, Success: res.Err == nil}
		if res.Err != nil {
			_, body := errorBody(res.Err)
			if ve, ok := apperrors.IsValidationError(res.Err); ok && len(ve.Details) > 0 {
				body.Message = ve.Details[0].Field + ": " + ve.Details[0].Message
			}
			results[i].Error = &body
			continue
		}
		order := toOrderDTO(res.Order, c.currency)
		results[i].Order = &order
	}

	status := http.StatusOK
	switch result.Status {
	case dto.CheckoutPartial:
		status = http.StatusPartialContent
	case dto.CheckoutAllFailed:
		status = http.StatusUnprocessableEntity
	}

	c.writeJSON(w, status, dto.CheckoutResponse{
		TraceID:   traceID,
		Status:    string(result.Status),
		Results:   results,
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	sellerID := chi.URLParam(r, "sellerId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("sellerId", sellerID))

	var body dto.PlaceOrderBody
	if !c.decode(w, r, traceID, logger, &body) {
		return
	}

	items := make([]dto.ItemRequest, len(body.Items))
	for i, item := range body.Items {
		items[i] = dto.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := c.orders.PlaceOrder(r.Context(), dto.PlaceOrderRequest{
		SellerID:      sellerID,
		Customer:      toCustomer(body.Customer),
		Items:         items,
		PaymentMethod: domain.PaymentMethod(body.PaymentMethod),
		CustomerNotes: body.CustomerNotes,
	})
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}

	c.writeOrder(w, traceID, http.StatusCreated, order)
}

func (c *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	order, err := c.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeOrder(w, traceID, http.StatusOK, order)
}

func (c *OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	order, err := c.orders.CancelOrder(r.Context(), orderID)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeOrder(w, traceID, http.StatusOK, order)
}

func (c *OrderController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	var req dto.UpdateStatusRequest
	if !c.decode(w, r, traceID, logger, &req) {
		return
	}

	order, err := c.orders.UpdateStatus(r.Context(), orderID, domain.OrderStatus(req.Status), toTracking(req.Tracking))
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeOrder(w, traceID, http.StatusOK, order)
}

func (c *OrderController) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	var req dto.UpdatePaymentStatusRequest
	if !c.decode(w, r, traceID, logger, &req) {
		return
	}

	order, err := c.orders.UpdatePaymentStatus(r.Context(), orderID, domain.PaymentStatus(req.PaymentStatus))
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeOrder(w, traceID, http.StatusOK, order)
}

func (c *OrderController) ListSellerOrders(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	sellerID := chi.URLParam(r, "sellerId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("sellerId", sellerID))

	page, err := parsePage(r)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}

	orders, err := c.orders.ListSellerOrders(r.Context(), sellerID, page)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeOrders(w, traceID, orders, page)
}

func (c *OrderController) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	page, err := parsePage(r)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}

	orders, err := c.orders.ListCustomerOrders(r.Context(), r.URL.Query().Get("email"), page)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}
	c.writeOrders(w, traceID, orders, page)
}

func parsePage(r *http.Request) (store.Page, error) {
	var page store.Page
	var details []apperrors.ValidationDetail

	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			details = append(details, apperrors.ValidationDetail{Field: "limit", Message: "limit must be a positive integer"})
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			details = append(details, apperrors.ValidationDetail{Field: "offset", Message: "offset must be a non-negative integer"})
		}
		page.Offset = n
	}

	if len(details) > 0 {
		return store.Page{}, apperrors.NewValidationError("invalid pagination", details...)
	}
	return page.Normalize(), nil
}

func (c *OrderController) decode(w http.ResponseWriter, r *http.Request, traceID string, logger *zap.Logger, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return false
	}
	return true
}

func (c *OrderController) writeOrder(w http.ResponseWriter, traceID string, status int, order *domain.Order) {
	c.writeJSON(w, status, dto.OrderResponse{
		TraceID:   traceID,
		Order:     toOrderDTO(order, c.currency),
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) writeOrders(w http.ResponseWriter, traceID string, orders []domain.Order, page store.Page) {
	c.writeJSON(w, http.StatusOK, dto.OrderListResponse{
		TraceID:   traceID,
		Orders:    toOrderDTOs(orders, c.currency),
		Limit:     page.Limit,
		Offset:    page.Offset,
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
