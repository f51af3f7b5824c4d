package usecase

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/store"
)

type OrderManager interface {
	OrderPlacer
	CancelOrder(ctx context.Context, orderID string) error
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, tracking *domain.Tracking) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (*domain.Order, error)
}

// OrderUseCase serves single-order operations and the dashboard listings.
type OrderUseCase struct {
	manager OrderManager
	finder  store.OrderFinder
	logger  *zap.Logger
}

func NewOrderUseCase(manager OrderManager, finder store.OrderFinder, logger *zap.Logger) *OrderUseCase {
	return &OrderUseCase{
		manager: manager,
		finder:  finder,
		logger:  logger,
	}
}

func (uc *OrderUseCase) PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (*domain.Order, error) {
	return uc.manager.PlaceOrder(ctx, req)
}

// CancelOrder cancels and returns the order as stored afterwards.
func (uc *OrderUseCase) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := uc.manager.CancelOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return uc.GetOrder(ctx, orderID)
}

func (uc *OrderUseCase) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, tracking *domain.Tracking) (*domain.Order, error) {
	return uc.manager.UpdateStatus(ctx, orderID, status, tracking)
}

func (uc *OrderUseCase) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (*domain.Order, error) {
	return uc.manager.UpdatePaymentStatus(ctx, orderID, status)
}

func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, apperrors.NewValidationError("orderId is required", apperrors.ValidationDetail{
			Field:   "orderId",
			Message: "orderId must not be empty",
		})
	}

	order, err := uc.finder.FindOrderByID(ctx, orderID)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return nil, apperrors.NewOrderNotFoundError(orderID)
		}
		return nil, err
	}
	return order, nil
}

func (uc *OrderUseCase) ListSellerOrders(ctx context.Context, sellerID string, page store.Page) ([]domain.Order, error) {
	if strings.TrimSpace(sellerID) == "" {
		return nil, apperrors.NewValidationError("sellerId is required", apperrors.ValidationDetail{
			Field:   "sellerId",
			Message: "sellerId must not be empty",
		})
	}

	orders, err := uc.finder.ListOrdersBySeller(ctx, sellerID, page.Normalize())
	if err != nil {
		uc.logger.Error("list seller orders failed", zap.String("sellerId", sellerID), zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (uc *OrderUseCase) ListCustomerOrders(ctx context.Context, email string, page store.Page) ([]domain.Order, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("email is invalid", apperrors.ValidationDetail{
			Field:   "email",
			Message: "email must be a valid address",
		})
	}

	orders, err := uc.finder.ListOrdersByCustomerEmail(ctx, email, page.Normalize())
	if err != nil {
		uc.logger.Error("list customer orders failed", zap.Error(err))
		return nil, err
	}
	return orders, nil
}
