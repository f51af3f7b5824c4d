package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

const (
	MaxItemsPerOrder = 100
	MaxItemQuantity  = 10000
)

const (
	OpPlaceOrder          = "place_order"
	OpCancelOrder         = "cancel_order"
	OpUpdateStatus        = "update_status"
	OpUpdatePaymentStatus = "update_payment_status"
)

const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

type PricingCalculator interface {
	Calculate(lines []pricing.Line) pricing.Totals
	LineTotal(l pricing.Line) decimal.Decimal
}

type OrderNumberGenerator interface {
	Next(at time.Time) string
}

// Recorder receives one observation per finished operation.
type Recorder interface {
	ObserveTransaction(op, outcome string, attempts int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTransaction(string, string, int) {}

type Config struct {
	TxTimeout        time.Duration
	MaxRetryAttempts int
	RetryBaseDelay   time.Duration
}

// InventoryService places and cancels orders. Each call is one atomic store
// transaction: every read happens before any write, and either the order and
// all of its stock changes commit or none do. Lost races are retried with
// backoff up to MaxRetryAttempts.
type InventoryService struct {
	runner   store.TxRunner
	pricing  PricingCalculator
	numbers  OrderNumberGenerator
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
	newID    func() string
	recorder Recorder
}

type Option func(*InventoryService)

func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) {
		s.now = now
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *InventoryService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *InventoryService) {
		s.newID = newID
	}
}

func NewInventoryService(
	runner store.TxRunner,
	pricing PricingCalculator,
	numbers OrderNumberGenerator,
	logger *zap.Logger,
	cfg Config,
	opts ...Option,
) *InventoryService {
	if cfg.MaxRetryAttempts < 1 {
		cfg.MaxRetryAttempts = 1
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 50 * time.Millisecond
	}

	s := &InventoryService{
		runner:   runner,
		pricing:  pricing,
		numbers:  numbers,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder validates stock for every product, writes the order with
// snapshot names and prices, and decrements stock, all in one transaction.
func (s *InventoryService) PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (*domain.Order, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}
	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}

	logger := s.logger.With(zap.String("sellerId", req.SellerID), zap.Int("itemCount", len(req.Items)))
	quantities, productIDs := aggregate(req.Items)

	var placed *domain.Order
	attempts, err := s.runWithRetry(ctx, OpPlaceOrder, func(ctx context.Context, tx store.Tx) error {
		placed = nil

		// read phase, ascending product id
		products := make(map[string]*domain.Product, len(productIDs))
		for _, id := range productIDs {
			p, err := tx.GetProduct(ctx, id)
			if err != nil {
				if _, ok := apperrors.IsNotFoundError(err); ok {
					return apperrors.NewProductNotFoundError(id)
				}
				return err
			}
			if p.SellerID != "" && p.SellerID != req.SellerID {
				return apperrors.NewValidationError("product belongs to another seller", apperrors.ValidationDetail{
					Field:   "items.productId",
					Message: fmt.Sprintf("product %s is not sold by seller %s", id, req.SellerID),
				})
			}
			if !p.HasStock(quantities[id]) {
				return apperrors.NewInsufficientStockError(id, p.Name, quantities[id], p.Stock)
			}
			products[id] = p
		}

		// compute phase
		now := s.now().UTC()
		lines := make([]pricing.Line, len(req.Items))
		items := make([]domain.LineItem, len(req.Items))
		for i, item := range req.Items {
			p := products[item.ProductID]
			lines[i] = pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity}
			items[i] = domain.LineItem{
				ProductID:   item.ProductID,
				ProductName: p.Name,
				UnitPrice:   p.Price,
				Quantity:    item.Quantity,
				LineTotal:   s.pricing.LineTotal(lines[i]),
			}
		}
		totals := s.pricing.Calculate(lines)

		order := &domain.Order{
			ID:            s.newID(),
			OrderNumber:   s.numbers.Next(now),
			SellerID:      req.SellerID,
			Customer:      req.Customer,
			Items:         items,
			Subtotal:      totals.Subtotal,
			Shipping:      totals.Shipping,
			Tax:           totals.Tax,
			Total:         totals.Total,
			Status:        domain.OrderStatusPending,
			PaymentStatus: domain.PaymentStatusPending,
			PaymentMethod: req.PaymentMethod,
			CustomerNotes: req.CustomerNotes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		// write phase
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		for _, id := range productIDs {
			if err := tx.SetProductStock(ctx, id, products[id].Stock-quantities[id], now); err != nil {
				return err
			}
		}

		placed = order
		return nil
	})
	if err != nil {
		s.logFailure(logger, "place order failed", err, attempts)
		return nil, err
	}

	logger.Info("order placed",
		zap.String("orderId", placed.ID),
		zap.String("orderNumber", placed.OrderNumber),
		zap.String("total", placed.Total.StringFixed(2)),
		zap.Int("attempts", attempts),
	)
	return placed, nil
}

// CancelOrder marks the order cancelled and gives its quantities back to
// stock. Products deleted since the order was placed are skipped.
func (s *InventoryService) CancelOrder(ctx context.Context, orderID string) error {
	_, err := s.cancel(ctx, orderID)
	return err
}

func (s *InventoryService) cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, orderIDRequired()
	}
	logger := s.logger.With(zap.String("orderId", orderID))

	var cancelled *domain.Order
	var skipped []string
	attempts, err := s.runWithRetry(ctx, OpCancelOrder, func(ctx context.Context, tx store.Tx) error {
		cancelled, skipped = nil, nil

		order, err := s.readOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := order.CheckNotTerminal(); err != nil {
			return err
		}

		quantities := order.Quantities()
		productIDs := sortedKeys(quantities)
		products := make(map[string]*domain.Product, len(productIDs))
		for _, id := range productIDs {
			p, err := tx.GetProduct(ctx, id)
			if err != nil {
				if _, ok := apperrors.IsNotFoundError(err); ok {
					skipped = append(skipped, id)
					continue
				}
				return err
			}
			products[id] = p
		}

		now := s.now().UTC()
		if _, err := order.ApplyStatus(domain.OrderStatusCancelled, nil, now); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		for _, id := range productIDs {
			p, ok := products[id]
			if !ok {
				continue
			}
			if err := tx.SetProductStock(ctx, id, p.Stock+quantities[id], now); err != nil {
				return err
			}
		}

		cancelled = order
		return nil
	})
	if err != nil {
		s.logFailure(logger, "cancel order failed", err, attempts)
		return nil, err
	}

	if len(skipped) > 0 {
		logger.Warn("stock not restored for missing products", zap.Strings("productIds", skipped))
	}
	logger.Info("order cancelled", zap.String("orderNumber", cancelled.OrderNumber), zap.Int("attempts", attempts))
	return cancelled, nil
}

// UpdateStatus moves the fulfillment status. Cancelling goes through
// CancelOrder so stock is always restored.
func (s *InventoryService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, tracking *domain.Tracking) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, orderIDRequired()
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", apperrors.ValidationDetail{
			Field:   "status",
			Message: fmt.Sprintf("unknown order status %q", status),
		})
	}
	if status == domain.OrderStatusCancelled {
		return s.cancel(ctx, orderID)
	}

	logger := s.logger.With(zap.String("orderId", orderID), zap.String("status", status.String()))

	var updated *domain.Order
	attempts, err := s.runWithRetry(ctx, OpUpdateStatus, func(ctx context.Context, tx store.Tx) error {
		updated = nil

		order, err := s.readOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		changed, err := order.ApplyStatus(status, tracking, s.now().UTC())
		if err != nil {
			return err
		}
		if changed {
			if err := tx.UpdateOrder(ctx, order); err != nil {
				return err
			}
		}

		updated = order
		return nil
	})
	if err != nil {
		s.logFailure(logger, "update status failed", err, attempts)
		return nil, err
	}

	logger.Info("order status updated")
	return updated, nil
}

// UpdatePaymentStatus moves the payment status, independent of fulfillment.
func (s *InventoryService) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, orderIDRequired()
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid payment status", apperrors.ValidationDetail{
			Field:   "paymentStatus",
			Message: fmt.Sprintf("unknown payment status %q", status),
		})
	}

	logger := s.logger.With(zap.String("orderId", orderID), zap.String("paymentStatus", status.String()))

	var updated *domain.Order
	attempts, err := s.runWithRetry(ctx, OpUpdatePaymentStatus, func(ctx context.Context, tx store.Tx) error {
		updated = nil

		order, err := s.readOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		changed, err := order.ApplyPaymentStatus(status, s.now().UTC())
		if err != nil {
			return err
		}
		if changed {
			if err := tx.UpdateOrder(ctx, order); err != nil {
				return err
			}
		}

		updated = order
		return nil
	})
	if err != nil {
		s.logFailure(logger, "update payment status failed", err, attempts)
		return nil, err
	}

	logger.Info("payment status updated")
	return updated, nil
}

func (s *InventoryService) readOrder(ctx context.Context, tx store.Tx, orderID string) (*domain.Order, error) {
	order, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return nil, apperrors.NewOrderNotFoundError(orderID)
		}
		return nil, err
	}
	return order, nil
}

// runWithRetry runs fn in a fresh transaction per attempt. Only store
// conflicts and per-attempt timeouts are retried; once attempts run out the
// caller gets a TransactionConflictError.
func (s *InventoryService) runWithRetry(ctx context.Context, op string, fn store.TxFunc) (int, error) {
	backoff := retry.NewExponential(s.cfg.RetryBaseDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(s.cfg.MaxRetryAttempts-1), backoff)

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := s.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if s.retryable(ctx, err) {
			if attempts < s.cfg.MaxRetryAttempts {
				s.logger.Warn("transaction conflict, retrying",
					zap.String("op", op),
					zap.Int("attempt", attempts),
					zap.Int("maxAttempts", s.cfg.MaxRetryAttempts),
					zap.Error(err),
				)
			}
			return retry.RetryableError(err)
		}
		return err
	})

	if err != nil && s.retryable(ctx, err) {
		err = apperrors.NewTransactionConflictError(attempts, err)
	}
	s.recorder.ObserveTransaction(op, outcome(err), attempts)
	return attempts, err
}

func (s *InventoryService) attempt(ctx context.Context, fn store.TxFunc) error {
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	return s.runner.RunInTx(txCtx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, store.TwoPhase(tx))
	})
}

// retryable treats a timed-out attempt as a conflict as long as the caller's
// own context is still alive.
func (s *InventoryService) retryable(ctx context.Context, err error) bool {
	if apperrors.IsRetryable(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

func (s *InventoryService) logFailure(logger *zap.Logger, msg string, err error, attempts int) {
	fields := []zap.Field{zap.Error(err), zap.Int("attempts", attempts)}
	switch outcome(err) {
	case OutcomeRejected, OutcomeConflict:
		logger.Warn(msg, fields...)
	default:
		logger.Error(msg, fields...)
	}
}

func outcome(err error) string {
	if err == nil {
		return OutcomeCommitted
	}
	if _, ok := apperrors.IsTransactionConflictError(err); ok {
		return OutcomeConflict
	}
	if isBusinessError(err) {
		return OutcomeRejected
	}
	return OutcomeError
}

func isBusinessError(err error) bool {
	if _, ok := apperrors.IsValidationError(err); ok {
		return true
	}
	if _, ok := apperrors.IsProductNotFoundError(err); ok {
		return true
	}
	if _, ok := apperrors.IsOrderNotFoundError(err); ok {
		return true
	}
	if _, ok := apperrors.IsInsufficientStockError(err); ok {
		return true
	}
	if _, ok := apperrors.IsAlreadyCancelledError(err); ok {
		return true
	}
	if _, ok := apperrors.IsAlreadyDeliveredError(err); ok {
		return true
	}
	if _, ok := apperrors.IsInvalidTransitionError(err); ok {
		return true
	}
	return false
}

// aggregate sums quantities per distinct product and returns the ids sorted,
// which fixes the lock order for row-locking stores.
func aggregate(items []dto.ItemRequest) (map[string]int, []string) {
	quantities := make(map[string]int, len(items))
	for _, item := range items {
		quantities[item.ProductID] += item.Quantity
	}
	return quantities, sortedKeys(quantities)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orderIDRequired() error {
	return apperrors.NewValidationError("orderId is required", apperrors.ValidationDetail{
		Field:   "orderId",
		Message: "orderId must not be empty",
	})
}

func validatePlaceOrder(req dto.PlaceOrderRequest) error {
	var details []apperrors.ValidationDetail
	add := func(field, message string) {
		details = append(details, apperrors.ValidationDetail{Field: field, Message: message})
	}

	if strings.TrimSpace(req.SellerID) == "" {
		add("sellerId", "sellerId is required")
	}

	c := req.Customer
	if strings.TrimSpace(c.Name) == "" {
		add("customer.name", "name is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		add("customer.email", "email is required")
	} else if _, err := mail.ParseAddress(c.Email); err != nil {
		add("customer.email", "email is invalid")
	}
	if strings.TrimSpace(c.Phone) == "" {
		add("customer.phone", "phone is required")
	}
	if strings.TrimSpace(c.Address.Street) == "" {
		add("customer.address.street", "street is required")
	}
	if strings.TrimSpace(c.Address.City) == "" {
		add("customer.address.city", "city is required")
	}
	if strings.TrimSpace(c.Address.PostalCode) == "" {
		add("customer.address.postalCode", "postalCode is required")
	}

	if !req.PaymentMethod.Valid() {
		add("paymentMethod", fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}

	if len(req.Items) == 0 {
		add("items", "items must not be empty")
	}
	if len(req.Items) > MaxItemsPerOrder {
		add("items", "items exceeds maximum of "+strconv.Itoa(MaxItemsPerOrder))
	}
	for idx, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			add("items["+strconv.Itoa(idx)+"].productId", "productId is required")
		}
		if item.Quantity < 1 || item.Quantity > MaxItemQuantity {
			add("items["+strconv.Itoa(idx)+"].quantity", "quantity must be between 1 and "+strconv.Itoa(MaxItemQuantity))
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}
