package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dto"
	apperrors "storefront/internal/errors"
	"storefront/internal/ordernumber"
	"storefront/internal/pricing"
	"storefront/internal/store"
	"storefront/internal/store/memory"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

type sequenceNumbers struct {
	mu      sync.Mutex
	numbers []string
	next    int
}

func (s *sequenceNumbers) Next(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.numbers[s.next%len(s.numbers)]
	s.next++
	return n
}

type recordedTx struct {
	op       string
	outcome  string
	attempts int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedTx
}

func (f *fakeRecorder) ObserveTransaction(op, outcome string, attempts int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seen = append(f.seen, recordedTx{op: op, outcome: outcome, attempts: attempts})
}

func newTestStore() *memory.Store {
	s := memory.New()
	s.UpsertProduct(domain.Product{ID: "p1", SellerID: "seller-a", Name: "Kettle", Price: decimal.NewFromInt(50), Stock: 10})
	s.UpsertProduct(domain.Product{ID: "p2", SellerID: "seller-a", Name: "Toaster", Price: decimal.NewFromInt(20), Stock: 1})
	s.UpsertProduct(domain.Product{ID: "p3", SellerID: "seller-b", Name: "Lamp", Price: decimal.NewFromInt(35), Stock: 5})
	return s
}

func newTestService(s *memory.Store, opts ...Option) *InventoryService {
	return newTestServiceWithNumbers(s, ordernumber.NewGenerator(), opts...)
}

func newTestServiceWithNumbers(s *memory.Store, numbers OrderNumberGenerator, opts ...Option) *InventoryService {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewInventoryService(
		s,
		pricing.NewCalculator(pricing.DefaultConfig()),
		numbers,
		zap.NewNop(),
		Config{TxTimeout: time.Second, MaxRetryAttempts: 5, RetryBaseDelay: time.Millisecond},
		opts...,
	)
}

func customer() domain.Customer {
	return domain.Customer{
		Name:  "Ayse Yilmaz",
		Email: "ayse@example.com",
		Phone: "+90 555 000 0000",
		Address: domain.Address{
			Street:     "Istiklal Cd. 1",
			City:       "Istanbul",
			PostalCode: "34000",
			Country:    "TR",
		},
	}
}

func placeRequest(items ...dto.ItemRequest) dto.PlaceOrderRequest {
	return dto.PlaceOrderRequest{
		SellerID:      "seller-a",
		Customer:      customer(),
		Items:         items,
		PaymentMethod: domain.PaymentMethodCard,
	}
}

func stockOf(t *testing.T, s *memory.Store, id string) int {
	t.Helper()
	products, err := s.FindProductsByIDs(context.Background(), []string{id})
	require.NoError(t, err)
	require.Len(t, products, 1)
	return products[0].Stock
}

func TestPlaceOrder_CreatesOrderAndDecrementsStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 2}))
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Regexp(t, `^ORD-20261014-\d{3}$`, order.OrderNumber)
	assert.Equal(t, "seller-a", order.SellerID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, domain.PaymentMethodCard, order.PaymentMethod)
	assert.True(t, decimal.NewFromInt(100).Equal(order.Subtotal), order.Subtotal.String())
	assert.True(t, decimal.NewFromInt(15).Equal(order.Shipping), order.Shipping.String())
	assert.True(t, decimal.NewFromInt(18).Equal(order.Tax), order.Tax.String())
	assert.True(t, decimal.NewFromInt(133).Equal(order.Total), order.Total.String())
	assert.Equal(t, fixedNow, order.CreatedAt)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "Kettle", order.Items[0].ProductName)
	assert.True(t, decimal.NewFromInt(50).Equal(order.Items[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(100).Equal(order.Items[0].LineTotal))

	assert.Equal(t, 8, stockOf(t, s, "p1"))

	stored, err := s.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, stored.OrderNumber)
}

func TestPlaceOrder_DefaultsPaymentMethodToCash(t *testing.T) {
	s := newTestStore()
	svc := newTestService(s)

	req := placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1})
	req.PaymentMethod = ""

	order, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodCash, order.PaymentMethod)
}

func TestPlaceOrder_DuplicateLinesAreCheckedTogether(t *testing.T) {
	s := newTestStore()
	svc := newTestService(s)

	_, err := svc.PlaceOrder(context.Background(), placeRequest(
		dto.ItemRequest{ProductID: "p1", Quantity: 6},
		dto.ItemRequest{ProductID: "p1", Quantity: 5},
	))

	stockErr, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok, "expected insufficient stock, got %v", err)
	assert.Equal(t, 11, stockErr.Requested)
	assert.Equal(t, 10, stockErr.Available)
	assert.Equal(t, 10, stockOf(t, s, "p1"))
}

func TestPlaceOrder_InsufficientStockWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	_, err := svc.PlaceOrder(ctx, placeRequest(
		dto.ItemRequest{ProductID: "p1", Quantity: 3},
		dto.ItemRequest{ProductID: "p2", Quantity: 2},
	))

	stockErr, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, "p2", stockErr.ProductID)
	assert.Equal(t, "Toaster", stockErr.ProductName)

	assert.Equal(t, 10, stockOf(t, s, "p1"))
	assert.Equal(t, 1, stockOf(t, s, "p2"))
	orders, err := s.ListOrdersBySeller(ctx, "seller-a", store.Page{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	s := newTestStore()
	svc := newTestService(s)

	_, err := svc.PlaceOrder(context.Background(), placeRequest(dto.ItemRequest{ProductID: "missing", Quantity: 1}))

	notFound, ok := apperrors.IsProductNotFoundError(err)
	require.True(t, ok)
	assert.Equal(t, "missing", notFound.ProductID)
}

func TestPlaceOrder_ProductFromAnotherSeller(t *testing.T) {
	s := newTestStore()
	svc := newTestService(s)

	_, err := svc.PlaceOrder(context.Background(), placeRequest(dto.ItemRequest{ProductID: "p3", Quantity: 1}))

	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, 5, stockOf(t, s, "p3"))
}

func TestPlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.PlaceOrderRequest)
		field  string
	}{
		{"missing seller", func(r *dto.PlaceOrderRequest) { r.SellerID = " " }, "sellerId"},
		{"missing name", func(r *dto.PlaceOrderRequest) { r.Customer.Name = "" }, "customer.name"},
		{"bad email", func(r *dto.PlaceOrderRequest) { r.Customer.Email = "not-an-email" }, "customer.email"},
		{"missing phone", func(r *dto.PlaceOrderRequest) { r.Customer.Phone = "" }, "customer.phone"},
		{"missing city", func(r *dto.PlaceOrderRequest) { r.Customer.Address.City = "" }, "customer.address.city"},
		{"unknown payment method", func(r *dto.PlaceOrderRequest) { r.PaymentMethod = "barter" }, "paymentMethod"},
		{"no items", func(r *dto.PlaceOrderRequest) { r.Items = nil }, "items"},
		{"zero quantity", func(r *dto.PlaceOrderRequest) { r.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"huge quantity", func(r *dto.PlaceOrderRequest) { r.Items[0].Quantity = MaxItemQuantity + 1 }, "items[0].quantity"},
		{"blank product id", func(r *dto.PlaceOrderRequest) { r.Items[0].ProductID = "" }, "items[0].productId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			svc := newTestService(s)
			req := placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1})
			tt.mutate(&req)

			_, err := svc.PlaceOrder(context.Background(), req)

			ve, ok := apperrors.IsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			fields := make([]string, len(ve.Details))
			for i, d := range ve.Details {
				fields[i] = d.Field
			}
			assert.Contains(t, fields, tt.field)
			assert.Equal(t, 10, stockOf(t, s, "p1"))
		})
	}
}

func TestPlaceOrder_LastUnitGoesToOneBuyer(t *testing.T) {
	s := newTestStore()
	svc := newTestService(s)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), placeRequest(dto.ItemRequest{ProductID: "p2", Quantity: 1}))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		_, ok := apperrors.IsInsufficientStockError(err)
		assert.True(t, ok, "loser should see insufficient stock, got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, stockOf(t, s, "p2"))
}

func TestPlaceOrder_ConcurrentBuyersNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newContendedService(s)

	const buyers = 25
	var sold atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))
			if err == nil {
				sold.Add(int64(order.Items[0].Quantity))
				return
			}
			_, stock := apperrors.IsInsufficientStockError(err)
			_, conflict := apperrors.IsTransactionConflictError(err)
			assert.True(t, stock || conflict, "unexpected error %v", err)
		}()
	}
	wg.Wait()

	// every loser retries past each rival commit, so the whole stock sells
	assert.Equal(t, int64(10), sold.Load())
	assert.Equal(t, 0, stockOf(t, s, "p1"))
}

// newContendedService has enough attempts to outlast every rival commit in
// the goroutine tests.
func newContendedService(s *memory.Store) *InventoryService {
	return NewInventoryService(
		s,
		pricing.NewCalculator(pricing.DefaultConfig()),
		ordernumber.NewGenerator(),
		zap.NewNop(),
		Config{TxTimeout: time.Second, MaxRetryAttempts: 50, RetryBaseDelay: time.Millisecond},
	)
}

func TestPlaceOrder_RetriesAfterConflict(t *testing.T) {
	s := newTestStore()
	rec := &fakeRecorder{}
	svc := newTestService(s, WithRecorder(rec))

	var calls atomic.Int32
	s.SetBeforeCommitHook(func() {
		if calls.Add(1) == 1 {
			// a competing writer touches p1 between read and commit
			s.UpsertProduct(domain.Product{ID: "p1", SellerID: "seller-a", Name: "Kettle", Price: decimal.NewFromInt(50), Stock: 9})
		}
	})

	order, err := svc.PlaceOrder(context.Background(), placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 2}))
	require.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 7, stockOf(t, s, "p1"))

	require.Len(t, rec.seen, 1)
	assert.Equal(t, recordedTx{op: OpPlaceOrder, outcome: OutcomeCommitted, attempts: 2}, rec.seen[0])
}

func TestPlaceOrder_RetriesOnDuplicateOrderNumber(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	numbers := &sequenceNumbers{numbers: []string{"ORD-20261014-001", "ORD-20261014-001", "ORD-20261014-002"}}
	svc := newTestServiceWithNumbers(s, numbers)

	first, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	second, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	assert.Equal(t, "ORD-20261014-001", first.OrderNumber)
	assert.Equal(t, "ORD-20261014-002", second.OrderNumber)
	assert.Equal(t, 8, stockOf(t, s, "p1"))
}

func TestPlaceOrder_GivesUpAfterMaxAttempts(t *testing.T) {
	s := newTestStore()
	rec := &fakeRecorder{}
	svc := newTestService(s, WithRecorder(rec))

	var calls atomic.Int32
	s.SetBeforeCommitHook(func() {
		n := calls.Add(1)
		s.UpsertProduct(domain.Product{ID: "p1", SellerID: "seller-a", Name: "Kettle", Price: decimal.NewFromInt(50), Stock: 10 + int(n)})
	})

	_, err := svc.PlaceOrder(context.Background(), placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))

	conflict, ok := apperrors.IsTransactionConflictError(err)
	require.True(t, ok, "expected transaction conflict, got %v", err)
	assert.Equal(t, 5, conflict.Attempts)
	assert.ErrorIs(t, err, apperrors.ErrTxConflict)
	assert.Equal(t, int32(5), calls.Load())

	s.SetBeforeCommitHook(nil)
	orders, err := s.ListOrdersBySeller(context.Background(), "seller-a", store.Page{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	require.Len(t, rec.seen, 1)
	assert.Equal(t, OutcomeConflict, rec.seen[0].outcome)
}

func TestPlaceOrder_CancelledContextIsNotRetried(t *testing.T) {
	s := newTestStore()
	svc := newTestService(s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, conflict := apperrors.IsTransactionConflictError(err)
	assert.False(t, conflict)
	assert.Equal(t, 10, stockOf(t, s, "p1"))
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(
		dto.ItemRequest{ProductID: "p1", Quantity: 4},
		dto.ItemRequest{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)
	require.Equal(t, 6, stockOf(t, s, "p1"))

	require.NoError(t, svc.CancelOrder(ctx, order.ID))

	assert.Equal(t, 10, stockOf(t, s, "p1"))
	assert.Equal(t, 1, stockOf(t, s, "p2"))
	stored, err := s.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
}

func TestCancelOrder_Twice(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 2}))
	require.NoError(t, err)
	require.NoError(t, svc.CancelOrder(ctx, order.ID))

	err = svc.CancelOrder(ctx, order.ID)

	_, ok := apperrors.IsAlreadyCancelledError(err)
	assert.True(t, ok)
	assert.Equal(t, 10, stockOf(t, s, "p1"))
}

func TestCancelOrder_Delivered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 2}))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, order.ID, domain.OrderStatusDelivered, nil)
	require.NoError(t, err)

	err = svc.CancelOrder(ctx, order.ID)

	_, ok := apperrors.IsAlreadyDeliveredError(err)
	assert.True(t, ok)
	assert.Equal(t, 8, stockOf(t, s, "p1"))
}

func TestCancelOrder_SkipsDeletedProducts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(
		dto.ItemRequest{ProductID: "p1", Quantity: 2},
		dto.ItemRequest{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)
	s.DeleteProduct("p2")

	require.NoError(t, svc.CancelOrder(ctx, order.ID))

	assert.Equal(t, 10, stockOf(t, s, "p1"))
	stored, err := s.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
}

func TestCancelOrder_UnknownOrder(t *testing.T) {
	svc := newTestService(newTestStore())

	err := svc.CancelOrder(context.Background(), "nope")

	notFound, ok := apperrors.IsOrderNotFoundError(err)
	require.True(t, ok)
	assert.Equal(t, "nope", notFound.OrderID)
}

func TestUpdateStatus_ShippedStoresTracking(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	tracking := &domain.Tracking{Carrier: "Yurtici", TrackingNumber: "YT123"}
	updated, err := svc.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped, tracking)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
	require.NotNil(t, updated.ShippedAt)
	stored, err := s.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Tracking)
	assert.Equal(t, "YT123", stored.Tracking.TrackingNumber)
	assert.Equal(t, 9, stockOf(t, s, "p1"))
}

func TestUpdateStatus_TrackingAddedAfterShipping(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	shipped, err := svc.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped, nil)
	require.NoError(t, err)
	require.NotNil(t, shipped.ShippedAt)
	assert.Nil(t, shipped.Tracking)

	updated, err := svc.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped, &domain.Tracking{Carrier: "UPS", TrackingNumber: "1Z"})
	require.NoError(t, err)
	require.NotNil(t, updated.Tracking)
	assert.Equal(t, "1Z", updated.Tracking.TrackingNumber)

	stored, err := s.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Tracking)
	assert.Equal(t, "UPS", stored.Tracking.Carrier)
	assert.Equal(t, "1Z", stored.Tracking.TrackingNumber)
	require.NotNil(t, stored.ShippedAt)
	assert.True(t, shipped.ShippedAt.Equal(*stored.ShippedAt))
	assert.Equal(t, domain.OrderStatusShipped, stored.Status)
}

func TestUpdateStatus_CancelledRestoresStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 3}))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed, nil)
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, updated.Status)
	assert.Equal(t, 10, stockOf(t, s, "p1"))
}

func TestUpdateStatus_FromTerminalIsRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	require.NoError(t, svc.CancelOrder(ctx, order.ID))

	_, err = svc.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped, nil)

	_, ok := apperrors.IsAlreadyCancelledError(err)
	assert.True(t, ok)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc := newTestService(newTestStore())

	_, err := svc.UpdateStatus(context.Background(), "o1", "lost", nil)

	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestUpdatePaymentStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	updated, err := svc.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPending, updated.Status)

	_, err = svc.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusFailed)
	transition, ok := apperrors.IsInvalidTransitionError(err)
	require.True(t, ok)
	assert.Equal(t, domain.AxisPayment, transition.Axis)

	refunded, err := svc.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.PaymentStatus)
}

func TestConservation_PlaceThenCancelMany(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newTestService(s)

	var ids []string
	for i := 0; i < 4; i++ {
		order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 2}))
		require.NoError(t, err, fmt.Sprintf("order %d", i))
		ids = append(ids, order.ID)
	}
	require.Equal(t, 2, stockOf(t, s, "p1"))

	for _, id := range ids {
		require.NoError(t, svc.CancelOrder(ctx, id))
	}
	assert.Equal(t, 10, stockOf(t, s, "p1"))
}

func TestConservation_CancelsRacingPlaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	svc := newContendedService(s)

	const n = 5
	var placedFirst []string
	for i := 0; i < n; i++ {
		order, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))
		require.NoError(t, err)
		placedFirst = append(placedFirst, order.ID)
	}
	require.Equal(t, 10-n, stockOf(t, s, "p1"))

	var placed, cancelled atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			if err := svc.CancelOrder(ctx, id); assert.NoError(t, err) {
				cancelled.Add(1)
			}
		}(placedFirst[i])
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, placeRequest(dto.ItemRequest{ProductID: "p1", Quantity: 1}))
			if assert.NoError(t, err) {
				placed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), cancelled.Load())
	assert.Equal(t, int64(n), placed.Load())
	assert.Equal(t, 10-int(placed.Load()), stockOf(t, s, "p1"))

	for _, id := range placedFirst {
		o, err := s.FindOrderByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, o.Status)
	}
}
