package usecase

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/dto"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (*domain.Order, error)
}

type CheckoutRecorder interface {
	ObserveCheckout(status string, sellers int)
}

type CheckoutItem struct {
	ProductID   string
	SellerID    string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

type CheckoutRequest struct {
	Customer      domain.Customer
	Items         []CheckoutItem
	PaymentMethod domain.PaymentMethod
	CustomerNotes string
}

// CheckoutUseCase splits a cart per seller and places one order per seller.
// Sellers succeed or fail independently; a committed order is never rolled
// back because another seller's order failed.
type CheckoutUseCase struct {
	placer      OrderPlacer
	logger      *zap.Logger
	concurrency int
	recorder    CheckoutRecorder
}

func NewCheckoutUseCase(placer OrderPlacer, logger *zap.Logger, concurrency int, recorder CheckoutRecorder) *CheckoutUseCase {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CheckoutUseCase{
		placer:      placer,
		logger:      logger,
		concurrency: concurrency,
		recorder:    recorder,
	}
}

func (uc *CheckoutUseCase) Checkout(ctx context.Context, req CheckoutRequest) (*dto.CheckoutResult, error) {
	items := make([]cart.Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = cart.Item{
			ProductID:   strings.TrimSpace(item.ProductID),
			SellerID:    item.SellerID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		}
	}

	partitions, err := cart.PartitionBySeller(cart.Cart{Items: items})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("checkout started", zap.Int("itemCount", len(items)), zap.Int("sellerCount", len(partitions)))

	results := make([]dto.SellerResult, len(partitions))
	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, p := range partitions {
		g.Go(func() error {
			res := dto.SellerResult{SellerID: p.SellerID}
			res.Order, res.Err = uc.placer.PlaceOrder(ctx, placeRequestFor(req, p))
			if res.Err != nil {
				res.Order = nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	result := &dto.CheckoutResult{Status: dto.StatusOf(results), Results: results}
	if uc.recorder != nil {
		uc.recorder.ObserveCheckout(string(result.Status), len(partitions))
	}

	uc.logger.Info("checkout finished",
		zap.String("status", string(result.Status)),
		zap.Int("succeeded", result.Succeeded()),
		zap.Int("sellerCount", len(partitions)),
	)
	return result, nil
}

func placeRequestFor(req CheckoutRequest, p cart.Partition) dto.PlaceOrderRequest {
	items := make([]dto.ItemRequest, len(p.Items))
	for i, item := range p.Items {
		items[i] = dto.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return dto.PlaceOrderRequest{
		SellerID:      p.SellerID,
		Customer:      req.Customer,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		CustomerNotes: req.CustomerNotes,
	}
}
