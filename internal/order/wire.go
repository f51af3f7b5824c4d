package order

import (
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/metrics"
	"storefront/internal/order/controller"
	"storefront/internal/order/service"
	"storefront/internal/order/usecase"
	"storefront/internal/ordernumber"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

func NewModule(st store.Store, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *controller.OrderController {
	calculator := pricing.NewCalculator(pricing.Config{
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		FlatShippingFee:       cfg.Pricing.FlatShippingFee,
		TaxRate:               cfg.Pricing.TaxRate,
		Currency:              cfg.Pricing.Currency,
	})

	inventory := service.NewInventoryService(
		st,
		calculator,
		ordernumber.NewGenerator(),
		logger,
		service.Config{
			TxTimeout:        cfg.Order.TxTimeout,
			MaxRetryAttempts: cfg.Order.MaxRetryAttempts,
			RetryBaseDelay:   cfg.Order.RetryBaseDelay,
		},
		service.WithRecorder(m),
	)

	checkout := usecase.NewCheckoutUseCase(inventory, logger, cfg.Order.CheckoutConcurrency, m)
	orders := usecase.NewOrderUseCase(inventory, st, logger)

	return controller.NewOrderController(checkout, orders, calculator.Currency(), logger)
}
