// Package pricing derives order totals from line items. Amounts are decimals
// rounded to the currency's two fractional digits.
package pricing

import (
	"github.com/shopspring/decimal"
)

const currencyPlaces = 2

type Config struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
	Currency              string
}

func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingFee:       decimal.NewFromInt(15),
		TaxRate:               decimal.RequireFromString("0.18"),
		Currency:              "TRY",
	}
}

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

func (c *Calculator) Currency() string {
	return c.cfg.Currency
}

// LineTotal is unitPrice × quantity at currency precision.
func (c *Calculator) LineTotal(l Line) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(currencyPlaces)
}

// Calculate returns subtotal, shipping, tax and total. Shipping is free only
// when the subtotal is strictly above the threshold.
func (c *Calculator) Calculate(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(c.LineTotal(l))
	}

	shipping := c.cfg.FlatShippingFee.Round(currencyPlaces)
	if subtotal.GreaterThan(c.cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(c.cfg.TaxRate).Round(currencyPlaces)

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}
