// Package pricing computes order totals from line items. It is pure: no I/O,
// deterministic for the same input and config, so identical carts always price
// identically.
package pricing

import "github.com/shopspring/decimal"

type Config struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShipping          decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		TaxRate:               decimal.NewFromFloat(0.10),
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShipping:          decimal.NewFromInt(10),
	}
}

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Quote struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Price sums the lines and applies tax and shipping. Rounding happens once on
// the summed subtotal and once on the tax, half up to two decimals; individual
// lines are never rounded.
func (e *Engine) Price(lines []Line) Quote {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(e.cfg.TaxRate).Round(2)

	// Free shipping strictly above the threshold.
	shipping := e.cfg.FlatShipping
	if subtotal.GreaterThan(e.cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}
