package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trywear-labs/storefront-backend/pkg/config"
	pkgerrors "github.com/trywear-labs/storefront-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

// Line is one cart entry priced at sale time.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote is the full price breakdown for a cart.
// Total = Subtotal - DiscountAmount - LoyaltyDiscount + TaxAmount.
type Quote struct {
	Subtotal        decimal.Decimal
	DiscountPercent int
	DiscountAmount  decimal.Decimal
	LoyaltyDiscount decimal.Decimal
	Taxable         decimal.Decimal
	TaxPercent      decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
	LineTotals      []decimal.Decimal
}

// Calculator prices carts. It is pure; configuration is fixed at build time.
type Calculator struct {
	taxPercent   decimal.Decimal
	allowedTiers map[int]struct{}
}

// NewCalculator builds a calculator from the pricing configuration.
func NewCalculator(cfg config.PricingConfig) (*Calculator, error) {
	taxPercent, err := decimal.NewFromString(cfg.TaxPercent)
	if err != nil {
		return nil, fmt.Errorf("invalid tax percent %q: %w", cfg.TaxPercent, err)
	}
	if taxPercent.IsNegative() {
		return nil, fmt.Errorf("tax percent must be non-negative")
	}
	tiers, err := cfg.DiscountTierValues()
	if err != nil {
		return nil, err
	}
	allowed := make(map[int]struct{}, len(tiers))
	for _, tier := range tiers {
		allowed[tier] = struct{}{}
	}
	return &Calculator{
		taxPercent:   taxPercent,
		allowedTiers: allowed,
	}, nil
}

// Quote prices the cart. The percent discount applies to the subtotal, the
// loyalty discount applies after it, and tax applies to what remains. All
// amounts round to 2 decimal places.
func (c *Calculator) Quote(lines []Line, discountPercent int, loyaltyDiscount decimal.Decimal) (*Quote, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no lines")
	}
	if _, ok := c.allowedTiers[discountPercent]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent not in allowed tiers").
			WithDetails(map[string]any{"discount_percent": discountPercent})
	}
	if loyaltyDiscount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loyalty discount must be non-negative")
	}

	subtotal := decimal.Zero
	lineTotals := make([]decimal.Decimal, len(lines))
	for i, line := range lines {
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be at least 1").
				WithDetails(map[string]any{"line": i})
		}
		if line.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line unit price must be non-negative").
				WithDetails(map[string]any{"line": i})
		}
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		lineTotals[i] = lineTotal
		subtotal = subtotal.Add(lineTotal)
	}
	subtotal = subtotal.Round(2)

	discountAmount := subtotal.
		Mul(decimal.NewFromInt(int64(discountPercent))).
		Div(oneHundred).
		Round(2)

	afterDiscount := subtotal.Sub(discountAmount)
	if loyaltyDiscount.GreaterThan(afterDiscount) {
		loyaltyDiscount = afterDiscount
	}
	loyaltyDiscount = loyaltyDiscount.Round(2)

	taxable := afterDiscount.Sub(loyaltyDiscount)
	taxAmount := taxable.Mul(c.taxPercent).Div(oneHundred).Round(2)
	total := taxable.Add(taxAmount).Round(2)

	return &Quote{
		Subtotal:        subtotal,
		DiscountPercent: discountPercent,
		DiscountAmount:  discountAmount,
		LoyaltyDiscount: loyaltyDiscount,
		Taxable:         taxable,
		TaxPercent:      c.taxPercent,
		TaxAmount:       taxAmount,
		Total:           total,
		LineTotals:      lineTotals,
	}, nil
}

// TaxPercent exposes the configured tax rate for persisting on orders.
func (c *Calculator) TaxPercent() decimal.Decimal {
	return c.taxPercent
}
