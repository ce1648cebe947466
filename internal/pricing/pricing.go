// Package pricing computes sale amounts. All functions are pure: they take
// values and return values, never touching stores or clocks. Amounts are
// int64 centavos; percentage math goes through decimal and rounds half-up
// to whole centavos.
package pricing

import (
	"github.com/shopspring/decimal"

	"slingerp/backend/internal/domain"
)

// Subtotal sums price×qty over the cart lines. Lines are priced from their
// own frozen snapshot, so a line for a product deleted after the cart was
// built still contributes.
func Subtotal(lines []domain.CartLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.PriceCents * int64(line.Qty)
	}
	return total
}

// DiscountAmount resolves a discount against a subtotal. Percentage discounts
// are computed on the subtotal; fixed discounts are the configured amount
// regardless of subtotal. Inactive discounts contribute nothing.
func DiscountAmount(subtotalCents int64, d domain.Discount) int64 {
	if !d.Active {
		return 0
	}
	switch d.Type {
	case domain.DiscountPercentage:
		return percentOf(subtotalCents, d.Percent)
	case domain.DiscountFixed:
		return d.AmountCents
	}
	return 0
}

// SurchargeAmount resolves a manual surcharge. kind is percentage or fixed;
// value is the percent or the amount in centavos. Unknown kinds and
// non-positive values contribute nothing.
func SurchargeAmount(subtotalCents int64, kind string, value float64) int64 {
	if value <= 0 {
		return 0
	}
	switch kind {
	case domain.SurchargePercentage:
		return percentOf(subtotalCents, value)
	case domain.SurchargeFixed:
		return decimal.NewFromFloat(value).Round(0).IntPart()
	}
	return 0
}

// Total combines the three amounts and clamps at zero. A discount larger
// than subtotal plus surcharge never produces a negative total.
func Total(subtotalCents, discountCents, surchargeCents int64) int64 {
	total := subtotalCents - discountCents + surchargeCents
	if total < 0 {
		return 0
	}
	return total
}

func percentOf(amountCents int64, percent float64) int64 {
	if percent <= 0 {
		return 0
	}
	result := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return result.IntPart()
}
