// Package pricing computes promotional prices for catalog items.
//
// Effective prices are derived on every read from the promotions attached to
// a product and are never persisted.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promotion discount strategies.
type DiscountType string

const (
	// Percentage takes Value percent off the price.
	Percentage DiscountType = "percentage"
	// FixedAmount takes Value off the price.
	FixedAmount DiscountType = "fixed_amount"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == Percentage || t == FixedAmount
}

var hundred = decimal.NewFromInt(100)

// Rule is the pricing-relevant part of a promotion.
type Rule struct {
	PromotionID  string
	Name         string
	DiscountType DiscountType
	Value        decimal.Decimal
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
}

// ActiveAt reports whether the rule applies at now. Both window bounds are
// inclusive.
func (r Rule) ActiveAt(now time.Time) bool {
	return r.IsActive && !now.Before(r.StartDate) && !now.After(r.EndDate)
}

// Discount returns the absolute discount the rule grants on price.
func (r Rule) Discount(price decimal.Decimal) decimal.Decimal {
	switch r.DiscountType {
	case FixedAmount:
		return r.Value
	case Percentage:
		return price.Mul(r.Value).Div(hundred)
	default:
		return decimal.Zero
	}
}

// Pricing is the promotional price block attached to a product.
type Pricing struct {
	OriginalPrice  decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
	PromotionID    string
	PromotionName  string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	EndDate        time.Time
}

// Effective selects the rule granting the largest discount among those
// active at now. Ties go to the earliest rule in the slice. It returns nil
// when no rule applies.
func Effective(price decimal.Decimal, rules []Rule, now time.Time) *Pricing {
	var (
		best     *Rule
		bestDisc decimal.Decimal
	)
	for i := range rules {
		r := &rules[i]
		if !r.ActiveAt(now) {
			continue
		}
		d := r.Discount(price)
		if best == nil || d.GreaterThan(bestDisc) {
			best, bestDisc = r, d
		}
	}
	if best == nil {
		return nil
	}

	final := price.Sub(bestDisc)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return &Pricing{
		OriginalPrice:  price,
		DiscountAmount: bestDisc.Round(2),
		FinalPrice:     final.Round(2),
		PromotionID:    best.PromotionID,
		PromotionName:  best.Name,
		DiscountType:   best.DiscountType,
		DiscountValue:  best.Value,
		EndDate:        best.EndDate,
	}
}
