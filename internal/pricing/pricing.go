// Package pricing derives item and order amounts from quantities, tiered
// list prices, custom prices and discounts. All money is fixed-point
// (shopspring/decimal), rounded half-up to two places.
package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/errs"
)

var hundred = decimal.NewFromInt(100)

// Discount is a line- or order-level reduction.
type Discount struct {
	Type  enum.DiscountType
	Value decimal.Decimal
}

// ItemInput is what the pricing engine needs for one order line.
type ItemInput struct {
	Quantity    int32
	PriceType   enum.PriceType
	CustomPrice *decimal.Decimal
	Discount    *Discount
}

// ComputedItem holds the derived amounts of one line.
type ComputedItem struct {
	UnitPrice      decimal.Decimal
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
}

// Totals holds the derived amounts of a whole order.
//
// GrossSubtotal sums line subtotals before line discounts; Subtotal sums the
// discounted line prices and is the base for the order discount.
// DiscountExceeded is set when the order discount was larger than Subtotal
// and had to be clamped.
type Totals struct {
	GrossSubtotal    decimal.Decimal
	Subtotal         decimal.Decimal
	DiscountAmount   decimal.Decimal
	Total            decimal.Decimal
	DiscountExceeded bool
}

// Round2 rounds to two decimal places, half away from zero (half-up for the
// non-negative amounts handled here).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ResolveUnitPrice picks the list tier for priceType, or the custom price
// for CUSTOM lines.
func ResolveUnitPrice(priceType enum.PriceType, list PriceList, customPrice *decimal.Decimal) (decimal.Decimal, error) {
	var vs errs.Violations
	if priceType == enum.PriceTypeCustom {
		if customPrice == nil || !customPrice.IsPositive() {
			vs.Add("customPrice", "must be greater than 0")
			return decimal.Zero, vs.Err()
		}
		return *customPrice, nil
	}
	price, ok := list.Tier(priceType)
	if !ok {
		vs.Add("priceType", "unknown price type")
		return decimal.Zero, vs.Err()
	}
	if !price.IsPositive() {
		vs.Add("priceType", "product has no price for "+string(priceType))
		return decimal.Zero, vs.Err()
	}
	return price, nil
}

// ApplyDiscount returns the amount d takes off base. The amount never exceeds
// base; exceeded reports that it had to be clamped.
func ApplyDiscount(base decimal.Decimal, d *Discount) (amount decimal.Decimal, exceeded bool) {
	if d == nil {
		return decimal.Zero, false
	}
	switch d.Type {
	case enum.DiscountTypePercentage:
		amount = Round2(base.Mul(d.Value).Div(hundred))
	case enum.DiscountTypeFixed:
		amount = d.Value
	default:
		return decimal.Zero, false
	}
	if amount.IsNegative() {
		return decimal.Zero, false
	}
	if amount.GreaterThan(base) {
		return base, true
	}
	return amount, false
}

// PriceItem computes one line: subtotal = unit*qty, then the line discount.
// A FIXED line discount larger than the subtotal is clamped so the line
// never goes negative.
func PriceItem(in ItemInput, list PriceList) (ComputedItem, error) {
	if in.Quantity <= 0 {
		var vs errs.Violations
		vs.Add("quantity", "must be greater than 0")
		return ComputedItem{}, vs.Err()
	}

	unit, err := ResolveUnitPrice(in.PriceType, list, in.CustomPrice)
	if err != nil {
		return ComputedItem{}, err
	}
	if err := UnitPriceCeiling.Check("unitPrice", unit); err != nil {
		return ComputedItem{}, err
	}

	subtotal := Round2(unit.Mul(decimal.NewFromInt32(in.Quantity)))
	if err := LineCeiling.Check("subtotal", subtotal); err != nil {
		return ComputedItem{}, err
	}

	discountAmount, _ := ApplyDiscount(subtotal, in.Discount)
	final := Round2(subtotal.Sub(discountAmount))

	return ComputedItem{
		UnitPrice:      unit,
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		FinalPrice:     final,
	}, nil
}

// PriceOrder aggregates computed lines (active lines only) and applies the
// order-level discount against the sum of discounted line prices.
func PriceOrder(items []ComputedItem, d *Discount) (Totals, error) {
	gross := decimal.Zero
	subtotal := decimal.Zero
	for _, it := range items {
		gross = gross.Add(it.Subtotal)
		subtotal = subtotal.Add(it.FinalPrice)
	}
	if err := OrderCeiling.Check("grossSubtotal", gross); err != nil {
		return Totals{}, err
	}
	if err := OrderCeiling.Check("subtotal", subtotal); err != nil {
		return Totals{}, err
	}

	discountAmount, exceeded := ApplyDiscount(subtotal, d)
	total := Round2(subtotal.Sub(discountAmount))
	if total.IsNegative() {
		total = decimal.Zero
	}
	if err := OrderCeiling.Check("total", total); err != nil {
		return Totals{}, err
	}

	return Totals{
		GrossSubtotal:    gross,
		Subtotal:         subtotal,
		DiscountAmount:   discountAmount,
		Total:            total,
		DiscountExceeded: exceeded,
	}, nil
}
