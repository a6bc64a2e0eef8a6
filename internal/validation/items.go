package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/pricing"
)

var maxPercentage = decimal.NewFromInt(100)

// checkDiscount records bound violations for a discount at path.
func checkDiscount(d *DiscountInput, path string, vs *errs.Violations) {
	if d == nil {
		return
	}
	switch enum.DiscountType(d.Type) {
	case enum.DiscountTypePercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(maxPercentage) {
			vs.Add(path+".value", "percentage must be between 0 and 100")
		}
	case enum.DiscountTypeFixed:
		switch {
		case d.Value.IsNegative():
			vs.Add(path+".value", "must not be negative")
		case !d.Value.Equal(d.Value.Round(2)):
			vs.Add(path+".value", "must have at most 2 decimal places")
		case !pricing.DiscountValueCeiling.Fits(d.Value):
			vs.Add(path+".value", "must not exceed "+pricing.DiscountValueCeiling.Max().StringFixed(2))
		}
	}
}

// checkItems applies the per-line business rules to the active lines and
// the at-least-one and no-duplicate rules to the whole list.
func checkItems(items []ItemInput, catalog Catalog, vs *errs.Violations) {
	seen := make(map[uuid.UUID]int, len(items))
	active := 0
	for i, it := range items {
		if it.Deleted {
			continue
		}
		active++
		prefix := fmt.Sprintf("items[%d]", i)

		if it.ProductID != uuid.Nil {
			if first, dup := seen[it.ProductID]; dup {
				vs.Add("items", fmt.Sprintf("product %s appears in items[%d] and items[%d]", it.ProductID, first, i))
			} else {
				seen[it.ProductID] = i
			}
			if _, ok := catalog[it.ProductID]; !ok {
				vs.Add(prefix+".productId", "product not found")
			}
		}

		if enum.PriceType(it.PriceType) == enum.PriceTypeCustom {
			switch {
			case it.CustomPrice == nil || !it.CustomPrice.IsPositive():
				vs.Add(prefix+".customPrice", "must be greater than 0 for CUSTOM price")
			case !it.CustomPrice.Equal(it.CustomPrice.Round(2)):
				vs.Add(prefix+".customPrice", "must have at most 2 decimal places")
			}
			if strings.TrimSpace(it.CustomPriceReason) == "" {
				vs.Add(prefix+".customPriceReason", "is required for CUSTOM price")
			}
		}

		checkDiscount(it.Discount, prefix+".discount", vs)
	}
	if active == 0 {
		vs.Add("items", "at least one item is required")
	}
}

// priceItem runs the pricing engine for line i and copies the result into a
// normalized order item.
func priceItem(i int, it ItemInput, catalog Catalog, id uuid.UUID) (order.Item, error) {
	pt := enum.PriceType(it.PriceType)
	custom := it.CustomPrice
	reason := strings.TrimSpace(it.CustomPriceReason)
	if pt != enum.PriceTypeCustom {
		custom = nil
		reason = ""
	}

	computed, err := pricing.PriceItem(pricing.ItemInput{
		Quantity:    it.Quantity,
		PriceType:   pt,
		CustomPrice: custom,
		Discount:    it.Discount.toPricing(),
	}, catalog[it.ProductID])
	if err != nil {
		return order.Item{}, prefixError(fmt.Sprintf("items[%d]", i), err)
	}

	var customCopy *decimal.Decimal
	if custom != nil {
		c := *custom
		customCopy = &c
	}
	return order.Item{
		ID:                id,
		ProductID:         it.ProductID,
		Quantity:          it.Quantity,
		PriceType:         pt,
		UnitPrice:         computed.UnitPrice,
		CustomPrice:       customCopy,
		CustomPriceReason: reason,
		Discount:          it.Discount.toPricing(),
		Subtotal:          computed.Subtotal,
		DiscountAmount:    computed.DiscountAmount,
		FinalPrice:        computed.FinalPrice,
	}, nil
}

// applyTotals prices the order aggregate over the active items of o and
// stores the result. A FIXED order discount larger than the subtotal is a
// violation, not a silent clamp.
func applyTotals(o *order.Order) error {
	active := o.ActiveItems()
	computed := make([]pricing.ComputedItem, len(active))
	for i, it := range active {
		computed[i] = pricing.ComputedItem{
			UnitPrice:      it.UnitPrice,
			Subtotal:       it.Subtotal,
			DiscountAmount: it.DiscountAmount,
			FinalPrice:     it.FinalPrice,
		}
	}

	totals, err := pricing.PriceOrder(computed, o.Discount)
	if err != nil {
		return err
	}
	if totals.DiscountExceeded {
		var vs errs.Violations
		vs.Add("discount.value", "must not exceed the order subtotal "+totals.Subtotal.StringFixed(2))
		return vs.Err()
	}

	o.GrossSubtotal = totals.GrossSubtotal
	o.Subtotal = totals.Subtotal
	o.DiscountAmount = totals.DiscountAmount
	o.Total = totals.Total
	return nil
}

// collectPricingError folds a priceItem error into vs so every line is
// reported. The first overflow is kept in *overflow; other errors are returned.
func collectPricingError(err error, vs *errs.Violations, overflow *error) error {
	var ve *errs.ValidationError
	var oe *errs.OverflowError
	switch {
	case errors.As(err, &ve):
		*vs = append(*vs, ve.Violations...)
	case errors.As(err, &oe):
		if *overflow == nil {
			*overflow = err
		}
	default:
		return err
	}
	return nil
}

// prefixError re-roots pricing errors under the item's path.
func prefixError(prefix string, err error) error {
	var oe *errs.OverflowError
	if errors.As(err, &oe) {
		c := *oe
		c.Field = prefix + "." + oe.Field
		return &c
	}
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		var vs errs.Violations
		for _, v := range ve.Violations {
			vs.Add(prefix+"."+v.Path, v.Message)
		}
		return vs.Err()
	}
	return err
}
