package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/errs"
)

// PriceList is a product's fixed four-tier list, cheapest first.
type PriceList struct {
	Grosir     decimal.Decimal
	SemiGrosir decimal.Decimal
	Retail     decimal.Decimal
	Modern     decimal.Decimal
}

// Tier returns the list price for a non-CUSTOM price type.
func (l PriceList) Tier(pt enum.PriceType) (decimal.Decimal, bool) {
	switch pt {
	case enum.PriceTypeGrosir:
		return l.Grosir, true
	case enum.PriceTypeSemiGrosir:
		return l.SemiGrosir, true
	case enum.PriceTypeRetail:
		return l.Retail, true
	case enum.PriceTypeModern:
		return l.Modern, true
	}
	return decimal.Zero, false
}

// Validate is run when a product is created or repriced, not per order:
// every tier must be positive and fit a unit price, and
// grosir <= semi_grosir <= retail <= modern.
func (l PriceList) Validate() error {
	var vs errs.Violations
	tiers := []struct {
		path  string
		value decimal.Decimal
	}{
		{"prices.grosir", l.Grosir},
		{"prices.semiGrosir", l.SemiGrosir},
		{"prices.retail", l.Retail},
		{"prices.modern", l.Modern},
	}
	for _, t := range tiers {
		if !t.value.IsPositive() {
			vs.Add(t.path, "must be greater than 0")
			continue
		}
		if !UnitPriceCeiling.Fits(t.value) {
			vs.Add(t.path, "must not exceed "+UnitPriceCeiling.Max().StringFixed(2))
		}
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].value.LessThan(tiers[i-1].value) {
			vs.Add(tiers[i].path, "must not be lower than "+tiers[i-1].path)
		}
	}
	return vs.Err()
}
