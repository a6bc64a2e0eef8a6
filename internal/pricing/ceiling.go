package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/tokoline/sales-api/internal/errs"
)

// Ceiling is a numeric(precision, scale) bound, matching the DB columns.
type Ceiling struct {
	Precision int32
	Scale     int32
}

var (
	UnitPriceCeiling     = Ceiling{Precision: 8, Scale: 2}
	LineCeiling          = Ceiling{Precision: 10, Scale: 2}
	OrderCeiling         = Ceiling{Precision: 11, Scale: 2}
	DiscountValueCeiling = Ceiling{Precision: 10, Scale: 2}
)

// Max is the largest value the ceiling admits, e.g. 999999.99 for (8,2).
func (c Ceiling) Max() decimal.Decimal {
	return decimal.New(1, c.Precision-c.Scale).Sub(decimal.New(1, -c.Scale))
}

// Fits reports whether |v| fits without truncation.
func (c Ceiling) Fits(v decimal.Decimal) bool {
	if !v.Equal(v.Round(c.Scale)) {
		return false
	}
	return v.Abs().LessThanOrEqual(c.Max())
}

// Check returns an OverflowError for field when v does not fit.
func (c Ceiling) Check(field string, v decimal.Decimal) error {
	if c.Fits(v) {
		return nil
	}
	return &errs.OverflowError{
		Field:     field,
		Value:     v.String(),
		Precision: c.Precision,
		Scale:     c.Scale,
	}
}
