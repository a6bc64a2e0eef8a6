// Package order holds the plain order records the engine consumes and
// produces. Records carry no behaviour beyond copying and small queries;
// the rules live in pricing, orderstate and validation.
package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/pricing"
)

// HistoryEntry is one append-only status log line. The JSON shape is part of
// the persisted contract: {status, timestamp, userId, userName?, notes?}.
type HistoryEntry struct {
	Status    enum.OrderStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	UserID    uuid.UUID        `json:"userId"`
	UserName  string           `json:"userName,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

// Item is one order line. Amounts are derived by the pricing engine.
type Item struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	Quantity          int32
	PriceType         enum.PriceType
	UnitPrice         decimal.Decimal
	CustomPrice       *decimal.Decimal
	CustomPriceReason string
	Discount          *pricing.Discount
	Subtotal          decimal.Decimal
	DiscountAmount    decimal.Decimal
	FinalPrice        decimal.Decimal
	Deleted           bool
}

// Order is the normalized snapshot accepted by the validator.
type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	Status          enum.OrderStatus
	SalesID         uuid.UUID
	VisitID         *uuid.UUID
	Notes           string
	Items           []Item
	GrossSubtotal   decimal.Decimal
	Subtotal        decimal.Decimal
	Discount        *pricing.Discount
	DiscountAmount  decimal.Decimal
	Total           decimal.Decimal
	RejectionReason string
	DeliveryDate    *time.Time
	ApprovedBy      *uuid.UUID
	ApprovedAt      *time.Time
	History         []HistoryEntry
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ActiveItems returns the lines that have not been soft-deleted.
func (o *Order) ActiveItems() []Item {
	out := make([]Item, 0, len(o.Items))
	for _, it := range o.Items {
		if !it.Deleted {
			out = append(out, it)
		}
	}
	return out
}

// LastHistory returns the most recent history entry, if any.
func (o *Order) LastHistory() (HistoryEntry, bool) {
	if len(o.History) == 0 {
		return HistoryEntry{}, false
	}
	return o.History[len(o.History)-1], true
}

// Clone returns a deep copy so callers can derive a new snapshot without
// touching the original.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.VisitID = cloneID(o.VisitID)
	c.ApprovedBy = cloneID(o.ApprovedBy)
	c.DeliveryDate = cloneTime(o.DeliveryDate)
	c.ApprovedAt = cloneTime(o.ApprovedAt)
	c.Discount = cloneDiscount(o.Discount)

	if o.Items != nil {
		c.Items = make([]Item, len(o.Items))
		for i, it := range o.Items {
			it.CustomPrice = cloneDecimal(it.CustomPrice)
			it.Discount = cloneDiscount(it.Discount)
			c.Items[i] = it
		}
	}
	if o.History != nil {
		c.History = make([]HistoryEntry, len(o.History))
		copy(c.History, o.History)
	}
	return &c
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneDiscount(d *pricing.Discount) *pricing.Discount {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
