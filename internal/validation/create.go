package validation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/ordernumber"
	"github.com/tokoline/sales-api/internal/permission"
)

// Create validates a new order and returns it in DRAFT with its order number
// and initial history entry. req.Sequence is the per-day counter allocated by
// the caller.
func (v *Validator) Create(req Request) (*order.Order, error) {
	actor := req.Actor
	if !actor.Can(permission.OrderCreate, uuid.Nil) {
		return nil, errs.ErrPermissionDenied
	}

	in := req.Input
	var vs errs.Violations
	v.checkInput(in, &vs)
	checkItems(in.Items, req.Catalog, &vs)
	checkDiscount(in.Discount, "discount", &vs)

	// Orders normally originate from a store visit; ADMIN may create without one.
	if !actor.IsAdmin() && in.VisitID == nil {
		vs.Add("visitId", "is required")
	}
	if !actor.IsAdmin() && in.SalesID != uuid.Nil && in.SalesID != actor.ID {
		vs.Add("salesId", "cannot create orders for another sales user")
	}
	if err := vs.Err(); err != nil {
		return nil, err
	}

	now := v.now()
	number, err := ordernumber.Format(now, req.Sequence)
	if err != nil {
		return nil, fmt.Errorf("order number: %w", err)
	}

	salesID := actor.ID
	if actor.IsAdmin() && in.SalesID != uuid.Nil {
		salesID = in.SalesID
	}

	o := &order.Order{
		ID:          v.newID(),
		OrderNumber: number,
		Status:      enum.OrderStatusDraft,
		SalesID:     salesID,
		VisitID:     copyID(in.VisitID),
		Notes:       in.Notes,
		Discount:    in.Discount.toPricing(),
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var overflow error
	for i, it := range in.Items {
		if it.Deleted {
			continue
		}
		item, err := priceItem(i, it, req.Catalog, v.newID())
		if err != nil {
			if err := collectPricingError(err, &vs, &overflow); err != nil {
				return nil, err
			}
			continue
		}
		o.Items = append(o.Items, item)
	}
	if err := vs.Err(); err != nil {
		return nil, err
	}
	if overflow != nil {
		return nil, overflow
	}
	if err := applyTotals(o); err != nil {
		return nil, err
	}

	o.History = []order.HistoryEntry{{
		Status:    enum.OrderStatusDraft,
		Timestamp: now,
		UserID:    actor.ID,
		UserName:  actor.Name,
	}}
	return o, nil
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
