package validation

import (
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/permission"
)

// EditPolicy decides who may change an order's content. The DRAFT-only rule
// and its ADMIN exception live here, apart from the state machine, so that
// "who may edit" and "which transitions are legal" are tested separately.
type EditPolicy struct {
	// AdminAnyStatus lets ADMIN edit items and discounts whatever the status.
	AdminAnyStatus bool
}

// DefaultEditPolicy keeps the documented business exception switched on.
func DefaultEditPolicy() EditPolicy {
	return EditPolicy{AdminAnyStatus: true}
}

// CheckEdit returns ErrPermissionDenied when the actor may not touch the
// order at all, and a ValidationError on "status" when the order is no
// longer editable for that actor.
func (p EditPolicy) CheckEdit(actor permission.Actor, o *order.Order) error {
	if !actor.Can(permission.OrderUpdate, o.SalesID) {
		return errs.ErrPermissionDenied
	}
	if actor.IsAdmin() {
		if p.AdminAnyStatus {
			return nil
		}
	} else if actor.ID != o.SalesID {
		return errs.ErrPermissionDenied
	}
	if o.Status != enum.OrderStatusDraft {
		var vs errs.Violations
		vs.Add("status", "order can only be edited while "+string(enum.OrderStatusDraft))
		return vs.Err()
	}
	return nil
}
