package validation

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/orderstate"
	"github.com/tokoline/sales-api/internal/permission"
)

// ChangeStatus validates a status change and delegates it to the state
// machine. Moving into TIDAK_TERKIRIM requires a rejection reason.
func (v *Validator) ChangeStatus(req Request) (*order.Order, error) {
	current := req.Current
	if current == nil {
		return nil, ErrNoCurrentOrder
	}
	in := req.Status
	target := enum.OrderStatus(in.Target)

	// Targets with no mapped permission (DRAFT, unknown values) still require
	// one of the transition permissions. Runs before the stale guard.
	if perm, ok := permission.ForTransition(target); ok {
		if !req.Actor.Can(perm, uuid.Nil) {
			return nil, errs.ErrPermissionDenied
		}
	} else if !req.Actor.CanAny(uuid.Nil, permission.OrderApprove, permission.OrderReject, permission.OrderDeliver) {
		return nil, errs.ErrPermissionDenied
	}

	var vs errs.Violations
	v.checkFields(in, "", &vs)
	if in.Expected != "" && !enum.OrderStatus(in.Expected).Valid() {
		vs.Add("expectedStatus", "unknown status")
	}
	if target == enum.OrderStatusNotDelivered && strings.TrimSpace(in.RejectionReason) == "" {
		vs.Add("rejectionReason", "is required when marking an order "+string(enum.OrderStatusNotDelivered))
	}
	if err := vs.Err(); err != nil {
		return nil, err
	}

	return v.machine.Transition(current, orderstate.Request{
		Expected:        enum.OrderStatus(in.Expected),
		Target:          target,
		ActorID:         req.Actor.ID,
		ActorName:       req.Actor.Name,
		Notes:           strings.TrimSpace(in.Notes),
		RejectionReason: strings.TrimSpace(in.RejectionReason),
		DeliveryDate:    in.DeliveryDate,
	})
}
