// Package orderstate governs order status transitions.
//
//	DRAFT ──> DISETUJUI ──> TERKIRIM (terminal)
//	  │          │  ▲
//	  │          ▼  │
//	  └────> TIDAK_TERKIRIM
//
// The machine only decides status. Whether an order's content may be edited
// is the validator's concern.
package orderstate

import (
	"time"

	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/order"
)

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusDraft:        {enum.OrderStatusApproved, enum.OrderStatusNotDelivered},
	enum.OrderStatusApproved:     {enum.OrderStatusDelivered, enum.OrderStatusNotDelivered},
	enum.OrderStatusDelivered:    {},
	enum.OrderStatusNotDelivered: {enum.OrderStatusApproved},
}

// AllowedTargets lists the statuses reachable from current in one step.
func AllowedTargets(current enum.OrderStatus) []enum.OrderStatus {
	allowed := allowedTransitions[current]
	out := make([]enum.OrderStatus, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition checks the static table only.
func CanTransition(current, next enum.OrderStatus) bool {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status enum.OrderStatus) bool {
	allowed, known := allowedTransitions[status]
	return known && len(allowed) == 0
}

// validateStatusTransition checks if the transition from current to next is allowed.
func validateStatusTransition(current, next enum.OrderStatus) error {
	if _, ok := allowedTransitions[current]; !ok || IsTerminal(current) {
		return &errs.TransitionError{From: string(current)}
	}
	if !CanTransition(current, next) {
		return errs.NewTransitionError(string(current), string(next))
	}
	return nil
}

// Request is a status change as submitted by a caller. Expected is the status
// the caller believes the order is in.
type Request struct {
	Expected        enum.OrderStatus
	Target          enum.OrderStatus
	ActorID         uuid.UUID
	ActorName       string
	Notes           string
	RejectionReason string
	DeliveryDate    *time.Time
}

// Machine applies transitions. It holds no mutable state; Now is the clock.
type Machine struct {
	Now func() time.Time
}

// New returns a Machine using the wall clock.
func New() *Machine {
	return &Machine{Now: time.Now}
}

// Transition returns a new snapshot of o moved to req.Target with exactly one
// history entry appended. o itself is never modified. A mismatch between
// req.Expected and o.Status is reported as a stale TransitionError so the
// loser of a concurrent race gets a typed rejection.
func (m *Machine) Transition(o *order.Order, req Request) (*order.Order, error) {
	if req.Expected != o.Status {
		return nil, errs.NewStaleTransitionError(string(req.Expected), string(o.Status))
	}
	if err := validateStatusTransition(o.Status, req.Target); err != nil {
		return nil, err
	}

	now := m.now()
	next := o.Clone()
	next.Status = req.Target
	next.UpdatedAt = now

	notes := req.Notes
	switch req.Target {
	case enum.OrderStatusApproved:
		actor := req.ActorID
		next.ApprovedBy = &actor
		next.ApprovedAt = &now
		next.RejectionReason = ""
	case enum.OrderStatusNotDelivered:
		next.RejectionReason = req.RejectionReason
		if notes == "" {
			notes = req.RejectionReason
		}
	case enum.OrderStatusDelivered:
		delivered := now
		if req.DeliveryDate != nil {
			delivered = *req.DeliveryDate
		}
		next.DeliveryDate = &delivered
	}

	next.History = append(next.History, order.HistoryEntry{
		Status:    req.Target,
		Timestamp: now,
		UserID:    req.ActorID,
		UserName:  req.ActorName,
		Notes:     notes,
	})
	return next, nil
}

func (m *Machine) now() time.Time {
	if m == nil || m.Now == nil {
		return time.Now()
	}
	return m.Now()
}
