// Package validation composes the permission evaluator, pricing engine and
// state machine into whole-request checks. A request is either accepted as a
// new normalized order snapshot or rejected with a typed error; the current
// order passed in is never modified.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/orderstate"
)

// Mode selects which rules apply.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
	ModeStatusChange
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "Create"
	case ModeUpdate:
		return "Update"
	case ModeStatusChange:
		return "StatusChange"
	default:
		return "Unknown"
	}
}

// ErrNoCurrentOrder is returned when Update or StatusChange is called without
// the authoritative order. It is a programming error, not a user one.
var ErrNoCurrentOrder = errors.New("current order is required")

// Validator holds the static rules and collaborators. It has no mutable
// state and is safe for concurrent use.
type Validator struct {
	fields  *validator.Validate
	machine *orderstate.Machine
	policy  EditPolicy
	now     func() time.Time
	newID   func() uuid.UUID
}

// Option customizes a Validator.
type Option func(*Validator)

// WithClock sets the clock used for timestamps and order-number dates.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
		v.machine = &orderstate.Machine{Now: now}
	}
}

// WithPolicy replaces the default edit policy.
func WithPolicy(p EditPolicy) Option {
	return func(v *Validator) { v.policy = p }
}

// WithIDGenerator sets how new item IDs are minted.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(v *Validator) { v.newID = gen }
}

// New creates a Validator with the default edit policy (ADMIN may edit in
// any status) and the wall clock.
func New(opts ...Option) *Validator {
	fields := validator.New(validator.WithRequiredStructEnabled())
	fields.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{
		fields:  fields,
		machine: orderstate.New(),
		policy:  DefaultEditPolicy(),
		now:     time.Now,
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Now reads the validator's clock. Hosts use it to pick the business day
// for order-number allocation.
func (v *Validator) Now() time.Time {
	return v.now()
}

// Validate dispatches to the mode-specific check.
func (v *Validator) Validate(mode Mode, req Request) (*order.Order, error) {
	switch mode {
	case ModeCreate:
		return v.Create(req)
	case ModeUpdate:
		return v.Update(req)
	case ModeStatusChange:
		return v.ChangeStatus(req)
	}
	return nil, fmt.Errorf("unknown validation mode %d", mode)
}

// checkInput runs the struct-tag rules over the order head and every line
// that is not being deleted.
func (v *Validator) checkInput(in OrderInput, vs *errs.Violations) {
	head := in
	head.Items = nil
	v.checkFields(head, "", vs)
	for i, it := range in.Items {
		if it.Deleted {
			continue
		}
		v.checkFields(it, fmt.Sprintf("items[%d]", i), vs)
	}
}

// checkFields runs the struct-tag rules on s and records each failure with
// its JSON path under prefix, e.g. items[0].quantity.
func (v *Validator) checkFields(s any, prefix string, vs *errs.Violations) {
	err := v.fields.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		vs.Add(prefix, err.Error())
		return
	}
	for _, fe := range fieldErrs {
		path := fieldPath(fe.Namespace())
		if prefix != "" {
			path = prefix + "." + path
		}
		vs.Add(path, fieldMessage(fe))
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "is invalid (" + fe.Tag() + ")"
}
