// Package errs defines the typed rejections produced by the order engine.
//
// Every error type unwraps to one of four sentinels so callers can classify
// a rejection with errors.Is and inspect details with errors.As:
//   - ErrPermissionDenied: role, activity or ownership check failed
//   - ErrInvalidTransition: illegal or stale status transition
//   - ErrValidationFailed: one or more field-level violations
//   - ErrPricingOverflow: a computed amount exceeds its digit ceiling
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidationFailed  = errors.New("validation failed")
	ErrPricingOverflow   = errors.New("pricing overflow")
)

// TransitionError describes a rejected status change.
// Stale is set when the caller's expected status no longer matches the
// authoritative one.
type TransitionError struct {
	From  string
	To    string
	Stale bool
}

func NewTransitionError(from, to string) *TransitionError {
	return &TransitionError{From: from, To: to}
}

func NewStaleTransitionError(expected, actual string) *TransitionError {
	return &TransitionError{From: actual, To: expected, Stale: true}
}

func (e *TransitionError) Error() string {
	if e.Stale {
		return fmt.Sprintf("%s: order status changed to %s, expected %s", ErrInvalidTransition, e.From, e.To)
	}
	if e.To == "" {
		return fmt.Sprintf("%s: cannot transition from %s", ErrInvalidTransition, e.From)
	}
	return fmt.Sprintf("%s: cannot transition from %s to %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Violation is a single field-level problem. Path is the full location in the
// request (items[1].customPrice), Field the last segment (customPrice).
type Violation struct {
	Path    string `json:"path"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every violation found in one request.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Path+": "+v.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// Has reports whether any violation sits at the given path.
func (e *ValidationError) Has(path string) bool {
	for _, v := range e.Violations {
		if v.Path == path {
			return true
		}
	}
	return false
}

// HasField reports whether any violation targets the given field name,
// regardless of where in the request it sits.
func (e *ValidationError) HasField(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Violations accumulates problems while a request is checked.
type Violations []Violation

func (vs *Violations) Add(path, message string) {
	*vs = append(*vs, Violation{Path: path, Field: lastSegment(path), Message: message})
}

// Err returns nil when nothing was collected.
func (vs Violations) Err() error {
	if len(vs) == 0 {
		return nil
	}
	out := make([]Violation, len(vs))
	copy(out, vs)
	return &ValidationError{Violations: out}
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.IndexByte(path, '['); i >= 0 {
		path = path[:i]
	}
	return path
}

// OverflowError is returned when a computed amount does not fit its
// (precision, scale) ceiling.
type OverflowError struct {
	Field     string
	Value     string
	Precision int32
	Scale     int32
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: %s=%s exceeds numeric(%d,%d)", ErrPricingOverflow, e.Field, e.Value, e.Precision, e.Scale)
}

func (e *OverflowError) Unwrap() error {
	return ErrPricingOverflow
}
