package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/middleware"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/service"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error         string           `json:"error"`
	Violations    []errs.Violation `json:"violations,omitempty"`
	Field         string           `json:"field,omitempty"`
	CurrentStatus string           `json:"currentStatus,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps engine and service errors to HTTP responses. Anything it
// does not recognise is logged and reported as a 500.
func writeError(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	var (
		ve *errs.ValidationError
		te *errs.TransitionError
		oe *errs.OverflowError
	)
	switch {
	case errors.Is(err, errs.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "insufficient permissions"})
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrVisitNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Violations: ve.Violations})
	case errors.As(err, &te):
		resp := errorResponse{Error: te.Error()}
		if te.Stale {
			resp.CurrentStatus = te.From
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.As(err, &oe):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: oe.Error(), Field: oe.Field})
	default:
		log.Error(op, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func actorFromRequest(w http.ResponseWriter, r *http.Request) (permission.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
	}
	return actor, ok
}

// parsePagination reads limit and offset; out-of-range values fall back to
// the service defaults.
func parsePagination(r *http.Request) (limit, offset int) {
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

type listResponse[T any] struct {
	Data   []T `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
