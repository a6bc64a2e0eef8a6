package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/service"
	"github.com/tokoline/sales-api/internal/store"
	"go.uber.org/zap"
)

// VisitServicer defines the service methods needed by visit handlers.
// Satisfied by *service.VisitService.
type VisitServicer interface {
	CreateVisit(ctx context.Context, actor permission.Actor, in service.CreateVisitInput) (store.Visit, error)
	GetVisit(ctx context.Context, actor permission.Actor, id uuid.UUID) (store.Visit, error)
	ListVisits(ctx context.Context, actor permission.Actor, limit, offset int) ([]store.Visit, error)
}

// VisitHandler handles store-visit endpoints.
type VisitHandler struct {
	svc VisitServicer
	log *zap.Logger
}

func NewVisitHandler(svc VisitServicer, log *zap.Logger) *VisitHandler {
	return &VisitHandler{svc: svc, log: log}
}

// RegisterRoutes registers visit endpoints, mounted at /visits.
func (h *VisitHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

type createVisitRequest struct {
	StoreName string     `json:"storeName"`
	VisitedAt *time.Time `json:"visitedAt"`
	Notes     string     `json:"notes"`
}

type visitResponse struct {
	ID        uuid.UUID `json:"id"`
	SalesID   uuid.UUID `json:"salesId"`
	StoreName string    `json:"storeName"`
	VisitedAt time.Time `json:"visitedAt"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Create handles POST /visits.
func (h *VisitHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req createVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	v, err := h.svc.CreateVisit(r.Context(), actor, service.CreateVisitInput{
		StoreName: req.StoreName,
		VisitedAt: req.VisitedAt,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(w, h.log, "create visit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVisitResponse(v))
}

// List handles GET /visits.
func (h *VisitHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	limit, offset := parsePagination(r)

	visits, err := h.svc.ListVisits(r.Context(), actor, limit, offset)
	if err != nil {
		writeError(w, h.log, "list visits", err)
		return
	}

	resp := make([]visitResponse, len(visits))
	for i, v := range visits {
		resp[i] = toVisitResponse(v)
	}
	l, o := service.ClampPage(limit, offset)
	writeJSON(w, http.StatusOK, listResponse[visitResponse]{Data: resp, Limit: int(l), Offset: int(o)})
}

// Get handles GET /visits/{id}.
func (h *VisitHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "visit")
	if !ok {
		return
	}

	v, err := h.svc.GetVisit(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.log, "get visit", err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitResponse(v))
}

func toVisitResponse(v store.Visit) visitResponse {
	return visitResponse{
		ID:        v.ID,
		SalesID:   v.SalesID,
		StoreName: v.StoreName,
		VisitedAt: v.VisitedAt,
		Notes:     v.Notes,
		CreatedAt: v.CreatedAt,
	}
}
