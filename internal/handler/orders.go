package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/pricing"
	"github.com/tokoline/sales-api/internal/service"
	"github.com/tokoline/sales-api/internal/validation"
	"go.uber.org/zap"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, actor permission.Actor, in validation.OrderInput) (*order.Order, error)
	UpdateOrder(ctx context.Context, actor permission.Actor, id uuid.UUID, in validation.OrderInput) (*order.Order, error)
	ChangeStatus(ctx context.Context, actor permission.Actor, id uuid.UUID, in validation.StatusInput) (*order.Order, error)
	GetOrder(ctx context.Context, actor permission.Actor, id uuid.UUID) (*order.Order, error)
	ListOrders(ctx context.Context, actor permission.Actor, f service.ListOrdersFilter) ([]*order.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
	log *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, log *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders behind Authenticate.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Response types ---

type discountResponse struct {
	Type  enum.DiscountType `json:"type"`
	Value string            `json:"value"`
}

type orderItemResponse struct {
	ID                uuid.UUID         `json:"id"`
	ProductID         uuid.UUID         `json:"productId"`
	Quantity          int32             `json:"quantity"`
	PriceType         enum.PriceType    `json:"priceType"`
	UnitPrice         string            `json:"unitPrice"`
	CustomPrice       *string           `json:"customPrice"`
	CustomPriceReason string            `json:"customPriceReason,omitempty"`
	Discount          *discountResponse `json:"discount"`
	Subtotal          string            `json:"subtotal"`
	DiscountAmount    string            `json:"discountAmount"`
	FinalPrice        string            `json:"finalPrice"`
}

type orderResponse struct {
	ID              uuid.UUID            `json:"id"`
	OrderNumber     string               `json:"orderNumber"`
	Status          enum.OrderStatus     `json:"status"`
	SalesID         uuid.UUID            `json:"salesId"`
	VisitID         *uuid.UUID           `json:"visitId"`
	Notes           string               `json:"notes"`
	GrossSubtotal   string               `json:"grossSubtotal"`
	Subtotal        string               `json:"subtotal"`
	Discount        *discountResponse    `json:"discount"`
	DiscountAmount  string               `json:"discountAmount"`
	Total           string               `json:"total"`
	RejectionReason string               `json:"rejectionReason,omitempty"`
	DeliveryDate    *time.Time           `json:"deliveryDate"`
	ApprovedBy      *uuid.UUID           `json:"approvedBy"`
	ApprovedAt      *time.Time           `json:"approvedAt"`
	CreatedBy       uuid.UUID            `json:"createdBy"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	Items           []orderItemResponse  `json:"items,omitempty"`
	History         []order.HistoryEntry `json:"history,omitempty"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req validation.OrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	o, err := h.svc.CreateOrder(r.Context(), actor, req)
	if err != nil {
		writeError(w, h.log, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := service.ListOrdersFilter{}
	f.Limit, f.Offset = parsePagination(r)

	if s := q.Get("status"); s != "" {
		st := enum.OrderStatus(s)
		if !st.Valid() {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status"})
			return
		}
		f.Status = st
	}
	if s := q.Get("salesId"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid salesId"})
			return
		}
		f.SalesID = &id
	}
	if s := q.Get("startDate"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid startDate format, use YYYY-MM-DD"})
			return
		}
		f.StartDate = &t
	}
	if s := q.Get("endDate"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid endDate format, use YYYY-MM-DD"})
			return
		}
		// Inclusive of the whole end day.
		t = t.AddDate(0, 0, 1)
		f.EndDate = &t
	}

	orders, err := h.svc.ListOrders(r.Context(), actor, f)
	if err != nil {
		writeError(w, h.log, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	limit, offset := service.ClampPage(f.Limit, f.Offset)
	writeJSON(w, http.StatusOK, listResponse[orderResponse]{Data: resp, Limit: int(limit), Offset: int(offset)})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "order")
	if !ok {
		return
	}

	o, err := h.svc.GetOrder(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.log, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// Update handles PUT /orders/{id}.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "order")
	if !ok {
		return
	}

	var req validation.OrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	o, err := h.svc.UpdateOrder(r.Context(), actor, id, req)
	if err != nil {
		writeError(w, h.log, "update order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "order")
	if !ok {
		return
	}

	var req validation.StatusInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	o, err := h.svc.ChangeStatus(r.Context(), actor, id, req)
	if err != nil {
		writeError(w, h.log, "change order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// --- Helpers ---

func parseID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

func toDiscountResponse(d *pricing.Discount) *discountResponse {
	if d == nil {
		return nil
	}
	return &discountResponse{Type: d.Type, Value: d.Value.String()}
}

// toOrderResponse renders active lines only; soft-deleted lines stay in the
// database for audit.
func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		SalesID:         o.SalesID,
		VisitID:         o.VisitID,
		Notes:           o.Notes,
		GrossSubtotal:   o.GrossSubtotal.StringFixed(2),
		Subtotal:        o.Subtotal.StringFixed(2),
		Discount:        toDiscountResponse(o.Discount),
		DiscountAmount:  o.DiscountAmount.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		RejectionReason: o.RejectionReason,
		DeliveryDate:    o.DeliveryDate,
		ApprovedBy:      o.ApprovedBy,
		ApprovedAt:      o.ApprovedAt,
		CreatedBy:       o.CreatedBy,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		History:         o.History,
	}
	for _, it := range o.ActiveItems() {
		item := orderItemResponse{
			ID:                it.ID,
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			PriceType:         it.PriceType,
			UnitPrice:         it.UnitPrice.StringFixed(2),
			CustomPriceReason: it.CustomPriceReason,
			Discount:          toDiscountResponse(it.Discount),
			Subtotal:          it.Subtotal.StringFixed(2),
			DiscountAmount:    it.DiscountAmount.StringFixed(2),
			FinalPrice:        it.FinalPrice.StringFixed(2),
		}
		if it.CustomPrice != nil {
			s := it.CustomPrice.StringFixed(2)
			item.CustomPrice = &s
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}
