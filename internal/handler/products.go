package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/pricing"
	"github.com/tokoline/sales-api/internal/service"
	"github.com/tokoline/sales-api/internal/store"
	"go.uber.org/zap"
)

// ProductServicer defines the service methods needed by product handlers.
// Satisfied by *service.ProductService.
type ProductServicer interface {
	CreateProduct(ctx context.Context, actor permission.Actor, in service.CreateProductInput) (store.Product, error)
	GetProduct(ctx context.Context, actor permission.Actor, id uuid.UUID) (store.Product, error)
	ListProducts(ctx context.Context, actor permission.Actor, search string, limit, offset int) ([]store.Product, error)
}

// ProductHandler handles product catalog endpoints.
type ProductHandler struct {
	svc ProductServicer
	log *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(svc ProductServicer, log *zap.Logger) *ProductHandler {
	return &ProductHandler{svc: svc, log: log}
}

// RegisterRoutes registers product endpoints on the given Chi router.
// Expected to be mounted at /products behind Authenticate.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type priceListBody struct {
	Grosir     decimal.Decimal `json:"grosir"`
	SemiGrosir decimal.Decimal `json:"semiGrosir"`
	Retail     decimal.Decimal `json:"retail"`
	Modern     decimal.Decimal `json:"modern"`
}

type createProductRequest struct {
	SKU    string        `json:"sku"`
	Name   string        `json:"name"`
	Prices priceListBody `json:"prices"`
}

type priceListResponse struct {
	Grosir     string `json:"grosir"`
	SemiGrosir string `json:"semiGrosir"`
	Retail     string `json:"retail"`
	Modern     string `json:"modern"`
}

type productResponse struct {
	ID        uuid.UUID         `json:"id"`
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	Prices    priceListResponse `json:"prices"`
	IsActive  bool              `json:"isActive"`
	CreatedAt time.Time         `json:"createdAt"`
}

// --- Handlers ---

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	p, err := h.svc.CreateProduct(r.Context(), actor, service.CreateProductInput{
		SKU:  req.SKU,
		Name: req.Name,
		Prices: pricing.PriceList{
			Grosir:     req.Prices.Grosir,
			SemiGrosir: req.Prices.SemiGrosir,
			Retail:     req.Prices.Retail,
			Modern:     req.Prices.Modern,
		},
	})
	if err != nil {
		writeError(w, h.log, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// List handles GET /products?search=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	limit, offset := parsePagination(r)

	products, err := h.svc.ListProducts(r.Context(), actor, r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		writeError(w, h.log, "list products", err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	l, o := service.ClampPage(limit, offset)
	writeJSON(w, http.StatusOK, listResponse[productResponse]{Data: resp, Limit: int(l), Offset: int(o)})
}

// Get handles GET /products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "product")
	if !ok {
		return
	}

	p, err := h.svc.GetProduct(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.log, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func toProductResponse(p store.Product) productResponse {
	return productResponse{
		ID:   p.ID,
		SKU:  p.SKU,
		Name: p.Name,
		Prices: priceListResponse{
			Grosir:     p.Prices.Grosir.StringFixed(2),
			SemiGrosir: p.Prices.SemiGrosir.StringFixed(2),
			Retail:     p.Prices.Retail.StringFixed(2),
			Modern:     p.Prices.Modern.StringFixed(2),
		},
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}
