package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/pricing"
	"github.com/tokoline/sales-api/internal/store"
	"go.uber.org/zap"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStore defines the DB methods needed by the product service.
// Satisfied by *store.Queries.
type ProductStore interface {
	CreateProduct(ctx context.Context, arg store.CreateProductParams) (store.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error)
	ListProducts(ctx context.Context, arg store.ListProductsParams) ([]store.Product, error)
}

type ProductService struct {
	store ProductStore
	log   *zap.Logger
}

func NewProductService(store ProductStore, log *zap.Logger) *ProductService {
	return &ProductService{store: store, log: log}
}

type CreateProductInput struct {
	SKU    string
	Name   string
	Prices pricing.PriceList
}

// CreateProduct stores a product after checking its four price tiers.
func (s *ProductService) CreateProduct(ctx context.Context, actor permission.Actor, in CreateProductInput) (store.Product, error) {
	if !actor.Can(permission.ProductManage, uuid.Nil) {
		return store.Product{}, errs.ErrPermissionDenied
	}

	var vs errs.Violations
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	if in.SKU == "" {
		vs.Add("sku", "is required")
	}
	if in.Name == "" {
		vs.Add("name", "is required")
	}
	if err := in.Prices.Validate(); err != nil {
		var ve *errs.ValidationError
		if !errors.As(err, &ve) {
			return store.Product{}, err
		}
		vs = append(vs, ve.Violations...)
	}
	if err := vs.Err(); err != nil {
		return store.Product{}, err
	}

	p, err := s.store.CreateProduct(ctx, store.CreateProductParams{SKU: in.SKU, Name: in.Name, Prices: in.Prices})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			var dup errs.Violations
			dup.Add("sku", "already exists")
			return store.Product{}, dup.Err()
		}
		return store.Product{}, fmt.Errorf("create product: %w", err)
	}
	s.log.Info("product created", zap.String("product_id", p.ID.String()), zap.String("sku", p.SKU))
	return p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, actor permission.Actor, id uuid.UUID) (store.Product, error) {
	if !actor.Can(permission.ProductRead, uuid.Nil) {
		return store.Product{}, errs.ErrPermissionDenied
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Product{}, ErrProductNotFound
		}
		return store.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *ProductService) ListProducts(ctx context.Context, actor permission.Actor, search string, limit, offset int) ([]store.Product, error) {
	if !actor.Can(permission.ProductRead, uuid.Nil) {
		return nil, errs.ErrPermissionDenied
	}
	l, o := ClampPage(limit, offset)
	products, err := s.store.ListProducts(ctx, store.ListProductsParams{Search: strings.TrimSpace(search), Limit: l, Offset: o})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}
