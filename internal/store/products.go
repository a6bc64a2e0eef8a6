package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tokoline/sales-api/internal/pricing"
)

type Product struct {
	ID        uuid.UUID
	SKU       string
	Name      string
	Prices    pricing.PriceList
	IsActive  bool
	CreatedAt time.Time
}

const productColumns = `id, sku, name, price_grosir, price_semi_grosir, price_retail, price_modern, is_active, created_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var (
		p                                pricing.PriceList
		grosir, semi, retail, modernTier pgtype.Numeric
		out                              Product
	)
	err := row.Scan(&out.ID, &out.SKU, &out.Name, &grosir, &semi, &retail, &modernTier, &out.IsActive, &out.CreatedAt)
	if err != nil {
		return Product{}, err
	}
	p.Grosir = numericToDecimal(grosir)
	p.SemiGrosir = numericToDecimal(semi)
	p.Retail = numericToDecimal(retail)
	p.Modern = numericToDecimal(modernTier)
	out.Prices = p
	return out, nil
}

type CreateProductParams struct {
	SKU    string
	Name   string
	Prices pricing.PriceList
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, `
		INSERT INTO products (sku, name, price_grosir, price_semi_grosir, price_retail, price_modern)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		arg.SKU, arg.Name,
		decimalToNumeric(arg.Prices.Grosir),
		decimalToNumeric(arg.Prices.SemiGrosir),
		decimalToNumeric(arg.Prices.Retail),
		decimalToNumeric(arg.Prices.Modern),
	))
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

type ListProductsParams struct {
	Search string
	Limit  int32
	Offset int32
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE is_active AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR sku ILIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2 OFFSET $3`,
		arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPriceLists loads the list prices of the given active products. Unknown
// or inactive IDs are simply absent from the result.
func (q *Queries) GetPriceLists(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]pricing.PriceList, error) {
	out := make(map[uuid.UUID]pricing.PriceList, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active AND id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query price lists: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan price lists: %w", err)
	}
	for _, p := range products {
		out[p.ID] = p.Prices
	}
	return out, nil
}
