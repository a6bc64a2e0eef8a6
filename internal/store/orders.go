package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/pricing"
)

const orderColumns = `id, order_number, status, sales_id, visit_id, notes,
	gross_subtotal, subtotal, discount_type, discount_value, discount_amount, total,
	rejection_reason, delivery_date, approved_by, approved_at, created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (*order.Order, error) {
	var (
		o                                       order.Order
		visitID, approvedBy                     pgtype.UUID
		notes, discType, rejection              pgtype.Text
		gross, subtotal, discValue, discAmt, tt pgtype.Numeric
		delivery, approvedAt                    pgtype.Timestamptz
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.SalesID, &visitID, &notes,
		&gross, &subtotal, &discType, &discValue, &discAmt, &tt,
		&rejection, &delivery, &approvedBy, &approvedAt, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.VisitID = uuidPtr(visitID)
	o.Notes = notes.String
	o.GrossSubtotal = numericToDecimal(gross)
	o.Subtotal = numericToDecimal(subtotal)
	o.Discount = toDiscount(discType, discValue)
	o.DiscountAmount = numericToDecimal(discAmt)
	o.Total = numericToDecimal(tt)
	o.RejectionReason = rejection.String
	o.DeliveryDate = timePtr(delivery)
	o.ApprovedBy = uuidPtr(approvedBy)
	o.ApprovedAt = timePtr(approvedAt)
	return &o, nil
}

func toDiscount(t pgtype.Text, v pgtype.Numeric) *pricing.Discount {
	if !t.Valid {
		return nil
	}
	return &pricing.Discount{Type: enum.DiscountType(t.String), Value: numericToDecimal(v)}
}

func discountColumns(d *pricing.Discount) (pgtype.Text, pgtype.Numeric) {
	if d == nil {
		return pgtype.Text{}, pgtype.Numeric{}
	}
	return pgtype.Text{String: string(d.Type), Valid: true}, decimalToNumeric(d.Value)
}

// GetOrder loads an order with all of its lines (deleted ones included) and
// its status history. Missing orders return pgx.ErrNoRows.
func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if o.Items, err = q.listOrderItems(ctx, id); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	if o.History, err = q.listOrderHistory(ctx, id); err != nil {
		return nil, fmt.Errorf("list order history: %w", err)
	}
	return o, nil
}

// ListOrdersParams filters the order list. A nil SalesID lists every sales
// user; an empty Status lists every status.
type ListOrdersParams struct {
	SalesID   *uuid.UUID
	Status    enum.OrderStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int32
	Offset    int32
}

// ListOrders returns order headers without lines or history.
func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]*order.Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1::uuid IS NULL OR sales_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`,
		optionalUUID(arg.SalesID), string(arg.Status), optionalTime(arg.StartDate), optionalTime(arg.EndDate),
		arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// LastOrderNumber returns the highest order number starting with prefix, or
// "" when there is none yet.
func (q *Queries) LastOrderNumber(ctx context.Context, prefix string) (string, error) {
	var last pgtype.Text
	err := q.db.QueryRow(ctx,
		`SELECT MAX(order_number) FROM orders WHERE order_number LIKE $1 || '%'`, prefix).Scan(&last)
	if err != nil {
		return "", err
	}
	return last.String, nil
}

// InsertOrder writes a new order with its lines and history.
func (q *Queries) InsertOrder(ctx context.Context, o *order.Order) error {
	discType, discValue := discountColumns(o.Discount)
	_, err := q.db.Exec(ctx, `
		INSERT INTO orders (id, order_number, status, sales_id, visit_id, notes,
			gross_subtotal, subtotal, discount_type, discount_value, discount_amount, total,
			rejection_reason, delivery_date, approved_by, approved_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		o.ID, o.OrderNumber, string(o.Status), o.SalesID, optionalUUID(o.VisitID), optionalText(o.Notes),
		decimalToNumeric(o.GrossSubtotal), decimalToNumeric(o.Subtotal), discType, discValue,
		decimalToNumeric(o.DiscountAmount), decimalToNumeric(o.Total),
		optionalText(o.RejectionReason), optionalTime(o.DeliveryDate), optionalUUID(o.ApprovedBy), optionalTime(o.ApprovedAt),
		o.CreatedBy, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if err := q.saveOrderItems(ctx, o); err != nil {
		return err
	}
	for _, h := range o.History {
		if err := q.InsertHistory(ctx, o.ID, h); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOrderContent rewrites notes, discount, totals and lines of an order,
// guarded by the status the caller validated against. It returns the number
// of orders updated; zero means the status moved underneath the caller.
func (q *Queries) UpdateOrderContent(ctx context.Context, o *order.Order, expected enum.OrderStatus) (int64, error) {
	discType, discValue := discountColumns(o.Discount)
	tag, err := q.db.Exec(ctx, `
		UPDATE orders
		SET notes = $3, gross_subtotal = $4, subtotal = $5, discount_type = $6, discount_value = $7,
			discount_amount = $8, total = $9, updated_at = $10
		WHERE id = $1 AND status = $2`,
		o.ID, string(expected), optionalText(o.Notes),
		decimalToNumeric(o.GrossSubtotal), decimalToNumeric(o.Subtotal), discType, discValue,
		decimalToNumeric(o.DiscountAmount), decimalToNumeric(o.Total), o.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, nil
	}
	if err := q.saveOrderItems(ctx, o); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateOrderStatus moves an order from expected to o.Status, writing the
// status-dependent columns. Zero rows affected means another writer won.
func (q *Queries) UpdateOrderStatus(ctx context.Context, o *order.Order, expected enum.OrderStatus) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders
		SET status = $3, rejection_reason = $4, delivery_date = $5, approved_by = $6, approved_at = $7, updated_at = $8
		WHERE id = $1 AND status = $2`,
		o.ID, string(expected), string(o.Status), optionalText(o.RejectionReason), optionalTime(o.DeliveryDate),
		optionalUUID(o.ApprovedBy), optionalTime(o.ApprovedAt), o.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) InsertHistory(ctx context.Context, orderID uuid.UUID, h order.HistoryEntry) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, user_id, user_name, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, string(h.Status), h.UserID, optionalText(h.UserName), optionalText(h.Notes), h.Timestamp)
	if err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}
	return nil
}

// saveOrderItems upserts every line of o. Deleted lines keep their row with
// deleted_at set.
func (q *Queries) saveOrderItems(ctx context.Context, o *order.Order) error {
	for i, it := range o.Items {
		discType, discValue := discountColumns(it.Discount)
		var deletedAt pgtype.Timestamptz
		if it.Deleted {
			deletedAt = pgtype.Timestamptz{Time: o.UpdatedAt, Valid: true}
		}
		_, err := q.db.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price_type, unit_price,
				custom_price, custom_price_reason, discount_type, discount_value,
				subtotal, discount_amount, final_price, line_no, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (id) DO UPDATE SET
				product_id = EXCLUDED.product_id, quantity = EXCLUDED.quantity, price_type = EXCLUDED.price_type,
				unit_price = EXCLUDED.unit_price, custom_price = EXCLUDED.custom_price,
				custom_price_reason = EXCLUDED.custom_price_reason, discount_type = EXCLUDED.discount_type,
				discount_value = EXCLUDED.discount_value, subtotal = EXCLUDED.subtotal,
				discount_amount = EXCLUDED.discount_amount, final_price = EXCLUDED.final_price,
				line_no = EXCLUDED.line_no,
				deleted_at = COALESCE(order_items.deleted_at, EXCLUDED.deleted_at)
			WHERE order_items.order_id = EXCLUDED.order_id`,
			it.ID, o.ID, it.ProductID, it.Quantity, string(it.PriceType), decimalToNumeric(it.UnitPrice),
			optionalDecimal(it.CustomPrice), optionalText(it.CustomPriceReason), discType, discValue,
			decimalToNumeric(it.Subtotal), decimalToNumeric(it.DiscountAmount), decimalToNumeric(it.FinalPrice),
			i, deletedAt,
		)
		if err != nil {
			return fmt.Errorf("save order item %s: %w", it.ID, err)
		}
	}
	return nil
}

func (q *Queries) listOrderItems(ctx context.Context, orderID uuid.UUID) ([]order.Item, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, product_id, quantity, price_type, unit_price, custom_price, custom_price_reason,
			discount_type, discount_value, subtotal, discount_amount, final_price, deleted_at
		FROM order_items WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var (
			it                                  order.Item
			unit, custom, discValue, sub, da, f pgtype.Numeric
			reason, discType                    pgtype.Text
			deletedAt                           pgtype.Timestamptz
		)
		err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.PriceType, &unit, &custom, &reason,
			&discType, &discValue, &sub, &da, &f, &deletedAt)
		if err != nil {
			return order.Item{}, err
		}
		it.UnitPrice = numericToDecimal(unit)
		it.CustomPrice = numericPtr(custom)
		it.CustomPriceReason = reason.String
		it.Discount = toDiscount(discType, discValue)
		it.Subtotal = numericToDecimal(sub)
		it.DiscountAmount = numericToDecimal(da)
		it.FinalPrice = numericToDecimal(f)
		it.Deleted = deletedAt.Valid
		return it, nil
	})
}

func (q *Queries) listOrderHistory(ctx context.Context, orderID uuid.UUID) ([]order.HistoryEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT status, user_id, user_name, notes, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.HistoryEntry, error) {
		var (
			h           order.HistoryEntry
			name, notes pgtype.Text
		)
		if err := row.Scan(&h.Status, &h.UserID, &name, &notes, &h.Timestamp); err != nil {
			return order.HistoryEntry{}, err
		}
		h.UserName = name.String
		h.Notes = notes.String
		return h, nil
	})
}
