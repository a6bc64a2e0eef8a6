package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Visit struct {
	ID        uuid.UUID
	SalesID   uuid.UUID
	StoreName string
	VisitedAt time.Time
	Notes     string
	CreatedAt time.Time
}

const visitColumns = `id, sales_id, store_name, visited_at, notes, created_at`

func scanVisit(row interface{ Scan(dest ...any) error }) (Visit, error) {
	var (
		v     Visit
		notes pgtype.Text
	)
	if err := row.Scan(&v.ID, &v.SalesID, &v.StoreName, &v.VisitedAt, &notes, &v.CreatedAt); err != nil {
		return Visit{}, err
	}
	v.Notes = notes.String
	return v, nil
}

type CreateVisitParams struct {
	SalesID   uuid.UUID
	StoreName string
	VisitedAt time.Time
	Notes     string
}

func (q *Queries) CreateVisit(ctx context.Context, arg CreateVisitParams) (Visit, error) {
	return scanVisit(q.db.QueryRow(ctx, `
		INSERT INTO visits (sales_id, store_name, visited_at, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+visitColumns,
		arg.SalesID, arg.StoreName, arg.VisitedAt, optionalText(arg.Notes)))
}

func (q *Queries) GetVisit(ctx context.Context, id uuid.UUID) (Visit, error) {
	return scanVisit(q.db.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id))
}

// ListVisitsParams filters visits. A nil SalesID lists every sales user.
type ListVisitsParams struct {
	SalesID *uuid.UUID
	Limit   int32
	Offset  int32
}

func (q *Queries) ListVisits(ctx context.Context, arg ListVisitsParams) ([]Visit, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+visitColumns+` FROM visits
		WHERE ($1::uuid IS NULL OR sales_id = $1)
		ORDER BY visited_at DESC
		LIMIT $2 OFFSET $3`,
		optionalUUID(arg.SalesID), arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
