package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/store"
	"go.uber.org/zap"
)

var ErrVisitNotFound = errors.New("visit not found")

// VisitStore defines the DB methods needed by the visit service.
// Satisfied by *store.Queries.
type VisitStore interface {
	CreateVisit(ctx context.Context, arg store.CreateVisitParams) (store.Visit, error)
	GetVisit(ctx context.Context, id uuid.UUID) (store.Visit, error)
	ListVisits(ctx context.Context, arg store.ListVisitsParams) ([]store.Visit, error)
}

type VisitService struct {
	store VisitStore
	now   func() time.Time
	log   *zap.Logger
}

func NewVisitService(store VisitStore, log *zap.Logger) *VisitService {
	return &VisitService{store: store, now: time.Now, log: log}
}

type CreateVisitInput struct {
	StoreName string
	VisitedAt *time.Time
	Notes     string
}

// CreateVisit logs a store visit for the acting sales user. VisitedAt
// defaults to now and may not lie in the future.
func (s *VisitService) CreateVisit(ctx context.Context, actor permission.Actor, in CreateVisitInput) (store.Visit, error) {
	if !actor.Can(permission.VisitCreate, uuid.Nil) {
		return store.Visit{}, errs.ErrPermissionDenied
	}

	now := s.now()
	visitedAt := now
	if in.VisitedAt != nil {
		visitedAt = *in.VisitedAt
	}

	var vs errs.Violations
	name := strings.TrimSpace(in.StoreName)
	if name == "" {
		vs.Add("storeName", "is required")
	}
	if visitedAt.After(now.Add(time.Minute)) {
		vs.Add("visitedAt", "must not be in the future")
	}
	if err := vs.Err(); err != nil {
		return store.Visit{}, err
	}

	v, err := s.store.CreateVisit(ctx, store.CreateVisitParams{
		SalesID:   actor.ID,
		StoreName: name,
		VisitedAt: visitedAt,
		Notes:     strings.TrimSpace(in.Notes),
	})
	if err != nil {
		return store.Visit{}, fmt.Errorf("create visit: %w", err)
	}
	s.log.Info("visit created", zap.String("visit_id", v.ID.String()), zap.String("sales_id", v.SalesID.String()))
	return v, nil
}

func (s *VisitService) GetVisit(ctx context.Context, actor permission.Actor, id uuid.UUID) (store.Visit, error) {
	v, err := s.store.GetVisit(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Visit{}, ErrVisitNotFound
		}
		return store.Visit{}, fmt.Errorf("get visit: %w", err)
	}
	if !actor.CanAny(v.SalesID, permission.VisitRead, permission.VisitReadOwn) {
		return store.Visit{}, errs.ErrPermissionDenied
	}
	return v, nil
}

func (s *VisitService) ListVisits(ctx context.Context, actor permission.Actor, limit, offset int) ([]store.Visit, error) {
	owner, err := readScope(actor, permission.VisitRead, permission.VisitReadOwn)
	if err != nil {
		return nil, err
	}
	l, o := ClampPage(limit, offset)
	visits, err := s.store.ListVisits(ctx, store.ListVisitsParams{SalesID: owner, Limit: l, Offset: o})
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return visits, nil
}
