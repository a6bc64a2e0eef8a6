package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/pricing"
	"github.com/tokoline/sales-api/internal/store"
	"github.com/tokoline/sales-api/internal/validation"
	"go.uber.org/zap"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrOrderNotFound = errors.New("order not found")
)

// DB is a connection pool that can also start transactions.
// Satisfied by *pgxpool.Pool.
type DB interface {
	store.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *store.Queries (and its WithTx variant).
type OrderStore interface {
	LastOrderNumber(ctx context.Context, prefix string) (string, error)
	GetVisit(ctx context.Context, id uuid.UUID) (store.Visit, error)
	GetPriceLists(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]pricing.PriceList, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	ListOrders(ctx context.Context, arg store.ListOrdersParams) ([]*order.Order, error)
	InsertOrder(ctx context.Context, o *order.Order) error
	UpdateOrderContent(ctx context.Context, o *order.Order, expected enum.OrderStatus) (int64, error)
	UpdateOrderStatus(ctx context.Context, o *order.Order, expected enum.OrderStatus) (int64, error)
	InsertHistory(ctx context.Context, orderID uuid.UUID, h order.HistoryEntry) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db store.DBTX) OrderStore

// EventPublisher receives committed order changes. Satisfied by *ws.Hub.
type EventPublisher interface {
	PublishOrderEvent(eventType string, o *order.Order)
}

// OrderService runs the order rules against persisted state.
type OrderService struct {
	db        DB
	newStore  NewOrderStore
	seq       Sequencer
	validator *validation.Validator
	events    EventPublisher
	log       *zap.Logger
}

// NewOrderService creates a new OrderService. events may be nil.
func NewOrderService(db DB, newStore NewOrderStore, seq Sequencer, v *validation.Validator, events EventPublisher, log *zap.Logger) *OrderService {
	return &OrderService{db: db, newStore: newStore, seq: seq, validator: v, events: events, log: log}
}

// ListOrdersFilter narrows ListOrders. SalesID is honoured only for actors
// allowed to read every order.
type ListOrdersFilter struct {
	SalesID   *uuid.UUID
	Status    enum.OrderStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// CreateOrder validates and stores a new DRAFT order.
// Retries up to maxOrderNumberRetries times on order_number unique constraint
// violations (concurrent creators allocating the same sequence).
func (s *OrderService) CreateOrder(ctx context.Context, actor permission.Actor, in validation.OrderInput) (*order.Order, error) {
	if !actor.Can(permission.OrderCreate, uuid.Nil) {
		return nil, errs.ErrPermissionDenied
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		o, err := s.createOrderTx(ctx, actor, in)
		if err == nil {
			s.log.Info("order created",
				zap.String("order_id", o.ID.String()),
				zap.String("order_number", o.OrderNumber),
				zap.String("sales_id", o.SalesID.String()),
				zap.String("total", o.Total.StringFixed(2)),
			)
			s.publish(enum.EventOrderCreated, o)
			return o, nil
		}
		if isOrderNumberConflict(err) {
			s.log.Warn("order number conflict, retrying", zap.Int("attempt", attempt+1))
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, actor permission.Actor, in validation.OrderInput) (*order.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)

	seq, err := s.seq.Next(ctx, st, s.validator.Now())
	if err != nil {
		return nil, fmt.Errorf("allocate order number: %w", err)
	}

	catalog, err := loadCatalog(ctx, st, in.Items)
	if err != nil {
		return nil, err
	}

	o, err := s.validator.Create(validation.Request{
		Actor:    actor,
		Input:    in,
		Catalog:  catalog,
		Sequence: seq,
	})
	if err != nil {
		return nil, err
	}

	if o.VisitID != nil {
		if err := checkVisit(ctx, st, *o.VisitID, o.SalesID); err != nil {
			return nil, err
		}
	}

	if err := st.InsertOrder(ctx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return o, nil
}

// checkVisit requires the linked visit to exist and to belong to the order's
// sales user.
func checkVisit(ctx context.Context, st OrderStore, visitID, salesID uuid.UUID) error {
	visit, err := st.GetVisit(ctx, visitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var vs errs.Violations
			vs.Add("visitId", "visit not found")
			return vs.Err()
		}
		return fmt.Errorf("get visit: %w", err)
	}
	if visit.SalesID != salesID {
		var vs errs.Violations
		vs.Add("visitId", "visit belongs to another sales user")
		return vs.Err()
	}
	return nil
}

// loadCatalog fetches list prices for the products referenced by active lines.
func loadCatalog(ctx context.Context, st OrderStore, items []validation.ItemInput) (validation.Catalog, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if it.Deleted || it.ProductID == uuid.Nil || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		ids = append(ids, it.ProductID)
	}
	lists, err := st.GetPriceLists(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load price lists: %w", err)
	}
	return validation.Catalog(lists), nil
}

// UpdateOrder replaces the content of an existing order.
func (s *OrderService) UpdateOrder(ctx context.Context, actor permission.Actor, id uuid.UUID, in validation.OrderInput) (*order.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)
	current, err := s.loadFor(ctx, st, actor, id)
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalog(ctx, st, in.Items)
	if err != nil {
		return nil, err
	}

	next, err := s.validator.Update(validation.Request{
		Actor:   actor,
		Current: current,
		Input:   in,
		Catalog: catalog,
	})
	if err != nil {
		return nil, err
	}

	n, err := st.UpdateOrderContent(ctx, next, current.Status)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, s.staleError(ctx, st, id, current.Status)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.log.Info("order updated",
		zap.String("order_id", next.ID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.String("total", next.Total.StringFixed(2)),
	)
	s.publish(enum.EventOrderUpdated, next)
	return next, nil
}

// ChangeStatus moves an order along the state machine. The UPDATE is guarded
// by the status the caller expected, so of two concurrent requests from the
// same state exactly one wins; the other gets a stale TransitionError.
func (s *OrderService) ChangeStatus(ctx context.Context, actor permission.Actor, id uuid.UUID, in validation.StatusInput) (*order.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	st := s.newStore(tx)
	current, err := s.loadFor(ctx, st, actor, id)
	if err != nil {
		return nil, err
	}

	next, err := s.validator.ChangeStatus(validation.Request{
		Actor:   actor,
		Current: current,
		Status:  in,
	})
	if err != nil {
		return nil, err
	}

	n, err := st.UpdateOrderStatus(ctx, next, current.Status)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, s.staleError(ctx, st, id, current.Status)
	}
	entry, _ := next.LastHistory()
	if err := st.InsertHistory(ctx, id, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.log.Info("order status changed",
		zap.String("order_id", id.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
		zap.String("actor_id", actor.ID.String()),
	)
	s.publish(enum.EventOrderStatusChanged, next)
	return next, nil
}

// GetOrder returns one order if the actor may read it.
func (s *OrderService) GetOrder(ctx context.Context, actor permission.Actor, id uuid.UUID) (*order.Order, error) {
	o, err := s.loadFor(ctx, s.newStore(s.db), actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAny(o.SalesID, permission.OrderRead, permission.OrderReadOwn) {
		return nil, errs.ErrPermissionDenied
	}
	return o, nil
}

// ListOrders returns order headers. Actors with only order:read-own see their
// own orders whatever SalesID the filter asks for.
func (s *OrderService) ListOrders(ctx context.Context, actor permission.Actor, f ListOrdersFilter) ([]*order.Order, error) {
	owner, err := readScope(actor, permission.OrderRead, permission.OrderReadOwn)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		owner = f.SalesID
	}
	limit, offset := ClampPage(f.Limit, f.Offset)

	orders, err := s.newStore(s.db).ListOrders(ctx, store.ListOrdersParams{
		SalesID:   owner,
		Status:    f.Status,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) load(ctx context.Context, st OrderStore, id uuid.UUID) (*order.Order, error) {
	o, err := st.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// loadFor is load for a given actor. Actors who may only read their own
// orders get ErrPermissionDenied for a missing order, as for someone else's.
func (s *OrderService) loadFor(ctx context.Context, st OrderStore, actor permission.Actor, id uuid.UUID) (*order.Order, error) {
	o, err := s.load(ctx, st, id)
	if errors.Is(err, ErrOrderNotFound) && !actor.Can(permission.OrderRead, uuid.Nil) {
		return nil, errs.ErrPermissionDenied
	}
	return o, err
}

// staleError reports that the row no longer had the status the change was
// validated against.
func (s *OrderService) staleError(ctx context.Context, st OrderStore, id uuid.UUID, expected enum.OrderStatus) error {
	actual, err := st.GetOrder(ctx, id)
	if err != nil {
		return errs.NewStaleTransitionError(string(expected), "unknown")
	}
	return errs.NewStaleTransitionError(string(expected), string(actual.Status))
}

func (s *OrderService) publish(eventType string, o *order.Order) {
	if s.events == nil {
		return
	}
	s.events.PublishOrderEvent(eventType, o)
}
