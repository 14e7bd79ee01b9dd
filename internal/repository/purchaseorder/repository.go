package purchaseorder

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/procura/repository/purchaseorder")

var (
	// ErrNotFound is returned when a purchase order is missing.
	ErrNotFound = errors.New("purchase order not found")
	// ErrDuplicateNumber is returned when the order number is already taken.
	ErrDuplicateNumber = errors.New("purchase order number already exists")
	// ErrStale is returned when the row changed since it was read.
	ErrStale = errors.New("purchase order was modified concurrently")
)

// Filter narrows order listings. Zero values mean "any".
type Filter struct {
	Status entity.Status
	Site   string
	Limit  int
	Offset int
}

const defaultListLimit = 100

// Repository encapsulates read/write access for purchase orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists the order and its line items in one transaction.
func (r *Repository) Create(ctx context.Context, order *entity.PurchaseOrder) error {
	if order == nil {
		return errors.New("nil purchase order")
	}
	ctx, span := repoTracer.Start(ctx, "PurchaseOrderRepository.Create", trace.WithAttributes(attribute.String("po.number", order.OrderNumber)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		for i, item := range order.Items {
			item.PurchaseOrderID = order.ID
			item.Position = i + 1
		}
		_, err := tx.NewInsert().Model(&order.Items).Exec(ctx)
		return err
	})
	if database.IsUniqueViolation(err) {
		span.SetStatus(codes.Error, "duplicate number")
		return ErrDuplicateNumber
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order and its items using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PurchaseOrder, error) {
	ctx, span := repoTracer.Start(ctx, "PurchaseOrderRepository.GetByID", trace.WithAttributes(attribute.String("po.id", id.String())))
	defer span.End()

	order := new(entity.PurchaseOrder)
	err := r.reader.NewSelect().
		Model(order).
		Relation("Items", orderItems).
		Where("po.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns orders matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]*entity.PurchaseOrder, error) {
	ctx, span := repoTracer.Start(ctx, "PurchaseOrderRepository.List", trace.WithAttributes(
		attribute.String("po.status", string(f.Status)),
		attribute.String("po.site", f.Site),
	))
	defer span.End()

	limit := f.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	orders := make([]*entity.PurchaseOrder, 0)
	q := r.reader.NewSelect().
		Model(&orders).
		Relation("Items", orderItems).
		OrderExpr("po.created_at DESC").
		Limit(limit).
		Offset(f.Offset)
	if f.Status != "" {
		q = q.Where("po.status = ?", f.Status)
	}
	if f.Site != "" {
		q = q.Where("po.site = ?", f.Site)
	}

	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Summaries returns orders in the given statuses with totals computed from their
// items. A non-empty site restricts the result to that site.
func (r *Repository) Summaries(ctx context.Context, statuses []entity.Status, site string) ([]entity.OrderSummary, error) {
	ctx, span := repoTracer.Start(ctx, "PurchaseOrderRepository.Summaries", trace.WithAttributes(
		attribute.String("po.site", site),
	))
	defer span.End()

	summaries := make([]entity.OrderSummary, 0)
	q := r.reader.NewSelect().
		Model(&summaries).
		ColumnExpr("po.id, po.order_number, po.status, po.site, po.supplier, po.total_amount, po.updated_at").
		ColumnExpr("COALESCE(SUM(oi.total_price), 0) AS items_total").
		ColumnExpr("COUNT(oi.id) AS item_count").
		Join("LEFT JOIN order_items AS oi ON oi.purchase_order_id = po.id").
		Where("po.status IN (?)", bun.In(statuses))
	if site != "" {
		q = q.Where("po.site = ?", site)
	}
	err := q.GroupExpr("po.id").
		OrderExpr("po.updated_at DESC NULLS LAST").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return summaries, nil
}

// Transition moves the order from its current status to order.Status, guarded by
// the expected status and version, and appends the history entry atomically.
func (r *Repository) Transition(ctx context.Context, order *entity.PurchaseOrder, from entity.Status, entry *entity.StatusHistoryEntry) error {
	ctx, span := repoTracer.Start(ctx, "PurchaseOrderRepository.Transition", trace.WithAttributes(
		attribute.String("po.id", order.ID.String()),
		attribute.String("po.from", string(from)),
		attribute.String("po.to", string(order.Status)),
	))
	defer span.End()

	expectedVersion := order.Version
	order.Version++
	order.UpdatedAt = time.Now().UTC()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(order).
			Column("status", "version", "updated_at").
			Where("id = ?", order.ID).
			Where("status = ?", from).
			Where("version = ?", expectedVersion).
			Exec(ctx)
		if err != nil {
			return err
		}
		if err := ensureAffected(res); err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(entry).Exec(ctx)
		return err
	})
	if err != nil {
		order.Version = expectedVersion
		if !errors.Is(err, ErrStale) {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "transition failed")
	}
	return err
}

// SaveTracking writes the tracking columns, guarded by the expected version.
func (r *Repository) SaveTracking(ctx context.Context, order *entity.PurchaseOrder) error {
	ctx, span := repoTracer.Start(ctx, "PurchaseOrderRepository.SaveTracking", trace.WithAttributes(attribute.String("po.id", order.ID.String())))
	defer span.End()

	expectedVersion := order.Version
	order.Version++
	order.UpdatedAt = time.Now().UTC()

	res, err := r.writer.NewUpdate().
		Model(order).
		Column("tracking_number", "shipping_status", "current_location", "estimated_delivery",
			"last_status_update", "tracking_history", "version", "updated_at").
		Where("id = ?", order.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err == nil {
		err = ensureAffected(res)
	}
	if err != nil {
		order.Version = expectedVersion
		if !errors.Is(err, ErrStale) {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// StatusHistory lists the recorded transitions of an order, oldest first.
func (r *Repository) StatusHistory(ctx context.Context, id uuid.UUID) ([]entity.StatusHistoryEntry, error) {
	ctx, span := repoTracer.Start(ctx, "PurchaseOrderRepository.StatusHistory", trace.WithAttributes(attribute.String("po.id", id.String())))
	defer span.End()

	entries := make([]entity.StatusHistoryEntry, 0)
	err := r.reader.NewSelect().
		Model(&entries).
		Where("sh.purchase_order_id = ?", id).
		OrderExpr("sh.created_at ASC, sh.id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entries, nil
}

func orderItems(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("oi.position ASC")
}

func ensureAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}
