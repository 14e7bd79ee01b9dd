package supplier

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

var repoTracer = otel.Tracer("github.com/Additional-Code/procura/repository/supplier")

// ErrNotFound is returned when a supplier is missing.
var ErrNotFound = errors.New("supplier not found")

// Repository encapsulates read/write access for suppliers.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create persists a new supplier.
func (r *Repository) Create(ctx context.Context, s *entity.Supplier) error {
	ctx, span := repoTracer.Start(ctx, "SupplierRepository.Create", trace.WithAttributes(attribute.String("supplier.name", s.Name)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(s).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// GetByID fetches a supplier by primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Supplier, error) {
	ctx, span := repoTracer.Start(ctx, "SupplierRepository.GetByID", trace.WithAttributes(attribute.String("supplier.id", id.String())))
	defer span.End()

	s := new(entity.Supplier)
	err := r.reader.NewSelect().Model(s).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return s, nil
}

// List returns all suppliers ordered by name.
func (r *Repository) List(ctx context.Context) ([]*entity.Supplier, error) {
	ctx, span := repoTracer.Start(ctx, "SupplierRepository.List")
	defer span.End()

	suppliers := make([]*entity.Supplier, 0)
	if err := r.reader.NewSelect().Model(&suppliers).OrderExpr("s.name ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return suppliers, nil
}

// Update overwrites the mutable supplier fields.
func (r *Repository) Update(ctx context.Context, s *entity.Supplier) error {
	ctx, span := repoTracer.Start(ctx, "SupplierRepository.Update", trace.WithAttributes(attribute.String("supplier.id", s.ID.String())))
	defer span.End()

	s.UpdatedAt = time.Now().UTC()
	res, err := r.writer.NewUpdate().
		Model(s).
		Column("name", "email", "phone", "address", "contact_person", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return affectedOrNotFound(res)
}

// Delete removes a supplier. Orders keep their snapshot of it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := repoTracer.Start(ctx, "SupplierRepository.Delete", trace.WithAttributes(attribute.String("supplier.id", id.String())))
	defer span.End()

	res, err := r.writer.NewDelete().Model((*entity.Supplier)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	return affectedOrNotFound(res)
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
