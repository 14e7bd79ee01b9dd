package invoice

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/procura/repository/invoice")

// ErrDuplicateNumber is returned when the invoice number is already recorded.
var ErrDuplicateNumber = errors.New("invoice number already exists")

// Repository encapsulates read/write access for supplier invoices.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create persists a new invoice.
func (r *Repository) Create(ctx context.Context, inv *entity.Invoice) error {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.Create", trace.WithAttributes(attribute.String("invoice.number", inv.InvoiceNumber)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(inv).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateNumber
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// ListByOrder returns the invoices raised against an order, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.Invoice, error) {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.ListByOrder", trace.WithAttributes(attribute.String("po.id", orderID.String())))
	defer span.End()

	invoices := make([]*entity.Invoice, 0)
	err := r.reader.NewSelect().
		Model(&invoices).
		Where("inv.purchase_order_id = ?", orderID).
		OrderExpr("inv.issued_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return invoices, nil
}
