package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/authz"
	"github.com/Additional-Code/procura/internal/entity"
	repo "github.com/Additional-Code/procura/internal/repository/invoice"
	purchaseordersvc "github.com/Additional-Code/procura/internal/service/purchaseorder"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/procura/service/invoice")

// Module provides the invoice service to Fx.
var Module = fx.Provide(NewService)

// Repository is the persistence surface the service depends on.
type Repository interface {
	Create(ctx context.Context, inv *entity.Invoice) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.Invoice, error)
}

// OrderLoader resolves an order the caller is allowed to see.
type OrderLoader interface {
	GetFor(ctx context.Context, actor *authz.Principal, id uuid.UUID) (*entity.PurchaseOrder, error)
}

// Input carries a new invoice.
type Input struct {
	InvoiceNumber string
	Amount        decimal.Decimal
	IssuedAt      time.Time
}

// Service records supplier invoices against purchase orders.
type Service struct {
	repo   Repository
	orders OrderLoader
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Orders     *purchaseordersvc.Service
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Orders, p.Logger)
}

// New builds a Service from explicit collaborators.
func New(r Repository, orders OrderLoader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: r, orders: orders, logger: logger}
}

// Create records an invoice on an approved or sent order.
func (s *Service) Create(ctx context.Context, actor *authz.Principal, orderID uuid.UUID, in Input) (*entity.Invoice, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.Create", trace.WithAttributes(attribute.String("po.id", orderID.String())))
	defer span.End()

	in.InvoiceNumber = strings.TrimSpace(in.InvoiceNumber)
	if in.InvoiceNumber == "" {
		return nil, errorbank.BadRequest("invoice_number is required")
	}
	if !in.Amount.IsPositive() {
		return nil, errorbank.BadRequest("amount must be positive")
	}

	order, err := s.orders.GetFor(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if err := authz.Evaluate(authz.Request{Principal: actor}, authz.AnyRole(entity.RoleAdmin, entity.RolePurchaser)); err != nil {
		return nil, err
	}
	if !order.Status.AcceptsInvoices() {
		return nil, errorbank.Conflict(
			fmt.Sprintf("invoices can only be recorded on approved or sent orders; order is %s", order.Status),
			errorbank.WithDetail("status", order.Status),
		)
	}

	issued := in.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	inv := &entity.Invoice{
		ID:              uuid.New(),
		PurchaseOrderID: order.ID,
		InvoiceNumber:   in.InvoiceNumber,
		Amount:          in.Amount,
		Status:          entity.InvoiceOpen,
		IssuedAt:        issued.UTC(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		if errors.Is(err, repo.ErrDuplicateNumber) {
			return nil, errorbank.Conflict("invoice number already exists", errorbank.WithCause(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		s.logger.Error("create invoice", zap.Error(err))
		return nil, errorbank.Internal("failed to record invoice", errorbank.WithCause(err))
	}
	return inv, nil
}

// List returns the invoices of an order the caller can see.
func (s *Service) List(ctx context.Context, actor *authz.Principal, orderID uuid.UUID) ([]*entity.Invoice, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.List", trace.WithAttributes(attribute.String("po.id", orderID.String())))
	defer span.End()

	if _, err := s.orders.GetFor(ctx, actor, orderID); err != nil {
		return nil, err
	}
	invoices, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		s.logger.Error("list invoices", zap.Error(err))
		return nil, errorbank.Internal("failed to list invoices", errorbank.WithCause(err))
	}
	return invoices, nil
}
