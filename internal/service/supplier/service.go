package supplier

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/entity"
	repo "github.com/Additional-Code/procura/internal/repository/supplier"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/procura/service/supplier")
	validate      = validator.New(validator.WithRequiredStructEnabled())
)

// Module provides the supplier service to Fx.
var Module = fx.Provide(NewService)

// Repository is the persistence surface the service depends on.
type Repository interface {
	Create(ctx context.Context, s *entity.Supplier) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Supplier, error)
	List(ctx context.Context) ([]*entity.Supplier, error)
	Update(ctx context.Context, s *entity.Supplier) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Input holds the editable supplier fields.
type Input struct {
	Name          string `validate:"required,max=255"`
	Email         string `validate:"required,email"`
	Phone         string `validate:"max=64"`
	Address       string
	ContactPerson string `validate:"max=255"`
}

// Service manages suppliers.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Logger)
}

// New builds a Service from explicit collaborators.
func New(r Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: r, logger: logger}
}

func (in Input) normalize() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.ContactPerson = strings.TrimSpace(in.ContactPerson)
	if err := validate.Struct(in); err != nil {
		return in, errorbank.BadRequest("name and a valid email are required", errorbank.WithDetails(fieldErrors(err)))
	}
	return in, nil
}

func fieldErrors(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return out
}

// Create registers a supplier.
func (s *Service) Create(ctx context.Context, in Input) (*entity.Supplier, error) {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.Create")
	defer span.End()

	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	supplier := &entity.Supplier{
		ID:            uuid.New(),
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       in.Address,
		ContactPerson: in.ContactPerson,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, supplier); err != nil {
		return nil, s.internal(span, "failed to create supplier", err)
	}
	return supplier, nil
}

// Get fetches one supplier.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.Supplier, error) {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.Get", trace.WithAttributes(attribute.String("supplier.id", id.String())))
	defer span.End()

	supplier, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("supplier not found")
	}
	if err != nil {
		return nil, s.internal(span, "failed to load supplier", err)
	}
	return supplier, nil
}

// List returns every supplier.
func (s *Service) List(ctx context.Context) ([]*entity.Supplier, error) {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.List")
	defer span.End()

	suppliers, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.internal(span, "failed to list suppliers", err)
	}
	return suppliers, nil
}

// Update replaces the editable fields of a supplier.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*entity.Supplier, error) {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.Update", trace.WithAttributes(attribute.String("supplier.id", id.String())))
	defer span.End()

	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	supplier, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	supplier.Name = in.Name
	supplier.Email = in.Email
	supplier.Phone = in.Phone
	supplier.Address = in.Address
	supplier.ContactPerson = in.ContactPerson

	err = s.repo.Update(ctx, supplier)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("supplier not found")
	}
	if err != nil {
		return nil, s.internal(span, "failed to update supplier", err)
	}
	return supplier, nil
}

// Delete removes a supplier.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.Delete", trace.WithAttributes(attribute.String("supplier.id", id.String())))
	defer span.End()

	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("supplier not found")
	}
	if err != nil {
		return s.internal(span, "failed to delete supplier", err)
	}
	return nil
}

func (s *Service) internal(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.logger.Error(msg, zap.Error(err))
	return errorbank.Wrap(err, errorbank.KindInternal, msg)
}
