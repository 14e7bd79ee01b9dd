package purchaseorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/authz"
	"github.com/Additional-Code/procura/internal/cache"
	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/messaging"
	repo "github.com/Additional-Code/procura/internal/repository/purchaseorder"
	supplierrepo "github.com/Additional-Code/procura/internal/repository/supplier"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/procura/service/purchaseorder")
	serviceMeter  = otel.Meter("github.com/Additional-Code/procura/service/purchaseorder")
)

// Repository is the persistence surface the service depends on.
type Repository interface {
	Create(ctx context.Context, order *entity.PurchaseOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PurchaseOrder, error)
	List(ctx context.Context, f repo.Filter) ([]*entity.PurchaseOrder, error)
	Summaries(ctx context.Context, statuses []entity.Status, site string) ([]entity.OrderSummary, error)
	Transition(ctx context.Context, order *entity.PurchaseOrder, from entity.Status, entry *entity.StatusHistoryEntry) error
	SaveTracking(ctx context.Context, order *entity.PurchaseOrder) error
	StatusHistory(ctx context.Context, id uuid.UUID) ([]entity.StatusHistoryEntry, error)
}

// SupplierFinder resolves the supplier referenced by a new order.
type SupplierFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Supplier, error)
}

// Service implements the purchase-order lifecycle.
type Service struct {
	repo        Repository
	suppliers   SupplierFinder
	cache       cache.Store
	cacheTTL    time.Duration
	logger      *zap.Logger
	publisher   messaging.Client
	publish     bool
	transitions metric.Int64Counter
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Suppliers  *supplierrepo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Suppliers, p.Cache, p.Publisher, p.Config, p.Logger)
}

// New builds a Service from explicit collaborators.
func New(r Repository, suppliers SupplierFinder, store cache.Store, publisher messaging.Client, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	counter, err := serviceMeter.Int64Counter("procura.purchase_orders.transitions",
		metric.WithDescription("Purchase order status transitions"))
	if err != nil {
		logger.Warn("transition counter unavailable", zap.Error(err))
	}
	return &Service{
		repo:        r,
		suppliers:   suppliers,
		cache:       store,
		cacheTTL:    cfg.Cache.DefaultTTL,
		logger:      logger,
		publisher:   publisher,
		publish:     cfg.Messaging.Enabled,
		transitions: counter,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ItemInput is a requested line on a new order.
type ItemInput struct {
	ProductID  string
	Name       string
	Quantity   int64
	UnitPrice  decimal.Decimal
	TotalPrice *decimal.Decimal
}

// CreateInput carries the fields of a new order.
type CreateInput struct {
	OrderNumber string
	SupplierID  uuid.UUID
	Site        string
	Currency    string
	Notes       string
	Items       []ItemInput
	TotalAmount *decimal.Decimal
}

// TrackingInput carries tracking fields to merge; empty values are left untouched.
type TrackingInput struct {
	TrackingNumber    string
	ShippingStatus    string
	CurrentLocation   string
	EstimatedDelivery *time.Time
	Note              string
}

// Create validates and stores a new draft order.
func (s *Service) Create(ctx context.Context, actor *authz.Principal, in CreateInput) (*entity.PurchaseOrder, error) {
	if actor == nil {
		return nil, errorbank.Unauthorized("authentication required")
	}
	in.OrderNumber = strings.TrimSpace(in.OrderNumber)
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.Create", trace.WithAttributes(attribute.String("po.number", in.OrderNumber)))
	defer span.End()

	if in.OrderNumber == "" {
		return nil, errorbank.BadRequest("order_number is required")
	}
	if in.SupplierID == uuid.Nil {
		return nil, errorbank.BadRequest("supplier_id is required")
	}
	site := strings.TrimSpace(in.Site)
	if site == "" {
		site = actor.Site
	}
	if site == "" {
		return nil, errorbank.BadRequest("site is required")
	}
	if err := authz.Evaluate(authz.Request{Principal: actor, Site: site, SiteGiven: true}, authz.SiteMember()); err != nil {
		return nil, err
	}

	items, err := buildItems(in.Items)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice)
	}
	if in.TotalAmount != nil {
		if !in.TotalAmount.Equal(total) {
			return nil, errorbank.Unprocessable("total_amount does not match the sum of item totals",
				errorbank.WithDetail("expected", total.StringFixed(2)),
				errorbank.WithDetail("given", in.TotalAmount.StringFixed(2)),
			)
		}
	}

	supplier, err := s.suppliers.GetByID(ctx, in.SupplierID)
	if err != nil {
		if errors.Is(err, supplierrepo.ErrNotFound) {
			return nil, errorbank.Unprocessable("supplier does not exist", errorbank.WithDetail("supplier_id", in.SupplierID.String()))
		}
		return nil, s.internal(span, "failed to load supplier", err)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	now := s.now()
	order := &entity.PurchaseOrder{
		ID:          uuid.New(),
		OrderNumber: in.OrderNumber,
		Status:      entity.StatusDraft,
		Site:        site,
		Supplier:    entity.SnapshotOf(supplier),
		TotalAmount: total,
		Currency:    currency,
		Notes:       in.Notes,
		OrderedBy:   actor.UserID,
		Version:     1,
		OrderDate:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       items,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		if errors.Is(err, repo.ErrDuplicateNumber) {
			return nil, errorbank.Conflict("purchase order number already exists",
				errorbank.WithDetail("order_number", order.OrderNumber), errorbank.WithCause(err))
		}
		return nil, s.internal(span, "failed to create purchase order", err)
	}

	s.storeInCache(ctx, order)
	s.emit(ctx, EventCreated, order, nil)
	return order, nil
}

func buildItems(inputs []ItemInput) ([]*entity.LineItem, error) {
	if len(inputs) == 0 {
		return nil, errorbank.BadRequest("at least one item is required")
	}
	items := make([]*entity.LineItem, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(in.ProductID) == "" && strings.TrimSpace(in.Name) == "" {
			return nil, errorbank.BadRequest(field + ": product_id or name is required")
		}
		if in.Quantity <= 0 {
			return nil, errorbank.BadRequest(field + ": quantity must be positive")
		}
		if in.UnitPrice.IsNegative() {
			return nil, errorbank.BadRequest(field + ": unit_price must not be negative")
		}
		lineTotal := in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity))
		if in.TotalPrice != nil && !in.TotalPrice.Equal(lineTotal) {
			return nil, errorbank.Unprocessable(field+": total_price does not equal quantity × unit_price",
				errorbank.WithDetail("expected", lineTotal.StringFixed(2)),
				errorbank.WithDetail("given", in.TotalPrice.StringFixed(2)),
			)
		}
		items = append(items, &entity.LineItem{
			ProductID:  strings.TrimSpace(in.ProductID),
			Name:       strings.TrimSpace(in.Name),
			Quantity:   in.Quantity,
			UnitPrice:  in.UnitPrice,
			TotalPrice: lineTotal,
		})
	}
	return items, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.Get", trace.WithAttributes(attribute.String("po.id", id.String())))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("purchase order cache read failed", zap.Stringer("id", id), zap.Error(err))
	}

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	s.storeInCache(ctx, order)
	return order, nil
}

// GetFor loads an order and checks the actor may see its site.
func (s *Service) GetFor(ctx context.Context, actor *authz.Principal, id uuid.UUID) (*entity.PurchaseOrder, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Evaluate(authz.Request{Principal: actor, Site: order.Site, SiteGiven: true}, authz.SiteMember()); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.List")
	defer span.End()

	orders, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, s.internal(span, "failed to list purchase orders", err)
	}
	return orders, nil
}

// ListBySite returns the orders of one site.
func (s *Service) ListBySite(ctx context.Context, site string, f repo.Filter) ([]*entity.PurchaseOrder, error) {
	site = strings.TrimSpace(site)
	if site == "" {
		return nil, errorbank.BadRequest("site is required")
	}
	f.Site = site
	return s.List(ctx, f)
}

// History returns decided orders with totals computed from their line items.
// An empty site returns every site.
func (s *Service) History(ctx context.Context, site string) ([]entity.OrderSummary, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.History")
	defer span.End()

	summaries, err := s.repo.Summaries(ctx, entity.DecidedStatuses(), strings.TrimSpace(site))
	if err != nil {
		return nil, s.internal(span, "failed to load order history", err)
	}
	return summaries, nil
}

// StatusHistory returns the recorded transitions of an order.
func (s *Service) StatusHistory(ctx context.Context, actor *authz.Principal, id uuid.UUID) ([]entity.StatusHistoryEntry, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.StatusHistory", trace.WithAttributes(attribute.String("po.id", id.String())))
	defer span.End()

	if _, err := s.GetFor(ctx, actor, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.StatusHistory(ctx, id)
	if err != nil {
		return nil, s.internal(span, "failed to load status history", err)
	}
	return entries, nil
}

// Transition moves an order to target on behalf of actor.
func (s *Service) Transition(ctx context.Context, actor *authz.Principal, id uuid.UUID, rawTarget, note string) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.Transition", trace.WithAttributes(
		attribute.String("po.id", id.String()),
		attribute.String("po.target", rawTarget),
	))
	defer span.End()

	target, err := entity.ParseStatus(rawTarget)
	if err != nil {
		return nil, errorbank.BadRequest(err.Error(), errorbank.WithDetail("allowed", entity.Statuses()))
	}

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Evaluate(lifecycleRequest(actor, order), transitionRules(target)...); err != nil {
		return nil, err
	}

	from := order.Status
	if err := from.CheckTransition(target); err != nil {
		return nil, errorbank.Conflict(err.Error(),
			errorbank.WithDetail("from", from),
			errorbank.WithDetail("to", target),
			errorbank.WithDetail("allowed", from.Next()),
			errorbank.WithCause(err),
		)
	}

	order.Status = target
	entry := &entity.StatusHistoryEntry{
		PurchaseOrderID: order.ID,
		FromStatus:      from,
		ToStatus:        target,
		ActorID:         actor.UserID,
		Note:            strings.TrimSpace(note),
		CreatedAt:       s.now(),
	}
	if err := s.repo.Transition(ctx, order, from, entry); err != nil {
		s.invalidate(ctx, id)
		if errors.Is(err, repo.ErrStale) {
			return nil, errorbank.Conflict("purchase order was modified concurrently; reload and retry", errorbank.WithCause(err))
		}
		return nil, s.internal(span, "failed to update purchase order status", err)
	}

	if s.transitions != nil {
		s.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(from)),
			attribute.String("to", string(target)),
		))
	}
	s.invalidate(ctx, id)
	s.emit(ctx, EventStatusChanged, order, &StatusChange{From: from, To: target, ActorID: actor.UserID, Note: entry.Note})
	return order, nil
}

func lifecycleRequest(actor *authz.Principal, order *entity.PurchaseOrder) authz.Request {
	return authz.Request{Principal: actor, Site: order.Site, SiteGiven: true, OwnerID: order.OrderedBy}
}

func transitionRules(target entity.Status) []authz.Rule {
	site := authz.SiteMember()
	switch target {
	case entity.StatusPending:
		return []authz.Rule{site, authz.OwnerOr()}
	case entity.StatusApproved, entity.StatusRejected:
		return []authz.Rule{site, authz.AnyRole(entity.RoleAdmin, entity.RoleApprover)}
	case entity.StatusSent:
		return []authz.Rule{site, authz.OwnerOr(entity.RolePurchaser)}
	default:
		return []authz.Rule{site, authz.Admin()}
	}
}

// UpdateTracking merges shipment tracking fields into an approved or sent order.
func (s *Service) UpdateTracking(ctx context.Context, actor *authz.Principal, id uuid.UUID, in TrackingInput) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.UpdateTracking", trace.WithAttributes(attribute.String("po.id", id.String())))
	defer span.End()

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Evaluate(lifecycleRequest(actor, order), authz.SiteMember(), authz.OwnerOr(entity.RolePurchaser)); err != nil {
		return nil, err
	}
	if !order.Status.AcceptsTracking() {
		return nil, errorbank.Conflict(
			fmt.Sprintf("tracking can only be updated on approved or sent orders; order is %s", order.Status),
			errorbank.WithDetail("status", order.Status),
		)
	}

	if !applyTracking(order, in, s.now()) {
		return order, nil
	}

	if err := s.repo.SaveTracking(ctx, order); err != nil {
		s.invalidate(ctx, id)
		if errors.Is(err, repo.ErrStale) {
			return nil, errorbank.Conflict("purchase order was modified concurrently; reload and retry", errorbank.WithCause(err))
		}
		return nil, s.internal(span, "failed to update tracking", err)
	}
	s.invalidate(ctx, id)
	return order, nil
}

// applyTracking merges in and reports whether anything changed.
func applyTracking(order *entity.PurchaseOrder, in TrackingInput, now time.Time) bool {
	changed := false
	set := func(dst *string, v string) bool {
		v = strings.TrimSpace(v)
		if v == "" || v == *dst {
			return false
		}
		*dst = v
		changed = true
		return true
	}

	set(&order.TrackingNumber, in.TrackingNumber)
	statusChanged := set(&order.ShippingStatus, in.ShippingStatus)
	locationChanged := set(&order.CurrentLocation, in.CurrentLocation)
	if in.EstimatedDelivery != nil && (order.EstimatedDelivery == nil || !order.EstimatedDelivery.Equal(*in.EstimatedDelivery)) {
		eta := in.EstimatedDelivery.UTC()
		order.EstimatedDelivery = &eta
		changed = true
	}

	if statusChanged || locationChanged {
		order.TrackingHistory = append(order.TrackingHistory, entity.TrackingEvent{
			Status:   order.ShippingStatus,
			Location: order.CurrentLocation,
			Note:     strings.TrimSpace(in.Note),
			At:       now,
		})
		order.LastStatusUpdate = &now
	}
	return changed
}

func (s *Service) load(ctx context.Context, span trace.Span, id uuid.UUID) (*entity.PurchaseOrder, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("purchase order not found")
		}
		return nil, s.internal(span, "failed to load purchase order", err)
	}
	return order, nil
}

func (s *Service) internal(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.logger.Error(msg, zap.Error(err))
	return errorbank.Wrap(err, errorbank.KindInternal, msg)
}

func (s *Service) cacheKey(id uuid.UUID) string {
	return "purchase_orders:" + id.String()
}

func (s *Service) getFromCache(ctx context.Context, id uuid.UUID) (*entity.PurchaseOrder, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.PurchaseOrder
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.PurchaseOrder) {
	if s.cache == nil || order == nil {
		return
	}
	bytes, err := json.Marshal(order)
	if err == nil {
		err = s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("purchase order cache write failed", zap.Stringer("id", order.ID), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("purchase order cache delete failed", zap.Stringer("id", id), zap.Error(err))
	}
}

func (s *Service) emit(ctx context.Context, kind string, order *entity.PurchaseOrder, change *StatusChange) {
	if !s.publish || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(NewEvent(kind, order, change, s.now()))
	if err != nil {
		s.logger.Error("marshal purchase order event", zap.String("type", kind), zap.Error(err))
		return
	}
	msg := messaging.Message{
		Key:     []byte(order.ID.String()),
		Value:   payload,
		Headers: map[string]string{messaging.HeaderEventType: kind},
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("publish purchase order event", zap.String("type", kind), zap.Error(err))
	}
}
