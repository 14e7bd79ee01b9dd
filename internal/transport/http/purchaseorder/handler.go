package purchaseorder

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/procura/internal/authz"
	"github.com/Additional-Code/procura/internal/dto"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	repo "github.com/Additional-Code/procura/internal/repository/purchaseorder"
	service "github.com/Additional-Code/procura/internal/service/purchaseorder"
	"github.com/Additional-Code/procura/internal/transport/http/middleware"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/procura/transport/http/purchaseorder")

// Handler exposes purchase order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a purchase order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

var (
	anySite      = authz.Allow(authz.SiteMember(authz.AllowUnscoped())).ScopedBy(authz.DefaultSiteSource)
	requiredSite = authz.Allow(authz.SiteMember()).ScopedBy(authz.DefaultSiteSource)
	signedIn     = authz.Allow(authz.Authenticated())
)

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	history := middleware.Require(authz.Allow(authz.SiteMember(authz.AllowUnscoped())).
		ScopedBy(authz.SiteSource{QueryParam: "site"}))
	e.GET("/purchase-orders/history", h.history, history)

	g := e.Group("/api/purchase-orders")
	g.GET("", h.list, middleware.Require(anySite))
	g.POST("", h.create, middleware.Require(anySite))
	g.GET("/history", h.history, history)
	g.GET("/:id", h.getByID, middleware.Require(signedIn))
	g.PATCH("/:id/status", h.updateStatus, middleware.Require(signedIn))
	g.PATCH("/:id/tracking", h.updateTracking, middleware.Require(signedIn))
	g.GET("/:id/status-history", h.statusHistory, middleware.Require(signedIn))

	e.GET("/api/sites/:siteName/orders", h.listBySite, middleware.Require(requiredSite))
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.getByID", trace.WithAttributes(attribute.String("po.id", id.String())))
	defer span.End()

	order, err := h.svc.GetFor(ctx, middleware.Principal(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPurchaseOrder(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreatePurchaseOrderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	supplierID, err := uuid.Parse(payload.SupplierID)
	if err != nil {
		return b.WithError(errorbank.BadRequest("supplier_id must be a UUID")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.create", trace.WithAttributes(attribute.String("po.number", payload.OrderNumber)))
	defer span.End()

	in := service.CreateInput{
		OrderNumber: payload.OrderNumber,
		SupplierID:  supplierID,
		Site:        payload.Site,
		Currency:    payload.Currency,
		Notes:       payload.Notes,
		TotalAmount: payload.TotalAmount,
		Items:       make([]service.ItemInput, 0, len(payload.Items)),
	}
	for _, it := range payload.Items {
		in.Items = append(in.Items, service.ItemInput{
			ProductID:  it.ProductID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		})
	}

	order, err := h.svc.Create(ctx, middleware.Principal(c), in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromPurchaseOrder(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	f, err := filterFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	// Without an explicit site, non-admins see their own site.
	if p := middleware.Principal(c); f.Site == "" && !p.IsAdmin() {
		f.Site = p.Site
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPurchaseOrders(orders)).WithPage(f.Limit, f.Offset, len(orders)).Build()
}

func (h *Handler) listBySite(c echo.Context) error {
	b := response.New(c)

	f, err := filterFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.listBySite", trace.WithAttributes(attribute.String("po.site", c.Param("siteName"))))
	defer span.End()

	orders, err := h.svc.ListBySite(ctx, c.Param("siteName"), f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPurchaseOrders(orders)).WithPage(f.Limit, f.Offset, len(orders)).Build()
}

func (h *Handler) history(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.history")
	defer span.End()

	site := strings.TrimSpace(c.QueryParam("site"))
	if p := middleware.Principal(c); site == "" && !p.IsAdmin() {
		site = p.Site
	}
	span.SetAttributes(attribute.String("po.site", site))

	rows, err := h.svc.History(ctx, site)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromSummaries(rows)).WithMeta("count", len(rows)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateStatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.updateStatus", trace.WithAttributes(
		attribute.String("po.id", id.String()),
		attribute.String("po.target", payload.Status),
	))
	defer span.End()

	order, err := h.svc.Transition(ctx, middleware.Principal(c), id, payload.Status, payload.Note)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPurchaseOrder(order)).Build()
}

func (h *Handler) updateTracking(c echo.Context) error {
	b := response.New(c)

	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateTrackingRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.updateTracking", trace.WithAttributes(attribute.String("po.id", id.String())))
	defer span.End()

	order, err := h.svc.UpdateTracking(ctx, middleware.Principal(c), id, service.TrackingInput{
		TrackingNumber:    payload.TrackingNumber,
		ShippingStatus:    payload.ShippingStatus,
		CurrentLocation:   payload.CurrentLocation,
		EstimatedDelivery: payload.EstimatedDelivery,
		Note:              payload.Note,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPurchaseOrder(order)).Build()
}

func (h *Handler) statusHistory(c echo.Context) error {
	b := response.New(c)

	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.statusHistory", trace.WithAttributes(attribute.String("po.id", id.String())))
	defer span.End()

	entries, err := h.svc.StatusHistory(ctx, middleware.Principal(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromStatusHistory(entries)).Build()
}

func filterFrom(c echo.Context) (repo.Filter, error) {
	limit, offset, err := request.Page(c)
	if err != nil {
		return repo.Filter{}, err
	}
	f := repo.Filter{Site: strings.TrimSpace(c.QueryParam("site")), Limit: limit, Offset: offset}
	if raw := c.QueryParam("status"); raw != "" {
		status, err := entity.ParseStatus(raw)
		if err != nil {
			return repo.Filter{}, errorbank.BadRequest(err.Error(), errorbank.WithDetail("allowed", entity.Statuses()))
		}
		f.Status = status
	}
	return f, nil
}
