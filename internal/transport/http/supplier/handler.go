package supplier

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/authz"
	"github.com/Additional-Code/procura/internal/dto"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	service "github.com/Additional-Code/procura/internal/service/supplier"
	"github.com/Additional-Code/procura/internal/transport/http/middleware"
)

// Module wires HTTP supplier handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes supplier endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a supplier Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	read := middleware.Require(authz.Allow(authz.Authenticated()))
	write := middleware.Require(authz.Allow(authz.AnyRole(entity.RoleAdmin, entity.RolePurchaser)))

	g := e.Group("/api/suppliers")
	g.GET("", h.list, read)
	g.POST("", h.create, write)
	g.GET("/:id", h.get, read)
	g.PUT("/:id", h.update, write)
	g.DELETE("/:id", h.delete, write)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	suppliers, err := h.svc.List(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.SupplierResponse, 0, len(suppliers))
	for _, s := range suppliers {
		out = append(out, dto.FromSupplier(s))
	}
	return b.WithData(out).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	s, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromSupplier(s)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	var payload dto.SupplierRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	s, err := h.svc.Create(c.Request().Context(), input(payload))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromSupplier(s)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.SupplierRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	s, err := h.svc.Update(c.Request().Context(), id, input(payload))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromSupplier(s)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return b.WithError(err).Build()
	}
	return c.NoContent(http.StatusNoContent)
}

func input(p dto.SupplierRequest) service.Input {
	return service.Input{
		Name:          p.Name,
		Email:         p.Email,
		Phone:         p.Phone,
		Address:       p.Address,
		ContactPerson: p.ContactPerson,
	}
}
