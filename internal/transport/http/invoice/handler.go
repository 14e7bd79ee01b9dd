package invoice

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/authz"
	"github.com/Additional-Code/procura/internal/dto"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	service "github.com/Additional-Code/procura/internal/service/invoice"
	"github.com/Additional-Code/procura/internal/transport/http/middleware"
)

// Module wires HTTP invoice handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes invoice endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an invoice Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	signedIn := middleware.Require(authz.Allow(authz.Authenticated()))
	e.POST("/api/purchase-orders/:id/invoices", h.create, signedIn)
	e.GET("/api/purchase-orders/:id/invoices", h.list, signedIn)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.CreateInvoiceRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	inv, err := h.svc.Create(c.Request().Context(), middleware.Principal(c), id, service.Input{
		InvoiceNumber: payload.InvoiceNumber,
		Amount:        payload.Amount,
		IssuedAt:      payload.IssuedAt,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromInvoice(inv)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	invoices, err := h.svc.List(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, dto.FromInvoice(inv))
	}
	return b.WithData(out).Build()
}
