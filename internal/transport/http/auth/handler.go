package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/authz"
	"github.com/Additional-Code/procura/internal/dto"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	service "github.com/Additional-Code/procura/internal/service/auth"
	"github.com/Additional-Code/procura/internal/transport/http/middleware"
)

// Module wires the authentication endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes login and account endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an auth Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register installs the authentication routes.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/api/auth/login", h.login)
	e.GET("/api/auth/me", h.me, middleware.Require(authz.Allow(authz.Authenticated())))
	e.POST("/api/users", h.createUser, middleware.Require(authz.Allow(authz.Admin())))
}

func (h *Handler) login(c echo.Context) error {
	b := response.New(c)
	var payload dto.LoginRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	token, err := h.svc.Login(c.Request().Context(), payload.Email, payload.Password)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.LoginResponse{
		Token:     token.AccessToken,
		TokenType: "Bearer",
		ExpiresAt: token.ExpiresAt,
		User:      dto.FromUser(token.User),
	}).Build()
}

func (h *Handler) me(c echo.Context) error {
	b := response.New(c)
	user, err := h.svc.Me(c.Request().Context(), middleware.Principal(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromUser(user)).Build()
}

func (h *Handler) createUser(c echo.Context) error {
	b := response.New(c)
	var payload dto.CreateUserRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	user, err := h.svc.CreateUser(c.Request().Context(), service.NewUserInput{
		Email:    payload.Email,
		Password: payload.Password,
		Name:     payload.Name,
		Roles:    payload.Roles,
		Site:     payload.Site,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromUser(user)).Build()
}
