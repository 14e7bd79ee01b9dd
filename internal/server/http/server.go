package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/observability"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	authsvc "github.com/Additional-Code/procura/internal/service/auth"
	"github.com/Additional-Code/procura/internal/transport/http/middleware"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Params collects the dependencies of the Echo router.
type Params struct {
	fx.In

	Config        config.Config
	Observability *observability.Manager `optional:"true"`
	Logger        *zap.Logger
	Auth          *authsvc.Service
	DB            *database.Connections `optional:"true"`
}

// NewEcho configures the Echo router with the shared middleware stack.
func NewEcho(p Params) *echo.Echo {
	var db Pinger
	if p.DB != nil {
		db = p.DB
	}
	return newEcho(p.Config, p.Observability, p.Logger, p.Auth, db)
}

func newEcho(cfg config.Config, obs *observability.Manager, logger *zap.Logger, tokens middleware.TokenVerifier, db Pinger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = request.NewValidator()
	e.HTTPErrorHandler = errorHandler(logger)

	if obs != nil && obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}
	e.Use(echomw.RequestID())
	e.Use(middleware.AccessLog(logger))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered", zap.Error(err), zap.ByteString("stack", stack))
			return errorbank.Internal("internal server error", errorbank.WithCause(err))
		},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.HTTP.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.Authenticate(tokens))

	health := func(c echo.Context) error {
		status := map[string]string{"status": "ok"}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				logger.Warn("health check database ping failed", zap.Error(err))
				status["status"] = "degraded"
				status["database"] = "unreachable"
				return c.JSON(http.StatusServiceUnavailable, status)
			}
			status["database"] = "ok"
		}
		return c.JSON(http.StatusOK, status)
	}
	e.GET("/health", health)
	e.GET("/api/health", health)

	if obs != nil && obs.MetricsEnabled() && obs.MetricsHandler() != nil {
		e.GET(cfg.Observability.PrometheusPath, echo.WrapHandler(obs.MetricsHandler()))
	}

	return e
}

// errorHandler renders framework errors (404 routes, 405, bad bodies) in the
// response envelope. Handler errors are already rendered by the response builder.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var appErr *errorbank.AppError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &httpErr):
			appErr = fromHTTPError(httpErr)
		default:
			logger.Error("http request failed", zap.Error(err))
			appErr = errorbank.Internal("internal server error", errorbank.WithCause(err))
		}
		if appErr.Kind() == errorbank.KindInternal {
			logger.Error("http request failed", zap.Error(err))
		}
		if buildErr := response.New(c).WithError(appErr).Build(); buildErr != nil {
			logger.Error("write error response", zap.Error(buildErr))
		}
	}
}

func fromHTTPError(he *echo.HTTPError) *errorbank.AppError {
	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}
	switch he.Code {
	case http.StatusNotFound:
		return errorbank.NotFound(msg)
	case http.StatusUnauthorized:
		return errorbank.Unauthorized(msg)
	case http.StatusForbidden:
		return errorbank.Forbidden(msg)
	case http.StatusConflict:
		return errorbank.Conflict(msg)
	case http.StatusUnprocessableEntity:
		return errorbank.Unprocessable(msg)
	case http.StatusInternalServerError:
		return errorbank.Internal("internal server error", errorbank.WithCause(he))
	default:
		if he.Code >= 500 {
			return errorbank.Internal("internal server error", errorbank.WithCause(he))
		}
		return errorbank.BadRequest(msg, errorbank.WithDetail("status", he.Code))
	}
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
