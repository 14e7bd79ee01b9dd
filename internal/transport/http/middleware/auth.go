package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/procura/internal/authz"
	"github.com/Additional-Code/procura/internal/presentation/http/response"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

const principalKey = "procura.principal"

// maxSiteBodyBytes bounds how much of a request body is inspected for the site field.
const maxSiteBodyBytes = 1 << 20

// TokenVerifier turns a bearer token into the caller it identifies.
type TokenVerifier interface {
	Verify(token string) (*authz.Principal, error)
}

// Authenticate attaches the bearer token's principal to the request.
// Requests without an Authorization header stay anonymous.
func Authenticate(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			if header == "" {
				return next(c)
			}
			scheme, token, ok := strings.Cut(header, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				return response.New(c).WithError(errorbank.Unauthorized("malformed authorization header")).Build()
			}
			p, err := v.Verify(token)
			if err != nil {
				return response.New(c).WithError(errorbank.Unauthorized("invalid or expired token")).Build()
			}
			c.Set(principalKey, p)
			c.SetRequest(c.Request().WithContext(authz.WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}

// Principal returns the authenticated caller, or nil.
func Principal(c echo.Context) *authz.Principal {
	p, _ := c.Get(principalKey).(*authz.Principal)
	return p
}

// Require rejects requests that fail policy before the handler runs.
func Require(policy authz.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := authz.Request{Principal: Principal(c)}
			if src, ok := policy.SiteSource(); ok {
				req.Site, req.SiteGiven = ResolveSite(c, src)
			}
			if err := authz.Evaluate(req, policy.Rules()...); err != nil {
				return response.New(c).WithError(err).Build()
			}
			return next(c)
		}
	}
}

// ResolveSite finds the site named by the request: path parameter first,
// then query string, then a top-level string field of a JSON body.
// The body is restored so handlers can bind it again.
func ResolveSite(c echo.Context, src authz.SiteSource) (string, bool) {
	if src.PathParam != "" {
		if v := strings.TrimSpace(c.Param(src.PathParam)); v != "" {
			return v, true
		}
	}
	if src.QueryParam != "" {
		if v := strings.TrimSpace(c.QueryParam(src.QueryParam)); v != "" {
			return v, true
		}
	}
	if src.BodyField != "" {
		if v := siteFromBody(c, src.BodyField); v != "" {
			return v, true
		}
	}
	return "", false
}

func siteFromBody(c echo.Context, field string) string {
	req := c.Request()
	if req.Body == nil || req.Body == http.NoBody {
		return ""
	}
	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return ""
	}
	body := req.Body
	raw, err := io.ReadAll(io.LimitReader(body, maxSiteBodyBytes))
	req.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(raw), body), Closer: body}
	if err != nil || len(raw) == 0 {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	var site string
	if err := json.Unmarshal(fields[field], &site); err != nil {
		return ""
	}
	return strings.TrimSpace(site)
}

type readCloser struct {
	io.Reader
	io.Closer
}
