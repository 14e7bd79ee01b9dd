package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/authz"
	"github.com/Additional-Code/procura/internal/entity"
)

type tokenTable map[string]*authz.Principal

func (t tokenTable) Verify(token string) (*authz.Principal, error) {
	p, ok := t[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return p, nil
}

var tokens = tokenTable{
	"clerk-a":  {UserID: uuid.New(), Roles: []string{entity.RoleUser}, Site: "A"},
	"admin":    {UserID: uuid.New(), Roles: []string{entity.RoleAdmin, entity.RoleUser}},
	"no-admin": {UserID: uuid.New(), Roles: []string{entity.RoleUser}},
}

type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func newServer(handlerHits *int) *echo.Echo {
	e := echo.New()
	e.Use(Authenticate(tokens))
	e.Use(AccessLog(zap.NewNop()))
	ok := func(c echo.Context) error {
		*handlerHits++
		body, _ := io.ReadAll(c.Request().Body)
		return c.String(http.StatusOK, string(body))
	}
	scoped := authz.Allow(authz.SiteMember()).ScopedBy(authz.DefaultSiteSource)
	unscoped := authz.Allow(authz.SiteMember(authz.AllowUnscoped())).ScopedBy(authz.DefaultSiteSource)

	e.GET("/sites/:siteName/orders", ok, Require(scoped))
	e.POST("/orders", ok, Require(scoped))
	e.GET("/history", ok, Require(unscoped))
	e.GET("/admin", ok, Require(authz.Allow(authz.Admin())))
	return e
}

func do(e *echo.Echo, method, target, token, body string) (*httptest.ResponseRecorder, envelope) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestSiteGuard(t *testing.T) {
	hits := 0
	e := newServer(&hits)

	rec, env := do(e, http.MethodGet, "/sites/B/orders", "clerk-a", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, env.Error.Message, `"B"`)

	rec, _ = do(e, http.MethodGet, "/sites/A/orders", "clerk-a", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(e, http.MethodGet, "/sites/B/orders", "admin", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(e, http.MethodGet, "/history", "clerk-a", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(e, http.MethodGet, "/history", "no-admin", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(e, http.MethodPost, "/orders", "clerk-a", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "site is required", env.Error.Message)

	assert.Equal(t, 4, hits)
}

func TestSiteResolutionPrecedence(t *testing.T) {
	hits := 0
	e := newServer(&hits)

	rec, _ := do(e, http.MethodGet, "/sites/A/orders?site=B", "clerk-a", "")
	assert.Equal(t, http.StatusOK, rec.Code, "path wins over query")

	rec, _ = do(e, http.MethodPost, "/orders?site=A", "clerk-a", `{"site":"B"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "query wins over body")

	rec, _ = do(e, http.MethodPost, "/orders", "clerk-a", `{"site":"B"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBodyIsRestoredAfterSiteLookup(t *testing.T) {
	hits := 0
	e := newServer(&hits)
	body := `{"site":"A","order_number":"PO-1"}`

	rec, _ := do(e, http.MethodPost, "/orders", "clerk-a", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.String())
}

func TestRoleGuard(t *testing.T) {
	hits := 0
	e := newServer(&hits)

	rec, _ := do(e, http.MethodGet, "/admin", "no-admin", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, hits)

	rec, _ = do(e, http.MethodGet, "/admin", "admin", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, hits)
}

func TestUnauthenticatedNeverReachesHandler(t *testing.T) {
	hits := 0
	e := newServer(&hits)

	for _, target := range []string{"/admin", "/history", "/sites/A/orders"} {
		rec, env := do(e, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		assert.Equal(t, "unauthorized", env.Error.Kind)
	}

	rec, _ := do(e, http.MethodGet, "/admin", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Basic abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, 0, hits)
}
