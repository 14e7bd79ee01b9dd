package purchaseorder

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/presentation/http/request"
	repo "github.com/Additional-Code/procura/internal/repository/purchaseorder"
	supplierrepo "github.com/Additional-Code/procura/internal/repository/supplier"
	service "github.com/Additional-Code/procura/internal/service/purchaseorder"
	"github.com/Additional-Code/procura/internal/transport/http/middleware"
)

type memoryOrders struct {
	rows         []*entity.PurchaseOrder
	summarySites []string
}

func (m *memoryOrders) Create(_ context.Context, o *entity.PurchaseOrder) error {
	for _, r := range m.rows {
		if r.OrderNumber == o.OrderNumber {
			return repo.ErrDuplicateNumber
		}
	}
	m.rows = append(m.rows, o)
	return nil
}

func (m *memoryOrders) GetByID(_ context.Context, id uuid.UUID) (*entity.PurchaseOrder, error) {
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memoryOrders) List(_ context.Context, f repo.Filter) ([]*entity.PurchaseOrder, error) {
	out := make([]*entity.PurchaseOrder, 0)
	for _, r := range m.rows {
		if f.Site != "" && r.Site != f.Site {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryOrders) Summaries(_ context.Context, _ []entity.Status, site string) ([]entity.OrderSummary, error) {
	m.summarySites = append(m.summarySites, site)
	out := make([]entity.OrderSummary, 0)
	for _, s := range []entity.OrderSummary{{Site: "A", Status: entity.StatusSent}, {Site: "B", Status: entity.StatusApproved}} {
		if site == "" || s.Site == site {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryOrders) Transition(context.Context, *entity.PurchaseOrder, entity.Status, *entity.StatusHistoryEntry) error {
	return errors.New("not used")
}

func (m *memoryOrders) SaveTracking(context.Context, *entity.PurchaseOrder) error {
	return errors.New("not used")
}

func (m *memoryOrders) StatusHistory(context.Context, uuid.UUID) ([]entity.StatusHistoryEntry, error) {
	return nil, nil
}

type oneSupplier entity.Supplier

func (s *oneSupplier) GetByID(_ context.Context, id uuid.UUID) (*entity.Supplier, error) {
	if id != s.ID {
		return nil, supplierrepo.ErrNotFound
	}
	sup := entity.Supplier(*s)
	return &sup, nil
}

type tokens map[string]*authz.Principal

func (t tokens) Verify(token string) (*authz.Principal, error) {
	if p, ok := t[token]; ok {
		return p, nil
	}
	return nil, errors.New("unknown token")
}

type env struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
	Meta map[string]any `json:"meta"`
}

type harness struct {
	e        *echo.Echo
	orders   *memoryOrders
	supplier uuid.UUID
}

func newHarness() *harness {
	supplier := &oneSupplier{ID: uuid.New(), Name: "Acme", Email: "sales@acme.test"}
	orders := &memoryOrders{}
	svc := service.New(orders, supplier, nil, nil, config.Config{}, zap.NewNop())

	e := echo.New()
	e.Validator = request.NewValidator()
	e.Use(middleware.Authenticate(tokens{
		"clerk-a": {UserID: uuid.New(), Roles: []string{entity.RoleUser}, Site: "A"},
		"admin":   {UserID: uuid.New(), Roles: []string{entity.RoleAdmin}},
	}))
	Register(e, NewHandler(svc))
	return &harness{e: e, orders: orders, supplier: supplier.ID}
}

func (h *harness) call(method, target, token, body string) (int, env) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	var out env
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func (h *harness) createBody(number string) string {
	return `{"order_number":"` + number + `","supplier_id":"` + h.supplier.String() +
		`","items":[{"product_id":"SKU-1","name":"Bolts","quantity":4,"unit_price":"2.50"}]}`
}

func TestCreateAndDuplicate(t *testing.T) {
	h := newHarness()

	code, out := h.call(http.MethodPost, "/api/purchase-orders", "clerk-a", h.createBody("PO-1001"))
	require.Equal(t, http.StatusCreated, code, out.Error.Message)
	var created struct {
		Status      string `json:"status"`
		Site        string `json:"site"`
		TotalAmount string `json:"total_amount"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &created))
	assert.Equal(t, "draft", created.Status)
	assert.Equal(t, "A", created.Site)
	assert.Equal(t, "10", created.TotalAmount)

	code, out = h.call(http.MethodPost, "/api/purchase-orders", "clerk-a", h.createBody("PO-1001"))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", out.Error.Kind)
}

func TestCreateValidatesPayload(t *testing.T) {
	h := newHarness()

	code, out := h.call(http.MethodPost, "/api/purchase-orders", "clerk-a", `{"order_number":"PO-1","supplier_id":"nope","items":[]}`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", out.Error.Kind)
}

func TestSiteRoute(t *testing.T) {
	h := newHarness()
	code, _ := h.call(http.MethodPost, "/api/purchase-orders", "clerk-a", h.createBody("PO-7"))
	require.Equal(t, http.StatusCreated, code)

	code, _ = h.call(http.MethodGet, "/api/sites/B/orders", "clerk-a", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, out := h.call(http.MethodGet, "/api/sites/A/orders", "clerk-a", "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out.Meta["count"])

	code, _ = h.call(http.MethodGet, "/api/sites/B/orders", "admin", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = h.call(http.MethodGet, "/api/sites/A/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	h := newHarness()

	code, _ := h.call(http.MethodGet, "/api/purchase-orders?status=cancelled", "admin", "")

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHistoryScopesNonAdmins(t *testing.T) {
	h := newHarness()

	code, out := h.call(http.MethodGet, "/purchase-orders/history", "clerk-a", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out.Meta["count"])

	code, out = h.call(http.MethodGet, "/api/purchase-orders/history", "admin", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, out.Meta["count"])

	code, out = h.call(http.MethodGet, "/api/purchase-orders/history?site=B", "admin", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out.Meta["count"])

	assert.Equal(t, []string{"A", "", "B"}, h.orders.summarySites)
}

func TestGetByIDValidatesID(t *testing.T) {
	h := newHarness()

	code, _ := h.call(http.MethodGet, "/api/purchase-orders/not-a-uuid", "admin", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.call(http.MethodGet, "/api/purchase-orders/"+uuid.NewString(), "admin", "")
	assert.Equal(t, http.StatusNotFound, code)
}
