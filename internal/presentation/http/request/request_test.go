package request

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/procura/pkg/errorbank"
)

type payload struct {
	Email string `json:"email" validate:"required,email"`
	Items []struct {
		Quantity int `json:"quantity" validate:"gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
}

func newContext(method, target, body string) echo.Context {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestBindReportsJSONFieldNames(t *testing.T) {
	c := newContext(http.MethodPost, "/", `{"email":"nope","items":[{"quantity":0}]}`)

	var p payload
	err := Bind(c, &p)

	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
	details := errorbank.From(err).Details()
	assert.Equal(t, "email", details["email"])
	assert.Equal(t, "gt", details["items[0].quantity"])
}

func TestBindRejectsMalformedJSON(t *testing.T) {
	c := newContext(http.MethodPost, "/", `{"email":`)

	var p payload
	assert.True(t, errorbank.IsKind(Bind(c, &p), errorbank.KindBadRequest))
}

func TestBindAcceptsValidPayload(t *testing.T) {
	c := newContext(http.MethodPost, "/", `{"email":"a@b.test","items":[{"quantity":2}]}`)

	var p payload
	require.NoError(t, Bind(c, &p))
	assert.Equal(t, 2, p.Items[0].Quantity)
}

func TestUUIDParamAndPage(t *testing.T) {
	c := newContext(http.MethodGet, "/?limit=500&offset=20", "")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	_, err := UUIDParam(c, "id")
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	limit, offset, err := Page(c)
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, limit)
	assert.Equal(t, 20, offset)

	_, _, err = Page(newContext(http.MethodGet, "/?limit=-1", ""))
	assert.Error(t, err)
}
