package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/procura/pkg/errorbank"
)

func render(t *testing.T, build func(c echo.Context) error) (int, Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.Response().Header().Set(echo.HeaderXRequestID, "req-1")
	require.NoError(t, build(c))

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestSuccessEnvelope(t *testing.T) {
	code, env := render(t, func(c echo.Context) error {
		return New(c).WithStatus(http.StatusCreated).WithData(map[string]string{"status": "draft"}).WithPage(20, 40, 3).Build()
	})

	assert.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.EqualValues(t, 20, env.Meta["limit"])
	assert.EqualValues(t, 40, env.Meta["offset"])
	assert.EqualValues(t, 3, env.Meta["count"])
}

func TestErrorEnvelope(t *testing.T) {
	code, env := render(t, func(c echo.Context) error {
		return New(c).WithError(errorbank.Forbidden("access denied: you are not assigned to site \"B\"",
			errorbank.WithDetail("site", "B"))).Build()
	})

	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "forbidden", env.Error.Kind)
	assert.Equal(t, "B", env.Error.Details["site"])
	assert.Equal(t, "req-1", env.Meta["request_id"])
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	code, env := render(t, func(c echo.Context) error {
		return New(c).WithError(errors.New(`pq: relation "purchase_orders" does not exist`)).Build()
	})

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, InternalMessage, env.Error.Message)
	assert.Empty(t, env.Error.Details)
}
