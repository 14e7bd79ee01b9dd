// Package request holds the binding helpers shared by HTTP handlers.
package request

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/procura/pkg/errorbank"
)

const maxPageSize = 100

// Validator adapts go-playground/validator to echo.Validator and reports
// failures with the JSON field names clients sent.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds the validator installed on the Echo instance.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (rv *Validator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		details[field] = fe.Tag()
	}
	return errorbank.BadRequest("invalid payload", errorbank.WithDetails(details))
}

// Bind decodes the request body into dst and validates it.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dst)
}

// UUIDParam parses a path parameter as a UUID.
func UUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw))
	}
	return id, nil
}

// Page reads limit and offset query parameters.
func Page(c echo.Context) (limit, offset int, err error) {
	limit, err = intQuery(c, "limit", maxPageSize)
	if err != nil {
		return 0, 0, err
	}
	offset, err = intQuery(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, offset, nil
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errorbank.BadRequest(name+" must be a non-negative integer", errorbank.WithDetail(name, raw))
	}
	return n, nil
}
