package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"
)

func newValidator() *validator.Validate {
	v := validator.New()

	// Validate decimal.Decimal as float64 for gt/gte checks.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := val.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return models.Currency(strings.ToUpper(fl.Field().String())).IsValid()
	})

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.BadRequest("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation '%s'", e.Field(), e.Tag()))
	}
	return apperrors.BadRequest("validation failed: %s", strings.Join(msgs, "; "))
}

// pathID binds a UUID path parameter.
func pathID(r *http.Request, name string) (openapi_types.UUID, error) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &raw, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return openapi_types.UUID{}, apperrors.BadRequest("invalid format for parameter %s: %v", name, err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return openapi_types.UUID{}, apperrors.BadRequest("invalid format for parameter %s: not a UUID", name)
	}
	return id, nil
}

// queryParam binds an optional query parameter into dst.
func queryParam(r *http.Request, name string, required bool, dst any) error {
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dst); err != nil {
		return apperrors.BadRequest("invalid format for parameter %s: %v", name, err)
	}
	return nil
}

func parseCurrency(s string) (models.Currency, error) {
	c, err := models.ParseCurrency(s)
	if err != nil {
		return "", models.ErrInvalidCurrency
	}
	return c, nil
}
