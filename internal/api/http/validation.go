package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"minibank-core/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())

	// decimal.Decimal is a struct, so these read the field directly instead
	// of going through a custom type func.
	if err := vld.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.IsPositive()
	}); err != nil {
		return nil, fmt.Errorf("failed to register positive_decimal: %w", err)
	}
	if err := vld.RegisterValidation("nonneg_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && !d.IsNegative()
	}); err != nil {
		return nil, fmt.Errorf("failed to register nonneg_decimal: %w", err)
	}

	// Report json names instead of Go field names.
	vld.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return vld, nil
}

func validateStruct(payload any) error {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	if errValidate != nil {
		return domain.Internal(errValidate, "validator unavailable")
	}

	if err := validate.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return formatFieldError(fieldErrs[0])
		}
		return domain.Validation("invalid request: %v", err)
	}
	return nil
}

func formatFieldError(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.Validation("%s is required", field)
	case "positive_decimal":
		return domain.Validation("%s must be greater than 0", field)
	case "nonneg_decimal":
		return domain.Validation("%s must not be negative", field)
	case "oneof":
		return domain.Validation("%s must be one of [%s]", field, fe.Param())
	}
	return domain.Validation("%s failed %s check", field, fe.Tag())
}

// decodeAndValidate reads a JSON body into payload and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, payload any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return domain.Validation("Content-Type must be application/json")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(payload); err != nil {
		return domain.Validation("malformed request body: %v", err)
	}
	return validateStruct(payload)
}
