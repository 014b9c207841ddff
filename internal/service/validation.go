package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"blueprint-api/pkg/apierror"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// The builtin uuid tag is lowercase only; ids arrive in any form
		// uuid.Parse accepts and are canonicalised before lookup.
		_ = validate.RegisterValidation("anyuuid", func(fl validator.FieldLevel) bool {
			_, err := uuid.Parse(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// validateRequest checks the validate tags of a request struct and reports
// the first failing field as a validation error.
func validateRequest(req any) error {
	err := requestValidator().Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apierror.Validation("invalid request", "")
	}

	fe := fieldErrs[0]
	return apierror.Validation(fieldMessage(fe), fe.Field())
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "uuid", "anyuuid":
		return "Must be a valid UUID."
	default:
		return fmt.Sprintf("Invalid value for %s.", fe.Field())
	}
}
