package common

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	return validate
}

// ProcessValidationErrors maps each failing field to the tag it failed.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, ve := range validationErrors {
		details[ve.Field()] = ve.Tag()
	}
	return details
}

// ValidateStruct runs the struct tags and reports failures as ErrInvalidArgument.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	details := ProcessValidationErrors(err)
	if details == nil {
		return Invalidf("%v", err)
	}
	fields := make([]string, 0, len(details))
	for field, tag := range details {
		fields = append(fields, field+" ("+tag+")")
	}
	sort.Strings(fields)
	return Invalidf("invalid fields: %s", strings.Join(fields, ", "))
}
