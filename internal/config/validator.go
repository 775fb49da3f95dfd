package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// Validator validates configuration values.
type Validator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements Validator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator instance.
func NewValidator() Validator {
	return &validatorImpl{
		validate: validator.New(),
	}
}

// Validate validates the configuration and returns detailed error messages.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}

	err := v.validate.Struct(cfg)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "validation error", err)
	}

	var messages []string
	for _, e := range validationErrs {
		messages = append(messages, formatValidationError(e))
	}

	return types.NewError(types.CONFIG_VALIDATION_FAILED,
		"configuration validation failed: "+strings.Join(messages, "; "))
}

// formatValidationError converts a field error into a readable message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Namespace())
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Namespace(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", e.Namespace(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Namespace(), e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", e.Namespace(), e.Tag())
	}
}
