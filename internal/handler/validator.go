package handler

import (
	"github.com/go-playground/validator/v10"
)

// RequestValidator wires go-playground/validator into echo's Validator hook
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates the validator used for all request bodies
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator
func (v *RequestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
