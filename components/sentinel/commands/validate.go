package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var inputValidator = validator.New()

// ErrInvalidInput marks inputs rejected before reaching the service.
var ErrInvalidInput = errors.New("invalid input")

// validateInput checks struct tags and flattens field errors into one message.
func validateInput(kind string, msg any) error {
	err := inputValidator.Struct(msg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%s command: %w: %v", kind, ErrInvalidInput, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%s command: %w: %s", kind, ErrInvalidInput, strings.Join(parts, ", "))
}
