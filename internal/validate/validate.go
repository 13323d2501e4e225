// Package validate checks wire DTOs against their struct tags.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/shopfloor/internal/errs"
)

// Validator wraps a shared go-playground validator instance.
type Validator struct {
	v *validator.Validate
}

// New constructs a Validator.
func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Valid reports whether dto passes its validation tags.
func (v *Validator) Valid(dto any) bool {
	return v.Check(dto) == nil
}

// Check returns an error wrapping errs.ErrInvalidFields naming the failed fields.
func (v *Validator) Check(dto any) error {
	err := v.v.Struct(dto)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", errs.ErrInvalidFields, err)
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Namespace()+":"+fe.Tag())
	}
	return fmt.Errorf("%w: %s", errs.ErrInvalidFields, strings.Join(fields, ", "))
}
