// Package validation wraps go-playground/validator for the HTML forms.
//
// Form structs carry `validate` tags and a `label` tag with the Portuguese
// field name shown to the user:
//
//	type registerInput struct {
//	    Name  string `validate:"required,min=2,max=150" label:"Nome"`
//	    Email string `validate:"required,email" label:"E-mail"`
//	}
//
// ValidateStruct returns nil or an error that unwraps to
// apperror.ErrValidation and carries the first failing field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/musicrec/internal/apperror"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator. It is safe for concurrent use
// and caches struct metadata between calls.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if label := f.Tag.Get("label"); label != "" {
				return label
			}
			return f.Name
		})
		_ = validate.RegisterValidation("notblank", notBlank)
	})
	return validate
}

// notBlank rejects strings made only of whitespace, which "required" lets
// through.
func notBlank(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string // struct field name, e.g. "Email"
	Label   string // label shown to the user, e.g. "E-mail"
	Tag     string
	Param   string
	Message string
}

// Errors is every failed rule of one ValidateStruct call, in field order.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, " ")
}

// Unwrap lets errors.Is(err, apperror.ErrValidation) succeed.
func (e Errors) Unwrap() error {
	return apperror.ErrValidation
}

// First returns the first failure as an *apperror.AppError so handlers can
// treat it like any other validation error.
func (e Errors) First() *apperror.AppError {
	if len(e) == 0 {
		return apperror.ValidationFailed("", "Dados inválidos.")
	}
	return apperror.ValidationFailed(strings.ToLower(e[0].Field), e[0].Message)
}

// ValidateStruct validates s and returns Errors, or nil when s is valid.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation: %w", err)
	}

	out := make(Errors, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{
			Field:   fe.StructField(),
			Label:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return out
}

// ValidateVar checks a single value against tag. label names the value in
// the returned message. It is used for rules decided at runtime, such as the
// configured minimum password length.
func ValidateVar(value any, tag, field, label string) error {
	err := GetValidator().Var(value, tag)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation: %w", err)
	}

	out := make(Errors, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{
			Field:   field,
			Label:   label,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe.Tag(), label, fe.Param()),
		}
	}
	return out
}

var messageTemplates = map[string]string{
	"required": "O campo %s é obrigatório.",
	"notblank": "O campo %s é obrigatório.",
	"email":    "Informe um %s válido.",
	"min":      "O campo %s deve ter pelo menos %s caracteres.",
	"max":      "O campo %s deve ter no máximo %s caracteres.",
}

func translate(fe validator.FieldError) string {
	return message(fe.Tag(), fe.Field(), fe.Param())
}

func message(tag, label, param string) string {
	tmpl, ok := messageTemplates[tag]
	if !ok {
		return fmt.Sprintf("O campo %s é inválido.", label)
	}
	if tag == "min" || tag == "max" {
		return fmt.Sprintf(tmpl, label, param)
	}
	return fmt.Sprintf(tmpl, label)
}
