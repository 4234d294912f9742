// Package validation настраивает go-playground/validator для запросов API.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/biruktk/LifeTraker/internal/document"
)

// Validator реализует echo.Validator.
type Validator struct {
	validate *validator.Validate
}

// FieldError описывает ошибку проверки с именами полей из json-тегов.
type FieldError struct {
	Fields map[string]string
}

func (e *FieldError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// New создает валидатор с тегами day (YYYY-MM-DD) и priority.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	// регистрация встроенных функций не возвращает ошибок
	_ = v.RegisterValidation("day", func(fl validator.FieldLevel) bool {
		return document.IsDay(fl.Field().String())
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		_, ok := document.ParsePriority(strings.ToUpper(fl.Field().String()))
		return ok
	})

	return &Validator{validate: v}
}

// Validate проверяет структуру по тегам и возвращает *FieldError.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &FieldError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fieldErr := range fieldErrs {
		out.Fields[fieldErr.Field()] = describe(fieldErr)
	}
	return out
}

func describe(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", err.Param())
	case "day":
		return "must be a date in YYYY-MM-DD format"
	case "priority":
		return "must be one of TOP, HIGH, MEDIUM, LOW"
	default:
		return "is invalid"
	}
}
