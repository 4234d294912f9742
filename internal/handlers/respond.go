package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/validation"
)

// errorResponse описывает тело всех ошибочных ответов API.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, errorResponse{Error: message})
}

func badRequest(c echo.Context, message string) error {
	return respondError(c, http.StatusBadRequest, message)
}

// validationFailed отвечает 400 со списком полей, не прошедших проверку.
func validationFailed(c echo.Context, err error) error {
	var fieldErr *validation.FieldError
	if errors.As(err, &fieldErr) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fieldErr.Fields})
	}
	return badRequest(c, "validation failed")
}

// bindAndValidate разбирает JSON-тело в req и проверяет теги validate.
// Возвращает уже записанный ответ об ошибке или nil.
func bindAndValidate(c echo.Context, req any) (handled bool, err error) {
	if err := c.Bind(req); err != nil {
		return true, badRequest(c, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return true, validationFailed(c, err)
	}
	return false, nil
}

func unauthorized(c echo.Context) error {
	return respondError(c, http.StatusUnauthorized, "invalid credentials")
}

func conflict(c echo.Context, message string) error {
	return respondError(c, http.StatusConflict, message)
}

func notFound(c echo.Context, message string) error {
	return respondError(c, http.StatusNotFound, message)
}

func forbidden(c echo.Context) error {
	return respondError(c, http.StatusForbidden, "access denied")
}

func serverError(c echo.Context) error {
	return respondError(c, http.StatusInternalServerError, "internal server error")
}
