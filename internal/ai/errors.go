package ai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

type Category string

const (
	CategoryConfiguration Category = "configuration"
	CategoryConnectivity  Category = "connectivity"
	CategoryRateLimited   Category = "rate_limited"
	CategoryUnknown       Category = "unknown"
)

var categoryMessages = map[Category]string{
	CategoryConfiguration: "The AI assistant is not configured correctly. Check the API key and try again.",
	CategoryConnectivity:  "I couldn't reach the AI service. Check your connection and try again.",
	CategoryRateLimited:   "The AI service is busy right now. Please wait a moment and try again.",
	CategoryUnknown:       "Something went wrong while talking to the AI assistant. Please try again.",
}

// Message возвращает текст для пользователя.
func (c Category) Message() string {
	if message, ok := categoryMessages[c]; ok {
		return message
	}
	return categoryMessages[CategoryUnknown]
}

// Categorize относит ошибку провайдера к одной из категорий.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrMissingAPIKey) {
		return CategoryConfiguration
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		switch providerErr.StatusCode {
		case http.StatusTooManyRequests:
			return CategoryRateLimited
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return CategoryConfiguration
		}
	}

	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "api key"), strings.Contains(message, "api_key"):
		return CategoryConfiguration
	case strings.Contains(message, "quota"),
		strings.Contains(message, "rate limit"),
		strings.Contains(message, "resource_exhausted"),
		strings.Contains(message, "too many requests"):
		return CategoryRateLimited
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryConnectivity
	}
	if strings.Contains(message, "connection refused") || strings.Contains(message, "no such host") {
		return CategoryConnectivity
	}

	return CategoryUnknown
}
