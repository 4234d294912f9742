package ai

import (
	"context"
	"errors"
	"fmt"
)

var ErrMissingAPIKey = errors.New("ai api key is missing")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions управляет форматом ответа модели. Schema передается только
// провайдерам, которые ее поддерживают (Gemini responseSchema).
type ChatOptions struct {
	JSON        bool
	Schema      map[string]any
	Temperature float64
}

// Client возвращает текст ответа и сырой ответ API.
type Client interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, []byte, error)
}

// ProviderError описывает ответ провайдера с кодом вне 2xx.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

func resolveMaxTokens(value int) int {
	if value > 0 {
		return value
	}

	return defaultMaxTokens
}

func resolveTemperature(value float64) float64 {
	if value > 0 {
		return value
	}

	return defaultTemperature
}
