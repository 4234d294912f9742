package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultMaxTokens   = 2048
	defaultTemperature = 0.7
)

// GroqClient работает с OpenAI-совместимым chat completions API (Groq).
type GroqClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

type groqRequest struct {
	Model       string      `json:"model"`
	Messages    []Message   `json:"messages"`
	Temperature float64     `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Format      *groqFormat `json:"response_format,omitempty"`
}

// groqFormat включает JSON mode; схему ответа API не принимает.
type groqFormat struct {
	Type string `json:"type"`
}

type groqResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// NewGroqClient создает клиент Groq.
func NewGroqClient(apiKey, baseURL, model string, timeout time.Duration, maxTokens int) *GroqClient {
	return &GroqClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *GroqClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, []byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", nil, fmt.Errorf("groq: %w", ErrMissingAPIKey)
	}

	request := groqRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: resolveTemperature(opts.Temperature),
		MaxTokens:   resolveMaxTokens(c.maxTokens),
	}
	if opts.JSON {
		request.Format = &groqFormat{Type: "json_object"}
	}

	headers := http.Header{"Authorization": []string{"Bearer " + c.apiKey}}
	body, err := postJSON(ctx, c.httpClient, "groq", c.baseURL+"/chat/completions", headers, request)
	if err != nil {
		return "", body, err
	}

	var parsed groqResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", body, fmt.Errorf("groq: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", body, errors.New("groq: response has no choices")
	}

	choice := parsed.Choices[0]
	if choice.Message.Content == "" && choice.FinishReason == "length" {
		return "", body, errors.New("groq: generation stopped: length")
	}

	return choice.Message.Content, body, nil
}
