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

// GeminiClient работает с Google Generative Language API (generateContent).
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  geminiGeneration `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGeneration struct {
	Temperature      float64        `json:"temperature,omitempty"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// NewGeminiClient создает клиент Gemini.
func NewGeminiClient(apiKey, baseURL, model string, timeout time.Duration, maxTokens int) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Chat отправляет диалог в Gemini. Системные сообщения уходят в systemInstruction,
// ответы ассистента идут с ролью model.
func (c *GeminiClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, []byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}

	system, contents := geminiContents(messages)
	if len(contents) == 0 {
		return "", nil, errors.New("gemini: request has no user content")
	}

	request := geminiRequest{
		SystemInstruction: system,
		Contents:          contents,
		GenerationConfig: geminiGeneration{
			Temperature:     resolveTemperature(opts.Temperature),
			MaxOutputTokens: resolveMaxTokens(c.maxTokens),
		},
	}
	if opts.JSON {
		request.GenerationConfig.ResponseMimeType = "application/json"
		request.GenerationConfig.ResponseSchema = opts.Schema
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	headers := http.Header{"x-goog-api-key": []string{c.apiKey}}

	body, err := postJSON(ctx, c.httpClient, "gemini", endpoint, headers, request)
	if err != nil {
		return "", body, err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", body, fmt.Errorf("gemini: decode response: %w", err)
	}

	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", body, fmt.Errorf("gemini: prompt blocked: %s", parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return "", body, errors.New("gemini: response has no candidates")
	}

	candidate := parsed.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 && candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
		return "", body, fmt.Errorf("gemini: generation stopped: %s", candidate.FinishReason)
	}

	return text.String(), body, nil
}

func geminiContents(messages []Message) (*geminiContent, []geminiContent) {
	var system []geminiPart
	contents := make([]geminiContent, 0, len(messages))

	for _, message := range messages {
		text := strings.TrimSpace(message.Content)
		if text == "" {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(message.Role)) {
		case RoleSystem:
			system = append(system, geminiPart{Text: text})
		case RoleAssistant, "model":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: text}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: text}}})
		}
	}

	if len(system) == 0 {
		return nil, contents
	}
	return &geminiContent{Parts: system}, contents
}
