package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody ограничивает текст ошибки провайдера, попадающий в лог.
const maxErrorBody = 512

// apiErrorBody: общий формат ошибки Gemini и OpenAI-совместимых API.
type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// postJSON отправляет JSON-запрос провайдеру и возвращает тело ответа.
// Ответ вне 2xx возвращается вместе с *ProviderError.
func postJSON(ctx context.Context, httpClient *http.Client, provider, endpoint string, headers http.Header, request any) ([]byte, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return body, &ProviderError{Provider: provider, StatusCode: response.StatusCode, Message: errorMessage(body)}
	}

	return body, nil
}

func errorMessage(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		if parsed.Error.Status != "" {
			return parsed.Error.Status + ": " + parsed.Error.Message
		}
		return parsed.Error.Message
	}

	message := strings.TrimSpace(string(body))
	if len(message) > maxErrorBody {
		message = message[:maxErrorBody]
	}
	return message
}
