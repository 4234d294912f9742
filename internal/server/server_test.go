package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/biruktk/LifeTraker/internal/config"
)

type nopObjectStore struct{}

func (nopObjectStore) Put(context.Context, string, string, string, io.Reader, int64) error {
	return nil
}

func (nopObjectStore) PublicURL(bucket, objectPath string) string {
	return "http://objects/" + bucket + "/" + objectPath
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{CORSOrigins: []string{"http://localhost:5173"}},
		Auth: config.AuthConfig{
			JWTSecret:          "secret",
			JWTIssuer:          "life-tracker",
			AccessTokenTTL:     time.Minute,
			RefreshTokenTTL:    time.Hour,
			RateLimitPerMinute: 60,
			RateLimitBurst:     2,
		},
		AI:      config.AIConfig{Provider: "gemini", RateLimitPerMinute: 60, RateLimitBurst: 2},
		Storage: config.StorageConfig{Bucket: "images"},
		Upload:  config.UploadConfig{MaxBytes: 1024},
	}
}

func newTestServer() http.Handler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(testConfig(), logger, Dependencies{Objects: nopObjectStore{}})
}

// TestHealth проверяет, что сервер собирается и отвечает на /health.
func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

// TestCORSPreflight проверяет разрешенные источники и заголовок сессии клиента.
func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/document", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "X-Client-Session")

	rec := httptest.NewRecorder()
	newTestServer().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

// TestDocumentRequiresToken проверяет защиту эндпоинтов документа.
func TestDocumentRequiresToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/document", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// TestAuthRateLimit проверяет ограничение частоты запросов авторизации.
func TestAuthRateLimit(t *testing.T) {
	handler := newTestServer()

	last := 0
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
		last = rec.Code
	}

	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last)
	}
}
