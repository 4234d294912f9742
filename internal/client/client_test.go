package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/tracker"
)

// fakeAPI: минимальный сервер с документом в памяти.
type fakeAPI struct {
	mu        sync.Mutex
	doc       []byte
	access    string
	refreshes int
	sessions  []string
	missing   bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret-pass" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  f.access,
			"refresh_token": "refresh-1",
			"user":          map[string]any{"id": "8f0a6a53-3bd7-4c4f-9a43-4d9c4d3a1b10", "email": body["email"], "name": "Ava"},
		})
	})

	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.refreshes++
		f.access = "access-2"
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "access-2", "refresh_token": "refresh-2"})
	})

	mux.HandleFunc("GET /api/v1/document", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.missing {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(f.doc)
	})

	mux.HandleFunc("PUT /api/v1/document", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		f.mu.Lock()
		f.doc = body
		f.sessions = append(f.sessions, r.Header.Get(headerClientSession))
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"updated_at": time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)})
	})

	mux.HandleFunc("GET /api/v1/document/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="life_tracker_backup_2024-06-01.json"`)
		_, _ = w.Write(f.doc)
	})

	mux.HandleFunc("POST /api/v1/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apply") != "true" {
			writeJSON(w, http.StatusOK, map[string]any{"text": "Noted.", "tasks": []map[string]string{{"title": "Call mom", "priority": "high"}}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"text": "Added.", "tasks": []map[string]string{{"title": "Call mom", "priority": "high"}}, "applied": 1})
	})

	return mux
}

func (f *fakeAPI) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+f.access
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func setup(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()

	doc, err := json.Marshal(document.Template("Ava"))
	if err != nil {
		t.Fatalf("marshal template: %v", err)
	}

	api := &fakeAPI{doc: doc, access: "access-1"}
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	client := New(server.URL, time.Second)
	if _, err := client.Login(context.Background(), "ava@example.com", "secret-pass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return client, api
}

// TestLoginInvalidCredentials проверяет разбор ошибки API.
func TestLoginInvalidCredentials(t *testing.T) {
	api := &fakeAPI{access: "access-1"}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	_, err := New(server.URL, time.Second).Login(context.Background(), "ava@example.com", "wrong")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "invalid credentials" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

// TestDocumentRequiresLogin проверяет отказ без токена.
func TestDocumentRequiresLogin(t *testing.T) {
	client := New("http://127.0.0.1:1", time.Second)

	if _, err := client.GetDocument(context.Background(), "user-1"); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}

// TestGetDocumentMapsNotFound проверяет, что 404 становится tracker.ErrNotFound.
func TestGetDocumentMapsNotFound(t *testing.T) {
	client, api := setup(t)
	api.mu.Lock()
	api.missing = true
	api.mu.Unlock()

	if _, err := client.GetDocument(context.Background(), "user-1"); !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("expected tracker.ErrNotFound, got %v", err)
	}
}

// TestRefreshOnUnauthorized проверяет повтор запроса после обновления токена.
func TestRefreshOnUnauthorized(t *testing.T) {
	client, api := setup(t)
	api.mu.Lock()
	api.access = "rotated"
	api.mu.Unlock()

	raw, err := client.GetDocument(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected document after refresh, got %v", err)
	}
	api.mu.Lock()
	refreshes := api.refreshes
	api.mu.Unlock()
	if refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", refreshes)
	}

	doc, err := document.Decode(raw, "")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.User.Name != "Ava" {
		t.Fatalf("expected Ava, got %q", doc.User.Name)
	}
}

// TestManagerPersistsThroughClient проверяет работу менеджера поверх HTTP.
func TestManagerPersistsThroughClient(t *testing.T) {
	client, api := setup(t)
	manager := tracker.NewManager(client, tracker.Options{Debounce: time.Millisecond})
	defer manager.Close()

	ctx := context.Background()
	if _, err := manager.Load(ctx, &tracker.Identity{ID: "user-1", Name: "Ava"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := manager.Apply(document.AddTodo{ID: "t-1", Title: "Stretch", Priority: document.PriorityLow, Date: "2024-06-01"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := manager.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	api.mu.Lock()
	stored := api.doc
	sessions := api.sessions
	api.mu.Unlock()

	doc, err := document.Decode(stored, "")
	if err != nil {
		t.Fatalf("decode stored: %v", err)
	}
	if len(doc.Todos) != 1 || doc.Todos[0].Title != "Stretch" {
		t.Fatalf("expected stored todo, got %+v", doc.Todos)
	}
	if len(sessions) == 0 || sessions[0] != client.Session() {
		t.Fatalf("expected client session header, got %v", sessions)
	}
}

// TestExportFilename проверяет имя файла из Content-Disposition.
func TestExportFilename(t *testing.T) {
	client, _ := setup(t)

	data, filename, err := client.Export(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filename != "life_tracker_backup_2024-06-01.json" {
		t.Fatalf("unexpected filename %q", filename)
	}
	if _, err := document.Import(data); err != nil {
		t.Fatalf("expected importable backup, got %v", err)
	}
}

// TestChatApply проверяет передачу флага apply.
func TestChatApply(t *testing.T) {
	client, _ := setup(t)

	reply, err := client.Chat(context.Background(), "remind me to call mom", "", true)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.Applied != 1 || len(reply.Tasks) != 1 || reply.Tasks[0].Priority != "high" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}
