package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/auth"
	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/session"
)

type authFixture struct {
	echo      *echo.Echo
	users     *fakeUsers
	documents *fakeDocuments
	tokens    *auth.TokenManager
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	redis := miniredis.RunT(t)
	sessions, err := session.NewRedisStore("redis://"+redis.Addr(), "refresh:")
	if err != nil {
		t.Fatalf("failed to create session store: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	documents := newFakeDocuments()
	users := newFakeUsers(documents)
	tokens := auth.NewTokenManager("test-secret", "life-tracker", 15*time.Minute, 24*time.Hour)
	handler := NewAuthHandler(users, sessions, tokens, nil)

	e := newTestEcho()
	e.POST("/auth/register", handler.Register)
	e.POST("/auth/login", handler.Login)
	e.POST("/auth/refresh", handler.Refresh)
	e.POST("/auth/logout", handler.Logout)
	e.GET("/auth/me", handler.Me, auth.JWTMiddleware(tokens))

	return authFixture{echo: e, users: users, documents: documents, tokens: tokens}
}

// TestRegisterCreatesTemplateDocument проверяет сценарий регистрации «Ava».
func TestRegisterCreatesTemplateDocument(t *testing.T) {
	f := newAuthFixture(t)

	rec := doJSON(f.echo, http.MethodPost, "/auth/register", map[string]string{
		"email":    "Ava@Example.com",
		"password": "correct-horse",
		"name":     " Ava ",
	})
	assertStatus(t, rec, http.StatusCreated)

	var response AuthResponse
	decodeBody(t, rec, &response)
	if response.AccessToken == "" || response.RefreshToken == "" {
		t.Fatal("expected tokens to be issued")
	}
	if response.User.Email != "ava@example.com" || response.User.Name == nil || *response.User.Name != "Ava" {
		t.Fatalf("unexpected user %+v", response.User)
	}

	doc, err := document.Decode(f.documents.raw(response.User.ID), "")
	if err != nil {
		t.Fatalf("expected stored document, got %v", err)
	}
	if doc.User.Name != "Ava" {
		t.Fatalf("expected user.name Ava, got %q", doc.User.Name)
	}
	if doc.Todos == nil || len(doc.Todos) != 0 {
		t.Fatalf("expected empty todos, got %#v", doc.Todos)
	}
	template := document.Template("Ava")
	if len(doc.Habits) != len(template.Habits) || doc.Habits[0].Name != template.Habits[0].Name {
		t.Fatalf("expected template habits, got %+v", doc.Habits)
	}
}

// TestRegisterDuplicate проверяет повторную регистрацию.
func TestRegisterDuplicate(t *testing.T) {
	f := newAuthFixture(t)
	payload := map[string]string{"email": "ava@example.com", "password": "correct-horse"}

	assertStatus(t, doJSON(f.echo, http.MethodPost, "/auth/register", payload), http.StatusCreated)

	rec := doJSON(f.echo, http.MethodPost, "/auth/register", payload)
	assertStatus(t, rec, http.StatusConflict)

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != "already registered" {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

// TestLoginInvalidCredentials проверяет одинаковый ответ для неверного пароля и неизвестного email.
func TestLoginInvalidCredentials(t *testing.T) {
	f := newAuthFixture(t)
	assertStatus(t, doJSON(f.echo, http.MethodPost, "/auth/register", map[string]string{"email": "ava@example.com", "password": "correct-horse"}), http.StatusCreated)

	for _, payload := range []map[string]string{
		{"email": "ava@example.com", "password": "wrong-password"},
		{"email": "nobody@example.com", "password": "correct-horse"},
	} {
		rec := doJSON(f.echo, http.MethodPost, "/auth/login", payload)
		assertStatus(t, rec, http.StatusUnauthorized)

		var body map[string]string
		decodeBody(t, rec, &body)
		if body["error"] != "invalid credentials" {
			t.Fatalf("unexpected error %q", body["error"])
		}
	}
}

// TestRefreshRotatesSession проверяет, что старый refresh-токен нельзя использовать повторно.
func TestRefreshRotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	rec := doJSON(f.echo, http.MethodPost, "/auth/register", map[string]string{"email": "ava@example.com", "password": "correct-horse"})
	assertStatus(t, rec, http.StatusCreated)

	var registered AuthResponse
	decodeBody(t, rec, &registered)

	rec = doJSON(f.echo, http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: registered.RefreshToken})
	assertStatus(t, rec, http.StatusOK)

	var refreshed AuthResponse
	decodeBody(t, rec, &refreshed)
	if refreshed.RefreshToken == registered.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	assertStatus(t, doJSON(f.echo, http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: registered.RefreshToken}), http.StatusUnauthorized)
	assertStatus(t, doJSON(f.echo, http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: refreshed.RefreshToken}), http.StatusOK)
}

// TestLogoutRevokesSession проверяет отзыв refresh-сессии.
func TestLogoutRevokesSession(t *testing.T) {
	f := newAuthFixture(t)
	rec := doJSON(f.echo, http.MethodPost, "/auth/register", map[string]string{"email": "ava@example.com", "password": "correct-horse"})

	var registered AuthResponse
	decodeBody(t, rec, &registered)

	assertStatus(t, doJSON(f.echo, http.MethodPost, "/auth/logout", LogoutRequest{RefreshToken: registered.RefreshToken}), http.StatusNoContent)
	assertStatus(t, doJSON(f.echo, http.MethodPost, "/auth/logout", LogoutRequest{RefreshToken: registered.RefreshToken}), http.StatusNoContent)
	assertStatus(t, doJSON(f.echo, http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: registered.RefreshToken}), http.StatusUnauthorized)
}

// TestMe проверяет данные текущего пользователя по access-токену.
func TestMe(t *testing.T) {
	f := newAuthFixture(t)
	rec := doJSON(f.echo, http.MethodPost, "/auth/register", map[string]string{"email": "ava@example.com", "password": "correct-horse"})

	var registered AuthResponse
	decodeBody(t, rec, &registered)

	req := doRequestWithToken(f.echo, http.MethodGet, "/auth/me", registered.AccessToken)
	assertStatus(t, req, http.StatusOK)

	var me UserResponse
	decodeBody(t, req, &me)
	if me.User.ID != registered.User.ID {
		t.Fatalf("expected user %s, got %s", registered.User.ID, me.User.ID)
	}
}

// TestRegisterReportsInvalidFields проверяет список полей в ответе 400.
func TestRegisterReportsInvalidFields(t *testing.T) {
	f := newAuthFixture(t)

	rec := doJSON(f.echo, http.MethodPost, "/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	})
	assertStatus(t, rec, http.StatusBadRequest)

	var response struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, rec, &response)
	if response.Error != "validation failed" {
		t.Fatalf("unexpected error %q", response.Error)
	}
	if response.Fields["email"] == "" || response.Fields["password"] == "" {
		t.Fatalf("expected email and password fields, got %v", response.Fields)
	}
}
