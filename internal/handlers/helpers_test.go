package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/auth"
	"github.com/biruktk/LifeTraker/internal/models"
	"github.com/biruktk/LifeTraker/internal/repository"
	"github.com/biruktk/LifeTraker/internal/validation"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	return e
}

// asUser подставляет аутентифицированного пользователя вместо JWT-мидлвари.
func asUser(userID uuid.UUID) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(auth.ContextUserIDKey, userID)
			return next(c)
		}
	}
}

func doRequest(e *echo.Echo, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doJSON(e *echo.Echo, method, target string, payload interface{}) *httptest.ResponseRecorder {
	var body io.Reader
	switch v := payload.(type) {
	case nil:
	case string:
		body = strings.NewReader(v)
	default:
		raw, _ := json.Marshal(v)
		body = strings.NewReader(string(raw))
	}
	return doRequest(e, method, target, echo.MIMEApplicationJSON, body)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

type fakeUsers struct {
	mu        sync.Mutex
	byEmail   map[string]models.User
	documents *fakeDocuments
}

func newFakeUsers(documents *fakeDocuments) *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]models.User), documents: documents}
}

func (u *fakeUsers) add(email string, name *string, passwordHash string) models.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	user := models.User{ID: uuid.New(), Email: email, Name: name, PasswordHash: passwordHash}
	u.byEmail[email] = user
	return user
}

func (u *fakeUsers) CreateWithDocument(ctx context.Context, email, passwordHash string, name *string, document json.RawMessage) (models.User, error) {
	u.mu.Lock()
	if _, exists := u.byEmail[email]; exists {
		u.mu.Unlock()
		return models.User{}, repository.ErrConflict
	}
	u.mu.Unlock()

	user := u.add(email, name, passwordHash)
	if u.documents != nil {
		if _, err := u.documents.Upsert(ctx, user.ID, document); err != nil {
			return models.User{}, err
		}
	}
	return user, nil
}

func (u *fakeUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byEmail[email]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (u *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

type fakeDocuments struct {
	mu      sync.Mutex
	data    map[uuid.UUID]json.RawMessage
	upserts int
	clock   time.Time
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{
		data:  make(map[uuid.UUID]json.RawMessage),
		clock: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (d *fakeDocuments) Get(_ context.Context, userID uuid.UUID) (models.StoredDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.data[userID]
	if !ok {
		return models.StoredDocument{}, repository.ErrNotFound
	}
	return models.StoredDocument{UserID: userID, Data: data, UpdatedAt: d.clock}, nil
}

func (d *fakeDocuments) Upsert(_ context.Context, userID uuid.UUID, data json.RawMessage) (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upserts++
	d.clock = d.clock.Add(time.Second)
	d.data[userID] = append(json.RawMessage(nil), data...)
	return d.clock, nil
}

func (d *fakeDocuments) ListAll(_ context.Context, limit, offset int) ([]repository.DocumentSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]repository.DocumentSummary, 0, len(d.data))
	for userID, data := range d.data {
		out = append(out, repository.DocumentSummary{UserID: userID, SizeBytes: len(data), UpdatedAt: d.clock})
	}
	return out, nil
}

func (d *fakeDocuments) Count(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.data), nil
}

func (d *fakeDocuments) Update(ctx context.Context, userID uuid.UUID, data json.RawMessage) (time.Time, error) {
	d.mu.Lock()
	_, ok := d.data[userID]
	d.mu.Unlock()
	if !ok {
		return time.Time{}, repository.ErrNotFound
	}
	return d.Upsert(ctx, userID, data)
}

func (d *fakeDocuments) Delete(_ context.Context, userID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.data[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(d.data, userID)
	return nil
}

func (d *fakeDocuments) raw(userID uuid.UUID) json.RawMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data[userID]
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func doRequestWithToken(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newRequest(method, target, contentType string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	return req
}

func serveRequest(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
