package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/repository"
)

type fakeAdminStore struct {
	filter repository.AIRequestFilter
}

func (s *fakeAdminStore) ListAIRequests(_ context.Context, filter repository.AIRequestFilter, _, _ int, _ bool) ([]repository.AIRequestRecord, error) {
	s.filter = filter
	return []repository.AIRequestRecord{{ID: uuid.New(), RequestType: "chat", CreatedAt: time.Now()}}, nil
}

func (s *fakeAdminStore) CountAIRequests(context.Context, repository.AIRequestFilter) (int, error) {
	return 1, nil
}

func (s *fakeAdminStore) UsageStats(_ context.Context, days int) (repository.UsageStats, error) {
	return repository.UsageStats{
		Users:           2,
		Documents:       2,
		Content:         repository.ContentTotals{Todos: 5, CompletedTodos: 2},
		AIRequestsByDay: []repository.DailyCount{{Day: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Count: days, Failed: 1}},
	}, nil
}

type adminFixture struct {
	echo      *echo.Echo
	documents *fakeDocuments
	admin     uuid.UUID
	member    uuid.UUID
	store     *fakeAdminStore
}

func newAdminFixture() adminFixture {
	documents := newFakeDocuments()
	users := newFakeUsers(documents)
	admin := users.add("root@example.com", nil, "")
	member := users.add("ava@example.com", nil, "")
	store := &fakeAdminStore{}

	handler := NewAdminHandler(store, documents, nil, nil)
	guard := AdminMiddleware(users, []string{" ROOT@example.com "})

	e := newTestEcho()
	register := func(userID uuid.UUID, prefix string) {
		group := e.Group(prefix, asUser(userID), guard)
		group.GET("/documents", handler.ListDocuments)
		group.PUT("/documents/:userId", handler.UpdateDocument)
		group.DELETE("/documents/:userId", handler.DeleteDocument)
		group.GET("/ai-requests", handler.ListAIRequests)
		group.GET("/usage", handler.Usage)
	}
	register(admin.ID, "/admin")
	register(member.ID, "/member")

	return adminFixture{echo: e, documents: documents, admin: admin.ID, member: member.ID, store: store}
}

// TestAdminMiddlewareForbidsMembers проверяет доступ только для email из списка.
func TestAdminMiddlewareForbidsMembers(t *testing.T) {
	f := newAdminFixture()

	assertStatus(t, doJSON(f.echo, http.MethodGet, "/member/documents", nil), http.StatusForbidden)
	assertStatus(t, doJSON(f.echo, http.MethodGet, "/admin/documents", nil), http.StatusOK)
}

// TestAdminUpdateAndDeleteDocument проверяет перезапись и удаление документа пользователя.
func TestAdminUpdateAndDeleteDocument(t *testing.T) {
	f := newAdminFixture()
	target := "/admin/documents/" + f.member.String()

	assertStatus(t, doJSON(f.echo, http.MethodPut, target, document.Template("Ava")), http.StatusNotFound)

	payload, _ := json.Marshal(document.Template("Ava"))
	f.documents.data[f.member] = payload

	updated := document.Template("Ava Admin")
	assertStatus(t, doJSON(f.echo, http.MethodPut, target, updated), http.StatusOK)

	stored, _ := document.Decode(f.documents.raw(f.member), "")
	if stored.User.Name != "Ava Admin" {
		t.Fatalf("expected updated name, got %q", stored.User.Name)
	}

	assertStatus(t, doJSON(f.echo, http.MethodPut, target, `{"user":{}}`), http.StatusBadRequest)
	assertStatus(t, doJSON(f.echo, http.MethodDelete, target, nil), http.StatusNoContent)
	assertStatus(t, doJSON(f.echo, http.MethodDelete, target, nil), http.StatusNotFound)
	assertStatus(t, doJSON(f.echo, http.MethodDelete, "/admin/documents/not-a-uuid", nil), http.StatusBadRequest)
}

// TestAdminListAIRequestsFilters проверяет разбор фильтров журнала.
func TestAdminListAIRequestsFilters(t *testing.T) {
	f := newAdminFixture()

	rec := doJSON(f.echo, http.MethodGet, "/admin/ai-requests?success=false&error_category=rate_limited&request_type=chat", nil)
	assertStatus(t, rec, http.StatusOK)

	if f.store.filter.Success == nil || *f.store.filter.Success {
		t.Fatalf("expected success=false filter, got %+v", f.store.filter)
	}
	if f.store.filter.ErrorCategory == nil || *f.store.filter.ErrorCategory != "rate_limited" {
		t.Fatalf("expected error category filter, got %+v", f.store.filter)
	}

	var response AdminAIRequestsResponse
	decodeBody(t, rec, &response)
	if response.Total != 1 || len(response.Requests) != 1 {
		t.Fatalf("unexpected response %+v", response)
	}

	assertStatus(t, doJSON(f.echo, http.MethodGet, "/admin/ai-requests?limit=0", nil), http.StatusBadRequest)
}

// TestAdminUsageClampsDays проверяет ограничение периода статистики.
func TestAdminUsageClampsDays(t *testing.T) {
	f := newAdminFixture()

	rec := doJSON(f.echo, http.MethodGet, "/admin/usage?days=90", nil)
	assertStatus(t, rec, http.StatusOK)

	var response AdminUsageResponse
	decodeBody(t, rec, &response)
	if len(response.AIRequestsByDay) != 1 || response.AIRequestsByDay[0].Count != 30 || response.AIRequestsByDay[0].Date != "2024-06-01" {
		t.Fatalf("unexpected usage %+v", response)
	}
	if response.Days != 30 || response.Content.CompletedTodos != 2 || response.AIRequestsByType == nil {
		t.Fatalf("unexpected usage summary %+v", response)
	}
	assertStatus(t, doJSON(f.echo, http.MethodGet, "/admin/usage?days=-1", nil), http.StatusBadRequest)
}

// TestAdminListAIRequestsPeriod проверяет фильтр по периоду с включительной правой границей.
func TestAdminListAIRequestsPeriod(t *testing.T) {
	f := newAdminFixture()

	assertStatus(t, doJSON(f.echo, http.MethodGet, "/admin/ai-requests?since=2024-06-01&until=2024-06-01", nil), http.StatusOK)

	since, until := f.store.filter.Since, f.store.filter.Until
	if since == nil || until == nil {
		t.Fatalf("expected period filter, got %+v", f.store.filter)
	}
	if !since.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) || !until.Equal(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period %v..%v", since, until)
	}

	assertStatus(t, doJSON(f.echo, http.MethodGet, "/admin/ai-requests?since=2024-06-03&until=2024-06-01", nil), http.StatusBadRequest)
	assertStatus(t, doJSON(f.echo, http.MethodGet, "/admin/ai-requests?since=June", nil), http.StatusBadRequest)
	assertStatus(t, doJSON(f.echo, http.MethodGet, "/admin/ai-requests?include_payloads=maybe", nil), http.StatusBadRequest)
}
