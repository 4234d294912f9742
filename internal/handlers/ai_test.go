package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/ai"
	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/repository"
)

type fakeAIClient struct {
	content string
	err     error
}

func (c *fakeAIClient) Chat(context.Context, []ai.Message, ai.ChatOptions) (string, []byte, error) {
	return c.content, []byte(`{"candidates":[]}`), c.err
}

type fakeAILog struct {
	entries []repository.AIRequestLog
	err     error
}

func (l *fakeAILog) LogRequest(_ context.Context, entry repository.AIRequestLog) error {
	l.entries = append(l.entries, entry)
	return l.err
}

type aiFixture struct {
	echo      *echo.Echo
	userID    uuid.UUID
	documents *fakeDocuments
	log       *fakeAILog
}

func newAIFixture(client ai.Client) aiFixture {
	documents := newFakeDocuments()
	users := newFakeUsers(documents)
	name := "Ava"
	user := users.add("ava@example.com", &name, "")
	log := &fakeAILog{}

	recorder := &AIRequestRecorder{Repo: log, Provider: "gemini", Model: "gemini-2.5-flash"}
	handler := NewAIHandler(ai.NewService(client, recorder), documents, users, nil, nil)
	handler.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

	e := newTestEcho()
	group := e.Group("/ai", asUser(user.ID))
	group.POST("/chat", handler.Chat)
	group.POST("/continue", handler.Continue)
	group.POST("/journal-draft", handler.JournalDraft)
	group.POST("/sentiment", handler.Sentiment)

	return aiFixture{echo: e, userID: user.ID, documents: documents, log: log}
}

// TestChatFailureDegradesToMessage проверяет ответ при ошибке провайдера.
func TestChatFailureDegradesToMessage(t *testing.T) {
	f := newAIFixture(&fakeAIClient{err: context.DeadlineExceeded})

	rec := doJSON(f.echo, http.MethodPost, "/ai/chat", ChatRequest{Message: "hello"})
	assertStatus(t, rec, http.StatusOK)

	var response ChatResponse
	decodeBody(t, rec, &response)
	if response.Text != ai.CategoryConnectivity.Message() {
		t.Fatalf("unexpected text %q", response.Text)
	}
	if response.Tasks == nil || len(response.Tasks) != 0 {
		t.Fatalf("expected empty tasks, got %#v", response.Tasks)
	}

	if len(f.log.entries) != 1 {
		t.Fatalf("expected one logged request, got %d", len(f.log.entries))
	}
	entry := f.log.entries[0]
	if entry.Success || entry.UserID != f.userID || entry.ErrorCategory == nil || *entry.ErrorCategory != string(ai.CategoryConnectivity) {
		t.Fatalf("unexpected log entry %+v", entry)
	}
}

// TestChatApplyAddsTasks проверяет добавление извлеченных задач с приведением приоритета.
func TestChatApplyAddsTasks(t *testing.T) {
	f := newAIFixture(&fakeAIClient{content: `{"reply":"Added!","extractedTasks":[{"title":"Call mom","priority":"urgent"},{"title":"Buy milk","priority":"LOW"}]}`})

	rec := doJSON(f.echo, http.MethodPost, "/ai/chat?apply=true", ChatRequest{Message: "call mom and buy milk"})
	assertStatus(t, rec, http.StatusOK)

	var response ChatResponse
	decodeBody(t, rec, &response)
	if response.Applied != 2 || response.UpdatedAt == nil {
		t.Fatalf("expected tasks to be applied, got %+v", response)
	}
	if response.Tasks[0].Priority != string(document.PriorityMedium) {
		t.Fatalf("expected unknown priority coerced to MEDIUM, got %s", response.Tasks[0].Priority)
	}

	doc, err := document.Decode(f.documents.raw(f.userID), "")
	if err != nil {
		t.Fatalf("expected stored document, got %v", err)
	}
	if len(doc.Todos) != 2 || doc.Todos[0].Date != "2024-06-01" || doc.Todos[1].Priority != document.PriorityLow {
		t.Fatalf("unexpected todos %+v", doc.Todos)
	}
}

// TestChatWithoutApplyDoesNotWrite проверяет, что без apply документ не меняется.
func TestChatWithoutApplyDoesNotWrite(t *testing.T) {
	f := newAIFixture(&fakeAIClient{content: `{"reply":"Noted","extractedTasks":[{"title":"Call mom","priority":"HIGH"}]}`})

	assertStatus(t, doJSON(f.echo, http.MethodPost, "/ai/chat", ChatRequest{Message: "call mom"}), http.StatusOK)
	if f.documents.upserts != 0 {
		t.Fatal("expected no write")
	}
	assertStatus(t, doJSON(f.echo, http.MethodPost, "/ai/chat", ChatRequest{}), http.StatusBadRequest)
}

// TestContinueAndSentiment проверяет пустые ответы при ошибке провайдера.
func TestContinueAndSentiment(t *testing.T) {
	f := newAIFixture(&fakeAIClient{err: errors.New("boom")})

	rec := doJSON(f.echo, http.MethodPost, "/ai/continue", ContinueRequest{Text: "Today I"})
	assertStatus(t, rec, http.StatusOK)
	var text TextResponse
	decodeBody(t, rec, &text)
	if text.Text != "" {
		t.Fatalf("expected empty continuation, got %q", text.Text)
	}

	rec = doJSON(f.echo, http.MethodPost, "/ai/sentiment", SentimentRequest{Content: "Rough day"})
	assertStatus(t, rec, http.StatusOK)
	var sentiment SentimentResponse
	decodeBody(t, rec, &sentiment)
	if sentiment.Insight != "" {
		t.Fatalf("expected empty insight, got %q", sentiment.Insight)
	}
}

// TestJournalDraft проверяет черновик по сводке дня.
func TestJournalDraft(t *testing.T) {
	f := newAIFixture(&fakeAIClient{content: "A calm, productive day."})

	rec := doJSON(f.echo, http.MethodPost, "/ai/journal-draft", DraftRequest{Date: "2024-06-01"})
	assertStatus(t, rec, http.StatusOK)

	var response TextResponse
	decodeBody(t, rec, &response)
	if response.Text != "A calm, productive day." {
		t.Fatalf("unexpected draft %q", response.Text)
	}
	if len(f.log.entries) != 1 || f.log.entries[0].RequestType != ai.RequestDraft || !f.log.entries[0].Success {
		t.Fatalf("unexpected log %+v", f.log.entries)
	}

	assertStatus(t, doJSON(f.echo, http.MethodPost, "/ai/journal-draft", DraftRequest{Date: "June 1"}), http.StatusBadRequest)
}
