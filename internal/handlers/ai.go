package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/ai"
	"github.com/biruktk/LifeTraker/internal/auth"
	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/notifications"
	"github.com/biruktk/LifeTraker/internal/repository"
)

type AIHandler struct {
	documentAccess
	Service *ai.Service
	now     func() time.Time
}

// NewAIHandler создает обработчик AI-эндпоинтов.
func NewAIHandler(service *ai.Service, documents DocumentStore, users UserStore, hub *notifications.Hub, logger *slog.Logger) *AIHandler {
	return &AIHandler{
		documentAccess: documentAccess{
			Documents: documents,
			Users:     users,
			Hub:       hub,
			Logger:    logger,
		},
		Service: service,
		now:     time.Now,
	}
}

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
	Date    string `json:"date" validate:"omitempty,day"`
}

type ChatResponse struct {
	Text      string             `json:"text"`
	Tasks     []ai.ExtractedTask `json:"tasks"`
	Applied   int                `json:"applied"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
}

type ContinueRequest struct {
	Text string `json:"text" validate:"max=20000"`
}

type DraftRequest struct {
	Date string `json:"date" validate:"omitempty,day"`
}

type SentimentRequest struct {
	Content string `json:"content" validate:"max=20000"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type SentimentResponse struct {
	Insight string `json:"insight"`
}

// Chat отвечает на сообщение пользователя. С ?apply=true извлеченные задачи
// добавляются в список задач на дату запроса и документ сохраняется.
func (h *AIHandler) Chat(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ChatRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	apply := false
	if raw := strings.TrimSpace(c.QueryParam("apply")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid apply")
		}
		apply = parsed
	}

	date := h.dateOrToday(req.Date)
	ctx := withAIUser(c.Request().Context(), userID)

	doc, err := h.load(ctx, userID)
	if err != nil {
		return serverError(c)
	}

	result := h.Service.Chat(ctx, req.Message, ai.ChatContext{
		Name:         doc.User.Name,
		Date:         date,
		PendingTasks: pendingTitles(doc, date),
	})

	tasks := make([]ai.ExtractedTask, 0, len(result.Tasks))
	for _, task := range result.Tasks {
		tasks = append(tasks, ai.ExtractedTask{Title: task.Title, Priority: string(document.CoercePriority(task.Priority))})
	}
	response := ChatResponse{Text: result.Text, Tasks: tasks}

	if apply && len(tasks) > 0 {
		for _, task := range tasks {
			doc = document.Apply(doc, document.AddTodo{
				ID:       document.NewID(),
				Title:    task.Title,
				Priority: document.Priority(task.Priority),
				Date:     date,
			})
		}

		_, updatedAt, err := h.save(ctx, userID, doc, clientSession(c))
		if err != nil {
			return serverError(c)
		}
		response.Applied = len(tasks)
		response.UpdatedAt = &updatedAt
	}

	return c.JSON(http.StatusOK, response)
}

// Continue дописывает начатую запись журнала.
func (h *AIHandler) Continue(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ContinueRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	text := h.Service.ContinueText(withAIUser(c.Request().Context(), userID), req.Text)
	return c.JSON(http.StatusOK, TextResponse{Text: text})
}

// JournalDraft пишет черновик записи журнала по сводке дня.
func (h *AIHandler) JournalDraft(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req DraftRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	ctx := withAIUser(c.Request().Context(), userID)
	doc, err := h.load(ctx, userID)
	if err != nil {
		return serverError(c)
	}

	text := h.Service.DraftFromDaySummary(ctx, h.dateOrToday(req.Date), doc)
	return c.JSON(http.StatusOK, TextResponse{Text: text})
}

// Sentiment возвращает короткий вывод о настроении записи журнала.
func (h *AIHandler) Sentiment(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req SentimentRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	insight := h.Service.AnalyzeSentiment(withAIUser(c.Request().Context(), userID), req.Content)
	return c.JSON(http.StatusOK, SentimentResponse{Insight: insight})
}

func (h *AIHandler) dateOrToday(date string) string {
	if date = strings.TrimSpace(date); date != "" {
		return date
	}
	return h.now().Format(document.DateLayout)
}

func pendingTitles(doc document.UserDocument, date string) []string {
	titles := make([]string, 0)
	for _, todo := range doc.Todos {
		if todo.Date == date && !todo.Completed {
			titles = append(titles, todo.Title)
		}
	}
	return titles
}

type aiUserKey struct{}

func withAIUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, aiUserKey{}, userID)
}

// AIRequestRecorder пишет каждый запрос к провайдеру в ai_requests.
type AIRequestRecorder struct {
	Repo     AIRequestLogger
	Provider string
	Model    string
	Logger   *slog.Logger
}

// Record сохраняет запрос; запросы без пользователя в контексте и ошибки записи только логируются.
func (r *AIRequestRecorder) Record(ctx context.Context, call ai.Call) {
	userID, ok := ctx.Value(aiUserKey{}).(uuid.UUID)
	if !ok {
		return
	}

	entry := repository.AIRequestLog{
		UserID:      userID,
		RequestType: call.Type,
		Provider:    r.Provider,
		Model:       r.Model,
		Prompt:      call.Prompt,
		RawResponse: call.Response,
		Success:     call.Err == nil,
		Latency:     call.Latency,
	}
	if raw := strings.TrimSpace(string(call.Raw)); strings.HasPrefix(raw, "{") {
		entry.ResponsePayload = call.Raw
	}
	if call.Err != nil {
		category := string(call.Category)
		message := call.Err.Error()
		entry.ErrorCategory = &category
		entry.ErrorMessage = &message
	}

	if err := r.Repo.LogRequest(context.WithoutCancel(ctx), entry); err != nil && r.Logger != nil {
		r.Logger.Warn("failed to log ai request",
			slog.String("user_id", userID.String()),
			slog.String("request_type", call.Type),
			slog.String("error", err.Error()),
		)
	}
}
