package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/auth"
	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/models"
	"github.com/biruktk/LifeTraker/internal/notifications"
	"github.com/biruktk/LifeTraker/internal/repository"
)

const (
	// adminOrigin помечает события document_saved, вызванные правкой администратора.
	adminOrigin = "admin"

	defaultUsageDays = 7
	maxUsageDays     = 30
)

type AdminHandler struct {
	Repo      AdminStore
	Documents AdminDocumentStore
	Hub       *notifications.Hub
	Logger    *slog.Logger
}

// NewAdminHandler создает обработчик админских эндпоинтов.
func NewAdminHandler(repo AdminStore, documents AdminDocumentStore, hub *notifications.Hub, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{Repo: repo, Documents: documents, Hub: hub, Logger: logger}
}

type AdminDocumentResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

type AdminDocumentsResponse struct {
	Total     int                     `json:"total"`
	Documents []AdminDocumentResponse `json:"documents"`
}

type AdminAIRequestResponse struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	RequestType     string          `json:"request_type"`
	Provider        string          `json:"provider"`
	Model           string          `json:"model"`
	Success         bool            `json:"success"`
	ErrorCategory   *string         `json:"error_category,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	LatencyMS       int64           `json:"latency_ms"`
	CreatedAt       string          `json:"created_at"`
	Prompt          *string         `json:"prompt,omitempty"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	RawResponse     *string         `json:"raw_response,omitempty"`
}

type AdminAIRequestsResponse struct {
	Total    int                      `json:"total"`
	Requests []AdminAIRequestResponse `json:"requests"`
}

type AdminUsageDay struct {
	Date   string `json:"date"`
	Count  int    `json:"count"`
	Failed int    `json:"failed"`
}

type AdminContentTotals struct {
	Todos          int `json:"todos"`
	CompletedTodos int `json:"completed_todos"`
	Habits         int `json:"habits"`
	JournalEntries int `json:"journal_entries"`
	Expenses       int `json:"expenses"`
	VisionImages   int `json:"vision_images"`
}

type AdminUsageResponse struct {
	Days             int                `json:"days"`
	Users            int                `json:"users"`
	Documents        int                `json:"documents"`
	ActiveDocuments  int                `json:"active_documents"`
	Content          AdminContentTotals `json:"content"`
	AIRequests       int                `json:"ai_requests"`
	AISuccess        int                `json:"ai_success"`
	AIFail           int                `json:"ai_fail"`
	AIAvgLatencyMS   int64              `json:"ai_avg_latency_ms"`
	AIRequestsByDay  []AdminUsageDay    `json:"ai_requests_by_day"`
	AIRequestsByType map[string]int     `json:"ai_requests_by_type"`
}

// ListDocuments возвращает сводку документов всех пользователей.
func (h *AdminHandler) ListDocuments(c echo.Context) error {
	limit, offset, err := parsePagination(c, 50, 200)
	if err != nil {
		return badRequest(c, err.Error())
	}

	documents, err := h.Documents.ListAll(c.Request().Context(), limit, offset)
	if err != nil {
		return serverError(c)
	}

	total, err := h.Documents.Count(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	response := make([]AdminDocumentResponse, 0, len(documents))
	for _, doc := range documents {
		response = append(response, AdminDocumentResponse{
			UserID:    doc.UserID,
			Email:     doc.Email,
			Name:      doc.Name,
			SizeBytes: doc.SizeBytes,
			CreatedAt: doc.CreatedAt.Format(timeLayout),
			UpdatedAt: doc.UpdatedAt.Format(timeLayout),
		})
	}

	return c.JSON(http.StatusOK, AdminDocumentsResponse{
		Total:     total,
		Documents: response,
	})
}

// DeleteDocument удаляет документ пользователя; при следующем входе он получит шаблон.
func (h *AdminHandler) DeleteDocument(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	if err := h.Documents.Delete(c.Request().Context(), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "document not found")
		}
		return serverError(c)
	}

	h.audit(c, "admin deleted document", userID)
	return c.NoContent(http.StatusNoContent)
}

// UpdateDocument перезаписывает существующий документ пользователя.
func (h *AdminHandler) UpdateDocument(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	raw, err := readBody(c)
	if err != nil {
		return badRequest(c, "invalid payload")
	}

	doc, err := document.Import(raw)
	if err != nil {
		return badRequest(c, document.ErrInvalidStructure.Error())
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return serverError(c)
	}

	updatedAt, err := h.Documents.Update(c.Request().Context(), userID, payload)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "document not found")
		}
		return serverError(c)
	}

	h.Hub.PublishDocumentSaved(userID, updatedAt, adminOrigin)
	h.audit(c, "admin updated document", userID)
	return c.JSON(http.StatusOK, SaveResponse{UpdatedAt: updatedAt})
}

// ListAIRequests возвращает логи AI-запросов с фильтрами.
func (h *AdminHandler) ListAIRequests(c echo.Context) error {
	limit, offset, err := parsePagination(c, 50, 200)
	if err != nil {
		return badRequest(c, err.Error())
	}

	filter, err := parseAIRequestFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	includePayloads, err := queryBool(c, "include_payloads")
	if err != nil {
		return badRequest(c, err.Error())
	}
	payloads := includePayloads != nil && *includePayloads

	requests, err := h.Repo.ListAIRequests(c.Request().Context(), filter, limit, offset, payloads)
	if err != nil {
		return serverError(c)
	}

	total, err := h.Repo.CountAIRequests(c.Request().Context(), filter)
	if err != nil {
		return serverError(c)
	}

	response := make([]AdminAIRequestResponse, 0, len(requests))
	for _, req := range requests {
		item := AdminAIRequestResponse{
			ID:            req.ID,
			UserID:        req.UserID,
			RequestType:   req.RequestType,
			Provider:      req.Provider,
			Model:         req.Model,
			Success:       req.Success,
			ErrorCategory: req.ErrorCategory,
			ErrorMessage:  req.ErrorMessage,
			LatencyMS:     req.LatencyMS,
			CreatedAt:     req.CreatedAt.Format(timeLayout),
		}

		if payloads {
			item.Prompt = req.Prompt
			if len(req.ResponsePayload) > 0 {
				item.ResponsePayload = json.RawMessage(req.ResponsePayload)
			}
			item.RawResponse = req.RawResponse
		}
		response = append(response, item)
	}

	return c.JSON(http.StatusOK, AdminAIRequestsResponse{
		Total:    total,
		Requests: response,
	})
}

// Usage возвращает статистику использования за days дней (по умолчанию 7,
// не больше 30).
func (h *AdminHandler) Usage(c echo.Context) error {
	days := defaultUsageDays
	if raw := strings.TrimSpace(c.QueryParam("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "invalid days")
		}
		days = min(parsed, maxUsageDays)
	}

	stats, err := h.Repo.UsageStats(c.Request().Context(), days)
	switch {
	case errors.Is(err, repository.ErrInvalid):
		return badRequest(c, "invalid days")
	case err != nil:
		h.Logger.Error("admin usage failed", slog.String("error", err.Error()))
		return serverError(c)
	}

	byDay := make([]AdminUsageDay, 0, len(stats.AIRequestsByDay))
	for _, day := range stats.AIRequestsByDay {
		byDay = append(byDay, AdminUsageDay{
			Date:   day.Day.Format(document.DateLayout),
			Count:  day.Count,
			Failed: day.Failed,
		})
	}

	byType := stats.AIRequestsByType
	if byType == nil {
		byType = map[string]int{}
	}

	return c.JSON(http.StatusOK, AdminUsageResponse{
		Days:            days,
		Users:           stats.Users,
		Documents:       stats.Documents,
		ActiveDocuments: stats.ActiveDocuments,
		Content: AdminContentTotals{
			Todos:          stats.Content.Todos,
			CompletedTodos: stats.Content.CompletedTodos,
			Habits:         stats.Content.Habits,
			JournalEntries: stats.Content.JournalEntries,
			Expenses:       stats.Content.Expenses,
			VisionImages:   stats.Content.VisionImages,
		},
		AIRequests:       stats.AIRequests,
		AISuccess:        stats.AISuccess,
		AIFail:           stats.AIFail,
		AIAvgLatencyMS:   stats.AIAvgLatencyMS,
		AIRequestsByDay:  byDay,
		AIRequestsByType: byType,
	})
}

// parseAIRequestFilter читает user_id, success, request_type, error_category
// и период since/until (YYYY-MM-DD, until включительно).
func parseAIRequestFilter(c echo.Context) (repository.AIRequestFilter, error) {
	var filter repository.AIRequestFilter

	if raw := strings.TrimSpace(c.QueryParam("user_id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid user_id")
		}
		filter.UserID = &parsed
	}

	success, err := queryBool(c, "success")
	if err != nil {
		return filter, err
	}
	filter.Success = success

	if raw := strings.TrimSpace(c.QueryParam("request_type")); raw != "" {
		filter.RequestType = &raw
	}
	if raw := strings.TrimSpace(c.QueryParam("error_category")); raw != "" {
		filter.ErrorCategory = &raw
	}

	if raw := strings.TrimSpace(c.QueryParam("since")); raw != "" {
		day, err := time.Parse(document.DateLayout, raw)
		if err != nil {
			return filter, errors.New("invalid since")
		}
		filter.Since = &day
	}
	if raw := strings.TrimSpace(c.QueryParam("until")); raw != "" {
		day, err := time.Parse(document.DateLayout, raw)
		if err != nil {
			return filter, errors.New("invalid until")
		}
		next := day.AddDate(0, 0, 1)
		filter.Until = &next
	}
	if filter.Since != nil && filter.Until != nil && !filter.Since.Before(*filter.Until) {
		return filter, errors.New("since must not be after until")
	}

	return filter, nil
}

func queryBool(c echo.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &parsed, nil
}

func (h *AdminHandler) audit(c echo.Context, message string, target uuid.UUID) {
	adminID, _ := auth.UserIDFromContext(c)
	h.Logger.Info(message,
		slog.String("admin_id", adminID.String()),
		slog.String("user_id", target.String()),
	)
}

type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

// AdminMiddleware ограничивает доступ к админским роутам по email.
func AdminMiddleware(users userLookup, emails []string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		trimmed := strings.ToLower(strings.TrimSpace(email))
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := auth.UserIDFromContext(c)
			if !ok {
				return unauthorized(c)
			}

			if len(allowed) == 0 {
				return forbidden(c)
			}

			user, err := users.GetByID(c.Request().Context(), userID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return forbidden(c)
				}
				return serverError(c)
			}

			email := strings.ToLower(strings.TrimSpace(user.Email))
			if _, ok := allowed[email]; !ok {
				return forbidden(c)
			}

			return next(c)
		}
	}
}

func parsePagination(c echo.Context, defaultLimit, maxLimit int) (int, int, error) {
	limit := defaultLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if parsed > maxLimit {
			parsed = maxLimit
		}
		limit = parsed
	}

	offset := 0
	if raw := strings.TrimSpace(c.QueryParam("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = parsed
	}

	return limit, offset, nil
}
