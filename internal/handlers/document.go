package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/auth"
	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/notifications"
	"github.com/biruktk/LifeTraker/internal/repository"
)

// HeaderClientSession отличает вкладки одного пользователя в событиях document_saved.
const HeaderClientSession = "X-Client-Session"

// documentAccess загружает и сохраняет документ пользователя; общий для
// обработчиков документа, AI и админки.
type documentAccess struct {
	Documents DocumentStore
	Users     UserStore
	Images    ImageReconciler
	Hub       *notifications.Hub
	Logger    *slog.Logger
}

// load возвращает документ с миграцией при чтении; для нового пользователя возвращается шаблон.
func (a documentAccess) load(ctx context.Context, userID uuid.UUID) (document.UserDocument, error) {
	displayName := ""
	user, err := a.Users.GetByID(ctx, userID)
	switch {
	case err == nil:
		displayName = user.DisplayName()
	case !errors.Is(err, repository.ErrNotFound):
		return document.UserDocument{}, err
	}

	stored, err := a.Documents.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return document.Template(displayName), nil
		}
		return document.UserDocument{}, err
	}

	return document.Decode(stored.Data, displayName)
}

// save переносит Base64-изображения в хранилище (ошибка загрузки не мешает
// сохранению) и записывает документ через store.
func (a documentAccess) save(ctx context.Context, userID uuid.UUID, doc document.UserDocument, origin string) (document.UserDocument, time.Time, error) {
	if a.Images != nil {
		reconciled, err := a.Images.ReconcileDocument(ctx, doc, userID.String())
		if err != nil {
			a.logger().Warn("image upload failed, keeping inline data",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()),
			)
		}
		doc = reconciled
	}

	return a.store(ctx, userID, doc, origin)
}

// store записывает документ как есть и уведомляет остальные сессии. Замена
// документа целиком (PUT и импорт) идет мимо загрузки изображений, чтобы
// импорт экспортированного файла сохранял его без изменений.
func (a documentAccess) store(ctx context.Context, userID uuid.UUID, doc document.UserDocument, origin string) (document.UserDocument, time.Time, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return doc, time.Time{}, err
	}

	updatedAt, err := a.Documents.Upsert(ctx, userID, payload)
	if err != nil {
		return doc, time.Time{}, err
	}

	a.Hub.PublishDocumentSaved(userID, updatedAt, origin)
	return doc, updatedAt, nil
}

func (a documentAccess) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

type DocumentHandler struct {
	documentAccess
	now func() time.Time
}

// NewDocumentHandler создает обработчик документа пользователя. images может быть nil.
func NewDocumentHandler(documents DocumentStore, users UserStore, images ImageReconciler, hub *notifications.Hub, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentAccess: documentAccess{
			Documents: documents,
			Users:     users,
			Images:    images,
			Hub:       hub,
			Logger:    logger,
		},
		now: time.Now,
	}
}

type SaveResponse struct {
	UpdatedAt time.Time `json:"updated_at"`
}

type MutationResponse struct {
	Document  document.UserDocument `json:"document"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Get возвращает документ текущего пользователя.
func (h *DocumentHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	doc, err := h.load(c.Request().Context(), userID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, doc)
}

// Put заменяет документ целиком.
func (h *DocumentHandler) Put(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	raw, err := readBody(c)
	if err != nil {
		return badRequest(c, "invalid payload")
	}

	doc, err := document.Import(raw)
	if err != nil {
		return badRequest(c, document.ErrInvalidStructure.Error())
	}

	_, updatedAt, err := h.store(c.Request().Context(), userID, doc, clientSession(c))
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, SaveResponse{UpdatedAt: updatedAt})
}

// Mutate применяет одну мутацию вида {"type": "ADD_TODO", ...} и сохраняет документ.
func (h *DocumentHandler) Mutate(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	raw, err := readBody(c)
	if err != nil {
		return badRequest(c, "invalid payload")
	}

	mutation, err := document.DecodeMutation(raw)
	if err != nil {
		return badRequest(c, "invalid mutation")
	}
	if err := c.Validate(mutation); err != nil {
		return validationFailed(c, err)
	}

	ctx := c.Request().Context()
	doc, err := h.load(ctx, userID)
	if err != nil {
		return serverError(c)
	}

	doc, updatedAt, err := h.save(ctx, userID, document.Apply(doc, mutation), clientSession(c))
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, MutationResponse{Document: doc, UpdatedAt: updatedAt})
}

// Stats возвращает агрегаты дашборда на дату ?date=YYYY-MM-DD (по умолчанию сегодня).
func (h *DocumentHandler) Stats(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	day, err := parseDate(c.QueryParam("date"), h.now)
	if err != nil {
		return badRequest(c, "invalid date")
	}

	doc, err := h.load(c.Request().Context(), userID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, document.Stats(doc, day))
}

func parseDate(raw string, now func() time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now(), nil
	}
	return time.Parse(document.DateLayout, raw)
}

func clientSession(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(HeaderClientSession))
}
