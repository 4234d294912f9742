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
	"github.com/biruktk/LifeTraker/internal/models"
	"github.com/biruktk/LifeTraker/internal/repository"
	"github.com/biruktk/LifeTraker/internal/session"
)

// errInvalidSession означает, что refresh-токен не подходит: подпись, тип, срок,
// отзыв, владелец или хэш.
var errInvalidSession = errors.New("invalid refresh session")

type AuthHandler struct {
	Users        UserStore
	Sessions     session.Store
	TokenManager *auth.TokenManager
	Logger       *slog.Logger
	now          func() time.Time
}

// NewAuthHandler создает обработчик регистрации, входа и refresh-сессий.
func NewAuthHandler(users UserStore, sessions session.Store, manager *auth.TokenManager, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		Users:        users,
		Sessions:     sessions,
		TokenManager: manager,
		Logger:       logger,
		now:          time.Now,
	}
}

type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest используется и для /auth/refresh, и для /auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest = RefreshRequest

type AuthUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  *string   `json:"name,omitempty"`
}

type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         AuthUser `json:"user"`
}

type UserResponse struct {
	User AuthUser `json:"user"`
}

// Register создает пользователя вместе с документом-шаблоном и выдает токены.
// Имя из запроса становится user.name документа.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	ctx := c.Request().Context()
	email := normalizeEmail(req.Email)
	name := normalizeName(req.Name)

	passwordHash, err := auth.HashPassword(strings.TrimSpace(req.Password))
	if err != nil {
		return h.internal(c, "hash password", err)
	}

	initial, err := json.Marshal(document.Template(models.User{Email: email, Name: name}.DisplayName()))
	if err != nil {
		return h.internal(c, "encode template document", err)
	}

	user, err := h.Users.CreateWithDocument(ctx, email, passwordHash, name, initial)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return conflict(c, "already registered")
	case err != nil:
		return h.internal(c, "create user", err)
	}

	response, err := h.issueTokens(ctx, user)
	if err != nil {
		return h.internal(c, "issue tokens", err)
	}
	return c.JSON(http.StatusCreated, response)
}

// Login проверяет email и пароль и открывает новую refresh-сессию.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.Users.GetByEmail(ctx, normalizeEmail(req.Email))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return unauthorized(c)
	case err != nil:
		return h.internal(c, "load user", err)
	}

	if auth.ComparePassword(user.PasswordHash, strings.TrimSpace(req.Password)) != nil {
		return unauthorized(c)
	}

	response, err := h.issueTokens(ctx, user)
	if err != nil {
		return h.internal(c, "issue tokens", err)
	}
	return c.JSON(http.StatusOK, response)
}

// Refresh ротирует refresh-сессию: старый токен отзывается, выдается новая пара.
// Повторное использование старого токена дает 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	ctx := c.Request().Context()
	stored, err := h.verifyRefresh(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, errInvalidSession):
		return unauthorized(c)
	case err != nil:
		return h.internal(c, "load session", err)
	}

	user, err := h.Users.GetByID(ctx, stored.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return unauthorized(c)
	case err != nil:
		return h.internal(c, "load user", err)
	}

	pair, err := h.TokenManager.NewTokenPair(user.ID)
	if err != nil {
		return h.internal(c, "sign tokens", err)
	}

	err = h.Sessions.Rotate(ctx, stored.ID, sessionFor(user.ID, pair))
	switch {
	case errors.Is(err, session.ErrNotFound):
		// сессию успел отозвать параллельный запрос
		return unauthorized(c)
	case err != nil:
		return h.internal(c, "rotate session", err)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         toAuthUser(user),
	})
}

// Logout отзывает refresh-сессию. Повторный logout тоже отвечает 204.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	claims, err := h.TokenManager.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return unauthorized(c)
	}
	sessionID, err := claims.SessionID()
	if err != nil {
		return unauthorized(c)
	}

	err = h.Sessions.Revoke(c.Request().Context(), sessionID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return h.internal(c, "revoke session", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me возвращает данные текущего пользователя.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.Users.GetByID(c.Request().Context(), userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound(c, "user not found")
	case err != nil:
		return h.internal(c, "load user", err)
	}

	return c.JSON(http.StatusOK, UserResponse{User: toAuthUser(user)})
}

// verifyRefresh находит активную сессию, которой принадлежит токен.
func (h *AuthHandler) verifyRefresh(ctx context.Context, token string) (models.RefreshToken, error) {
	claims, err := h.TokenManager.ParseRefreshToken(token)
	if err != nil {
		return models.RefreshToken{}, errInvalidSession
	}
	sessionID, err := claims.SessionID()
	if err != nil {
		return models.RefreshToken{}, errInvalidSession
	}
	userID, err := claims.UserID()
	if err != nil {
		return models.RefreshToken{}, errInvalidSession
	}

	stored, err := h.Sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return models.RefreshToken{}, errInvalidSession
	}
	if err != nil {
		return models.RefreshToken{}, err
	}

	if !stored.Active(h.now()) || stored.UserID != userID || !auth.CompareTokenHash(stored.TokenHash, token) {
		return models.RefreshToken{}, errInvalidSession
	}
	return stored, nil
}

func (h *AuthHandler) issueTokens(ctx context.Context, user models.User) (AuthResponse, error) {
	pair, err := h.TokenManager.NewTokenPair(user.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	if err := h.Sessions.Create(ctx, sessionFor(user.ID, pair)); err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         toAuthUser(user),
	}, nil
}

func (h *AuthHandler) internal(c echo.Context, op string, err error) error {
	h.Logger.Error("auth request failed",
		slog.String("op", op),
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return serverError(c)
}

// sessionFor хранит только хэш refresh-токена.
func sessionFor(userID uuid.UUID, pair auth.TokenPair) models.RefreshToken {
	return models.RefreshToken{
		ID:        pair.RefreshID,
		UserID:    userID,
		TokenHash: auth.HashToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
	}
}

func toAuthUser(user models.User) AuthUser {
	return AuthUser{ID: user.ID, Email: user.Email, Name: user.Name}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
