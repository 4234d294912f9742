package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/biruktk/LifeTraker/internal/ai"
	"github.com/biruktk/LifeTraker/internal/auth"
	"github.com/biruktk/LifeTraker/internal/config"
	"github.com/biruktk/LifeTraker/internal/handlers"
	"github.com/biruktk/LifeTraker/internal/notifications"
	"github.com/biruktk/LifeTraker/internal/repository"
	"github.com/biruktk/LifeTraker/internal/session"
	"github.com/biruktk/LifeTraker/internal/upload"
	"github.com/biruktk/LifeTraker/internal/validation"
)

// Dependencies содержит внешние ресурсы, которые создает main.
type Dependencies struct {
	DB       *pgxpool.Pool
	Sessions session.Store
	Objects  upload.ObjectStore
	// Hub создается автоматически, если не задан.
	Hub *notifications.Hub
	// Checks проверяются эндпоинтом /ready в дополнение к базе данных.
	Checks map[string]handlers.Pinger
}

// New собирает HTTP-сервер Echo с роутами и зависимостями.
func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(corsMiddleware(cfg.Server))

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	userRepo := repository.NewUserRepository(deps.DB)
	documentRepo := repository.NewDocumentRepository(deps.DB)
	aiRepo := repository.NewAIRequestRepository(deps.DB)
	adminRepo := repository.NewAdminRepository(deps.DB)
	notificationHub := deps.Hub
	if notificationHub == nil {
		notificationHub = notifications.NewHub()
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = repository.NewRefreshTokenRepository(deps.DB)
	}

	gateway := upload.NewGateway(deps.Objects, cfg.Storage.Bucket)

	var aiClient ai.Client
	switch strings.ToLower(cfg.AI.Provider) {
	case "gemini":
		aiClient = ai.NewGeminiClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout, cfg.AI.MaxOutputTokens)
	default:
		aiClient = ai.NewGroqClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout, cfg.AI.MaxOutputTokens)
	}
	aiService := ai.NewService(aiClient, &handlers.AIRequestRecorder{
		Repo:     aiRepo,
		Provider: cfg.AI.Provider,
		Model:    cfg.AI.Model,
		Logger:   logger,
	})

	checks := map[string]handlers.Pinger{"postgres": deps.DB}
	for name, pinger := range deps.Checks {
		checks[name] = pinger
	}

	registerRoutes(e,
		routeHandlers{
			auth:          handlers.NewAuthHandler(userRepo, sessions, tokenManager, logger),
			document:      handlers.NewDocumentHandler(documentRepo, userRepo, gateway, notificationHub, logger),
			uploads:       handlers.NewUploadHandler(gateway, cfg.Upload.MaxBytes, logger),
			ai:            handlers.NewAIHandler(aiService, documentRepo, userRepo, notificationHub, logger),
			notifications: handlers.NewNotificationHandler(notificationHub),
			admin:         handlers.NewAdminHandler(adminRepo, documentRepo, notificationHub, logger),
			ready:         handlers.Ready(checks),
		},
		routeMiddleware{
			auth:          auth.JWTMiddleware(tokenManager),
			admin:         handlers.AdminMiddleware(userRepo, cfg.Admin.Emails),
			authRateLimit: authRateLimiter(cfg.Auth),
			aiRateLimit:   aiRateLimiter(cfg.AI),
			uploadLimit:   uploadBodyLimit(cfg.Upload),
		},
	)

	return e
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
				slog.Duration("latency", v.Latency),
			}

			if userID, ok := auth.UserIDFromContext(c); ok {
				attrs = append(attrs, slog.String("user_id", userID.String()))
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			if v.Status >= http.StatusInternalServerError {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
				return nil
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			return nil
		},
	})
}

func corsMiddleware(cfg config.ServerConfig) echo.MiddlewareFunc {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			handlers.HeaderClientSession,
		},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	})
}

// uploadBodyLimit учитывает рост размера на треть при передаче в Base64.
func uploadBodyLimit(cfg config.UploadConfig) echo.MiddlewareFunc {
	limitKB := (cfg.MaxBytes*4/3)/1024 + 64
	return middleware.BodyLimit(fmt.Sprintf("%dK", limitKB))
}

func authRateLimiter(cfg config.AuthConfig) echo.MiddlewareFunc {
	return rateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
}

func aiRateLimiter(cfg config.AIConfig) echo.MiddlewareFunc {
	return rateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
}

func rateLimiter(perMinute, burst int) echo.MiddlewareFunc {
	limit := rate.Limit(float64(perMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     burst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
