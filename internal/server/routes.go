package server

import (
	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/handlers"
)

type routeHandlers struct {
	auth          *handlers.AuthHandler
	document      *handlers.DocumentHandler
	uploads       *handlers.UploadHandler
	ai            *handlers.AIHandler
	notifications *handlers.NotificationHandler
	admin         *handlers.AdminHandler
	ready         echo.HandlerFunc
}

type routeMiddleware struct {
	auth          echo.MiddlewareFunc
	admin         echo.MiddlewareFunc
	authRateLimit echo.MiddlewareFunc
	aiRateLimit   echo.MiddlewareFunc
	uploadLimit   echo.MiddlewareFunc
}

func registerRoutes(e *echo.Echo, h routeHandlers, m routeMiddleware) {
	e.GET("/health", handlers.Health)
	e.GET("/ready", h.ready)

	api := e.Group("/api/v1")
	authGroup := api.Group("/auth", m.authRateLimit)

	authGroup.POST("/register", h.auth.Register)
	authGroup.POST("/login", h.auth.Login)
	authGroup.POST("/refresh", h.auth.Refresh)
	authGroup.POST("/logout", h.auth.Logout)
	authGroup.GET("/me", h.auth.Me, m.auth)

	doc := api.Group("/document", m.auth)
	doc.GET("", h.document.Get)
	doc.PUT("", h.document.Put)
	doc.POST("/mutations", h.document.Mutate)
	doc.GET("/export", h.document.Export)
	doc.GET("/export/csv", h.document.ExportCSV)
	doc.POST("/import", h.document.Import)
	doc.GET("/stats", h.document.Stats)
	doc.GET("/stream", h.notifications.Stream)

	api.POST("/uploads", h.uploads.Create, m.auth, m.uploadLimit)

	admin := api.Group("/admin", m.auth, m.admin)
	admin.GET("/documents", h.admin.ListDocuments)
	admin.PUT("/documents/:userId", h.admin.UpdateDocument)
	admin.DELETE("/documents/:userId", h.admin.DeleteDocument)
	admin.GET("/ai-requests", h.admin.ListAIRequests)
	admin.GET("/usage", h.admin.Usage)

	aiGroup := api.Group("/ai", m.auth, m.aiRateLimit)
	aiGroup.POST("/chat", h.ai.Chat)
	aiGroup.POST("/continue", h.ai.Continue)
	aiGroup.POST("/journal-draft", h.ai.JournalDraft)
	aiGroup.POST("/sentiment", h.ai.Sentiment)
}
