package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biruktk/LifeTraker/internal/config"
	"github.com/biruktk/LifeTraker/internal/database"
	"github.com/biruktk/LifeTraker/internal/handlers"
	"github.com/biruktk/LifeTraker/internal/notifications"
	"github.com/biruktk/LifeTraker/internal/repository"
	"github.com/biruktk/LifeTraker/internal/server"
	"github.com/biruktk/LifeTraker/internal/session"
	"github.com/biruktk/LifeTraker/internal/upload"
)

// истекшие и отозванные refresh-сессии хранятся неделю для разбора инцидентов
const expiredSessionRetention = 7 * 24 * time.Hour

func main() {
	ensureEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		db.Close()
	}()

	deps := server.Dependencies{DB: db, Checks: map[string]handlers.Pinger{}}

	if cfg.Redis.URL != "" {
		store, err := session.NewRedisStore(cfg.Redis.URL, cfg.Redis.KeyPrefix)
		if err != nil {
			logger.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			_ = store.Close()
		}()
		deps.Sessions = store
		deps.Checks["redis"] = store
		logger.Info("refresh sessions stored in redis")
	}

	objects, err := upload.NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to create object store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if closer, ok := objects.(io.Closer); ok {
		defer func() {
			_ = closer.Close()
		}()
	}
	deps.Objects = objects

	maintenanceCtx, stopMaintenance := context.WithCancel(ctx)
	defer stopMaintenance()
	go server.RunRetention(maintenanceCtx, []server.RetentionTask{
		{Name: "ai_requests", Retention: cfg.AI.LogRetention, Pruner: repository.NewAIRequestRepository(db)},
		{Name: "refresh_tokens", Retention: expiredSessionRetention, Pruner: server.PrunerFunc(repository.NewRefreshTokenRepository(db).PurgeExpired)},
	}, time.Hour, logger)

	deps.Hub = notifications.NewHub()

	e := server.New(cfg, logger, deps)
	httpServer := server.NewHTTPServer(cfg.Server, e)
	httpServer.RegisterOnShutdown(deps.Hub.Close)

	go func() {
		logger.Info("http server started", slog.String("addr", httpServer.Addr))
		if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownSignal

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

func ensureEnvFile() {
	if os.Getenv("ENV_FILE") != "" {
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = os.Setenv("ENV_FILE", ".env")
		return
	}

	if _, err := os.Stat("../.env"); err == nil {
		_ = os.Setenv("ENV_FILE", "../.env")
	}
}
