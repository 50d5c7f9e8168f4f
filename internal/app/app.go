package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pvsf-admin/internal/config"
	"pvsf-admin/internal/database"
	"pvsf-admin/internal/docstore"
	"pvsf-admin/internal/handler"
	"pvsf-admin/internal/metrics"
	"pvsf-admin/internal/middleware"
	"pvsf-admin/internal/repository"
	"pvsf-admin/internal/router"
	"pvsf-admin/internal/service"
)

type App struct {
	server *http.Server
	db     *database.DB
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	store := docstore.NewPostgresStore(db.Pool, cfg.StoreMaxBatchSize)
	oplogRepo := repository.NewOplogRepository(db.Pool)
	slog.Info("database ready")

	m := metrics.New()
	oplogService := service.NewOplogService(oplogRepo, cfg.RetentionWindow, cfg.LogListMaxLimit, m)
	lifecycleService := service.NewLifecycleService(store, oplogService, cfg.RetentionWindow, m)
	restoreService := service.NewRestoreService(store, oplogService, m)
	cleanupService := service.NewCleanupService(store, oplogService, cfg.CleanupScanLimit, m)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	oplogHandler := handler.NewOplogHandler(oplogService, restoreService)
	lifecycleHandler := handler.NewLifecycleHandler(lifecycleService)
	cleanupHandler := handler.NewCleanupHandler(cleanupService)

	appRouter := router.New(cfg, db.Health, authMiddleware, oplogHandler, lifecycleHandler, cleanupHandler)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server, db: db}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.db.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.db.Close()
	slog.Info("server stopped")
	return nil
}
