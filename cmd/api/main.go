package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/ShouryaBatra/homestead-careers-api/api/swagger"
	"github.com/ShouryaBatra/homestead-careers-api/internal/handler"
	"github.com/ShouryaBatra/homestead-careers-api/internal/repository"
	"github.com/ShouryaBatra/homestead-careers-api/internal/router"
	"github.com/ShouryaBatra/homestead-careers-api/internal/service"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/cache"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/config"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/database"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/logger"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/storage"
)

// @title Homestead Careers API
// @version 1.0.0
// @description Job board API: employers post openings, admins approve them, students apply.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, postings board cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	postingRepo := repository.NewPostingRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "homestead-careers-api",
	})
	userSvc := service.NewUserService(userRepo, logr)
	metricsSvc := service.NewMetricsService()
	postingSvc := service.NewPostingService(postingRepo, cacheRepo, userRepo, metricsSvc, validate, logr, cfg.Postings.CacheTTL)
	applicationSvc := service.NewApplicationService(applicationRepo, postingRepo, userRepo, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	var exportHandler *handler.ExportHandler
	if cfg.Exports.Enabled {
		localStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(applicationRepo, postingRepo, localStorage, signer, userRepo, validate, logr, service.ExportServiceConfig{
			APIPrefix:         cfg.APIPrefix,
			SignedURLTTL:      cfg.Exports.SignedURLTTL,
			WorkerConcurrency: cfg.Exports.WorkerConcurrency,
			WorkerRetries:     cfg.Exports.WorkerRetries,
			RetentionTTL:      cfg.Exports.RetentionTTL,
		})
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
		exportHandler = handler.NewExportHandler(exportSvc)
	}

	r := router.New(router.Dependencies{
		Config:         cfg,
		Logger:         logr,
		UserRepo:       userRepo,
		AuthService:    authSvc,
		MetricsService: metricsSvc,
		Auth:           handler.NewAuthHandler(authSvc),
		Users:          handler.NewUserHandler(userSvc),
		Postings:       handler.NewPostingHandler(postingSvc),
		Applications:   handler.NewApplicationHandler(applicationSvc),
		Exports:        exportHandler,
		Metrics:        handler.NewMetricsHandler(metricsSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
