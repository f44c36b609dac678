package main

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"

	_ "github.com/noah-isme/digital-library-api/api/swagger"
	"github.com/noah-isme/digital-library-api/internal/handler"
	"github.com/noah-isme/digital-library-api/internal/repository"
	"github.com/noah-isme/digital-library-api/internal/service"
	"github.com/noah-isme/digital-library-api/internal/session"
	"github.com/noah-isme/digital-library-api/pkg/cache"
	"github.com/noah-isme/digital-library-api/pkg/config"
	"github.com/noah-isme/digital-library-api/pkg/database"
	"github.com/noah-isme/digital-library-api/pkg/jobs"
	"github.com/noah-isme/digital-library-api/pkg/logger"
	"github.com/noah-isme/digital-library-api/pkg/storage"
)

// @title Digital Library API
// @version 1.0.0
// @description Role-based digital library: admins manage the PDF catalog, students search and download.
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	store, err := storage.NewLocalStore(cfg.Upload.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init content store", "error", err)
	}

	sessions := session.NewManager(redisClient, cfg.Session)

	userRepo := repository.NewUserRepository(db)
	bookRepo := repository.NewBookRepository(db)

	validate := validator.New()
	authSvc := service.NewAuthService(userRepo, validate, logr)
	bookSvc := service.NewBookService(bookRepo, userRepo, store, cfg.Upload.MaxFileSizeBytes, cfg.Upload.AllowedMIMEs, logr)
	metricsSvc := service.NewMetricsService()

	if err := authSvc.EnsureAdmin(context.Background(), cfg.Admin); err != nil {
		logr.Sugar().Fatalw("failed to seed admin account", "error", err)
	}

	sweeper := jobs.NewSweeper("orphan-files", cfg.Upload.SweepInterval, bookSvc.SweepOrphans, logr)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	r := handler.NewRouter(cfg, logr, sessions, handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc, sessions, logr),
		AdminBooks:  handler.NewAdminBookHandler(bookSvc),
		StudentBook: handler.NewStudentBookHandler(bookSvc),
		Metrics:     metricsSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
