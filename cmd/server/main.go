// @title           Advocate Management System API
// @version         1.0
// @description     Practice management for advocates: cases, hearings, documents, invoices and client notifications.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/config"
	"github.com/sincere-abayo/advocate-management-system/internal/server"
	"github.com/sincere-abayo/advocate-management-system/internal/storage"
	"github.com/sincere-abayo/advocate-management-system/pkg/database"
	"github.com/sincere-abayo/advocate-management-system/pkg/logger"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatal("logger init failed:", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()
	if err := database.Migrate(db); err != nil {
		zl.Fatal("migration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := server.Deps{
		DB:                db,
		Log:               zl,
		Tokens:            auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL},
		SignedURLTTL:      cfg.SignedURLTTL,
		CaseNumberRetries: cfg.CaseNumberRetries,
	}
	s3, err := storage.NewS3(ctx, cfg)
	switch {
	case err != nil:
		zl.Fatal("object storage", zap.Error(err))
	case s3 == nil:
		zl.Warn("object storage not configured; document links will answer 503")
	default:
		deps.Store = s3
	}

	app := server.New(deps)

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdown); err != nil {
			zl.Error("shutdown", zap.Error(err))
		}
	}()

	zl.Info("server running", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zl.Fatal("listen", zap.Error(err))
	}
}
