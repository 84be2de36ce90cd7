package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crawford.app/podcastserver/internal/bootstrap"
	"crawford.app/podcastserver/internal/config"
	"crawford.app/podcastserver/internal/server"
	"crawford.app/podcastserver/pkg/database"
	"crawford.app/podcastserver/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	db, err := database.Connect(cfg.DSN(), database.Options{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		Debug:           !cfg.IsProduction(),
	})
	if err != nil {
		zl.Fatal("database connection failed", zap.Error(err))
	}

	if err := bootstrap.Migrate(db); err != nil {
		zl.Fatal("migration failed", zap.Error(err))
	}
	if err := bootstrap.SeedAdminUser(db, bootstrap.AdminSeed{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}); err != nil {
		zl.Fatal("failed to seed admin user", zap.Error(err))
	}

	ctx := context.Background()
	rdb := server.NewRedisClient(ctx, cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	assets, err := server.NewStorage(cfg)
	if err != nil {
		zl.Fatal("failed to initialize asset storage", zap.Error(err))
	}

	srv, err := server.NewServer(cfg, server.Dependencies{
		DB:      db,
		Redis:   rdb,
		Meili:   server.NewSearchClient(cfg),
		Storage: assets,
		Logger:  zl,
	})
	if err != nil {
		zl.Fatal("failed to build server", zap.Error(err))
	}

	go func() {
		if err := srv.Run(); err != nil {
			zl.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	zl.Info("server exited")
}
