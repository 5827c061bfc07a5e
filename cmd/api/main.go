package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/kaen/internal/cache"
	"github.com/emilythestrangee/kaen/internal/config"
	"github.com/emilythestrangee/kaen/internal/database"
	"github.com/emilythestrangee/kaen/internal/logger"
	"github.com/emilythestrangee/kaen/internal/server"
)

func main() {
	if err := run(); err != nil {
		logger.Log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Initialize(cfg.LogLevel, strings.EqualFold(cfg.LogFormat, "json"))
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.DB, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer db.Close()

	comments, closeCache, err := commentCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	srv := server.NewServer(ctx, cfg, db, comments)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("🚀 Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// commentCache is Redis when REDIS_ADDR is set and in-process otherwise.
func commentCache(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Log.Info("✅ Using in-memory comment cache", "ttl", cfg.CacheTTL)
		return cache.NewMemory(cfg.CacheTTL), func() {}, nil
	}

	client, err := cache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	logger.Log.Info("✅ Connected to Redis", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	return cache.NewRedis(client, cfg.CacheTTL), func() { _ = client.Close() }, nil
}
