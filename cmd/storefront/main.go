package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/storefront/internal/api"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/storage"
	"github.com/example/storefront/pkg/logger"
	"github.com/example/storefront/pkg/tracing"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Development)
	logger.SetLevel(cfg.LogLevel)

	tracerProvider, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		logger.Warn(context.Background()).Err(err).Msg("tracing disabled")
	}

	store, cleanup, err := buildStore(cfg)
	if err != nil {
		logger.Error(context.Background()).Err(err).Msg("failed to initialize storage")
		os.Exit(1)
	}
	defer cleanup()

	registry := api.NewRegistry(cfg.BackendURL, store, cfg.DefaultPageSize)
	router := api.NewRouter(api.NewHandlers(registry))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info(context.Background()).
			Str("addr", cfg.HTTPAddr).
			Str("backend", cfg.BackendURL).
			Str("storage", cfg.Storage).
			Msg("storefront started")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error(context.Background()).Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info(context.Background()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	if tracerProvider != nil {
		_ = tracing.Shutdown(shutdownCtx, tracerProvider)
	}
}

// buildStore constructs the storage adapter selected by configuration.
func buildStore(cfg config.Config) (storage.Adapter, func(), error) {
	noop := func() {}
	switch cfg.Storage {
	case "memory":
		return storage.NewMemoryStore(), noop, nil

	case "file":
		store, err := storage.NewFileStore(filepath.Join(cfg.StateDir, "storefront.json"))
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	case "redis":
		return storage.NewRedisStore(cfg.RedisAddr, cfg.RedisDB), noop, nil

	case "postgres":
		db, err := storage.ConnectPostgres(cfg.PostgresURL)
		if err != nil {
			return nil, noop, err
		}
		store, err := storage.NewPostgresStore(db)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return store, func() { db.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
