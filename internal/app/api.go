package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaennil/guide_helper/backend/tilestore/internal/catalog"
	v1 "github.com/jaennil/guide_helper/backend/tilestore/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/usecase"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/config"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger.Level)
	defer l.Sync()

	l.Info("starting tilestore", "backend", cfg.Storage.Backend, "catalog", cfg.Catalog.Path)

	ctx := logger.WithLogger(context.Background(), l)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		l.Fatal("failed to load catalog", "error", err)
	}

	backend, err := OpenBackend(cfg, cat, l)
	if err != nil {
		l.Fatal("failed to open storage backend", "backend", cfg.Storage.Backend, "error", err)
	}

	toucher := usecase.NewAccessToucher(usecase.AccessToucherConfig{
		Workers:   cfg.AccessTimestamp.Workers,
		QueueSize: cfg.AccessTimestamp.QueueSize,
		Rate:      cfg.AccessTimestamp.Rate,
		Timeout:   cfg.AccessTimestamp.Timeout,
	}, l)

	store, err := BuildTileStore(cat, cfg.Storage, backend, toucher, l)
	if err != nil {
		l.Fatal("failed to configure datasets", "error", err)
	}

	h := handler.NewHandler(store)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)
	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown failed", "error", err)
	}

	// in-flight requests may still enqueue touches until Shutdown returns
	toucher.Close()

	if err := backend.Close(); err != nil {
		l.Error("failed to close storage backend", "error", err)
	}

	l.Info("application shutdown completed")
}
