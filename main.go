package main

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

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/handler"
	"github.com/Kartekeya-Sharma/Contract-Guard/pkg/logger"
	"github.com/Kartekeya-Sharma/Contract-Guard/service"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := os.Getenv("CONTRACTGUARD_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully", "path", configPath)

	analysisSvc := service.NewAnalysisService(&cfg.Analysis)
	querySvc := service.NewQueryService(&cfg.Query)
	store := service.NewSessionStore(&cfg.Store)

	sessionHandler := handler.NewSessionHandler(store, analysisSvc, service.PolicyFromConfig(&cfg.Analysis), querySvc)

	if cfg.Minio.Enabled() {
		archive, err := service.NewDocumentArchive(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize document archive", "error", err)
			os.Exit(1)
		}
		if err := archive.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure archive bucket", "bucket", cfg.Minio.Bucket, "error", err)
			os.Exit(1)
		}
		sessionHandler.WithArchive(archive)
		slog.Info("document archive enabled", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
	}

	var resultHandler *handler.ResultHandler
	healthHandler := handler.NewHealthHandler(store, nil)
	if cfg.Redis.Enabled() {
		results, err := service.NewResultStore(cfg.Redis.URL, cfg.Redis.TTL())
		if err != nil {
			slog.Error("failed to connect result store", "error", err)
			os.Exit(1)
		}
		defer results.Close()
		sessionHandler.WithResults(results)
		resultHandler = handler.NewResultHandler(results)
		healthHandler = handler.NewHealthHandler(store, results)
		slog.Info("result store enabled", "ttl", cfg.Redis.TTL())
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(cfg, sessionHandler, resultHandler, healthHandler)

	// ?wait=true keeps the response open until the analysis finishes.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.Analysis.Timeout() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port,
			"analysis_endpoint", cfg.Analysis.Endpoint,
			"query_endpoint", cfg.Query.Endpoint,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
