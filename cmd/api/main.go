package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"docpipe/internal/config"
	"docpipe/internal/doccache"
	"docpipe/internal/filestore"
	handlers "docpipe/internal/http/handler"
	"docpipe/internal/http/middleware"
	"docpipe/internal/otel"
	"docpipe/internal/parser"
	"docpipe/internal/pipeline"
	"docpipe/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()

	shutdownTracing, err := otel.Init(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	// Pick the object storage backend for staged uploads
	var backend storage.Storage
	switch cfg.StorageBackend {
	case "minio":
		backend, err = storage.NewMinIO(cfg.MinIO)
	default:
		backend, err = storage.NewLocal(cfg.Upload.Dir)
	}
	if err != nil {
		log.Fatalf("failed to initialize storage backend: %v", err)
	}

	files := filestore.New(backend, cfg.Upload.TTL)
	cache := doccache.New(cfg.Cache.MaxSize, cfg.Cache.TTL)

	engine := parser.NewEngine(parser.EngineConfig{
		AllowedExtensions: cfg.Parser.AllowedExtensions,
		MaxFileSizeMB:     cfg.Upload.MaxFileSizeMB,
	})

	reg := prometheus.NewRegistry()

	pipeMetrics, err := pipeline.NewMetrics(reg)
	if err != nil {
		log.Fatalf("failed to register pipeline metrics: %v", err)
	}
	pipe := pipeline.New(files, cache, engine, pipeMetrics)

	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    (cfg.Upload.MaxFileSizeMB + 1) << 20,
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())
	app.Use(httpMetrics.Handler())

	handlers.RegisterRoutes(app, cfg, files, pipe, reg)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
