package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/builder"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/codegen"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/config"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/handler"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/infrastructure/database"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/logger"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/metrics"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/middleware"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/orchestrator"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/parser"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/repository"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/source"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/validator"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration",
			slog.String("error", err.Error()))
	}

	// Connect to database
	pool, err := database.NewPostgres(context.Background(), database.PoolConfig{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		Database:          cfg.DBName,
		SSLMode:           cfg.DBSSLMode,
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			slog.String("error", err.Error()))
	}
	defer pool.Close()

	// Start database pool metrics collector
	poolStatsCollector := metrics.NewPoolStatsCollector(pool)
	poolStatsCollector.Start(15 * time.Second)
	defer poolStatsCollector.Stop()

	// Initialize stores
	jobStore := repository.NewPostgresJobStore(pool)
	graphStore := repository.NewPostgresGraphStore(pool)
	historyStore := repository.NewPostgresHistoryStore(pool)

	// Initialize the import pipeline
	pipeline := orchestrator.New(
		jobStore,
		graphStore,
		historyStore,
		parser.Default(),
		validator.NewValidator(),
		builder.New(codegen.NewClientStubGenerator()),
		orchestrator.Config{
			RetryLimit:      cfg.RetryLimit,
			MaxPayloadBytes: cfg.MaxPayloadBytes,
			PhaseTimeout:    cfg.PhaseTimeout,
			WorkerCount:     cfg.WorkerPoolSize,
		},
	)

	resolver := source.NewResolver(cfg.FetchTimeout, cfg.MaxPayloadBytes)

	// Initialize handlers
	importHandler := handler.NewImportHandler(pipeline, resolver)
	healthHandler := handler.NewHealthHandler(pool)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(gin.Logger())

	// Health and metrics endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/live", healthHandler.Live)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		imports := v1.Group("/imports")
		{
			imports.POST("", importHandler.Submit)
			imports.GET("/:id", importHandler.Get)
			imports.POST("/:id/advance", importHandler.Advance)
			imports.POST("/:id/retry", importHandler.Retry)
		}

		v1.GET("/collections/:id", importHandler.Collection)
		v1.GET("/history", importHandler.History)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting server",
			slog.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server",
				slog.String("error", err.Error()))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	// Stop the pipeline workers first so no new phase starts
	logger.Info("Closing import pipeline")
	pipeline.Close()

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error",
			slog.String("error", err.Error()))
	}

	logger.Info("Server exited")
}
