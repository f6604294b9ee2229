package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/vgprice/engine/config"
	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/fx"
	"github.com/vgprice/engine/internal/handlers"
	"github.com/vgprice/engine/internal/middleware"
	"github.com/vgprice/engine/internal/partjobs"
	"github.com/vgprice/engine/internal/pipeline"
	"github.com/vgprice/engine/internal/priceseries"
	"github.com/vgprice/engine/internal/schema"
	"github.com/vgprice/engine/internal/sourceadapters"
	"github.com/vgprice/engine/internal/sourceadapters/reference/localcache"
	"github.com/vgprice/engine/internal/storage"
	"github.com/vgprice/engine/internal/sweepers"
	"github.com/vgprice/engine/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := initLogger(cfg.Logging)
	logger.Info().Msg("Starting video-game price engine...")

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Connect(
		ctx, dbURL,
		cfg.Database.MaxConnections, cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime, cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()
	logger.Info().Msg("Database connected")

	if err := schema.Apply(ctx, database.Pool()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply schema")
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdownTelemetry(context.Background())

	registry := sourceadapters.NewRegistry()
	localStore, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize local storage")
	}
	registry.Register("steam-local-cache", localcache.New(localStore, ""))

	partitions := priceseries.NewPartitions()

	// Runs left "running" by a previous crash are flagged before any new
	// sync starts, so the run list never silently reports a dead sync as live.
	if n, err := pipeline.MarkInterrupted(ctx, database.Pool(), time.Hour); err != nil {
		logger.Error().Err(err).Msg("Failed to flag interrupted runs")
	} else if n > 0 {
		logger.Warn().Int("runs", n).Msg("Flagged interrupted ingestion runs from a previous process")
	}

	stopSweepers := sweepers.StartAll(ctx,
		sweepers.NewStaleLockSweeper(database.Pool(), logger, 5*time.Minute, cfg.Ingestion.StaleLockThreshold()),
		sweepers.NewPartitionPrecreateSweeper(database.Pool(), partitions, logger, 6*time.Hour),
		sweepers.NewPartitionIndexJobSweeper(database.Pool(), logger, time.Minute, func(ctx context.Context, j partjobs.Job) error {
			return priceseries.CreatePartitionIndex(ctx, database.Pool(), j.PartitionName, j.IndexType)
		}),
		sweepers.NewMaterializedViewSweeper(database.Pool(), logger, time.Hour),
		sweepers.NewCanonicalMediaCleanupSweeper(database.Pool(), logger, 24*time.Hour, 30*24*time.Hour),
		sweepers.NewDenormalizationSweeper(database.Pool(), logger, 15*time.Minute),
	)
	defer stopSweepers()

	if cfg.FX.ProviderURL != "" {
		fxTimer := fx.NewRefreshTimer(database.Pool(),
			fx.NewHTTPFetcher(cfg.FX.ProviderURL, cfg.Ingestion.HTTPTimeout()), cfg.FX.Interval)
		go fxTimer.Start(ctx)
		defer fxTimer.Stop()
		logger.Info().Str("provider", cfg.FX.ProviderURL).Dur("interval", cfg.FX.Interval).Msg("FX refresh timer started")
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupAccessLog(router, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	ingestDeps := handlers.IngestDeps{
		Pool:               database.Pool(),
		Registry:           registry,
		Partitions:         partitions,
		WorkerID:           workerID(),
		CandidateThreshold: cfg.Ingestion.CandidateThreshold,
		MaxConcurrency:     cfg.ResolvedWorkers(runtime.NumCPU()),
	}

	internalAPI := router.Group("/internal")
	internalAPI.Use(middleware.InternalAuthMiddleware(cfg.Security.InternalAPIKey))
	internalAPI.Use(middleware.ServiceRateLimitMiddleware(50, 100))
	{
		internalAPI.GET("/health", handlers.HealthCheck)
		internalAPI.GET("/sources", handlers.ListSources(database.Pool()))
		internalAPI.POST("/admin/sources", handlers.RegisterSource(database.Pool(), cfg.Security.CredentialsEncKeyHex))

		admin := internalAPI.Group("/admin")
		{
			admin.POST("/ingest/:slug", handlers.TriggerIngestSource(ingestDeps))
			admin.POST("/ingest-all", handlers.TriggerIngestAll(ingestDeps))
			admin.POST("/reconcile", handlers.TriggerReconcile(database.Pool()))
			admin.POST("/dedupe/titles", handlers.TriggerDedupeTitles(database.Pool(), cfg.Ingestion.CandidateThreshold))
			admin.POST("/dedupe/video-games", handlers.TriggerDedupeVideoGames(database.Pool()))
			admin.POST("/dedupe/platforms", handlers.TriggerDedupePlatforms(database.Pool()))
			admin.POST("/reprocess-items", handlers.TriggerReprocessItems(database.Pool(), workerID(), cfg.Ingestion.BatchSize))
		}

		alerts := internalAPI.Group("/alerts")
		{
			alerts.POST("", handlers.CreateAlert(database.Pool()))
			alerts.GET("", handlers.ListProductAlerts(database.Pool()))
			alerts.POST("/:alertId/triggered", handlers.MarkAlertTriggered(database.Pool()))
		}

		ingestion := internalAPI.Group("/ingestion")
		{
			ingestion.GET("/runs", handlers.ListRuns(database.Pool()))
			ingestion.GET("/runs/:runId", handlers.GetRun(database.Pool()))
		}

		prices := internalAPI.Group("/prices")
		{
			prices.GET("/:offerJurisdictionId/current", handlers.GetCurrentPrice)
			prices.GET("/:offerJurisdictionId/history", handlers.ListPriceHistory)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	logger.Info().Msg("Server exited")
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		return "server"
	}
	return "server-" + host
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer = os.Stdout
	if cfg.Format != "json" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &logger
}

func setupAccessLog(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
