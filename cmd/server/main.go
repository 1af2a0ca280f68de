package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recon-engine/internal/alias"
	"recon-engine/internal/config"
	"recon-engine/internal/controller"
	"recon-engine/internal/database"
	"recon-engine/internal/database/metadata"
	"recon-engine/internal/intent"
	"recon-engine/internal/llm"
	"recon-engine/internal/logging"
	"recon-engine/internal/middleware"
	"recon-engine/internal/model"
	"recon-engine/internal/repository"
	"recon-engine/internal/security"
	"recon-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := logging.Configure(logging.Options{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Format == "console",
	})

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize metadata store
	db, err := config.InitDatabase(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metadata store")
	}

	// Auto migrate database schema
	if err := db.AutoMigrate(
		&model.KnowledgeGraph{},
		&model.GraphTable{},
		&model.GraphRelationship{},
		&model.Endpoint{},
	); err != nil {
		logger.Warn().Err(err).Msg("database migration failed, continuing with existing schema")
	}

	// Initialize repositories
	graphRepo := repository.NewGraphRepository(db)
	endpointRepo := repository.NewEndpointRepository(db)

	// Initialize credential vault
	var vault *security.CredentialVault
	if cfg.Security.VaultKey != "" {
		vault, err = security.NewCredentialVault([]byte(cfg.Security.VaultKey))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create credential vault")
		}
	} else {
		logger.Warn().Msg("security.vault_key not set, endpoint passwords stored unencrypted")
	}

	// Initialize execution infrastructure
	registry := database.NewRegistry()
	pool := database.NewPool(registry)
	checker := database.NewHealthChecker(pool, registry)

	// Initialize metrics
	middleware.InitMetrics()

	// Initialize caches
	aliasCache := alias.NewCache()
	schemaCache := metadata.NewSchemaCache(cfg.Recon.SchemaCacheTTL)
	schemaCache.Start()

	// Initialize LLM provider; nil provider keeps the keyword fallback
	var provider llm.Provider
	if cfg.LLM.Provider != "" {
		provider, err = llm.New(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
		})
		if err != nil {
			logger.Warn().Err(err).Str("provider", cfg.LLM.Provider).
				Msg("LLM provider unavailable, definitions will parse via keyword fallback")
		}
	}
	parser := intent.NewParser(provider, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)

	// Initialize services
	statsCollector := service.NewStatsCollector()
	sqlValidator := security.NewSQLValidator(cfg.Recon.MaxQueryLength)
	executor := service.NewExecutor(pool, sqlValidator, statsCollector,
		time.Duration(cfg.Recon.QueryTimeoutSeconds)*time.Second)

	endpointService := service.NewEndpointService(endpointRepo, pool, checker, vault)
	graphService := service.NewGraphService(graphRepo, aliasCache, metadata.NewExtractor(pool), schemaCache, endpointService)
	reconService := service.NewReconService(graphService, endpointService, parser, executor, service.ReconConfig{
		DefaultSourceEndpoint: cfg.Endpoints.DefaultSource,
		DefaultTargetEndpoint: cfg.Endpoints.DefaultTarget,
		Concurrency:           cfg.Recon.Concurrency,
	})

	// Initialize security
	jwtManager := security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration)
	authMiddleware := security.NewAuthMiddleware(jwtManager)

	// Initialize rate limiting
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPM:             cfg.Security.RateLimitPerMinute,
		Burst:           cfg.Security.RateLimitBurst,
		CleanupInterval: 5 * time.Minute,
	})

	// Initialize controllers
	reconController := controller.NewReconController(reconService, statsCollector)
	graphController := controller.NewGraphController(graphService)
	endpointController := controller.NewEndpointController(endpointService, pool, checker)
	healthController := controller.NewHealthController(db, pool)

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.Cors())
	router.Use(middleware.PrometheusMiddleware())

	// Add rate limiting if enabled
	if cfg.Security.EnableRateLimit {
		router.Use(rateLimiter.RateLimit())
	}

	// Health and metrics endpoints (always available)
	router.GET("/health", healthController.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	api := router.Group("/api/v1")

	// Public endpoints (no authentication required)
	public := api.Group("")
	{
		public.GET("/health", healthController.HealthCheck)
		public.GET("/reconciliation/dialects", reconController.GetSupportedDialects)
		public.GET("/endpoints/drivers", endpointController.GetDrivers)
	}

	// Auth endpoints (authentication required when enabled)
	auth := api.Group("")
	if cfg.Security.EnableAuth {
		auth.Use(authMiddleware.RequireAuth())
	}
	{
		// Reconciliation endpoints
		recon := auth.Group("/reconciliation")
		{
			recon.POST("/run", reconController.Run)
			recon.GET("/stats", reconController.GetStats)
			recon.GET("/stats/:id", reconController.GetEndpointStats)
			recon.DELETE("/stats/:id", reconController.ResetEndpointStats)
		}

		// Knowledge graph endpoints
		graphs := auth.Group("/graphs")
		{
			graphs.POST("", graphController.CreateGraph)
			graphs.GET("", graphController.ListGraphs)
			graphs.GET("/:name", graphController.GetGraph)
			graphs.DELETE("/:name", graphController.DeleteGraph)
			graphs.POST("/:name/tables", graphController.AddTable)
			graphs.DELETE("/:name/tables/:table", graphController.DeleteTable)
			graphs.POST("/:name/relationships", graphController.AddRelationship)
			graphs.DELETE("/:name/relationships/:id", graphController.DeleteRelationship)
			graphs.POST("/:name/resolve", graphController.ResolveAlias)
			graphs.GET("/:name/path", graphController.FindPath)
			graphs.POST("/:name/import", graphController.ImportSchema)
			graphs.POST("/:name/suggest-relationships", graphController.SuggestRelationships)
		}

		// Execution endpoint management
		endpoints := auth.Group("/endpoints")
		{
			endpoints.POST("", endpointController.CreateEndpoint)
			endpoints.GET("", endpointController.ListEndpoints)
			endpoints.POST("/test", endpointController.TestConfig)
			endpoints.POST("/validate", endpointController.ValidateConfig)
			endpoints.GET("/connections/stats", endpointController.GetConnectionStats)
			endpoints.GET("/health", endpointController.GetHealthSummary)
			endpoints.GET("/:id", endpointController.GetEndpoint)
			endpoints.PUT("/:id", endpointController.UpdateEndpoint)
			endpoints.DELETE("/:id", endpointController.DeleteEndpoint)
			endpoints.POST("/:id/test", endpointController.TestEndpoint)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt, then drain
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	rateLimiter.Stop()
	schemaCache.Stop()
	if err := pool.CloseAll(); err != nil {
		logger.Error().Err(err).Msg("failed to close endpoint pools")
	}
	logger.Info().Msg("server stopped")
}
