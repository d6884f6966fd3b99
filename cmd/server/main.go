package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"moodrisk/internal/config"
	"moodrisk/internal/ensemble"
	"moodrisk/internal/gemini"
	"moodrisk/internal/handler"
	"moodrisk/internal/lexicon"
	"moodrisk/internal/llm"
	"moodrisk/internal/metrics"
	"moodrisk/internal/repository"
	"moodrisk/internal/service"
	"moodrisk/internal/trajectory"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	defaultPath := os.Getenv("MOODRISK_CONFIG")
	if defaultPath == "" {
		defaultPath = "configs/config.yml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting mood risk service...", zap.String("config", *configPath))

	lex := lexicon.LoadOrFallback(cfg.Lexicon.Path, logger)

	// Initialize repository
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}
	db, err := repository.NewSQLiteDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	entries := repository.NewEntryRepository(db, logger)
	alertRepo := repository.NewAlertRepository(db, logger)

	aiClient := newAIClient(cfg, logger)
	if aiClient != nil {
		defer aiClient.Close()
	}

	var collector *metrics.Collector
	if !cfg.Metrics.Disabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace)
	}

	// Initialize services
	journal := service.NewJournal(
		ensemble.NewCombiner(lexicon.NewAnalyzer(lex), logger),
		aiClient,
		entries,
		trajectory.NewAlertEngine(alertRepo, logger),
		collector,
		cfg.Analysis.AITimeout,
		logger,
	)
	analytics := service.NewAnalytics(entries, logger)
	alerts := service.NewAlerts(alertRepo, logger)

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(journal, analytics, alerts, lex, aiClient, collector, logger)

	// Setup Gin router
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	modelName := "none (lexicon only)"
	if aiClient != nil {
		if m, ok := aiClient.GetModelInfo()["model"].(string); ok {
			modelName = m
		}
	}

	logger.Info("Mood risk service is running",
		zap.String("address", serverAddr),
		zap.String("model", modelName),
		zap.Int("lexicon_words", lex.Size()))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Logging.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	zcfg.Level = level

	return zcfg.Build()
}

// newAIClient returns nil when no provider is usable; analysis then runs on the lexicon alone
func newAIClient(cfg *config.Config, logger *zap.Logger) llm.Provider {
	// Try to use multi-provider if providers are configured
	if len(cfg.Providers) > 0 {
		multiClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
			Providers:   cfg.Providers,
			MaxFailures: cfg.MaxFailuresBeforeSwitch,
			RoundRobin:  cfg.RoundRobin,
		}, logger)
		if err == nil {
			logger.Info("Multi-provider client initialized",
				zap.Int("provider_count", len(cfg.Providers)),
				zap.Bool("round_robin", cfg.RoundRobin))
			return multiClient
		}
		logger.Warn("Failed to initialize multi-provider client, falling back to single provider",
			zap.Error(err))
	}

	// Fallback to single Gemini client
	if !cfg.GeminiConfigured() {
		logger.Warn("No AI provider configured, running lexicon-only analysis")
		return nil
	}

	geminiClient, err := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		ModelName:  cfg.Gemini.ModelName,
		MaxRetries: cfg.Gemini.MaxRetries,
		RetryDelay: 2 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Gemini client, running lexicon-only analysis", zap.Error(err))
		return nil
	}

	// Wrap with rate limiting
	logger.Info("Single provider client initialized with rate limiting")
	return llm.NewRateLimitedProvider(geminiClient, cfg.Gemini.RequestsPerMinute, logger)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
