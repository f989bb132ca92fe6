package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cfg "github.com/deskmind/orchestrator/internal/config"
	"github.com/deskmind/orchestrator/internal/db"
	"github.com/deskmind/orchestrator/internal/dispatch"
	"github.com/deskmind/orchestrator/internal/health"
	"github.com/deskmind/orchestrator/internal/httpapi"
	"github.com/deskmind/orchestrator/internal/intent"
	"github.com/deskmind/orchestrator/internal/llm"
	_ "github.com/deskmind/orchestrator/internal/metrics" // Register collectors
	"github.com/deskmind/orchestrator/internal/session"
	"github.com/deskmind/orchestrator/internal/stages"
	"github.com/deskmind/orchestrator/internal/tools"
	"github.com/deskmind/orchestrator/internal/tracing"
	"github.com/deskmind/orchestrator/internal/workflow"
)

func main() {
	ctx := context.Background()

	conf, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(conf.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      conf.Tracing.Enabled,
		ServiceName:  conf.Tracing.ServiceName,
		OTLPEndpoint: conf.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed, continuing without traces", zap.Error(err))
	}

	// Config hot reload. Lexicon and tool keys pick up changes on the next
	// component rebuild; the watcher mainly serves log level and feature
	// flags today.
	watcher, err := cfg.NewWatcher(configPath(), conf, logger)
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	// Session store (Redis).
	store, err := session.NewStore(conf.Redis.Addr, conf.Redis.SessionTTL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize session store", zap.Error(err))
	}
	defer store.Close()

	// Conversation archive (SQL, async writes).
	var archive *db.Archive
	if conf.Archive.Enabled {
		archive, err = db.New(db.Config{
			Driver:  conf.Archive.Driver,
			DSN:     conf.Archive.DSN,
			Workers: conf.Archive.Workers,
		}, logger)
		if err != nil {
			logger.Warn("Archive unavailable, conversations will not be archived", zap.Error(err))
			archive = nil
		} else {
			defer archive.Close()
		}
	}

	// Intent lexicon.
	lexicon := intent.DefaultLexicon()
	if conf.Intent.LexiconFile != "" {
		lexicon, err = intent.LoadLexicon(conf.Intent.LexiconFile)
		if err != nil {
			logger.Warn("Failed to load intent lexicon, using built-in terms", zap.Error(err))
			lexicon = intent.DefaultLexicon()
		}
	}
	classifier := intent.NewClassifier(lexicon)

	// Tool providers.
	registry := tools.NewRegistry([]tools.Provider{
		tools.NewWeatherProvider(conf.Tools.WeatherAPIKey, logger),
		tools.NewAddressProvider(conf.Tools.AmapAPIKey, logger),
		tools.NewPOIProvider(conf.Tools.AmapAPIKey, logger),
		tools.NewTrainProvider(conf.Tools.TrainAPIKey, logger),
		tools.NewTimeProvider(),
		tools.NewDateProvider(),
		tools.NewKnowledgeProvider(),
		tools.NewFileProvider(conf.Tools.FileRoot),
		tools.NewOrderProvider(),
	}, conf.Tools.InvokeTimeout, conf.Tools.RatePerSecond, logger)

	// Chat model.
	model, err := llm.NewClient(llm.Config{
		APIKey:  conf.LLM.APIKey,
		BaseURL: conf.LLM.BaseURL,
		Model:   conf.LLM.Model,
		Timeout: conf.LLM.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize chat model", zap.Error(err))
	}

	// Workflow engine.
	dispatcher := dispatch.New(registry, classifier, dispatch.Config{
		DefaultLogPath: conf.Tools.DefaultLogPath,
	}, logger)
	engine := workflow.NewEngine(
		workflow.NewRouter(classifier, logger),
		dispatcher,
		store,
		[]workflow.StageProcessor{
			stages.NewIntakeProcessor(model, logger),
			stages.NewAnalysisProcessor(model, logger),
			stages.NewSolutionProcessor(model, logger),
		},
		logger,
	)

	// Health probes.
	hm := health.NewManager(5*time.Second, logger)
	hm.Register(health.NewRedisChecker(store.RedisWrapper()))
	if archive != nil {
		hm.Register(health.NewArchiveChecker(archive))
	}

	// API surface.
	apiMux := http.NewServeMux()
	chat := httpapi.NewChatHandler(engine, archiverOrNil(archive), logger)
	chat.RegisterRoutes(apiMux)
	chat.RegisterWebSocket(apiMux)

	var apiHandler http.Handler = apiMux
	if conf.Auth.Enabled {
		apiHandler = httpapi.NewAuthMiddleware(conf.Auth.JWTSecret, logger).Wrap(apiMux)
	}

	adminMux := http.NewServeMux()
	hm.RegisterRoutes(adminMux)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Server.Port),
		Handler:           apiHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	adminSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Server.HealthPort),
		Handler:           adminMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Server.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Admin server listening", zap.String("addr", adminSrv.Addr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin server failed", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("API server listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown error", zap.Error(err))
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Admin server shutdown error", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown error", zap.Error(err))
	}
}

func buildLogger(lc cfg.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config/features.yaml"
}

// archiverOrNil avoids handing the handler a typed nil interface.
func archiverOrNil(a *db.Archive) httpapi.Archiver {
	if a == nil {
		return nil
	}
	return a
}
