package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fraud_scorer/internal/api"
	"fraud_scorer/internal/config"
	"fraud_scorer/internal/model"
	"fraud_scorer/internal/processor"
	"fraud_scorer/internal/repository/memory"
	"fraud_scorer/internal/service"
	"fraud_scorer/pkg/crypto"
	"fraud_scorer/pkg/metrics"
)

const (
	appName = "fraud_scorer"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting application",
		slog.String("name", appName),
		slog.String("environment", cfg.Environment))

	registry, err := model.Load(cfg.Artifacts.Dir, cfg.Artifacts.Models)
	if err != nil {
		logger.Error("Failed to load model artifacts",
			slog.String("dir", cfg.Artifacts.Dir),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Model artifacts loaded",
		slog.Any("models", registry.Names()),
		slog.String("feature_hash", processor.FeatureHashVersion))

	metricsCollector := metrics.NewMetricsCollector(logger)
	alertService := service.NewAlertService(
		[]service.AlertSink{service.NewLogSink(logger)},
		cfg.Alerts.Workers,
		cfg.Alerts.QueueSize,
		logger,
	)

	detector := processor.NewFraudDetector(registry, processor.NewRuleEngine(nil, logger), cfg.Scoring.BatchWorkers, logger)
	txProcessor := processor.NewTransactionProcessor(
		detector,
		memory.NewDetectionRepository(),
		memory.NewReportRepository(),
		metricsCollector,
		alertService,
		logger,
	)

	signer := crypto.NewSigner(cfg.Security.SigningSecret, logger)
	if !signer.Enabled() {
		logger.Warn("Request signing disabled")
	}

	apiHandler := api.NewAPIHandler(txProcessor, signer, api.HandlerConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBatchSize:   cfg.Scoring.MaxBatchSize,
	}, logger)

	metricsServer := metricsCollector.StartMetricsServer(cfg.Server.MetricsAddr)
	httpServer := startHTTPServer(cfg.Server, apiHandler, logger)
	waitForShutdown(logger, cfg.Server.ShutdownTimeout, httpServer, metricsServer, alertService, metricsCollector)
	logger.Info("Application shutdown complete")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func startHTTPServer(cfg config.ServerConfig, apiHandler *api.APIHandler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	apiHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "%s", "status": "ok"}`, appName)
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	logger *slog.Logger,
	timeout time.Duration,
	httpServer *http.Server,
	metricsServer *http.Server,
	alertService *service.AlertService,
	metricsCollector *metrics.MetricsCollector,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if err := alertService.Shutdown(ctx); err != nil {
		logger.Error("Alert service shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsCollector.Shutdown(ctx); err != nil {
		logger.Error("Metrics collector shutdown failed", slog.String("error", err.Error()))
	}
}
