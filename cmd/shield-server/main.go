package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/promptshield-ai/promptshield/internal/api"
	"github.com/promptshield-ai/promptshield/internal/cache"
	"github.com/promptshield-ai/promptshield/internal/config"
	"github.com/promptshield-ai/promptshield/internal/engine"
	"github.com/promptshield-ai/promptshield/internal/oracle"
	"github.com/promptshield-ai/promptshield/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting shield server",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Duration("cache_ttl", cfg.CacheTTL.Std()),
		zap.String("db_path", cfg.DBPath),
	)

	// Oracle — exactly one provider active per process
	llm, err := oracle.New(oracle.Config{
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		OpenAIKey:     cfg.OpenAIKey,
		AnthropicKey:  cfg.AnthropicKey,
		OpenRouterKey: cfg.OpenRouterKey,
		GeminiKey:     cfg.GeminiKey,
		Timeout:       cfg.OracleTimeout.Std(),
		MaxConcurrent: cfg.OracleConcurrency,
	}, logger)
	if err != nil {
		logger.Fatal("failed to construct oracle", zap.Error(err))
	}
	defer func() { _ = llm.Close() }()

	// Verdict cache — Redis when configured, process-local otherwise
	verdicts, err := cache.New(cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal("failed to open verdict cache", zap.Error(err))
	}
	defer func() { _ = verdicts.Close() }()

	// Attack store — sqlite file, postgres DSN, or clickhouse DSN
	attacks, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open attack store", zap.Error(err))
	}
	defer func() { _ = attacks.Close() }()

	eng := engine.NewShieldEngine(llm, verdicts, attacks, engine.DefaultDecisionConfig(), cfg.CacheTTL.Std(), logger)

	deps := &api.Dependencies{
		Engine:     eng,
		Attacks:    attacks,
		Logger:     logger,
		APIKey:     cfg.APIKey,
		APIKeyHash: cfg.APIKeyHash,
	}
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	m := eng.MetricsSnapshot()
	logger.Info("shield server stopped",
		zap.Int64("checks", m.Checks),
		zap.Int64("cache_hits", m.CacheHits),
		zap.Int64("oracle_failures", m.OracleFailures),
		zap.Int64("parse_failures", m.ParseFailures),
		zap.Int64("attacks_detected", m.AttacksDetected),
	)
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
