package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aare-health/safeharbor/internal/api"
	"github.com/aare-health/safeharbor/internal/extract"
	"github.com/aare-health/safeharbor/internal/labels"
	"github.com/aare-health/safeharbor/internal/policy"
	"github.com/aare-health/safeharbor/internal/rules"
	"github.com/aare-health/safeharbor/internal/storage"
	"github.com/aare-health/safeharbor/internal/store"
	"github.com/aare-health/safeharbor/internal/verify"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("SAFEHARBOR_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("SAFEHARBOR_HTTP_PORT", "8080")
	policyPath := os.Getenv("SAFEHARBOR_POLICY_PATH")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	cacheTTL := envOrDefaultInt("SAFEHARBOR_AUTH_CACHE_TTL_S", 30)

	// Policy document; fail fast before serving anything
	var pol *policy.Policy
	if policyPath != "" {
		var err error
		pol, err = policy.Load(policyPath)
		if err != nil {
			logger.Fatal("failed to load policy document",
				zap.String("path", policyPath),
				zap.Error(err),
			)
		}
		logger.Info("policy document loaded", zap.String("path", policyPath))
	} else {
		pol = policy.Default()
		logger.Info("using embedded policy document")
	}

	logger.Info("starting safeharbor server",
		zap.String("http_port", httpPort),
		zap.String("policy_version", pol.Version),
		zap.Int("categories", len(pol.Categories)),
	)

	// Derived read-only views, built once and shared by reference
	mapper := labels.NewMapper(pol)
	catalogue := rules.New(pol)
	verifier := verify.NewVerifier(catalogue, logger)
	extractor := extract.NewRegexExtractor()

	// Storage: ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Postgres pool (required for the authenticated API)
	var pgStore *store.Store
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore = store.NewStore(db)
		logger.Info("postgres connected")
	} else {
		logger.Fatal("POSTGRES_DSN is required")
	}

	deps := &api.Dependencies{
		Store:     pgStore,
		Verifier:  verifier,
		Mapper:    mapper,
		Extractor: extractor,
		Writer:    writer,
		Logger:    logger,
		CacheTTL:  time.Duration(cacheTTL) * time.Second,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	logger.Info("safeharbor server stopped")
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

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
