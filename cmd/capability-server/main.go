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

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/api"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/audit"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/builtins"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/capability"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/sandbox"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/schema"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	logger := mustBuildLogger(envOrDefault("CAPABILITY_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	port := envOrDefault("CAPABILITY_PORT", "8087")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	retryAttempts := envOrDefaultInt("CAPABILITY_RETRY_ATTEMPTS", 3)

	if postgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}

	logger.Info("starting capability server",
		zap.String("port", port),
		zap.Int("retry_attempts", retryAttempts),
	)

	// Database
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

	// Table allow-list from the live schema
	catalog, err := schema.NewPostgresProvider(context.Background(), schema.PostgresProviderConfig{
		DB:     db,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to load schema catalog", zap.Error(err))
	}

	// Role and table permissions — loaded at startup, immutable after
	evaluator := access.NewEvaluator(access.EvaluatorConfig{
		Tables: access.DefaultTablePermissions(),
	})

	// Capability registry with the built-in dispatch table
	registry := capability.NewRegistry(capability.RegistryConfig{
		Access: evaluator,
		Logger: logger,
	})
	if err := builtins.RegisterAll(registry); err != nil {
		logger.Fatal("failed to register built-in capabilities", zap.Error(err))
	}

	// Audit — ClickHouse or log fallback
	var writer audit.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := audit.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = audit.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = audit.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	retry := sandbox.DefaultRetryPolicy()
	retry.MaxAttempts = retryAttempts

	invoker := service.NewInvoker(service.InvokerConfig{
		Registry: registry,
		Access:   evaluator,
		DB:       db,
		Catalog:  catalog,
		Writer:   writer,
		Retry:    retry,
		Logger:   logger,
	})

	router := api.NewRouter(&api.Dependencies{
		Invoker: invoker,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("capability server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server failed", zap.Error(err))
	}
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
