// Package cli provides common initialization for the budgeteer binaries:
// the API server, the event worker and the admin tool.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgeteer/internal/backend"
	"budgeteer/internal/config"
	"budgeteer/internal/log"
	"budgeteer/internal/sheets"
	"budgeteer/internal/sheets/google"
	"budgeteer/internal/tips"
)

// SetupLogger builds the root logger from LOG_LEVEL and LOG_FORMAT and sets
// it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info log level", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// The logger depends on a valid config; report with the bootstrap one.
		log.New(log.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens storage and, when configured, the AMQP client.
// Exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// NewTipsGenerator returns the OpenAI generator with the rule-based fallback
// when an API key is configured, and the rule-based generator otherwise.
func NewTipsGenerator(cfg *config.Config, logger *log.Logger) tips.Generator {
	if !cfg.OpenAIEnabled() {
		logger.Info("OpenAI disabled, using rule-based tips")
		return tips.RuleGenerator{}
	}
	return tips.FallbackGenerator{
		Primary: tips.NewOpenAIGenerator(tips.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		}),
		Secondary: tips.RuleGenerator{},
		Logger:    logger.WithComponent(log.ComponentTips).Slog(),
	}
}

// NewArchiveExporter returns the Google Sheets exporter, or nil when no
// spreadsheet is configured.
func NewArchiveExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.ArchiveExporter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT/SIGTERM or when parent ends;
// cleanup then runs with a context bounded by timeout, and done is closed
// when it returns.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
