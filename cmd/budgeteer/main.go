package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"budgeteer/internal/cache"
	"budgeteer/internal/cli"
	apphttp "budgeteer/internal/http"
	"budgeteer/internal/log"
	"budgeteer/internal/metrics"
	"budgeteer/internal/services"
)

const summaryCacheSize = 1000

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	logger.Info("Starting budgeteer",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", cfg.EventsEnabled(),
		"openai", cfg.OpenAIEnabled())

	res := cli.InitBackend(context.Background(), logger, cfg)

	var publisher services.EventPublisher
	if res.Events != nil {
		publisher = res.Events
	}

	svc := services.New(services.Deps{
		Repo:             res.Repo,
		Publisher:        publisher,
		Tips:             cli.NewTipsGenerator(cfg, logger),
		TipsTimeout:      cfg.TipsTimeout,
		SessionTTL:       cfg.SessionTTL,
		SummaryCacheSize: summaryCacheSize,
		SummaryCacheTTL:  cfg.SummaryCacheTTL,
		Logger:           logger.WithComponent(log.ComponentApp).Slog(),
	})

	summaryCache := svc.Summary.Cache()
	prometheus.MustRegister(metrics.NewCacheCollector("summary", summaryCache.Stats, summaryCache.Size))
	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	caches.Register(summaryCache)
	caches.StartCleanup(5 * time.Minute)

	sweeper := services.NewSessionSweeper(svc.Auth, services.SessionSweeperConfig{Interval: cfg.SessionSweepInterval})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Services:           svc,
		Storage:            res.Repo,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	serveErr := make(chan error, 1)
	parent, stop := context.WithCancel(context.Background())
	defer stop()

	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.Warn("Session sweeper stop error", "error", err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start session sweeper", "error", err)
	}

	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	cli.WaitForShutdown(ctx, done)

	select {
	case err := <-serveErr:
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	default:
		logger.Info("Server stopped gracefully")
	}
}
