package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgeteer/internal/cli"
	"budgeteer/internal/log"
	"budgeteer/internal/metrics"
	"budgeteer/internal/services"
	"budgeteer/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting budgeteer-worker")

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required to run the worker")
		os.Exit(1)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)
	if res.Events == nil {
		logger.Error("AMQP broker unavailable", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		_ = res.Cleanup()
		os.Exit(1)
	}

	exporter, err := cli.NewArchiveExporter(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		_ = res.Cleanup()
		os.Exit(1)
	}

	// The worker generates tips itself, so its services publish nothing.
	svc := services.New(services.Deps{
		Repo:        res.Repo,
		Tips:        cli.NewTipsGenerator(cfg, logger),
		TipsTimeout: cfg.TipsTimeout,
		SessionTTL:  cfg.SessionTTL,
		Logger:      logger.WithComponent(log.ComponentTips).Slog(),
	})
	w := worker.NewEventWorker(svc.Tips, res.Repo, exporter, logger.WithComponent(log.ComponentWorker).Slog())

	var metricsSrv *http.Server
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", "error", err)
			}
		}()
		logger.Info("Worker metrics listening", "addr", metricsSrv.Addr)
	}

	parent, stop := context.WithCancel(context.Background())
	defer stop()

	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(shutdownCtx context.Context) {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	go func() {
		logger.Info("Consuming events", "queue", cfg.AMQPQueue)
		if err := res.Events.Consume(ctx, w.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		stop()
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
