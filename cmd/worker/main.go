package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pilltong/pill-identifier/internal/bootstrap"
	"github.com/pilltong/pill-identifier/internal/config"
	"github.com/pilltong/pill-identifier/internal/core/domain"
	"github.com/pilltong/pill-identifier/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("pill-identifier-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.Metrics.Handler())
		server := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux}
		logger.Info("metrics server listening", "port", cfg.WorkerMetricsPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIdentifyRequests(ctx, func(handlerCtx context.Context, request domain.IdentifyRequest) error {
		runLogger := logger.With("run_id", uuid.NewString(), "request_id", request.ID)

		processCtx, cancel := context.WithTimeout(handlerCtx, requestTimeout)
		defer cancel()

		app.Metrics.StartRequest()
		start := time.Now()
		records, err := app.IdentifyUC.Identify(processCtx, request)
		app.Metrics.FinishRequest("worker", time.Since(start), err)
		if err != nil {
			runLogger.Error("identification failed", "error", err)
			return err
		}

		app.Metrics.ObserveCandidates(len(records))
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
