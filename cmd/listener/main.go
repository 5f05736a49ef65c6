package main

import (
	"context"
	"errors"
	"log"
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
	logger := logging.NewJSONLogger("pill-identifier-listener", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewListener(cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	handler := func(handlerCtx context.Context, request domain.IdentifyRequest) {
		runLogger := logger.With("run_id", uuid.NewString(), "request_id", request.ID)
		if request.ID == "" || len(request.Images) == 0 {
			runLogger.Warn("skipping request without images")
			return
		}
		if err := app.Queue.PublishIdentifyRequest(handlerCtx, request); err != nil {
			runLogger.Error("enqueue request failed", "error", err)
			return
		}
		runLogger.Info("request enqueued", "images", len(request.Images))
	}

	// The stream is expected to break occasionally; reconnect with
	// backoff until shutdown.
	backoff := time.Second
	for {
		logger.Info("opening request stream", "url", cfg.RTDBURL)
		started := time.Now()
		err := app.EventStore.StreamRequests(ctx, handler)
		if time.Since(started) > time.Minute {
			backoff = time.Second
		}
		if ctx.Err() != nil {
			logger.Info("listener shutting down")
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("request stream interrupted", "error", err, "reconnect_in", backoff.String())
		}

		select {
		case <-ctx.Done():
			logger.Info("listener shutting down")
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
