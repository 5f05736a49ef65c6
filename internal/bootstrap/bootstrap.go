package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pilltong/pill-identifier/internal/config"
	"github.com/pilltong/pill-identifier/internal/core/usecase"
	"github.com/pilltong/pill-identifier/internal/infrastructure/eventstore/rtdb"
	"github.com/pilltong/pill-identifier/internal/infrastructure/fetch"
	"github.com/pilltong/pill-identifier/internal/infrastructure/imaging"
	"github.com/pilltong/pill-identifier/internal/infrastructure/queue/nats"
	"github.com/pilltong/pill-identifier/internal/infrastructure/repository/postgres"
	"github.com/pilltong/pill-identifier/internal/infrastructure/resilience"
	"github.com/pilltong/pill-identifier/internal/infrastructure/storage/localfs"
	"github.com/pilltong/pill-identifier/internal/infrastructure/vision"
	"github.com/pilltong/pill-identifier/internal/observability/metrics"
)

// Listener holds what cmd/listener needs: the event-store stream on one
// side and the work queue on the other.
type Listener struct {
	Config     config.Config
	EventStore *rtdb.Client
	Queue      *nats.Queue

	closeFn func()
}

func NewListener(cfg config.Config) (*Listener, error) {
	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	eventStore := rtdb.New(cfg.RTDBURL, cfg.RTDBAuthToken, rtdb.Options{
		ResilienceExecutor: executor,
	})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init request queue: %w", err)
	}

	return &Listener{
		Config:     cfg,
		EventStore: eventStore,
		Queue:      queue,
		closeFn: func() {
			queue.Close()
		},
	}, nil
}

func (l *Listener) Close() {
	if l.closeFn != nil {
		l.closeFn()
	}
}

// Worker holds the full pipeline wiring for cmd/worker.
type Worker struct {
	Config     config.Config
	Queue      *nats.Queue
	IdentifyUC *usecase.IdentifyUseCase
	Metrics    *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	catalog := postgres.NewCatalogRepository(db)
	if err := catalog.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init request queue: %w", err)
	}

	eventStore := rtdb.New(cfg.RTDBURL, cfg.RTDBAuthToken, rtdb.Options{
		ResilienceExecutor: executor,
	})

	visionClient := vision.New(cfg.VisionDetectURL, cfg.VisionClassifyURL, cfg.VisionKey, vision.ClientOptions{
		RequestsPerSecond:  cfg.VisionRPS,
		ResilienceExecutor: executor,
	})
	detector := vision.NewDetector(visionClient)
	classifier := vision.NewClassifier(visionClient, cfg.ClassifierTopN)

	fetcher := fetch.New(time.Duration(cfg.FetchTimeoutSeconds)*time.Second, 0)
	cropper := imaging.NewCropper()

	workerMetrics := metrics.NewWorkerMetrics("worker")

	identifyUC := usecase.NewIdentifyUseCase(
		eventStore,
		fetcher,
		detector,
		cropper,
		classifier,
		catalog,
		logger,
		usecase.Options{
			CropMargin:      cfg.CropMargin,
			MaxImageWorkers: cfg.MaxImageWorkers,
			MaxTagWorkers:   cfg.MaxTagWorkers,
			TagRankSize:     cfg.TagRankSize,
		},
	).WithStageObserver(workerMetrics)

	if cfg.CropArchivePath != "" {
		archive, err := localfs.New(cfg.CropArchivePath)
		if err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("init crop archive: %w", err)
		}
		identifyUC.WithCropArchive(archive)
	}

	return &Worker{
		Config:     cfg,
		Queue:      queue,
		IdentifyUC: identifyUC,
		Metrics:    workerMetrics,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
