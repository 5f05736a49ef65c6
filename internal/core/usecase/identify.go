package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pilltong/pill-identifier/internal/core/domain"
	"github.com/pilltong/pill-identifier/internal/core/ports"
)

// Options bounds the pipeline's fan-out and cutoffs. Zero values fall
// back to the defaults below.
type Options struct {
	CropMargin      float64
	MaxImageWorkers int
	MaxTagWorkers   int
	TagRankSize     int
}

const (
	defaultCropMargin      = 0.1
	defaultMaxImageWorkers = 4
	defaultMaxTagWorkers   = 5
	defaultTagRankSize     = 5
)

func (o Options) normalize() Options {
	out := o
	if out.CropMargin <= 0 {
		out.CropMargin = defaultCropMargin
	}
	if out.MaxImageWorkers <= 0 {
		out.MaxImageWorkers = defaultMaxImageWorkers
	}
	if out.MaxTagWorkers <= 0 {
		out.MaxTagWorkers = defaultMaxTagWorkers
	}
	if out.TagRankSize <= 0 {
		out.TagRankSize = defaultTagRankSize
	}
	return out
}

// StageObserver receives absorbed per-unit failures, by stage name.
type StageObserver interface {
	StageFailure(stage string)
}

type IdentifyUseCase struct {
	results    ports.ResultStore
	fetcher    ports.ImageFetcher
	detector   ports.RegionDetector
	cropper    ports.ImageCropper
	classifier ports.ImageClassifier
	catalog    ports.CatalogStore
	archive    ports.CropArchive
	observer   StageObserver
	logger     *slog.Logger
	opts       Options
}

func NewIdentifyUseCase(
	results ports.ResultStore,
	fetcher ports.ImageFetcher,
	detector ports.RegionDetector,
	cropper ports.ImageCropper,
	classifier ports.ImageClassifier,
	catalog ports.CatalogStore,
	logger *slog.Logger,
	opts Options,
) *IdentifyUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentifyUseCase{
		results:    results,
		fetcher:    fetcher,
		detector:   detector,
		cropper:    cropper,
		classifier: classifier,
		catalog:    catalog,
		logger:     logger,
		opts:       opts.normalize(),
	}
}

// WithCropArchive enables best-effort persistence of cropped buffers.
func (uc *IdentifyUseCase) WithCropArchive(archive ports.CropArchive) *IdentifyUseCase {
	uc.archive = archive
	return uc
}

// WithStageObserver attaches a metrics sink for absorbed failures.
func (uc *IdentifyUseCase) WithStageObserver(observer StageObserver) *IdentifyUseCase {
	uc.observer = observer
	return uc
}

// Identify runs the full pipeline for one request: idempotency guard,
// per-image analysis fan-out, tag aggregation, cascade resolution, and
// a single atomic publish of the ranked candidate list.
//
// Failures of individual images or tag lookups are absorbed; only a
// failed publish surfaces, and retrying after it is safe because the
// publish replaces the whole results subtree.
func (uc *IdentifyUseCase) Identify(ctx context.Context, request domain.IdentifyRequest) ([]domain.CandidateRecord, error) {
	log := uc.logger.With("request_id", request.ID)

	exists, err := uc.results.ResultsExist(ctx, request.ID)
	if err != nil {
		// The guard is advisory: reprocessing is wasteful, not unsafe.
		log.Warn("idempotency check failed, continuing", "error", err)
	}
	if exists {
		log.Info("results already present, skipping request")
		return nil, nil
	}

	perImage := uc.analyzeImages(ctx, log, request)
	rank := RankTags(perImage, uc.opts.TagRankSize)
	records := uc.resolveTags(ctx, log, rank)

	if err := uc.results.PublishResults(ctx, request.ID, records); err != nil {
		return nil, domain.WrapError(domain.ErrPublish, "publish results", err)
	}

	log.Info("published results", "images", len(request.Images), "tags", len(rank), "candidates", len(records))
	return records, nil
}

// analyzeImages fans out detection, cropping and classification per
// image with a bounded worker count. Each image writes only its own
// slot, so the join needs no locking; a failed image leaves a nil slot.
func (uc *IdentifyUseCase) analyzeImages(ctx context.Context, log *slog.Logger, request domain.IdentifyRequest) [][]domain.Prediction {
	perImage := make([][]domain.Prediction, len(request.Images))

	sem := make(chan struct{}, uc.opts.MaxImageWorkers)
	var wg sync.WaitGroup

	for i, url := range request.Images {
		wg.Add(1)
		go func(index int, imageURL string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			predictions, err := uc.analyzeImage(ctx, request.ID, index, imageURL)
			if err != nil {
				uc.observeFailure(err)
				log.Warn("image dropped from request", "image_index", index, "error", err)
				return
			}
			perImage[index] = predictions
		}(i, url)
	}

	wg.Wait()
	return perImage
}

func (uc *IdentifyUseCase) analyzeImage(ctx context.Context, requestID string, index int, url string) ([]domain.Prediction, error) {
	raw, err := uc.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}

	region, err := uc.detector.Detect(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("detect region: %w", err)
	}

	cropped, err := uc.cropper.Crop(raw, region, uc.opts.CropMargin)
	if err != nil {
		return nil, fmt.Errorf("crop image: %w", err)
	}

	if uc.archive != nil {
		if err := uc.archive.SaveCrop(ctx, requestID, index, cropped); err != nil {
			uc.logger.Warn("crop archive write failed", "request_id", requestID, "image_index", index, "error", err)
		}
	}

	predictions, err := uc.classifier.Classify(ctx, cropped)
	if err != nil {
		return nil, fmt.Errorf("classify image: %w", err)
	}
	return predictions, nil
}

func (uc *IdentifyUseCase) observeFailure(err error) {
	if uc.observer == nil {
		return
	}
	switch {
	case domain.IsKind(err, domain.ErrDetection):
		uc.observer.StageFailure("detect")
	case domain.IsKind(err, domain.ErrCrop):
		uc.observer.StageFailure("crop")
	case domain.IsKind(err, domain.ErrClassification):
		uc.observer.StageFailure("classify")
	case domain.IsKind(err, domain.ErrLookup):
		uc.observer.StageFailure("resolve")
	default:
		uc.observer.StageFailure("fetch")
	}
}
