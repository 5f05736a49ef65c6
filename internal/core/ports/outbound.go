package ports

import (
	"context"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

// ImageFetcher downloads the raw bytes of a submitted photo.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RegionDetector locates the pill within a raw photo.
type RegionDetector interface {
	Detect(ctx context.Context, imageBytes []byte) (domain.DetectedRegion, error)
}

// ImageCropper cuts the detected region, expanded by a margin fraction,
// out of the source image.
type ImageCropper interface {
	Crop(imageBytes []byte, region domain.DetectedRegion, margin float64) ([]byte, error)
}

// ImageClassifier labels a cropped pill image with ranked predictions.
type ImageClassifier interface {
	Classify(ctx context.Context, imageBytes []byte) ([]domain.Prediction, error)
}

// CatalogStore performs the two read-only lookups of the cascade.
type CatalogStore interface {
	LookupIdentifiers(ctx context.Context, tag string) ([]domain.IdentifierEntry, error)
	LookupCatalog(ctx context.Context, name string) ([]domain.CatalogEntry, error)
}

// ResultStore reads and writes the results subtree of the event store.
type ResultStore interface {
	ResultsExist(ctx context.Context, requestID string) (bool, error)
	PublishResults(ctx context.Context, requestID string, records []domain.CandidateRecord) error
}

// RequestQueue carries identification requests from the event-store
// listener to the workers.
type RequestQueue interface {
	PublishIdentifyRequest(ctx context.Context, request domain.IdentifyRequest) error
	SubscribeIdentifyRequests(ctx context.Context, handler func(context.Context, domain.IdentifyRequest) error) error
}

// CropArchive optionally persists cropped buffers for debugging. It is
// never required for correctness.
type CropArchive interface {
	SaveCrop(ctx context.Context, requestID string, imageIndex int, imageBytes []byte) error
}
