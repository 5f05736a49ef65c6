package vision

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/pilltong/pill-identifier/internal/core/domain"
	"github.com/pilltong/pill-identifier/internal/infrastructure/resilience"
)

// Client talks to the external custom-vision service. Detection and
// classification are two endpoints of the same deployment sharing one
// prediction key and one request quota, so they share one client, one
// rate limiter and one resilience policy.
type Client struct {
	detectURL     string
	classifyURL   string
	predictionKey string
	httpClient    *http.Client
	limiter       *rate.Limiter
	executor      *resilience.Executor
}

type ClientOptions struct {
	Timeout            time.Duration
	RequestsPerSecond  float64
	ResilienceExecutor *resilience.Executor
}

func New(detectURL, classifyURL, predictionKey string, options ClientOptions) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		detectURL:     detectURL,
		classifyURL:   classifyURL,
		predictionKey: predictionKey,
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		executor:      options.ResilienceExecutor,
	}
}

type prediction struct {
	TagName     string                 `json:"tagName"`
	Probability float64                `json:"probability"`
	BoundingBox *domain.DetectedRegion `json:"boundingBox,omitempty"`
}

type predictionResponse struct {
	Predictions []prediction `json:"predictions"`
}

// Detector locates the single pill in a photo. Photos are assumed to
// contain one object: only the highest-probability region is consumed,
// additional detections are ignored.
type Detector struct {
	client *Client
}

func NewDetector(client *Client) *Detector {
	return &Detector{client: client}
}

func (d *Detector) Detect(ctx context.Context, imageBytes []byte) (domain.DetectedRegion, error) {
	response, err := d.client.predict(ctx, d.client.detectURL, imageBytes, "detect")
	if err != nil {
		return domain.DetectedRegion{}, domain.WrapError(domain.ErrDetection, "detect region", err)
	}

	best := -1
	for i, p := range response.Predictions {
		if p.BoundingBox == nil {
			continue
		}
		if best < 0 || p.Probability > response.Predictions[best].Probability {
			best = i
		}
	}
	if best < 0 {
		return domain.DetectedRegion{}, domain.WrapError(domain.ErrDetection, "detect region", errNoRegion)
	}
	return *response.Predictions[best].BoundingBox, nil
}

// Classifier labels a cropped pill image. The ranking is truncated to
// topN before it leaves this adapter; aggregation never sees more.
type Classifier struct {
	client *Client
	topN   int
}

func NewClassifier(client *Client, topN int) *Classifier {
	if topN <= 0 {
		topN = 10
	}
	return &Classifier{client: client, topN: topN}
}

func (c *Classifier) Classify(ctx context.Context, imageBytes []byte) ([]domain.Prediction, error) {
	response, err := c.client.predict(ctx, c.client.classifyURL, imageBytes, "classify")
	if err != nil {
		return nil, domain.WrapError(domain.ErrClassification, "classify image", err)
	}

	predictions := make([]domain.Prediction, 0, len(response.Predictions))
	for _, p := range response.Predictions {
		predictions = append(predictions, domain.Prediction{
			TagName:     p.TagName,
			Probability: p.Probability,
		})
	}
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Probability > predictions[j].Probability
	})
	if len(predictions) > c.topN {
		predictions = predictions[:c.topN]
	}
	return predictions, nil
}

func (c *Client) predict(ctx context.Context, endpoint string, imageBytes []byte, operation string) (*predictionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var response predictionResponse
	call := func(callCtx context.Context) error {
		return c.postImage(callCtx, endpoint, imageBytes, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "vision."+operation, call, classifyVisionError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &response, nil
}
