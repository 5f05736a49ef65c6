package rtdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pilltong/pill-identifier/internal/core/domain"
	"github.com/pilltong/pill-identifier/internal/infrastructure/resilience"
)

// Client accesses the Realtime Database over its REST interface. The
// pipeline touches two paths: requests/{id}/results for the idempotency
// read and the final write, and the requests/ stream (stream.go).
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, authToken string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// ResultsExist reports whether a results subtree is already present
// under the request. A shallow read keeps the response tiny regardless
// of how many candidates were published.
func (c *Client) ResultsExist(ctx context.Context, requestID string) (bool, error) {
	endpoint := c.endpoint("requests/"+requestID+"/results", url.Values{"shallow": {"true"}})

	var exists bool
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create results read: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("read results: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError("read results", resp)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read results body: %w", err)
		}
		exists = strings.TrimSpace(string(body)) != "null"
		return nil
	}

	if err := c.execute(ctx, "rtdb.results_exist", call); err != nil {
		return false, err
	}
	return exists, nil
}

// PublishResults replaces the whole results subtree in one PUT. A retry
// after a partial failure overwrites rather than appends, which is what
// keeps re-processing safe.
func (c *Client) PublishResults(ctx context.Context, requestID string, records []domain.CandidateRecord) error {
	if records == nil {
		// An empty, present subtree still marks the request processed.
		records = []domain.CandidateRecord{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	endpoint := c.endpoint("requests/"+requestID+"/results", nil)
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPut, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create results write: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError("write results", resp)
		}
		return nil
	}

	return c.execute(ctx, "rtdb.publish_results", call)
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor != nil {
		return c.executor.Execute(ctx, operation, call, classifyRTDBError)
	}
	return call(ctx)
}

func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.authToken != "" {
		query.Set("auth", c.authToken)
	}
	endpoint := c.baseURL + "/" + path + ".json"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return endpoint
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return &HTTPStatusError{Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return &HTTPStatusError{Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status, Body: msg}
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "rtdb status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("rtdb %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("rtdb %s status: %s: %s", e.Operation, e.Status, e.Body)
}
