package rtdb

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

// ErrStreamClosed is returned when the database ends the stream from
// its side (listen location moved or the auth token expired). The
// caller is expected to reconnect.
var ErrStreamClosed = errors.New("rtdb stream closed by server")

type requestPayload struct {
	Images []string `json:"images"`
}

type streamEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// StreamRequests follows the SSE stream of the requests/ collection and
// invokes handler once per child. The initial snapshot replays children
// that already exist; the downstream idempotency guard makes that
// replay harmless. Blocks until ctx is done or the stream breaks.
func (c *Client) StreamRequests(ctx context.Context, handler func(context.Context, domain.IdentifyRequest)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("requests", nil), nil)
	if err != nil {
		return fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout here: the stream is expected to stay open.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("open request stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("open request stream", resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var eventName, eventData string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := c.dispatch(ctx, eventName, eventData, handler); err != nil {
				return err
			}
			eventName, eventData = "", ""
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			eventData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request stream: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrStreamClosed
}

func (c *Client) dispatch(ctx context.Context, eventName, eventData string, handler func(context.Context, domain.IdentifyRequest)) error {
	switch eventName {
	case "put":
		return c.handlePut(ctx, eventData, handler)
	case "patch", "keep-alive", "":
		return nil
	case "cancel":
		return fmt.Errorf("%w: listen cancelled", ErrStreamClosed)
	case "auth_revoked":
		return fmt.Errorf("%w: auth revoked", ErrStreamClosed)
	default:
		return nil
	}
}

func (c *Client) handlePut(ctx context.Context, eventData string, handler func(context.Context, domain.IdentifyRequest)) error {
	var event streamEvent
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("decode stream event: %w", err)
	}
	if len(event.Data) == 0 || string(event.Data) == "null" {
		return nil
	}

	if event.Path == "/" {
		// Initial snapshot: one map of id -> request.
		var children map[string]requestPayload
		if err := json.Unmarshal(event.Data, &children); err != nil {
			return fmt.Errorf("decode request snapshot: %w", err)
		}
		for id, payload := range children {
			handler(ctx, domain.IdentifyRequest{ID: id, Images: payload.Images})
		}
		return nil
	}

	// Child put: path is /{id}; deeper writes (results subtrees added
	// by workers) are not new requests.
	id := strings.TrimPrefix(event.Path, "/")
	if id == "" || strings.Contains(id, "/") {
		return nil
	}
	var payload requestPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode request %s: %w", id, err)
	}
	handler(ctx, domain.IdentifyRequest{ID: id, Images: payload.Images})
	return nil
}
