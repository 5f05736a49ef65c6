package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

func newTestClient(detectURL, classifyURL string) *Client {
	return New(detectURL, classifyURL, "secret-key", ClientOptions{RequestsPerSecond: 1000})
}

func TestDetectPicksHighestProbabilityRegion(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Prediction-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions":[
			{"tagName":"pill","probability":0.4,"boundingBox":{"left":0.3,"top":0.3,"width":0.2,"height":0.2}},
			{"tagName":"pill","probability":0.9,"boundingBox":{"left":0.1,"top":0.2,"width":0.5,"height":0.4}},
			{"tagName":"noise","probability":0.95}
		]}`))
	}))
	defer server.Close()

	detector := NewDetector(newTestClient(server.URL, server.URL))
	region, err := detector.Detect(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if gotKey != "secret-key" {
		t.Fatalf("Prediction-Key = %q, want secret-key", gotKey)
	}
	want := domain.DetectedRegion{Left: 0.1, Top: 0.2, Width: 0.5, Height: 0.4}
	if region != want {
		t.Fatalf("Detect() = %+v, want %+v", region, want)
	}
}

func TestDetectFailsWithoutRegion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[{"tagName":"pill","probability":0.9}]}`))
	}))
	defer server.Close()

	detector := NewDetector(newTestClient(server.URL, server.URL))
	_, err := detector.Detect(context.Background(), []byte("img"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDetection) {
		t.Fatalf("expected ErrDetection, got %v", err)
	}
}

func TestDetectWrapsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	detector := NewDetector(newTestClient(server.URL, server.URL))
	_, err := detector.Detect(context.Background(), []byte("img"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDetection) {
		t.Fatalf("expected ErrDetection, got %v", err)
	}
}

func TestClassifySortsAndTruncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[
			{"tagName":"K002","probability":0.3},
			{"tagName":"K001","probability":0.9},
			{"tagName":"K003","probability":0.5}
		]}`))
	}))
	defer server.Close()

	classifier := NewClassifier(newTestClient(server.URL, server.URL), 2)
	predictions, err := classifier.Classify(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(predictions) != 2 {
		t.Fatalf("expected top-2 cutoff, got %+v", predictions)
	}
	if predictions[0].TagName != "K001" || predictions[1].TagName != "K003" {
		t.Fatalf("unexpected ranking: %+v", predictions)
	}
}

func TestClassifyWrapsMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"predictions": not json`))
	}))
	defer server.Close()

	classifier := NewClassifier(newTestClient(server.URL, server.URL), 10)
	_, err := classifier.Classify(context.Background(), []byte("img"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
}
