package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

func TestResultsExist(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"absent", "null", false},
		{"present", `{"0":true}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotPath, gotQuery string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotQuery = r.URL.RawQuery
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := New(server.URL, "tok", Options{})
			exists, err := client.ResultsExist(context.Background(), "req-1")
			if err != nil {
				t.Fatalf("ResultsExist() error = %v", err)
			}
			if exists != tc.want {
				t.Fatalf("ResultsExist() = %v, want %v", exists, tc.want)
			}
			if gotPath != "/requests/req-1/results.json" {
				t.Fatalf("unexpected path %q", gotPath)
			}
			if gotQuery != "auth=tok&shallow=true" {
				t.Fatalf("unexpected query %q", gotQuery)
			}
		})
	}
}

func TestPublishResultsReplacesSubtree(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write(gotBody)
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	records := []domain.CandidateRecord{{
		CatalogID:   "195900043",
		DisplayName: "AspirinTab (500mg)",
		Company:     "Bayer Korea",
		ImageKey:    "img-key",
	}}
	if err := client.PublishResults(context.Background(), "req-1", records); err != nil {
		t.Fatalf("PublishResults() error = %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
	if gotPath != "/requests/req-1/results.json" {
		t.Fatalf("unexpected path %q", gotPath)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("published body is not a JSON array: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["catalog_id"] != "195900043" {
		t.Fatalf("unexpected body: %s", gotBody)
	}
}

func TestPublishResultsWritesEmptyArrayForNil(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	if err := client.PublishResults(context.Background(), "req-1", nil); err != nil {
		t.Fatalf("PublishResults() error = %v", err)
	}
	if string(gotBody) != "[]" {
		t.Fatalf("nil records must publish [] to mark the request processed, got %s", gotBody)
	}
}

func TestPublishResultsReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "permission denied", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(server.URL, "", Options{})
	err := client.PublishResults(context.Background(), "req-1", []domain.CandidateRecord{})
	if err == nil {
		t.Fatalf("expected error")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}
