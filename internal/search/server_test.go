package search

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"tuesearch/internal/config"
	"tuesearch/internal/index"
	"tuesearch/internal/model"
	"tuesearch/internal/store"
	"tuesearch/internal/textproc"
	"tuesearch/internal/vectorspace"
)

func testSearchServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ranker := NewRanker(index.New(), vectorspace.Spaces{}, &textproc.Tokenizer{}, nil,
		&fakeCorpus{
			vectors: map[int64]map[string][]byte{},
			docs:    map[int64]*model.Document{},
			urls:    map[int64]string{},
		})
	return NewServer(cfg, store.New(nil), ranker, logger)
}

func TestSearchEmptyQueryReturnsError(t *testing.T) {
	s := testSearchServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/search", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Invalid query" {
		t.Fatalf("unexpected error message %q", body["error"])
	}
}

func TestSearchHealthEndpoint(t *testing.T) {
	s := testSearchServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSearchMetricsEndpoint(t *testing.T) {
	s := testSearchServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
