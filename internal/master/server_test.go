package master

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tuesearch/internal/config"
	"tuesearch/internal/model"
	"tuesearch/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Master.Password = "secret"
	cfg.Master.MaxJobRequest = 10

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, store.New(nil), nil, nil, logger)
}

func TestHealthEndpointOpen(t *testing.T) {
	s := testServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpointOpen(t *testing.T) {
	s := testServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWorkerEndpointsRequirePassword(t *testing.T) {
	s := testServer(t)

	for _, path := range []string{
		"/reserve_jobs/5",
	} {
		resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s without pw, got %d", path, resp.StatusCode)
		}
	}

	resp, err := s.App().Test(httptest.NewRequest(http.MethodPost, "/mark_job_as_fail/1?pw=wrong", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong pw, got %d", resp.StatusCode)
	}
}

func TestReserveJobsRejectsBadCount(t *testing.T) {
	s := testServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/reserve_jobs/zero?pw=secret", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric count, got %d", resp.StatusCode)
	}
}

func TestReserveJobsServedFromBuffer(t *testing.T) {
	s := testServer(t)
	s.buffer.put([]model.JobDescriptor{
		{ID: 1, URL: "https://a.example/"},
		{ID: 2, URL: "https://b.example/"},
		{ID: 3, URL: "https://c.example/"},
	})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/reserve_jobs/2?pw=secret", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if s.buffer.size() != 1 {
		t.Fatalf("expected 1 job left in buffer, got %d", s.buffer.size())
	}
}

func TestUnreserveJobsTakesBareArray(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/unreserve_jobs?pw=secret", strings.NewReader(`[]`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for bare id array, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/unreserve_jobs?pw=secret", strings.NewReader(`{"job_ids":[1]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for object body, got %d", resp.StatusCode)
	}
}

func TestSaveResultsRejectsMissingDocument(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/save_crawling_results/1?pw=secret", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing document, got %d", resp.StatusCode)
	}
}

func TestJobBufferTakeAndDrain(t *testing.T) {
	b := &jobBuffer{}
	b.put([]model.JobDescriptor{{ID: 1}, {ID: 2}, {ID: 3}})

	got := b.take(2)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("unexpected take result %v", got)
	}
	if b.size() != 1 {
		t.Fatalf("expected 1 remaining, got %d", b.size())
	}

	ids := b.drain()
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("unexpected drained ids %v", ids)
	}
	if b.size() != 0 {
		t.Fatalf("buffer should be empty after drain")
	}
}

func TestJobBufferTakeMoreThanAvailable(t *testing.T) {
	b := &jobBuffer{}
	b.put([]model.JobDescriptor{{ID: 1}})

	got := b.take(5)
	if len(got) != 1 {
		t.Fatalf("expected 1 job, got %d", len(got))
	}
	if b.take(1) != nil {
		t.Fatalf("expected nil from empty buffer")
	}
}

func TestFollowUpJobsParentIsDocument(t *testing.T) {
	payloads := []model.NewJobPayload{
		{URL: "https://a.example/page", Priority: 4},
		{URL: "https://blocked.example/login", Priority: -1},
	}
	hostByURL := map[string]string{
		"https://a.example/page":        "a.example",
		"https://blocked.example/login": "blocked.example",
	}
	serverIDs := map[string]int64{"a.example": 7, "blocked.example": 8}
	bonuses := map[int64]float64{7: 2, 8: 2}

	jobs := followUpJobs(99, payloads, hostByURL, serverIDs, bonuses)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.ParentID == nil || *job.ParentID != 99 {
			t.Fatalf("parent must be the stored document id, got %v", job.ParentID)
		}
	}
	if jobs[0].Priority != 6 {
		t.Fatalf("host bonus not applied: %v", jobs[0].Priority)
	}
	if jobs[1].Priority != -1 {
		t.Fatalf("never-crawl priority must not receive a bonus: %v", jobs[1].Priority)
	}
}

func TestDocumentFromPayloadFillsKnownFields(t *testing.T) {
	p := &model.NewDocumentPayload{
		HTML:     "<html></html>",
		Relevant: true,
		Text:     map[string]string{"title": "Castle", "bogus": "dropped"},
		Tokens:   map[string][]string{"title": {"castle_NN"}},
	}
	doc := documentFromPayload(42, p)

	if doc.JobID != 42 || !doc.Relevant {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.Text["title"] != "Castle" {
		t.Fatalf("title not mapped: %q", doc.Text["title"])
	}
	if _, ok := doc.Text["bogus"]; ok {
		t.Fatalf("unknown field should not be mapped")
	}
	if len(doc.Tokens["title"]) != 1 {
		t.Fatalf("tokens not mapped: %v", doc.Tokens)
	}
	if doc.Tokens["body"] == nil {
		t.Fatalf("missing fields should keep empty token slices")
	}
}
