// Package worker implements the crawl loop: reserve jobs from the
// master, fetch and parse the pages, classify them, and ship the
// results back. Workers are stateless; killing one at any point loses
// no work beyond its current reservations.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tuesearch/internal/config"
	"tuesearch/internal/extract"
	"tuesearch/internal/model"
	"tuesearch/internal/relevance"
	"tuesearch/internal/urls"
)

// idlePause is how long the loop sleeps when the master has no jobs.
const idlePause = 10 * time.Second

type Worker struct {
	cfg        *config.Config
	client     *MasterClient
	fetcher    *Fetcher
	robots     *RobotsCache
	extractor  *extract.Extractor
	scorer     *urls.Scorer
	classifier *relevance.DocumentClassifier
	logger     *slog.Logger

	limitMu  sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(cfg *config.Config, client *MasterClient, fetcher *Fetcher, extractor *extract.Extractor,
	scorer *urls.Scorer, classifier *relevance.DocumentClassifier, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:        cfg,
		client:     client,
		fetcher:    fetcher,
		robots:     NewRobotsCache(cfg.Fetch.UserAgent, cfg.FetchTimeout()),
		extractor:  extractor,
		scorer:     scorer,
		classifier: classifier,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Run processes jobs until ctx is cancelled or maxJobs jobs finished
// (maxJobs <= 0 means unbounded). Reservations still held when the loop
// stops are returned to the frontier.
func (w *Worker) Run(ctx context.Context, maxJobs int) error {
	done := 0
	for {
		if maxJobs > 0 && done >= maxJobs {
			w.logger.Info("job cap reached", "done", done)
			return nil
		}

		batch := w.cfg.Worker.BatchSize
		if batch <= 0 {
			batch = 1
		}
		if maxJobs > 0 && maxJobs-done < batch {
			batch = maxJobs - done
		}

		jobs, err := w.client.ReserveJobs(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("reserve failed", "error", err)
			w.pause(ctx)
			continue
		}
		if len(jobs) == 0 {
			w.logger.Info("frontier empty, idling")
			w.pause(ctx)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		for i, job := range jobs {
			if ctx.Err() != nil {
				w.unreserve(jobs[i:])
				return nil
			}
			// Only saved documents count toward the -n cap.
			if w.process(ctx, job) {
				done++
			}
		}
	}
}

func (w *Worker) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(idlePause):
	}
}

// unreserve returns unprocessed reservations, using a fresh context so
// it still runs during shutdown.
func (w *Worker) unreserve(jobs []model.JobDescriptor) {
	if len(jobs) == 0 {
		return
	}
	ids := make([]int64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.client.UnreserveJobs(ctx, ids); err != nil {
		w.logger.Error("unreserve on shutdown failed", "count", len(ids), "error", err)
		return
	}
	w.logger.Info("returned reservations", "count", len(ids))
}

// process runs one job end to end and reports whether a document was
// saved. Every failure path finishes the job as failed so the frontier
// keeps moving; only a failed fail-report leaves the job to the
// staleness sweep.
func (w *Worker) process(ctx context.Context, job model.JobDescriptor) bool {
	u, err := w.scorer.Normalize(job.URL)
	if err != nil {
		w.fail(ctx, job, "malformed url", err)
		return false
	}

	if w.cfg.Robots.Respect && !w.robots.Allowed(ctx, u.URL) {
		w.fail(ctx, job, "disallowed by robots.txt", nil)
		return false
	}

	if err := w.limiter(u.ServerName()).Wait(ctx); err != nil {
		return false
	}

	html, err := w.fetcher.Fetch(ctx, u.URL)
	if err != nil {
		w.fail(ctx, job, "fetch failed", err)
		return false
	}

	doc := w.extractor.Extract(html)
	doc.Relevant = w.classifier.IsRelevant(u, doc)

	// Second pass: a page the static fetch saw as irrelevant may build
	// its content with scripts. Render it once and re-classify.
	if !doc.Relevant && w.fetcher.RenderEnabled() {
		if rendered, rerr := w.fetcher.FetchRendered(ctx, u.URL); rerr == nil {
			html = rendered
			doc = w.extractor.Extract(html)
			doc.Relevant = w.classifier.IsRelevant(u, doc)
		}
	}

	// Irrelevant pages contribute no follow-up jobs.
	var newJobs []model.NewJobPayload
	if doc.Relevant {
		for _, link := range w.extractor.HarvestLinks(html, u.URL) {
			if !link.IsRelevant() {
				continue
			}
			newJobs = append(newJobs, model.NewJobPayload{
				URL:                   link.URL,
				AnchorText:            link.AnchorText,
				AnchorTextTokens:      link.AnchorTextTokens(),
				SurroundingText:       link.SurroundingText,
				SurroundingTextTokens: link.SurroundingTextTokens(),
				TitleText:             link.TitleText,
				TitleTextTokens:       link.TitleTextTokens(),
				URLTokens:             link.URLTokens(),
				Priority:              link.Priority(),
			})
		}
	}

	req := &model.SaveResultsRequest{
		NewDocument: &model.NewDocumentPayload{
			HTML:     doc.HTML,
			Markdown: doc.Markdown,
			Text:     doc.Text,
			Tokens:   doc.Tokens,
			Relevant: doc.Relevant,
		},
		NewJobs: newJobs,
	}
	if err := w.client.SaveResults(ctx, job.ID, req); err != nil {
		w.fail(ctx, job, "save failed", err)
		return false
	}

	w.logger.Info("job crawled",
		"job_id", job.ID, "url", u.URL,
		"relevant", doc.Relevant, "links", len(newJobs))
	return true
}

func (w *Worker) fail(ctx context.Context, job model.JobDescriptor, reason string, cause error) {
	w.logger.Warn("job failed", "job_id", job.ID, "url", job.URL, "reason", reason, "error", cause)
	if err := w.client.MarkJobFailed(ctx, job.ID); err != nil && !errors.Is(err, context.Canceled) {
		// The lease sweep will recover the reservation.
		w.logger.Error("report failure failed", "job_id", job.ID, "error", err)
	}
}

// limiter returns the per-host politeness limiter.
func (w *Worker) limiter(host string) *rate.Limiter {
	w.limitMu.Lock()
	defer w.limitMu.Unlock()

	if l, ok := w.limiters[host]; ok {
		return l
	}
	r := w.cfg.Worker.HostRatePerSec
	if r <= 0 {
		r = 1
	}
	l := rate.NewLimiter(rate.Limit(r), 1)
	w.limiters[host] = l
	return l
}
