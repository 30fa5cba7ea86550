package master

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"tuesearch/internal/importance"
	"tuesearch/internal/metrics"
	"tuesearch/internal/model"
	"tuesearch/internal/store"
)

// saveCrawlingResultsHandler ingests one crawl result: the fetched
// document plus the follow-up jobs harvested from it. The parent job is
// marked done only after everything else is persisted, so a crash
// mid-ingest leaves the job reserved and the staleness sweep retries it
// later. Duplicate follow-up URLs are dropped silently.
func (s *Server) saveCrawlingResultsHandler(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid job id"})
	}

	var req model.SaveResultsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.NewDocument == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing document"})
	}

	ctx := c.Context()
	job, err := s.store.GetJob(ctx, id)
	if err == store.ErrNotFound {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	if err != nil {
		s.logger.Error("load job failed", "job_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "load job failed"})
	}
	if job.Done {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "job already done"})
	}

	doc := documentFromPayload(id, req.NewDocument)
	docID, err := s.store.InsertDocument(ctx, doc)
	if err != nil {
		s.logger.Error("insert document failed", "job_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "insert document failed"})
	}
	metrics.RecordDocumentSaved(doc.Relevant)

	inserted, err := s.insertFollowUpJobs(ctx, docID, req.NewJobs)
	if err != nil {
		s.logger.Error("insert follow-up jobs failed", "job_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "insert jobs failed"})
	}
	metrics.RecordNewJobs(inserted)

	// Parent job last: its done flag is the ingest commit point.
	if err := s.store.MarkJobDone(ctx, id, true); err != nil {
		s.logger.Error("mark job done failed", "job_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "mark done failed"})
	}
	if err := s.store.BumpServerCounters(ctx, job.ServerID, true, doc.Relevant); err != nil {
		s.logger.Error("bump server counters failed", "server_id", job.ServerID, "error", err)
	}

	s.logger.Info("crawl result saved",
		"job_id", id, "relevant", doc.Relevant, "new_jobs", inserted)
	return c.JSON(fiber.Map{"status": "ok", "new_jobs": inserted})
}

// insertFollowUpJobs resolves hosts, adds the per-host importance bonus
// to the worker-computed priorities, and bulk-inserts the jobs with the
// freshly stored document as parent. Returns how many payloads were
// accepted.
func (s *Server) insertFollowUpJobs(ctx context.Context, parentDocID int64, payloads []model.NewJobPayload) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(payloads))
	hostByURL := make(map[string]string, len(payloads))
	for _, p := range payloads {
		u, err := s.scorer.Normalize(p.URL)
		if err != nil {
			continue
		}
		name := u.ServerName()
		hostByURL[p.URL] = name
		names = append(names, name)
	}

	serverIDs, err := s.store.UpsertServers(ctx, names)
	if err != nil {
		return 0, err
	}

	bonuses := make(map[int64]float64, len(serverIDs))
	for _, sid := range serverIDs {
		if _, ok := bonuses[sid]; ok {
			continue
		}
		srv, err := s.store.GetServer(ctx, sid)
		if err != nil {
			return 0, err
		}
		bonuses[sid] = importance.Score(srv, s.config.Importance)
	}

	jobs := followUpJobs(parentDocID, payloads, hostByURL, serverIDs, bonuses)
	if err := s.store.InsertJobs(ctx, jobs); err != nil {
		return 0, err
	}
	return len(jobs), nil
}

// followUpJobs builds the job rows for the accepted payloads. Each row
// points at the document that produced it and carries the worker's URL
// priority plus the host bonus, unless the URL was scored never-crawl.
func followUpJobs(parentDocID int64, payloads []model.NewJobPayload,
	hostByURL map[string]string, serverIDs map[string]int64, bonuses map[int64]float64) []*model.Job {

	jobs := make([]*model.Job, 0, len(payloads))
	for _, p := range payloads {
		name, ok := hostByURL[p.URL]
		if !ok {
			continue
		}
		sid := serverIDs[name]
		priority := p.Priority
		if priority >= 0 {
			priority += bonuses[sid]
		}
		parentID := parentDocID
		jobs = append(jobs, &model.Job{
			URL:                   p.URL,
			ServerID:              sid,
			ParentID:              &parentID,
			AnchorText:            p.AnchorText,
			AnchorTextTokens:      p.AnchorTextTokens,
			SurroundingText:       p.SurroundingText,
			SurroundingTextTokens: p.SurroundingTextTokens,
			TitleText:             p.TitleText,
			TitleTextTokens:       p.TitleTextTokens,
			URLTokens:             p.URLTokens,
			Priority:              priority,
		})
	}
	return jobs
}

// documentFromPayload maps the wire document onto the storage model,
// tolerating payloads that omit fields.
func documentFromPayload(jobID int64, p *model.NewDocumentPayload) *model.Document {
	doc := model.NewDocument()
	doc.JobID = jobID
	doc.HTML = p.HTML
	doc.Markdown = p.Markdown
	doc.Relevant = p.Relevant
	for _, f := range model.Fields {
		if t, ok := p.Text[f]; ok {
			doc.Text[f] = t
		}
		if tok, ok := p.Tokens[f]; ok && tok != nil {
			doc.Tokens[f] = tok
		}
	}
	return doc
}
