// Package refresh holds the offline maintenance passes that fold new
// signals back into the crawl: re-scoring frontier priorities after a
// PageRank run and re-classifying stored documents after a rule change.
package refresh

import (
	"context"
	"fmt"
	"log/slog"

	"tuesearch/internal/config"
	"tuesearch/internal/importance"
	"tuesearch/internal/model"
	"tuesearch/internal/relevance"
	"tuesearch/internal/store"
	"tuesearch/internal/urls"
)

// Priorities recomputes the priority of every unfinished job as its URL
// priority plus the current host importance bonus. Run after PageRank
// has been applied so better hosts surface earlier in the frontier.
func Priorities(ctx context.Context, st *store.Store, scorer *urls.Scorer,
	imp config.ImportanceConfig, logger *slog.Logger) error {

	servers, err := st.ListServers(ctx)
	if err != nil {
		return err
	}
	bonuses := make(map[int64]float64, len(servers))
	for _, srv := range servers {
		bonuses[srv.ID] = importance.Score(srv, imp)
	}

	var updated int
	err = st.ForEachUnfinishedJob(ctx, func(job *model.Job) error {
		u, err := scorer.Parse(job.URL, nil, job.AnchorText, job.SurroundingText, job.TitleText)
		if err != nil {
			return nil
		}
		priority := u.Priority()
		if priority >= 0 {
			priority += bonuses[job.ServerID]
		}
		if priority == job.Priority {
			return nil
		}
		if err := st.UpdateJobPriority(ctx, job.ID, priority); err != nil {
			return err
		}
		updated++
		return nil
	})
	if err != nil {
		return fmt.Errorf("refresh priorities: %w", err)
	}
	logger.Info("priorities refreshed", "updated", updated)
	return nil
}

// Relevance re-runs the document classifier over the whole corpus and
// rewrites flags that changed. Used after tuning topic or language
// rules without recrawling.
func Relevance(ctx context.Context, st *store.Store, scorer *urls.Scorer,
	classifier *relevance.DocumentClassifier, logger *slog.Logger) error {

	var updated int
	err := st.ForEachDocument(ctx, func(doc *model.Document) error {
		rawURL, err := st.DocumentJobURL(ctx, doc.ID)
		if err != nil {
			return err
		}
		u, err := scorer.Normalize(rawURL)
		if err != nil {
			return nil
		}
		relevant := classifier.IsRelevant(u, doc)
		if relevant == doc.Relevant {
			return nil
		}
		if err := st.UpdateDocumentRelevance(ctx, doc.ID, relevant); err != nil {
			return err
		}
		updated++
		return nil
	})
	if err != nil {
		return fmt.Errorf("refresh relevance: %w", err)
	}
	logger.Info("relevance refreshed", "updated", updated)
	return nil
}
