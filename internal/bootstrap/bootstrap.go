// Package bootstrap seeds an empty frontier with the configured start
// URLs. Running it again is a no-op for seeds that already exist.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"tuesearch/internal/model"
	"tuesearch/internal/store"
	"tuesearch/internal/urls"
)

// Seed inserts one job per configured seed URL. Seeds carry no link
// context; their priority comes from the URL alone, which includes the
// seed bonus when the URL matches a configured seed pattern.
func Seed(ctx context.Context, st *store.Store, scorer *urls.Scorer, seeds []string, logger *slog.Logger) error {
	if len(seeds) == 0 {
		logger.Warn("no seeds configured")
		return nil
	}

	var jobs []*model.Job
	names := make([]string, 0, len(seeds))
	hostByURL := make(map[string]string, len(seeds))
	parsed := make([]*urls.URL, 0, len(seeds))

	for _, seed := range seeds {
		u, err := scorer.Normalize(seed)
		if err != nil {
			return fmt.Errorf("seed %q: %w", seed, err)
		}
		parsed = append(parsed, u)
		name := u.ServerName()
		names = append(names, name)
		hostByURL[u.URL] = name
	}

	serverIDs, err := st.UpsertServers(ctx, names)
	if err != nil {
		return err
	}

	for _, u := range parsed {
		jobs = append(jobs, &model.Job{
			URL:       u.URL,
			ServerID:  serverIDs[hostByURL[u.URL]],
			URLTokens: u.URLTokens(),
			Priority:  u.Priority(),
		})
	}

	if err := st.InsertJobs(ctx, jobs); err != nil {
		return err
	}
	logger.Info("frontier seeded", "seeds", len(jobs))
	return nil
}
