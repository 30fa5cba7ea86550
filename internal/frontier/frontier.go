// Package frontier manages the durable priority queue of crawl jobs.
// Reserve is serialized across all callers so that no two concurrent
// reservations ever return overlapping jobs.
package frontier

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tuesearch/internal/model"
)

// Policy selects how Reserve picks the next jobs.
type Policy string

const (
	// PolicyTopK takes the globally highest-priority pending jobs.
	PolicyTopK Policy = "topk"
	// PolicyHostFair takes the single highest-priority pending job per
	// host, then ranks those by priority.
	PolicyHostFair Policy = "hostfair"
)

// advisoryLockKey identifies the Postgres advisory lock guarding Reserve
// when no external lock is configured.
const advisoryLockKey = 874501

// Locker is an optional external serialization primitive for Reserve
// (e.g. the Redis lock); when nil the queue falls back to a Postgres
// advisory lock inside the reservation transaction.
type Locker interface {
	Acquire(ctx context.Context) (func(), error)
}

// Queue is the durable frontier over the jobs table.
type Queue struct {
	db     *sql.DB
	policy Policy
	locker Locker
	logger *slog.Logger
}

// New builds a Queue. Unknown policies fall back to top-k; the active
// policy is logged so the deployment configuration is auditable.
func New(db *sql.DB, policy Policy, locker Locker, logger *slog.Logger) *Queue {
	if policy != PolicyHostFair {
		policy = PolicyTopK
	}
	if logger != nil {
		logger.Info("frontier initialized", "policy", string(policy))
	}
	return &Queue{db: db, policy: policy, locker: locker, logger: logger}
}

const topKQuery = `
	SELECT j.id, j.url
	FROM jobs j
	JOIN servers s ON s.id = j.server_id
	WHERE j.done = FALSE
	  AND j.being_crawled = FALSE
	  AND s.is_blacklisted = FALSE
	ORDER BY j.priority DESC, j.id ASC
	LIMIT $1`

const hostFairQuery = `
	SELECT id, url
	FROM (
		SELECT j.id, j.url, j.priority,
		       ROW_NUMBER() OVER (PARTITION BY j.server_id ORDER BY j.priority DESC, j.id ASC) AS rn
		FROM jobs j
		JOIN servers s ON s.id = j.server_id
		WHERE j.done = FALSE
		  AND j.being_crawled = FALSE
		  AND s.is_blacklisted = FALSE
	) ranked
	WHERE rn = 1
	ORDER BY priority DESC, id ASC
	LIMIT $1`

// Reserve atomically selects up to n pending jobs on non-blacklisted
// hosts, marks them being_crawled, and returns their descriptors. The
// whole operation runs in one transaction under the serialization lock,
// so concurrent calls return disjoint sets.
func (q *Queue) Reserve(ctx context.Context, n int) ([]model.JobDescriptor, error) {
	if n <= 0 {
		return nil, nil
	}

	if q.locker != nil {
		release, err := q.locker.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback()

	if q.locker == nil {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
			return nil, fmt.Errorf("acquire advisory lock: %w", err)
		}
	}

	query := topKQuery
	if q.policy == PolicyHostFair {
		query = hostFairQuery
	}
	rows, err := tx.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("select frontier jobs: %w", err)
	}

	var jobs []model.JobDescriptor
	for rows.Next() {
		var d model.JobDescriptor
		if err := rows.Scan(&d.ID, &d.URL); err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(jobs) > 0 {
		ids := make([]string, len(jobs))
		args := make([]any, len(jobs))
		for i, j := range jobs {
			ids[i] = fmt.Sprintf("$%d", i+1)
			args[i] = j.ID
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE jobs SET being_crawled = TRUE, reserved_at = now()
			WHERE id IN (%s)`, strings.Join(ids, ", ")), args...)
		if err != nil {
			return nil, fmt.Errorf("mark jobs reserved: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}

	if q.logger != nil && len(jobs) > 0 {
		q.logger.Info("reserved jobs", "count", len(jobs), "policy", string(q.policy))
	}
	return jobs, nil
}

// SweepStale releases reservations older than lease so that jobs held by
// crashed workers become crawlable again. Returns the number of released
// jobs.
func (q *Queue) SweepStale(ctx context.Context, lease time.Duration) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET being_crawled = FALSE, reserved_at = NULL
		WHERE being_crawled = TRUE
		  AND done = FALSE
		  AND reserved_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(lease.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("sweep stale reservations: %w", err)
	}
	n, _ := res.RowsAffected()
	if q.logger != nil && n > 0 {
		q.logger.Info("released stale reservations", "count", n)
	}
	return n, nil
}
