// Package master runs the crawl coordinator: it owns the frontier, hands
// reserved jobs to workers, ingests their results, and keeps per-host
// statistics current. Workers never talk to the database directly.
package master

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"tuesearch/internal/config"
	"tuesearch/internal/frontier"
	"tuesearch/internal/metrics"
	"tuesearch/internal/model"
	"tuesearch/internal/store"
	"tuesearch/internal/urls"
)

type Server struct {
	app    *fiber.App
	config *config.Config
	store  *store.Store
	queue  *frontier.Queue
	scorer *urls.Scorer
	buffer *jobBuffer
	cron   *cron.Cron
	logger *slog.Logger
}

func NewServer(cfg *config.Config, st *store.Store, queue *frontier.Queue, scorer *urls.Scorer, logger *slog.Logger) *Server {
	app := fiber.New()

	s := &Server{
		app:    app,
		config: cfg,
		store:  st,
		queue:  queue,
		scorer: scorer,
		buffer: &jobBuffer{},
		logger: logger,
	}

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	app.Get("/", func(c *fiber.Ctx) error {
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := st.DB.PingContext(ctx); err != nil {
			dbStatus = "error"
		}

		status := "ok"
		if dbStatus != "ok" {
			status = "error"
		}
		return c.JSON(fiber.Map{
			"status":        status,
			"db":            dbStatus,
			"buffered_jobs": s.buffer.size(),
		})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	auth := s.authMiddleware()
	app.Get("/reserve_jobs/:n", auth, s.reserveJobsHandler)
	app.Post("/unreserve_jobs", auth, s.unreserveJobsHandler)
	app.Post("/mark_job_as_fail/:id", auth, s.markJobAsFailHandler)
	app.Post("/save_crawling_results/:id", auth, s.saveCrawlingResultsHandler)

	return s
}

// authMiddleware gates the worker endpoints on the shared secret passed
// as the pw query parameter.
func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.config.Master.Password == "" || c.Query("pw") == s.config.Master.Password {
			return c.Next()
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Master.Host, s.config.Master.Port)
	return s.app.Listen(addr)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// StartSweeper schedules the reservation staleness sweep. Jobs held in
// being_crawled longer than the lease are returned to the frontier.
func (s *Server) StartSweeper() error {
	schedule := s.config.Master.SweepSchedule
	if schedule == "" {
		schedule = "@every 10m"
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		n, err := s.queue.SweepStale(ctx, s.config.Lease())
		if err != nil {
			s.logger.Error("staleness sweep failed", "error", err)
			return
		}
		metrics.RecordSweep(n)
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Shutdown stops the sweeper and releases every reservation still held
// in the buffer.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cron != nil {
		s.cron.Stop()
	}
	ids := s.buffer.drain()
	if len(ids) > 0 {
		if err := s.store.UnreserveJobs(ctx, ids); err != nil {
			return err
		}
		metrics.RecordUnreserved(len(ids))
		s.logger.Info("released buffered reservations", "count", len(ids))
	}
	return s.app.ShutdownWithContext(ctx)
}

// reserveJobsHandler serves up to n buffered jobs, refilling the buffer
// from the frontier in configured batches when it runs short. Lock
// contention on the frontier degrades to an empty response so workers
// simply retry later.
func (s *Server) reserveJobsHandler(c *fiber.Ctx) error {
	n, err := strconv.Atoi(c.Params("n"))
	if err != nil || n <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid job count"})
	}
	if max := s.config.Master.MaxJobRequest; max > 0 && n > max {
		n = max
	}

	if s.buffer.size() < n {
		batch := s.config.Master.BatchSize
		if batch < n {
			batch = n
		}
		reserved, err := s.queue.Reserve(c.Context(), batch)
		if err == frontier.ErrQueueContention {
			s.logger.Warn("frontier contention, serving what is buffered")
		} else if err != nil {
			s.logger.Error("reserve failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reserve failed"})
		} else {
			s.buffer.put(reserved)
		}
	}

	jobs := s.buffer.take(n)
	if jobs == nil {
		jobs = []model.JobDescriptor{}
	}
	metrics.RecordReserved(len(jobs))
	return c.JSON(jobs)
}

// unreserveJobsHandler returns jobs a worker will not finish to the
// frontier. The body is a bare JSON array of job ids. Finished jobs are
// left untouched.
func (s *Server) unreserveJobsHandler(c *fiber.Ctx) error {
	var ids []int64
	if err := c.BodyParser(&ids); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.store.UnreserveJobs(c.Context(), ids); err != nil {
		s.logger.Error("unreserve failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unreserve failed"})
	}
	metrics.RecordUnreserved(len(ids))
	return c.JSON(fiber.Map{"unreserved": len(ids)})
}

// markJobAsFailHandler finishes a job as failed and updates its host
// statistics. Called by workers when a fetch cannot produce a document.
func (s *Server) markJobAsFailHandler(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid job id"})
	}

	job, err := s.store.GetJob(c.Context(), id)
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

	if err := s.store.MarkJobDone(c.Context(), id, false); err != nil {
		s.logger.Error("mark job failed", "job_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update failed"})
	}
	if err := s.store.BumpServerCounters(c.Context(), job.ServerID, false, false); err != nil {
		s.logger.Error("bump server counters failed", "server_id", job.ServerID, "error", err)
	}
	metrics.RecordJobFailed()
	return c.JSON(fiber.Map{"status": "ok"})
}
