package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"tuesearch/internal/config"
	"tuesearch/internal/metrics"
	"tuesearch/internal/store"
)

// Server serves the public search API.
type Server struct {
	app    *fiber.App
	config *config.Config
	ranker *Ranker
	logger *slog.Logger
}

func NewServer(cfg *config.Config, st *store.Store, ranker *Ranker, logger *slog.Logger) *Server {
	app := fiber.New()

	s := &Server{app: app, config: cfg, ranker: ranker, logger: logger}

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		metrics.RecordRequest(c.Method(), c.Path(), c.Response().StatusCode(), latency.Milliseconds())
		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", c.Method(),
				"path", c.Path(),
				"status", c.Response().StatusCode(),
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
		return c.JSON(fiber.Map{"status": status, "db": dbStatus})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	app.Get("/search", s.searchHandler)

	return s
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Search.Host, s.config.Search.Port)
	return s.app.Listen(addr)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// searchHandler answers GET /search?q=...&page=...&page_size=...
func (s *Server) searchHandler(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		// Client errors surface in the body, not the status code, so
		// browser callers always get a decodable JSON payload.
		return c.JSON(fiber.Map{"error": "Invalid query"})
	}

	page, _ := strconv.Atoi(c.Query("page", "0"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", strconv.Itoa(DefaultPageSize)))

	resp, err := s.ranker.Search(c.Context(), query, page, pageSize)
	if err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "search failed"})
	}
	metrics.RecordSearch(len(resp.Results))
	return c.JSON(resp)
}
