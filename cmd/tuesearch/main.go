package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tuesearch/internal/bootstrap"
	"tuesearch/internal/config"
	"tuesearch/internal/extract"
	"tuesearch/internal/frontier"
	"tuesearch/internal/index"
	"tuesearch/internal/linkgraph"
	"tuesearch/internal/master"
	"tuesearch/internal/migrate"
	"tuesearch/internal/refresh"
	"tuesearch/internal/relevance"
	"tuesearch/internal/search"
	"tuesearch/internal/store"
	"tuesearch/internal/textproc"
	"tuesearch/internal/urls"
	"tuesearch/internal/vectorspace"
	"tuesearch/internal/worker"
)

func main() {
	// Optional .env for local development; real deployments use the
	// config file directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yaml", "path to config file")
	role := flag.String("role", "", "process role: master|worker|search|bootstrap|index|tfidf|pagerank|priority|relevance|sweep")
	maxJobs := flag.Int("n", 0, "worker: stop after this many jobs (0 = unbounded)")
	flag.Parse()

	cfg := config.Load(*configPath)

	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	st := store.New(db)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	tokenizer := &textproc.Tokenizer{LongWordThreshold: cfg.Relevance.LongWordThreshold}
	scorer := &urls.Scorer{
		Rules:      cfg.Relevance,
		Tokenizer:  tokenizer,
		Classifier: urls.LoadClassifier(artifactPath(cfg, cfg.Artifacts.URLClassifier), logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *role {
	case "master":
		runMaster(ctx, cfg, st, scorer, logger)
	case "worker":
		runWorker(ctx, cfg, tokenizer, scorer, logger, *maxJobs)
	case "search":
		runSearch(ctx, cfg, st, tokenizer, logger)
	case "bootstrap":
		if err := bootstrap.Seed(ctx, st, scorer, cfg.Bootstrap.Seeds, logger); err != nil {
			log.Fatalf("bootstrap failed: %v", err)
		}
	case "index":
		runIndex(ctx, cfg, st, logger)
	case "tfidf":
		runTfidf(ctx, cfg, st, logger)
	case "pagerank":
		runPageRank(ctx, cfg, st, scorer, logger)
	case "priority":
		if err := refresh.Priorities(ctx, st, scorer, cfg.Importance, logger); err != nil {
			log.Fatalf("priority refresh failed: %v", err)
		}
	case "relevance":
		classifier := relevance.NewDocumentClassifier(cfg.Relevance)
		if err := refresh.Relevance(ctx, st, scorer, classifier, logger); err != nil {
			log.Fatalf("relevance refresh failed: %v", err)
		}
	case "sweep":
		queue := frontier.New(db, frontier.Policy(cfg.Frontier.Policy), nil, logger)
		if _, err := queue.SweepStale(ctx, cfg.Lease()); err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
	default:
		log.Fatalf("invalid role: %q (expected master|worker|search|bootstrap|index|tfidf|pagerank|priority|relevance|sweep)", *role)
	}
}

func artifactPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Artifacts.Dir, name)
}

func runMaster(ctx context.Context, cfg *config.Config, st *store.Store, scorer *urls.Scorer, logger *slog.Logger) {
	var locker frontier.Locker
	if cfg.Redis.URL != "" {
		locker = newRedisLocker(cfg)
	}
	queue := frontier.New(st.DB, frontier.Policy(cfg.Frontier.Policy), locker, logger)

	s := master.NewServer(cfg, st, queue, scorer, logger)
	if err := s.StartSweeper(); err != nil {
		log.Fatalf("start sweeper failed: %v", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	if err := s.Listen(); err != nil {
		log.Fatalf("master failed: %v", err)
	}
}

func runWorker(ctx context.Context, cfg *config.Config, tokenizer *textproc.Tokenizer,
	scorer *urls.Scorer, logger *slog.Logger, maxJobs int) {

	client := worker.NewMasterClient(
		cfg.Worker.MasterURL,
		cfg.Master.Password,
		time.Duration(cfg.Worker.RequestTimeoutMs)*time.Millisecond,
		cfg.Worker.SaveRetries,
	)
	extractor := &extract.Extractor{
		Tokenizer:             tokenizer,
		Scorer:                scorer,
		SurroundingTextLength: cfg.Relevance.SurroundingTextLength,
	}
	classifier := relevance.NewDocumentClassifier(cfg.Relevance)

	w := worker.New(cfg, client, worker.NewFetcher(cfg), extractor, scorer, classifier, logger)
	if err := w.Run(ctx, maxJobs); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}

func runSearch(ctx context.Context, cfg *config.Config, st *store.Store,
	tokenizer *textproc.Tokenizer, logger *slog.Logger) {

	idx, err := index.Load(artifactPath(cfg, cfg.Artifacts.InvertedIndex))
	if err != nil {
		log.Fatalf("load inverted index failed: %v", err)
	}
	spaces, err := vectorspace.Load(artifactPath(cfg, cfg.Artifacts.Vectorizers))
	if err != nil {
		log.Fatalf("load vector spaces failed: %v", err)
	}

	ranker := search.NewRanker(idx, spaces, tokenizer, cfg.Ranking.FieldWeights, st)
	s := search.NewServer(cfg, st, ranker, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	if err := s.Listen(); err != nil {
		log.Fatalf("search failed: %v", err)
	}
}

func runIndex(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) {
	idx, err := index.Build(ctx, st)
	if err != nil {
		log.Fatalf("build index failed: %v", err)
	}
	path := artifactPath(cfg, cfg.Artifacts.InvertedIndex)
	if err := index.Save(path, idx); err != nil {
		log.Fatalf("save index failed: %v", err)
	}
	logger.Info("inverted index built", "documents", len(idx.DocIDs), "path", path)
}

func runTfidf(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) {
	spaces, docIDs, err := vectorspace.FitAll(ctx, st, cfg.Ranking.NGramMin, cfg.Ranking.NGramMax, logger)
	if err != nil {
		log.Fatalf("fit vector spaces failed: %v", err)
	}
	if err := vectorspace.StoreVectors(ctx, st, spaces, logger); err != nil {
		log.Fatalf("store vectors failed: %v", err)
	}
	path := artifactPath(cfg, cfg.Artifacts.Vectorizers)
	if err := vectorspace.Save(path, spaces); err != nil {
		log.Fatalf("save vector spaces failed: %v", err)
	}
	logger.Info("vector spaces built", "documents", len(docIDs), "path", path)
}

func runPageRank(ctx context.Context, cfg *config.Config, st *store.Store, scorer *urls.Scorer, logger *slog.Logger) {
	g, err := linkgraph.Build(ctx, st, scorer)
	if err != nil {
		log.Fatalf("build link graph failed: %v", err)
	}
	if err := linkgraph.Save(artifactPath(cfg, cfg.Artifacts.LinkGraph), g); err != nil {
		log.Fatalf("save link graph failed: %v", err)
	}

	ranks := linkgraph.PageRank(g, cfg.Ranking.PageRankDamping, cfg.Ranking.PageRankMaxIter, cfg.Ranking.Personalization)
	if err := linkgraph.SaveRanks(artifactPath(cfg, cfg.Artifacts.PageRank), ranks); err != nil {
		log.Fatalf("save ranks failed: %v", err)
	}
	if err := linkgraph.ApplyRanks(ctx, st, ranks); err != nil {
		log.Fatalf("apply ranks failed: %v", err)
	}
	logger.Info("pagerank applied", "hosts", len(ranks))
}
