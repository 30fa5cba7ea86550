package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
database:
  dsn: "postgres://localhost/test"
master:
  port: 8080
  password: "pw"
  batchSize: 100
frontier:
  policy: "hostfair"
  leaseMinutes: 15
fetch:
  timeoutMs: 1000
relevance:
  topicKeyword: "tubingen"
  topicVariants: ["tubingen", "tuebingen"]
ranking:
  fieldWeights:
    title: 10
    body: 1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg := Load(writeConfig(t, sampleConfig))

	if cfg.Database.DSN != "postgres://localhost/test" {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}
	if cfg.Master.Port != 8080 || cfg.Master.Password != "pw" {
		t.Fatalf("unexpected master config %+v", cfg.Master)
	}
	if cfg.Frontier.Policy != "hostfair" {
		t.Fatalf("unexpected frontier policy %q", cfg.Frontier.Policy)
	}
	if len(cfg.Relevance.TopicVariants) != 2 {
		t.Fatalf("unexpected topic variants %v", cfg.Relevance.TopicVariants)
	}
	if cfg.Ranking.FieldWeights["title"] != 10 {
		t.Fatalf("unexpected field weights %v", cfg.Ranking.FieldWeights)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Load(writeConfig(t, sampleConfig))

	if got := cfg.FetchTimeout(); got != time.Second {
		t.Fatalf("expected 1s fetch timeout, got %v", got)
	}
	if got := cfg.Lease(); got != 15*time.Minute {
		t.Fatalf("expected 15m lease, got %v", got)
	}

	// Unset values fall back to the floors.
	empty := Load(writeConfig(t, "database:\n  dsn: x\n"))
	if empty.FetchTimeout() != 30*time.Second {
		t.Fatalf("expected default fetch timeout, got %v", empty.FetchTimeout())
	}
	if empty.RenderTimeout() != 45*time.Second {
		t.Fatalf("expected default render timeout, got %v", empty.RenderTimeout())
	}
	if empty.Lease() != 30*time.Minute {
		t.Fatalf("expected default lease, got %v", empty.Lease())
	}
}
