package frontier

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewFallsBackToTopK(t *testing.T) {
	for _, policy := range []Policy{"", "bogus", PolicyTopK} {
		q := New(nil, policy, nil, discardLogger())
		if q.policy != PolicyTopK {
			t.Fatalf("policy %q should fall back to topk, got %q", policy, q.policy)
		}
	}
}

func TestNewKeepsHostFair(t *testing.T) {
	q := New(nil, PolicyHostFair, nil, discardLogger())
	if q.policy != PolicyHostFair {
		t.Fatalf("expected hostfair, got %q", q.policy)
	}
}

func TestReserveZeroIsNoop(t *testing.T) {
	q := New(nil, PolicyTopK, nil, discardLogger())
	jobs, err := q.Reserve(context.Background(), 0)
	if err != nil {
		t.Fatalf("Reserve(0) error: %v", err)
	}
	if jobs != nil {
		t.Fatalf("Reserve(0) should return nil, got %v", jobs)
	}
}
