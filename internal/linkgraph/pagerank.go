package linkgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// pagerankTolerance stops the power iteration once the L1 delta between
// iterations falls below it.
const pagerankTolerance = 1e-9

// PageRank runs a personalized power iteration over the host graph.
// The personalization map biases both the teleport vector and the sink
// mass toward the configured hosts; an empty map means uniform. Hosts
// absent from the graph are ignored.
func PageRank(g *HostGraph, damping float64, maxIter int, personalization map[string]float64) map[string]float64 {
	n := len(g.Hosts)
	if n == 0 {
		return map[string]float64{}
	}
	if damping <= 0 || damping >= 1 {
		damping = 0.85
	}
	if maxIter <= 0 {
		maxIter = 100
	}

	// Teleport distribution.
	teleport := make([]float64, n)
	var personalTotal float64
	for i, host := range g.Hosts {
		if w, ok := personalization[host]; ok && w > 0 {
			teleport[i] = w
			personalTotal += w
		}
	}
	if personalTotal > 0 {
		for i := range teleport {
			teleport[i] /= personalTotal
		}
	} else {
		for i := range teleport {
			teleport[i] = 1.0 / float64(n)
		}
	}

	type outEdge struct {
		to int
		w  float64
	}
	out := make([][]outEdge, n)
	outWeight := make([]float64, n)
	for _, e := range g.Edges {
		out[e.From] = append(out[e.From], outEdge{to: e.To, w: e.Weight})
		outWeight[e.From] += e.Weight
	}

	rank := make([]float64, n)
	copy(rank, teleport)
	next := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		var sinkMass float64
		for i := range next {
			next[i] = 0
		}
		for i := 0; i < n; i++ {
			if outWeight[i] == 0 {
				sinkMass += rank[i]
				continue
			}
			share := damping * rank[i] / outWeight[i]
			for _, e := range out[i] {
				next[e.to] += share * e.w
			}
		}
		var delta float64
		for i := 0; i < n; i++ {
			next[i] += (1-damping)*teleport[i] + damping*sinkMass*teleport[i]
			delta += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if delta < pagerankTolerance {
			break
		}
	}

	out2 := make(map[string]float64, n)
	for i, host := range g.Hosts {
		out2[host] = rank[i]
	}
	return out2
}

// SaveRanks writes the host ranks as JSON for inspection and for the
// priority refresh.
func SaveRanks(path string, ranks map[string]float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(ranks, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadRanks reads a rank file written by SaveRanks.
func LoadRanks(path string) (map[string]float64, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ranks := make(map[string]float64)
	if err := json.Unmarshal(blob, &ranks); err != nil {
		return nil, fmt.Errorf("decode ranks %q: %w", path, err)
	}
	return ranks, nil
}

// ranksWriter is the store-side dependency of ApplyRanks.
type ranksWriter interface {
	UpdateServerPageRank(ctx context.Context, name string, rank float64) error
}

// ApplyRanks writes the computed ranks back to the servers table so the
// master's importance bonus picks them up on the next ingest.
func ApplyRanks(ctx context.Context, st ranksWriter, ranks map[string]float64) error {
	for host, rank := range ranks {
		if err := st.UpdateServerPageRank(ctx, host, rank); err != nil {
			return fmt.Errorf("apply rank for %q: %w", host, err)
		}
	}
	return nil
}
