// Package linkgraph builds the host-level link graph from the crawled
// corpus and computes the PageRank feedback written back to the servers
// table.
package linkgraph

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/graph/simple"

	"tuesearch/internal/artifact"
	"tuesearch/internal/model"
	"tuesearch/internal/store"
	"tuesearch/internal/urls"
)

const (
	graphKind    = "link-graph"
	graphVersion = 1
)

// HostGraph is the serialized host link graph: one node per host, one
// weighted directed edge per cross-host link count.
type HostGraph struct {
	Hosts []string
	Edges []Edge
}

type Edge struct {
	From   int
	To     int
	Weight float64
}

// builder accumulates cross-host links in a gonum weighted digraph.
type builder struct {
	g     *simple.WeightedDirectedGraph
	ids   map[string]int64
	hosts []string
}

func newBuilder() *builder {
	return &builder{
		g:   simple.NewWeightedDirectedGraph(0, 0),
		ids: make(map[string]int64),
	}
}

func (b *builder) node(host string) int64 {
	if id, ok := b.ids[host]; ok {
		return id
	}
	id := int64(len(b.hosts))
	b.ids[host] = id
	b.hosts = append(b.hosts, host)
	b.g.AddNode(simple.Node(id))
	return id
}

// link adds one observed link between hosts, accumulating edge weight.
// Self-links are ignored: the graph only models cross-host endorsement.
func (b *builder) link(from, to string) {
	if from == "" || to == "" || from == to {
		return
	}
	f, t := b.node(from), b.node(to)
	w := 1.0
	if e := b.g.WeightedEdge(f, t); e != nil {
		w += e.Weight()
	}
	b.g.SetWeightedEdge(simple.WeightedEdge{
		F: simple.Node(f), T: simple.Node(t), W: w,
	})
}

func (b *builder) export() *HostGraph {
	hg := &HostGraph{Hosts: b.hosts}
	edges := b.g.WeightedEdges()
	for edges.Next() {
		e := edges.WeightedEdge()
		hg.Edges = append(hg.Edges, Edge{
			From:   int(e.From().ID()),
			To:     int(e.To().ID()),
			Weight: e.Weight(),
		})
	}
	return hg
}

// Build walks every relevant document and records an edge from its host
// to the host of each job it produced.
func Build(ctx context.Context, st *store.Store, scorer *urls.Scorer) (*HostGraph, error) {
	b := newBuilder()

	err := st.ForEachRelevantDocument(ctx, func(doc *model.Document) error {
		fromURL, err := st.DocumentJobURL(ctx, doc.ID)
		if err != nil {
			return err
		}
		from, err := scorer.Normalize(fromURL)
		if err != nil {
			return nil
		}

		children, err := st.ChildJobURLs(ctx, doc.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			to, err := scorer.Normalize(child)
			if err != nil {
				continue
			}
			b.link(from.ServerName(), to.ServerName())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build link graph: %w", err)
	}
	return b.export(), nil
}

// Save persists the graph artifact.
func Save(path string, g *HostGraph) error {
	return artifact.Save(path, graphKind, graphVersion, g)
}

// Load reads a previously built graph artifact.
func Load(path string) (*HostGraph, error) {
	var g HostGraph
	if err := artifact.Load(path, graphKind, graphVersion, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
