// Package search answers queries against the offline ranking artifacts:
// candidates come from the inverted index, scores from the per-field
// vector spaces fused with field weights.
package search

import (
	"context"
	"fmt"
	"sort"

	"tuesearch/internal/index"
	"tuesearch/internal/model"
	"tuesearch/internal/textproc"
	"tuesearch/internal/vectorspace"
)

// defaultFieldWeights mirror the relative trust placed in each document
// field when no weights are configured.
var defaultFieldWeights = map[string]float64{
	"title":            10,
	"meta_description": 5,
	"meta_keywords":    5,
	"meta_author":      5,
	"h1":               10,
	"h2":               8,
	"h3":               6,
	"h4":               4,
	"h5":               2,
	"h6":               1,
	"body":             1,
}

// DefaultPageSize bounds result pages when the client does not ask for
// a size.
const DefaultPageSize = 10

// corpusReader is the store-side dependency of the ranker.
type corpusReader interface {
	GetTfidfs(ctx context.Context, ids []int64) (map[int64]map[string][]byte, error)
	GetDocumentsByIDs(ctx context.Context, ids []int64) (map[int64]*model.Document, error)
	DocumentJobURL(ctx context.Context, docID int64) (string, error)
}

// Ranker scores documents against queries.
type Ranker struct {
	Index     *index.Index
	Spaces    vectorspace.Spaces
	Tokenizer *textproc.Tokenizer
	Weights   map[string]float64
	Store     corpusReader
}

// NewRanker wires a ranker; empty weights fall back to the defaults.
func NewRanker(idx *index.Index, spaces vectorspace.Spaces, tok *textproc.Tokenizer,
	weights map[string]float64, st corpusReader) *Ranker {
	if len(weights) == 0 {
		weights = defaultFieldWeights
	}
	return &Ranker{Index: idx, Spaces: spaces, Tokenizer: tok, Weights: weights, Store: st}
}

type scored struct {
	id    int64
	score float64
}

// Search tokenizes the query, scores every candidate document as the
// weighted sum of per-field cosine similarities, and returns one page
// of results ordered by score descending with document id as the tie
// breaker. Pages are 0-based: concatenating pages 0..k reproduces the
// top (k+1)*pageSize hits without duplication.
func (r *Ranker) Search(ctx context.Context, query string, page, pageSize int) (*model.SearchResponse, error) {
	tokens := r.Tokenizer.Tokenize(textproc.Humanize(query))
	return r.searchWithTokens(ctx, query, tokens, page, pageSize)
}

func (r *Ranker) searchWithTokens(ctx context.Context, query string, tokens []string, page, pageSize int) (*model.SearchResponse, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	resp := &model.SearchResponse{
		Query:       query,
		QueryTokens: tokens,
		Page:        page,
		PageSize:    pageSize,
		Results:     []model.SearchResult{},
	}
	if len(tokens) == 0 {
		return resp, nil
	}

	queryVecs := make(map[string]*vectorspace.Vector, len(model.Fields))
	candidates := make(map[int64]bool)
	for _, field := range model.Fields {
		space, ok := r.Spaces[field]
		if !ok {
			continue
		}
		vec := space.Transform(tokens)
		if len(vec.Indices) == 0 {
			continue
		}
		queryVecs[field] = vec
		for _, id := range r.Index.Candidates(field, tokens) {
			candidates[id] = true
		}
	}
	if len(candidates) == 0 {
		return resp, nil
	}

	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	docVectors, err := r.Store.GetTfidfs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load document vectors: %w", err)
	}

	ranked := make([]scored, 0, len(ids))
	for _, id := range ids {
		var score float64
		for field, queryVec := range queryVecs {
			blob, ok := docVectors[id][field]
			if !ok {
				continue
			}
			docVec, err := vectorspace.DecodeVector(blob)
			if err != nil {
				continue
			}
			score += r.Weights[field] * vectorspace.Dot(queryVec, docVec)
		}
		if score > 0 {
			ranked = append(ranked, scored{id: id, score: score})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	start := page * pageSize
	if start >= len(ranked) {
		return resp, nil
	}
	end := start + pageSize
	if end > len(ranked) {
		end = len(ranked)
	}
	pageHits := ranked[start:end]

	pageIDs := make([]int64, len(pageHits))
	for i, hit := range pageHits {
		pageIDs[i] = hit.id
	}
	docs, err := r.Store.GetDocumentsByIDs(ctx, pageIDs)
	if err != nil {
		return nil, fmt.Errorf("load result documents: %w", err)
	}

	for _, hit := range pageHits {
		doc, ok := docs[hit.id]
		if !ok {
			continue
		}
		u, err := r.Store.DocumentJobURL(ctx, hit.id)
		if err != nil {
			u = ""
		}
		resp.Results = append(resp.Results, model.SearchResult{
			Title:    doc.Title(),
			Body:     doc.Body(),
			URL:      u,
			Relevant: doc.Relevant,
		})
	}
	return resp, nil
}
