// Package index builds the per-field inverted index over the relevant
// corpus. Postings are document id lists in ascending order.
package index

import (
	"context"
	"sort"

	"tuesearch/internal/artifact"
	"tuesearch/internal/model"
	"tuesearch/internal/store"
)

const (
	indexKind    = "inverted-index"
	indexVersion = 1
)

// Index maps field -> token -> sorted posting list. DocIDs lists every
// indexed document in ascending id order; it doubles as the corpus
// snapshot the vector spaces were fitted on.
type Index struct {
	Postings map[string]map[string][]int64
	DocIDs   []int64
}

// New returns an empty index with a posting map per known field.
func New() *Index {
	idx := &Index{Postings: make(map[string]map[string][]int64, len(model.Fields))}
	for _, f := range model.Fields {
		idx.Postings[f] = make(map[string][]int64)
	}
	return idx
}

// Add indexes one document. Documents must be added in ascending id
// order so posting lists stay sorted without a final pass.
func (idx *Index) Add(doc *model.Document) {
	idx.DocIDs = append(idx.DocIDs, doc.ID)
	for _, field := range model.Fields {
		postings := idx.Postings[field]
		seen := make(map[string]bool)
		for _, token := range doc.Tokens[field] {
			if seen[token] {
				continue
			}
			seen[token] = true
			postings[token] = append(postings[token], doc.ID)
		}
	}
}

// Lookup returns the documents whose field contains the token.
func (idx *Index) Lookup(field, token string) []int64 {
	postings, ok := idx.Postings[field]
	if !ok {
		return nil
	}
	return postings[token]
}

// Candidates returns the union of postings for the given tokens in one
// field, ascending and deduplicated.
func (idx *Index) Candidates(field string, tokens []string) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, token := range tokens {
		for _, id := range idx.Lookup(field, token) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build indexes every relevant document in the store.
func Build(ctx context.Context, st *store.Store) (*Index, error) {
	idx := New()
	err := st.ForEachRelevantDocument(ctx, func(doc *model.Document) error {
		idx.Add(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Save persists the index artifact.
func Save(path string, idx *Index) error {
	return artifact.Save(path, indexKind, indexVersion, idx)
}

// Load reads a previously built index artifact.
func Load(path string) (*Index, error) {
	idx := &Index{}
	if err := artifact.Load(path, indexKind, indexVersion, idx); err != nil {
		return nil, err
	}
	return idx, nil
}
