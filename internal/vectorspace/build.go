package vectorspace

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"tuesearch/internal/model"
	"tuesearch/internal/store"
)

// FitAll streams the relevant corpus once, then fits every field space
// in parallel. Returns the fitted spaces and the document ids they were
// fitted on, in ascending order.
func FitAll(ctx context.Context, st *store.Store, ngramMin, ngramMax int, logger *slog.Logger) (Spaces, []int64, error) {
	corpora := make(map[string][][]string, len(model.Fields))
	for _, f := range model.Fields {
		corpora[f] = nil
	}

	var docIDs []int64
	err := st.ForEachRelevantDocument(ctx, func(doc *model.Document) error {
		docIDs = append(docIDs, doc.ID)
		for _, f := range model.Fields {
			corpora[f] = append(corpora[f], doc.Tokens[f])
		}
		return contextErr(ctx)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load corpus: %w", err)
	}

	spaces := Spaces{}
	for _, f := range model.Fields {
		spaces[f] = NewVectorizer(ngramMin, ngramMax)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, field := range model.Fields {
		field := field
		g.Go(func() error {
			spaces[field].Fit(corpora[field])
			logger.Info("field space fitted",
				"field", field, "vocabulary", len(spaces[field].Vocab))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return spaces, docIDs, nil
}

// StoreVectors projects every relevant document into the fitted spaces
// and upserts the per-field vectors into the tfidfs table. Zero vectors
// are stored as NULL so lookups can skip them.
func StoreVectors(ctx context.Context, st *store.Store, spaces Spaces, logger *slog.Logger) error {
	var stored int
	err := st.ForEachRelevantDocument(ctx, func(doc *model.Document) error {
		vectors := make(map[string][]byte, len(model.Fields))
		for _, f := range model.Fields {
			vec := spaces[f].Transform(doc.Tokens[f])
			if len(vec.Indices) == 0 {
				continue
			}
			blob, err := vec.Encode()
			if err != nil {
				return err
			}
			vectors[f] = blob
		}
		if err := st.UpsertTfidf(ctx, doc.ID, vectors); err != nil {
			return err
		}
		stored++
		return contextErr(ctx)
	})
	if err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}
	logger.Info("document vectors stored", "documents", stored)
	return nil
}
