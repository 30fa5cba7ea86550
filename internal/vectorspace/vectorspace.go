// Package vectorspace fits one TF-IDF vector space per document field
// and projects documents and queries into them. Scores use smoothed
// inverse document frequencies and l2-normalized vectors, so the dot
// product of two projections is their cosine similarity.
package vectorspace

import (
	"bytes"
	"context"
	"encoding/gob"
	"math"
	"sort"
	"strings"

	"tuesearch/internal/artifact"
)

const (
	spaceKind    = "vector-spaces"
	spaceVersion = 1
)

// Vector is a sparse l2-normalized projection. Indices are ascending
// positions in the owning vectorizer's vocabulary.
type Vector struct {
	Indices []int
	Values  []float64
}

// Encode serializes the vector for the tfidfs table.
func (v *Vector) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeVector reads a vector written by Encode.
func DecodeVector(blob []byte) (*Vector, error) {
	v := &Vector{}
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Dot returns the dot product of two vectors; for Transform outputs
// this is the cosine similarity.
func Dot(a, b *Vector) float64 {
	if a == nil || b == nil {
		return 0
	}
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] < b.Indices[j]:
			i++
		case a.Indices[i] > b.Indices[j]:
			j++
		default:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		}
	}
	return sum
}

// Vectorizer is one fitted field space.
type Vectorizer struct {
	NGramMin int
	NGramMax int
	Vocab    map[string]int
	IDF      []float64
}

// NewVectorizer returns an unfitted vectorizer with the given n-gram
// range. Degenerate ranges collapse to unigrams.
func NewVectorizer(ngramMin, ngramMax int) *Vectorizer {
	if ngramMin <= 0 {
		ngramMin = 1
	}
	if ngramMax < ngramMin {
		ngramMax = ngramMin
	}
	return &Vectorizer{NGramMin: ngramMin, NGramMax: ngramMax}
}

// ngrams expands a token sequence into the configured n-gram terms,
// joining words with a single space.
func (v *Vectorizer) ngrams(tokens []string) []string {
	var out []string
	for n := v.NGramMin; n <= v.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// Fit learns the vocabulary and document frequencies from the corpus.
// The vocabulary is sorted so fits are deterministic.
func (v *Vectorizer) Fit(corpus [][]string) {
	df := make(map[string]int)
	for _, tokens := range corpus {
		seen := make(map[string]bool)
		for _, term := range v.ngrams(tokens) {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	v.Vocab = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, term := range terms {
		v.Vocab[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
}

// Transform projects a token sequence into the fitted space. Terms
// outside the vocabulary are dropped; a sequence with no known terms
// yields a zero vector.
func (v *Vectorizer) Transform(tokens []string) *Vector {
	counts := make(map[int]float64)
	for _, term := range v.ngrams(tokens) {
		if idx, ok := v.Vocab[term]; ok {
			counts[idx]++
		}
	}

	vec := &Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)

	var norm float64
	for _, idx := range vec.Indices {
		w := counts[idx] * v.IDF[idx]
		vec.Values = append(vec.Values, w)
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec.Values {
			vec.Values[i] /= norm
		}
	}
	return vec
}

// Spaces is the full set of fitted field vectorizers.
type Spaces map[string]*Vectorizer

// Save persists the fitted spaces artifact.
func Save(path string, s Spaces) error {
	return artifact.Save(path, spaceKind, spaceVersion, s)
}

// Load reads a previously fitted spaces artifact.
func Load(path string) (Spaces, error) {
	s := Spaces{}
	if err := artifact.Load(path, spaceKind, spaceVersion, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// contextErr lets long fits bail out between fields.
func contextErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
