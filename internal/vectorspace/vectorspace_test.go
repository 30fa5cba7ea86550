package vectorspace

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNGrams(t *testing.T) {
	v := NewVectorizer(1, 2)
	got := v.ngrams([]string{"a", "b", "c"})
	want := []string{"a", "b", "c", "a b", "b c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNGramsDegenerateRange(t *testing.T) {
	v := NewVectorizer(0, -3)
	got := v.ngrams([]string{"a", "b"})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected unigrams, got %v", got)
	}
}

func TestFitIDF(t *testing.T) {
	v := NewVectorizer(1, 1)
	v.Fit([][]string{
		{"castle", "town"},
		{"castle", "museum"},
	})

	// Smoothed idf: ln((1+n)/(1+df)) + 1.
	castle := v.IDF[v.Vocab["castle"]]
	town := v.IDF[v.Vocab["town"]]
	if !almostEqual(castle, math.Log(3.0/3.0)+1) {
		t.Fatalf("unexpected idf for corpus-wide term: %v", castle)
	}
	if !almostEqual(town, math.Log(3.0/2.0)+1) {
		t.Fatalf("unexpected idf for rare term: %v", town)
	}
	if town <= castle {
		t.Fatalf("rarer term should have higher idf: %v vs %v", town, castle)
	}
}

func TestTransformL2Normalized(t *testing.T) {
	v := NewVectorizer(1, 1)
	v.Fit([][]string{
		{"castle", "town", "river"},
		{"castle"},
	})

	vec := v.Transform([]string{"castle", "town", "town"})
	var norm float64
	for _, val := range vec.Values {
		norm += val * val
	}
	if !almostEqual(norm, 1) {
		t.Fatalf("expected unit norm, got %v", norm)
	}
}

func TestTransformUnknownTermsDropped(t *testing.T) {
	v := NewVectorizer(1, 1)
	v.Fit([][]string{{"castle"}})

	vec := v.Transform([]string{"unknown", "terms", "only"})
	if len(vec.Indices) != 0 {
		t.Fatalf("expected zero vector, got %v", vec)
	}
}

func TestTransformIndicesAscending(t *testing.T) {
	v := NewVectorizer(1, 1)
	v.Fit([][]string{{"a", "b", "c", "d"}})

	vec := v.Transform([]string{"d", "a", "c"})
	for i := 1; i < len(vec.Indices); i++ {
		if vec.Indices[i-1] >= vec.Indices[i] {
			t.Fatalf("indices not ascending: %v", vec.Indices)
		}
	}
}

func TestDotIdenticalVectorsIsOne(t *testing.T) {
	v := NewVectorizer(1, 1)
	v.Fit([][]string{
		{"castle", "town"},
		{"museum"},
	})

	a := v.Transform([]string{"castle", "town"})
	if got := Dot(a, a); !almostEqual(got, 1) {
		t.Fatalf("cosine of identical vectors should be 1, got %v", got)
	}
}

func TestDotDisjointVectorsIsZero(t *testing.T) {
	v := NewVectorizer(1, 1)
	v.Fit([][]string{
		{"castle"},
		{"museum"},
	})

	a := v.Transform([]string{"castle"})
	b := v.Transform([]string{"museum"})
	if got := Dot(a, b); got != 0 {
		t.Fatalf("expected 0 for disjoint vectors, got %v", got)
	}
}

func TestDotNil(t *testing.T) {
	if Dot(nil, &Vector{}) != 0 || Dot(&Vector{}, nil) != 0 {
		t.Fatalf("nil vectors should score 0")
	}
}

func TestVectorEncodeDecode(t *testing.T) {
	in := &Vector{Indices: []int{1, 5, 9}, Values: []float64{0.1, 0.5, 0.8}}
	blob, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	out, err := DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector error: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch: %+v vs %+v", in, out)
	}
}

func TestSpacesSaveLoad(t *testing.T) {
	v := NewVectorizer(1, 2)
	v.Fit([][]string{{"castle", "town"}})
	spaces := Spaces{"title": v}

	path := filepath.Join(t.TempDir(), "spaces.bin")
	if err := Save(path, spaces); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	lv, ok := loaded["title"]
	if !ok {
		t.Fatalf("title space missing after load")
	}
	if !reflect.DeepEqual(lv.Vocab, v.Vocab) {
		t.Fatalf("vocab mismatch: %v vs %v", lv.Vocab, v.Vocab)
	}

	before := v.Transform([]string{"castle", "town"})
	after := lv.Transform([]string{"castle", "town"})
	if !almostEqual(Dot(before, after), 1) {
		t.Fatalf("loaded space projects differently")
	}
}
