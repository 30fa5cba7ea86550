package index

import (
	"path/filepath"
	"reflect"
	"testing"

	"tuesearch/internal/model"
)

func doc(id int64, field string, tokens ...string) *model.Document {
	d := model.NewDocument()
	d.ID = id
	d.Tokens[field] = tokens
	return d
}

func TestAddAndLookup(t *testing.T) {
	idx := New()
	idx.Add(doc(1, "title", "castle_NN", "tubingen_NNP"))
	idx.Add(doc(2, "title", "castle_NN"))
	idx.Add(doc(3, "body", "castle_NN"))

	if got := idx.Lookup("title", "castle_NN"); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("unexpected postings %v", got)
	}
	if got := idx.Lookup("body", "castle_NN"); !reflect.DeepEqual(got, []int64{3}) {
		t.Fatalf("unexpected postings %v", got)
	}
	if got := idx.Lookup("title", "absent_NN"); got != nil {
		t.Fatalf("expected nil postings, got %v", got)
	}
	if got := idx.Lookup("unknown_field", "castle_NN"); got != nil {
		t.Fatalf("expected nil postings for unknown field, got %v", got)
	}
}

func TestAddDeduplicatesWithinDocument(t *testing.T) {
	idx := New()
	idx.Add(doc(7, "body", "castle_NN", "castle_NN", "castle_NN"))

	if got := idx.Lookup("body", "castle_NN"); !reflect.DeepEqual(got, []int64{7}) {
		t.Fatalf("expected single posting, got %v", got)
	}
}

func TestCandidatesUnion(t *testing.T) {
	idx := New()
	idx.Add(doc(1, "title", "castle_NN"))
	idx.Add(doc(2, "title", "museum_NN"))
	idx.Add(doc(3, "title", "castle_NN", "museum_NN"))

	got := idx.Candidates("title", []string{"castle_NN", "museum_NN"})
	if !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Fatalf("unexpected candidates %v", got)
	}
}

func TestDocIDsTrackInsertionOrder(t *testing.T) {
	idx := New()
	idx.Add(doc(4, "title", "a_NN"))
	idx.Add(doc(9, "title", "b_NN"))

	if !reflect.DeepEqual(idx.DocIDs, []int64{4, 9}) {
		t.Fatalf("unexpected doc ids %v", idx.DocIDs)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx := New()
	idx.Add(doc(1, "title", "castle_NN"))
	idx.Add(doc(2, "body", "museum_NN"))

	path := filepath.Join(t.TempDir(), "index.bin")
	if err := Save(path, idx); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !reflect.DeepEqual(loaded.DocIDs, idx.DocIDs) {
		t.Fatalf("doc ids mismatch: %v vs %v", loaded.DocIDs, idx.DocIDs)
	}
	if got := loaded.Lookup("title", "castle_NN"); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("postings lost in round trip: %v", got)
	}
}
