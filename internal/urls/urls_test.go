package urls

import (
	"net/url"
	"testing"

	"tuesearch/internal/config"
	"tuesearch/internal/textproc"
)

func testScorer() *Scorer {
	return &Scorer{
		Rules: config.RelevanceConfig{
			TopicKeyword:      "tubingen",
			BlockedPatterns:   []string{"login", "javascript:"},
			SeedBonusPatterns: []string{"uni-tuebingen.de"},
			MediaExtensions:   []string{".jpg", ".pdf", ".css"},
		},
		Tokenizer: &textproc.Tokenizer{},
	}
}

func TestNormalizeLowercasesAndStripsFragment(t *testing.T) {
	s := testScorer()
	u, err := s.Normalize("HTTPS://Example.COM/Path#section")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if u.URL != "https://example.com/Path" {
		t.Fatalf("unexpected normalized URL %q", u.URL)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	s := testScorer()
	once, err := s.Normalize("https://www.example.com/a?b=c#d")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	twice, err := s.Normalize(once.URL)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if once.URL != twice.URL {
		t.Fatalf("normalization not idempotent: %q vs %q", once.URL, twice.URL)
	}
}

func TestParseResolvesRelativeAgainstBase(t *testing.T) {
	s := testScorer()
	base, _ := url.Parse("https://example.com/dir/page.html")
	u, err := s.Parse("../other", base, "anchor", "", "")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if u.URL != "https://example.com/other" {
		t.Fatalf("unexpected resolved URL %q", u.URL)
	}
}

func TestParseRejectsNonHTTP(t *testing.T) {
	s := testScorer()
	for _, raw := range []string{"mailto:someone@example.com", "ftp://example.com/x", "nonsense://"} {
		if _, err := s.Parse(raw, nil, "", "", ""); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestServerNameStripsWWW(t *testing.T) {
	s := testScorer()
	u, _ := s.Normalize("https://www.uni-tuebingen.de/en/")
	if got := u.ServerName(); got != "uni-tuebingen.de" {
		t.Fatalf("expected uni-tuebingen.de, got %q", got)
	}
}

func TestSuffix(t *testing.T) {
	s := testScorer()
	u, _ := s.Normalize("https://example.com/page")
	if got := u.Suffix(); got != "com" {
		t.Fatalf("expected com, got %q", got)
	}
}

func TestIsHTMLPage(t *testing.T) {
	s := testScorer()
	cases := []struct {
		raw  string
		want bool
	}{
		{"https://example.com/", true},
		{"https://example.com/page.html", true},
		{"https://example.com/image.jpg", false},
		{"https://example.com/doc.pdf", false},
	}
	for _, tc := range cases {
		u, _ := s.Normalize(tc.raw)
		if got := u.IsHTMLPage(); got != tc.want {
			t.Fatalf("IsHTMLPage(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestPriorityNegativeForBlockedAndMedia(t *testing.T) {
	s := testScorer()

	blocked, _ := s.Normalize("https://example.com/login")
	if blocked.Priority() != -1 {
		t.Fatalf("expected -1 for blocked pattern, got %v", blocked.Priority())
	}
	if blocked.IsRelevant() {
		t.Fatalf("blocked URL must not be relevant")
	}

	media, _ := s.Normalize("https://example.com/photo.jpg")
	if media.Priority() != -1 {
		t.Fatalf("expected -1 for media URL, got %v", media.Priority())
	}
}

func TestPriorityRuleBonuses(t *testing.T) {
	s := testScorer()

	plain, _ := s.Normalize("https://example.org/page")
	topical, _ := s.Normalize("https://example.org/en/tubingen-guide")
	if topical.Priority() <= plain.Priority() {
		t.Fatalf("topic URL %v should outrank plain %v", topical.Priority(), plain.Priority())
	}

	com, _ := s.Normalize("https://example.com/page")
	if com.Priority() <= plain.Priority() {
		t.Fatalf(".com URL %v should outrank .org %v", com.Priority(), plain.Priority())
	}
}

func TestPrioritySeedBonusDominates(t *testing.T) {
	s := testScorer()
	seed, _ := s.Normalize("https://uni-tuebingen.de/en/")
	if seed.Priority() < seedBonus {
		t.Fatalf("seed URL priority %v below seed bonus %v", seed.Priority(), float64(seedBonus))
	}
}

func TestPriorityClassifierBonus(t *testing.T) {
	s := testScorer()
	s.Classifier = stubClassifier{result: 1}
	with, _ := s.Normalize("https://example.org/page")

	s2 := testScorer()
	without, _ := s2.Normalize("https://example.org/page")

	if with.Priority()-without.Priority() != mlScore {
		t.Fatalf("expected classifier to add %d, got %v vs %v",
			mlScore, with.Priority(), without.Priority())
	}
}

func TestPriorityMemoized(t *testing.T) {
	s := testScorer()
	u, _ := s.Normalize("https://example.com/page")
	if u.Priority() != u.Priority() {
		t.Fatalf("priority should be stable across calls")
	}
}

type stubClassifier struct{ result int }

func (s stubClassifier) Predict(*URL) int { return s.result }

func TestLinearModelPredict(t *testing.T) {
	s := testScorer()
	m := &LinearModel{
		Bias:    -5,
		Weights: map[string]float64{"tubingen": 10},
	}
	s.Classifier = m

	topical, _ := s.Normalize("https://example.org/tubingen")
	if m.Predict(topical) != 1 {
		t.Fatalf("expected positive prediction for topical URL")
	}

	plain, _ := s.Normalize("https://example.org/other")
	if m.Predict(plain) != 0 {
		t.Fatalf("expected negative prediction for plain URL")
	}
}
