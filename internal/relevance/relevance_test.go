package relevance

import (
	"testing"

	"tuesearch/internal/config"
	"tuesearch/internal/model"
	"tuesearch/internal/textproc"
	"tuesearch/internal/urls"
)

func testRules() config.RelevanceConfig {
	return config.RelevanceConfig{
		TopicKeyword:          "tubingen",
		TopicVariants:         []string{"tubingen", "tuebingen"},
		BlockedPatterns:       []string{"login"},
		AlwaysKeep:            []string{"tuebingen.de"},
		EnglishThreshold:      0.75,
		EnglishMultiThreshold: 0.1,
	}
}

func testURL(t *testing.T, raw string, rules config.RelevanceConfig) *urls.URL {
	t.Helper()
	s := &urls.Scorer{Rules: rules, Tokenizer: &textproc.Tokenizer{}}
	u, err := s.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize(%q): %v", raw, err)
	}
	return u
}

func englishTopicalDoc() *model.Document {
	doc := model.NewDocument()
	doc.HTML = `<html lang="en"><body>Welcome to Tubingen, a university town.</body></html>`
	doc.Text["body"] = "Welcome to Tubingen, a university town."
	doc.Tokens["body"] = []string{"welcome_NN", "tubingen_NNP", "university_NN", "town_NN"}
	return doc
}

func TestAlwaysKeepBypassesAllChecks(t *testing.T) {
	rules := testRules()
	c := NewDocumentClassifier(rules)

	// Empty document, no English, no topic: kept purely by URL.
	doc := model.NewDocument()
	u := testURL(t, "https://www.tuebingen.de/rathaus", rules)
	if !c.IsRelevant(u, doc) {
		t.Fatalf("always-keep URL should be relevant regardless of content")
	}
}

func TestBlockedPatternRejects(t *testing.T) {
	rules := testRules()
	c := NewDocumentClassifier(rules)

	u := testURL(t, "https://example.com/login", rules)
	if c.IsRelevant(u, englishTopicalDoc()) {
		t.Fatalf("blocked URL should never be relevant")
	}
}

func TestEnglishTopicalDocumentIsRelevant(t *testing.T) {
	rules := testRules()
	c := NewDocumentClassifier(rules)

	u := testURL(t, "https://example.com/page", rules)
	if !c.IsRelevant(u, englishTopicalDoc()) {
		t.Fatalf("english topical document should be relevant")
	}
}

func TestTopicMissingRejects(t *testing.T) {
	rules := testRules()
	c := NewDocumentClassifier(rules)

	doc := model.NewDocument()
	doc.HTML = `<html lang="en"><body>A page about something else entirely.</body></html>`
	doc.Text["body"] = "A page about something else entirely."
	doc.Tokens["body"] = []string{"page_NN", "something_NN", "else_RB"}

	u := testURL(t, "https://example.com/page", rules)
	if c.IsRelevant(u, doc) {
		t.Fatalf("document without topic should not be relevant")
	}
}

func TestTopicVariantInTokenField(t *testing.T) {
	rules := testRules()
	c := NewDocumentClassifier(rules)

	doc := model.NewDocument()
	doc.HTML = `<html lang="en"><body>irrelevant</body></html>`
	doc.Tokens["h1"] = []string{"tuebingen_NNP"}

	u := testURL(t, "https://example.com/page", rules)
	if !c.IsRelevant(u, doc) {
		t.Fatalf("topic variant in token field should make document relevant")
	}
}

func TestTopicVariantInRawHTMLFallback(t *testing.T) {
	rules := testRules()
	c := NewDocumentClassifier(rules)

	doc := model.NewDocument()
	doc.HTML = `<html lang="en"><body><img alt="Tuebingen skyline"></body></html>`

	u := testURL(t, "https://example.com/page", rules)
	if !c.IsRelevant(u, doc) {
		t.Fatalf("topic variant in raw HTML should make document relevant")
	}
}

func TestHasLangEn(t *testing.T) {
	cases := []struct {
		html string
		want bool
	}{
		{`<html lang="en"><body></body></html>`, true},
		{`<html lang="en-US"><body></body></html>`, true},
		{`<html lang="de"><body></body></html>`, false},
		{`<html><body></body></html>`, false},
	}
	for _, tc := range cases {
		if got := hasLangEn(tc.html); got != tc.want {
			t.Fatalf("hasLangEn(%q) = %v, want %v", tc.html, got, tc.want)
		}
	}
}
