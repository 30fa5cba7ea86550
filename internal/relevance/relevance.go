// Package relevance decides whether a crawled document belongs in the
// corpus. URL-level relevance lives with the URL scorer; this package
// gates documents on language and topic.
package relevance

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tuesearch/internal/config"
	"tuesearch/internal/model"
	"tuesearch/internal/textproc"
	"tuesearch/internal/urls"
)

// DocumentClassifier classifies crawled documents. A document is relevant
// iff its URL has no blocked pattern, it contains English content, and a
// configured spelling variant of the topic appears in any token field or
// in the raw text. URLs on the always-keep list bypass all checks.
type DocumentClassifier struct {
	Rules   config.RelevanceConfig
	English *textproc.EnglishDetector
}

// NewDocumentClassifier wires the classifier from configuration.
func NewDocumentClassifier(rules config.RelevanceConfig) *DocumentClassifier {
	return &DocumentClassifier{
		Rules:   rules,
		English: textproc.NewEnglishDetector(rules.EnglishThreshold, rules.EnglishMultiThreshold),
	}
}

// IsRelevant classifies one document against its source URL.
func (c *DocumentClassifier) IsRelevant(u *urls.URL, doc *model.Document) bool {
	for _, keep := range c.Rules.AlwaysKeep {
		if keep != "" && strings.Contains(u.URL, keep) {
			return true
		}
	}

	if u.ContainsBlockedPattern() {
		return false
	}

	if !c.containsEnglish(doc) {
		return false
	}

	return c.containsTopic(doc)
}

// containsEnglish accepts a document whose markup declares English or
// whose body, title, or meta description detects as English.
func (c *DocumentClassifier) containsEnglish(doc *model.Document) bool {
	if hasLangEn(doc.HTML) {
		return true
	}
	for _, field := range []string{"body", "title", "meta_description"} {
		if c.English.IsEnglish(doc.Text[field]) {
			return true
		}
	}
	return false
}

// containsTopic looks for a topic variant in any token field, falling
// back to a substring scan of the body text and raw HTML.
func (c *DocumentClassifier) containsTopic(doc *model.Document) bool {
	for _, field := range model.Fields {
		if tokensContainVariant(doc.Tokens[field], c.Rules.TopicVariants) {
			return true
		}
	}
	body := strings.ToLower(doc.Text["body"])
	html := strings.ToLower(doc.HTML)
	for _, variant := range c.Rules.TopicVariants {
		if variant == "" {
			continue
		}
		if strings.Contains(body, variant) || strings.Contains(html, variant) {
			return true
		}
	}
	return false
}

func tokensContainVariant(tokens []string, variants []string) bool {
	for _, variant := range variants {
		if variant == "" {
			continue
		}
		for _, token := range tokens {
			if strings.Contains(token, variant) {
				return true
			}
		}
	}
	return false
}

func hasLangEn(htmlStr string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return false
	}
	lang, ok := doc.Find("html").First().Attr("lang")
	return ok && strings.Contains(strings.ToLower(lang), "en")
}
