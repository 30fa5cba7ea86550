package textproc

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

var hyperlinkRe = regexp.MustCompile(`https?://\S+|www\.\S+`)

var umlautReplacer = strings.NewReplacer(
	"ä", "a", "ö", "o", "ü", "u", "ß", "s",
	"ã¼", "u", "Ã¼", "u",
)

// Tokenizer turns raw text into the lemma_POS token projection used for
// indexing, ranking, and relevance checks. The same pipeline runs over
// document fields, link context, and queries so that all token streams
// live in one space.
type Tokenizer struct {
	// LongWordThreshold drops tokens whose length reaches it. Zero
	// disables the cutoff.
	LongWordThreshold int
}

// Tokenize lower-cases, unescapes entities, strips hyperlinks, folds
// German umlauts, then tokenizes and POS-tags the remainder. Stop words,
// punctuation, digits, non-ASCII tokens, and very short or very long
// tokens are dropped. The result is deterministic and never an error:
// unparseable input yields an empty slice.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = html.UnescapeString(text)
	text = hyperlinkRe.ReplaceAllString(text, "")
	text = umlautReplacer.Replace(text)

	doc, err := prose.NewDocument(text)
	if err != nil {
		return []string{}
	}

	out := make([]string, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		word := tok.Text
		if len(word) <= 1 {
			continue
		}
		if t.LongWordThreshold > 0 && len(word) >= t.LongWordThreshold {
			continue
		}
		if isStopWord(word) || !isASCII(word) || isPunctOrDigit(word) {
			continue
		}
		out = append(out, fmt.Sprintf("%s_%s", word, tok.Tag))
	}
	return out
}

// TokenizeURL splits a URL into its lexical components without the POS
// projection, mirroring the plain tokenization applied to URLs.
func (t *Tokenizer) TokenizeURL(rawURL string) []string {
	parts := strings.FieldsFunc(strings.ToLower(rawURL), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func isPunctOrDigit(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return !hasLetter
}
