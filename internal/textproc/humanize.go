package textproc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Humanize collapses all whitespace runs into single spaces, trims the
// result, and ASCII-folds accented characters so stored text fields are
// stable regardless of the source markup.
func Humanize(text string) string {
	cleaned := strings.ReplaceAll(text, "\n", " ")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	if folded, _, err := transform.String(foldTransformer, cleaned); err == nil {
		cleaned = folded
	}
	return cleaned
}
