// Package extract turns raw HTML into the structured Document fields and
// harvests outbound links with their anchor context.
package extract

import (
	"net/url"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"tuesearch/internal/model"
	"tuesearch/internal/textproc"
	"tuesearch/internal/urls"
)

// Extractor builds Documents from HTML. It never fails: parse errors
// produce an empty Document so the job still counts as crawled.
type Extractor struct {
	Tokenizer *textproc.Tokenizer
	Scorer    *urls.Scorer

	// SurroundingTextLength bounds the context window captured around
	// each anchor, in runes on either side.
	SurroundingTextLength int
}

// Extract produces a Document with humanized per-field text and token
// lists for every field in model.Fields, plus a Markdown rendition.
func (e *Extractor) Extract(htmlStr string) *model.Document {
	doc := model.NewDocument()
	doc.HTML = htmlStr

	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return doc
	}

	setField := func(name, raw string) {
		text := textproc.Humanize(raw)
		doc.Text[name] = text
		doc.Tokens[name] = e.Tokenizer.Tokenize(text)
	}

	setField("title", parsed.Find("title").First().Text())
	setField("meta_description", parsed.Find("meta[name=description]").AttrOr("content", ""))
	setField("meta_keywords", parsed.Find("meta[name=keywords]").AttrOr("content", ""))
	setField("meta_author", parsed.Find("meta[name=author]").AttrOr("content", ""))

	for _, h := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		parts := make([]string, 0, 4)
		parsed.Find(h).Each(func(_ int, sel *goquery.Selection) {
			parts = append(parts, strings.TrimSpace(sel.Text()))
		})
		setField(h, strings.Join(parts, " "))
	}

	setField("body", parsed.Find("body").Text())

	if md, err := htmlmd.NewConverter("", true, nil).ConvertString(htmlStr); err == nil {
		doc.Markdown = md
	}

	return doc
}

// HarvestLinks extracts every anchor of the page as a URL value with its
// anchor text, title attribute, and the body text surrounding the anchor.
// Unparseable hrefs are skipped.
func (e *Extractor) HarvestLinks(htmlStr, pageURL string) []*urls.URL {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	bodyText := textproc.Humanize(parsed.Find("body").Text())

	links := make([]*urls.URL, 0)
	parsed.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		anchor := strings.TrimSpace(sel.Text())
		link, err := e.Scorer.Parse(href, base, anchor, e.surroundingText(bodyText, anchor), sel.AttrOr("title", ""))
		if err != nil {
			return
		}
		links = append(links, link)
	})
	return links
}

// surroundingText returns a window of body text around the first
// occurrence of the anchor text, empty when the anchor does not occur.
// The window is measured in runes so multi-byte text gets the same
// amount of context as ASCII.
func (e *Extractor) surroundingText(bodyText, anchor string) string {
	if anchor == "" || e.SurroundingTextLength <= 0 {
		return ""
	}
	idx := strings.Index(bodyText, anchor)
	if idx < 0 {
		return ""
	}
	before := []rune(bodyText[:idx])
	after := []rune(bodyText[idx+len(anchor):])

	start := len(before) - e.SurroundingTextLength
	if start < 0 {
		start = 0
	}
	end := e.SurroundingTextLength
	if end > len(after) {
		end = len(after)
	}
	return string(before[start:]) + anchor + string(after[:end])
}
