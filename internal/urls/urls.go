// Package urls holds the URL value object driving the crawl frontier: a
// normalized URL with lazily computed linguistic features and the numeric
// priority derived from them.
package urls

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"

	"tuesearch/internal/config"
	"tuesearch/internal/textproc"
)

// ErrMalformedURL is returned when the input does not parse into an
// absolute http(s) URL.
var ErrMalformedURL = errors.New("malformed url")

// mlScore is added when the classifier predicts the URL relevant.
const mlScore = 30

// seedBonus dominates every other signal so configured seeds are crawled
// first.
const seedBonus = 100

// Scorer parses URLs and derives priorities. It carries the configured
// pattern lists, the shared tokenizer, and the relevance classifier so URL
// values stay cheap to copy around.
type Scorer struct {
	Rules      config.RelevanceConfig
	Tokenizer  *textproc.Tokenizer
	Classifier Classifier
}

// URL wraps one normalized URL plus its link context. Feature accessors
// memoize per instance; a URL is immutable after Parse.
type URL struct {
	URL             string
	AnchorText      string
	SurroundingText string
	TitleText       string

	scorer *Scorer

	serverName       *string
	suffix           *string
	urlTokens        []string
	anchorTokens     []string
	surroundTokens   []string
	titleTokens      []string
	priority         *float64
	blockedPatternOK *bool
}

// Parse normalizes rawURL (resolving it against base when base is non-nil)
// and attaches the given link context. The context strings are humanized
// before storage.
func (s *Scorer) Parse(rawURL string, base *url.URL, anchorText, surroundingText, titleText string) (*URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, ErrMalformedURL
	}
	if base != nil && !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrMalformedURL
	}
	if u.Host == "" {
		return nil, ErrMalformedURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	return &URL{
		URL:             u.String(),
		AnchorText:      textproc.Humanize(anchorText),
		SurroundingText: textproc.Humanize(surroundingText),
		TitleText:       textproc.Humanize(titleText),
		scorer:          s,
	}, nil
}

// Normalize is Parse without link context, for bare URL strings. It is
// idempotent: normalizing an already normalized URL is a no-op.
func (s *Scorer) Normalize(rawURL string) (*URL, error) {
	return s.Parse(rawURL, nil, "", "", "")
}

// ServerName returns the host identity used for the servers table: the
// full host with a leading "www." stripped.
func (u *URL) ServerName() string {
	if u.serverName != nil {
		return *u.serverName
	}
	parsed, err := url.Parse(u.URL)
	name := ""
	if err == nil {
		name = strings.TrimPrefix(parsed.Hostname(), "www.")
	}
	u.serverName = &name
	return name
}

// Suffix returns the public suffix of the host ("com", "de", "co.uk").
func (u *URL) Suffix() string {
	if u.suffix != nil {
		return *u.suffix
	}
	s := ""
	if parsed, err := url.Parse(u.URL); err == nil {
		s, _ = publicsuffix.PublicSuffix(parsed.Hostname())
	}
	u.suffix = &s
	return s
}

// Extension returns the path extension, empty when there is none.
func (u *URL) Extension() string {
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return ""
	}
	return path.Ext(parsed.Path)
}

// IsHTMLPage reports whether the URL does not point at a known media
// file. Unknown extensions count as HTML.
func (u *URL) IsHTMLPage() bool {
	ext := u.Extension()
	if ext == "" {
		return true
	}
	for _, media := range u.scorer.Rules.MediaExtensions {
		if strings.Contains(ext, media) {
			return false
		}
	}
	return true
}

// IsHyperlink reports whether the URL has both a scheme and a host, i.e.
// it can actually be fetched.
func (u *URL) IsHyperlink() bool {
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}

// ContainsBlockedPattern reports whether any configured blocked substring
// occurs in the URL.
func (u *URL) ContainsBlockedPattern() bool {
	if u.blockedPatternOK != nil {
		return *u.blockedPatternOK
	}
	blocked := false
	for _, pattern := range u.scorer.Rules.BlockedPatterns {
		if pattern != "" && strings.Contains(u.URL, pattern) {
			blocked = true
			break
		}
	}
	u.blockedPatternOK = &blocked
	return blocked
}

// URLTokens returns the lexical tokens of the URL itself.
func (u *URL) URLTokens() []string {
	if u.urlTokens == nil {
		u.urlTokens = u.scorer.Tokenizer.TokenizeURL(u.URL)
	}
	return u.urlTokens
}

// AnchorTextTokens returns the tokenized anchor text.
func (u *URL) AnchorTextTokens() []string {
	if u.anchorTokens == nil {
		u.anchorTokens = u.scorer.Tokenizer.Tokenize(u.AnchorText)
	}
	return u.anchorTokens
}

// SurroundingTextTokens returns the tokenized text around the anchor.
func (u *URL) SurroundingTextTokens() []string {
	if u.surroundTokens == nil {
		u.surroundTokens = u.scorer.Tokenizer.Tokenize(u.SurroundingText)
	}
	return u.surroundTokens
}

// TitleTextTokens returns the tokenized link title attribute.
func (u *URL) TitleTextTokens() []string {
	if u.titleTokens == nil {
		u.titleTokens = u.scorer.Tokenizer.Tokenize(u.TitleText)
	}
	return u.titleTokens
}

// Priority computes the frontier priority of the URL. Blocked patterns,
// media links, and non-hyperlinks score -1 and are never crawled. The
// remainder scores the classifier prediction plus rule bonuses for topic
// and English indicators, with a large bonus for configured seeds.
func (u *URL) Priority() float64 {
	if u.priority != nil {
		return *u.priority
	}
	p := u.computePriority()
	u.priority = &p
	return p
}

func (u *URL) computePriority() float64 {
	if u.ContainsBlockedPattern() {
		return -1
	}
	if !u.IsHTMLPage() {
		return -1
	}
	if !u.IsHyperlink() {
		return -1
	}

	score := 1.0
	if u.scorer.Classifier != nil && u.scorer.Classifier.Predict(u) == 1 {
		score += mlScore
	}

	rules := u.scorer.Rules
	if rules.TopicKeyword != "" && strings.Contains(u.URL, rules.TopicKeyword) {
		score += 2
	}
	if strings.Contains(u.URL, "/en/") {
		score++
	}
	if strings.Contains(u.URL, "en.") {
		score++
	}
	if u.Suffix() == "com" {
		score++
	}
	if rules.TopicKeyword != "" && containsKeyword(u.AnchorTextTokens(), rules.TopicKeyword) {
		score++
	}
	if rules.TopicKeyword != "" &&
		(containsKeyword(u.TitleTextTokens(), rules.TopicKeyword) ||
			containsKeyword(u.SurroundingTextTokens(), rules.TopicKeyword)) {
		score++
	}
	for _, seed := range rules.SeedBonusPatterns {
		if seed != "" && strings.Contains(u.URL, seed) {
			score += seedBonus
			break
		}
	}
	return score
}

// IsRelevant reports whether the URL should enter the frontier at all.
func (u *URL) IsRelevant() bool {
	return u.Priority() >= 0
}

func containsKeyword(tokens []string, keyword string) bool {
	for _, t := range tokens {
		if strings.Contains(t, keyword) {
			return true
		}
	}
	return false
}
