package textproc

import (
	"strings"
	"testing"
)

func TestHumanizeCollapsesWhitespace(t *testing.T) {
	got := Humanize("  Hello\n\t  World \n")
	if got != "Hello World" {
		t.Fatalf("expected %q, got %q", "Hello World", got)
	}
}

func TestHumanizeFoldsAccents(t *testing.T) {
	got := Humanize("Universität Tübingen café")
	if got != "Universitat Tubingen cafe" {
		t.Fatalf("expected folded text, got %q", got)
	}
}

func TestHumanizeEmpty(t *testing.T) {
	if got := Humanize("   \n  "); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	tok := &Tokenizer{}
	out := tok.Tokenize("the castle and a museum")

	for _, token := range out {
		word := token[:strings.Index(token, "_")]
		if word == "the" || word == "and" || word == "a" {
			t.Fatalf("stop word %q survived tokenization: %v", word, out)
		}
	}

	var sawCastle, sawMuseum bool
	for _, token := range out {
		if strings.HasPrefix(token, "castle_") {
			sawCastle = true
		}
		if strings.HasPrefix(token, "museum_") {
			sawMuseum = true
		}
	}
	if !sawCastle || !sawMuseum {
		t.Fatalf("expected castle and museum tokens, got %v", out)
	}
}

func TestTokenizeEmitsTaggedTokens(t *testing.T) {
	tok := &Tokenizer{}
	for _, token := range tok.Tokenize("ancient university town") {
		if !strings.Contains(token, "_") {
			t.Fatalf("token %q missing POS tag suffix", token)
		}
	}
}

func TestTokenizeStripsHyperlinks(t *testing.T) {
	tok := &Tokenizer{}
	out := tok.Tokenize("visit https://example.com/page now")
	for _, token := range out {
		if strings.Contains(token, "example") {
			t.Fatalf("hyperlink survived tokenization: %v", out)
		}
	}
}

func TestTokenizeDropsNonASCIIAndDigits(t *testing.T) {
	tok := &Tokenizer{}
	out := tok.Tokenize("schloß 12345 日本語 bridge")
	for _, token := range out {
		if strings.HasPrefix(token, "12345_") || strings.HasPrefix(token, "日本語_") {
			t.Fatalf("unexpected token in %v", out)
		}
	}
}

func TestTokenizeLongWordThreshold(t *testing.T) {
	tok := &Tokenizer{LongWordThreshold: 10}
	out := tok.Tokenize("short extraordinarily")
	for _, token := range out {
		if strings.HasPrefix(token, "extraordinarily_") {
			t.Fatalf("over-long token survived: %v", out)
		}
	}
}

func TestTokenizeURL(t *testing.T) {
	tok := &Tokenizer{}
	got := tok.TokenizeURL("https://www.Example.com/en/Path-1?q=x")
	want := []string{"https", "www", "example", "com", "en", "path", "1", "q", "x"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestIsStopWord(t *testing.T) {
	if !isStopWord("the") {
		t.Fatalf("expected 'the' to be a stop word")
	}
	if isStopWord("castle") {
		t.Fatalf("did not expect 'castle' to be a stop word")
	}
}
