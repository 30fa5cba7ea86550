package textproc

import (
	"github.com/pemistahl/lingua-go"
)

// confidenceFloor is the minimum confidence for a language to count as
// "detected" when deciding between the single and multi thresholds.
const confidenceFloor = 0.10

// EnglishDetector classifies whether text contains English content.
// Threshold applies when one language dominates; MultiThreshold is the
// margin over the uniform baseline when several languages are detected.
type EnglishDetector struct {
	Threshold      float64
	MultiThreshold float64

	detector lingua.LanguageDetector
}

// NewEnglishDetector builds a detector over the languages that actually
// occur in the crawl's region of the web.
func NewEnglishDetector(threshold, multiThreshold float64) *EnglishDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English,
			lingua.German,
			lingua.French,
			lingua.Spanish,
			lingua.Italian,
			lingua.Dutch,
		).
		Build()
	return &EnglishDetector{
		Threshold:      threshold,
		MultiThreshold: multiThreshold,
		detector:       detector,
	}
}

// IsEnglish reports whether the text is confidently English. Empty or
// undetectable text is not English.
func (d *EnglishDetector) IsEnglish(text string) bool {
	if text == "" {
		return false
	}

	values := d.detector.ComputeLanguageConfidenceValues(text)
	detected := 0
	english := -1.0
	for _, v := range values {
		if v.Value() >= confidenceFloor {
			detected++
		}
		if v.Language() == lingua.English {
			english = v.Value()
		}
	}
	if english < 0 {
		return false
	}
	if detected > 1 {
		return english >= 1.0/float64(detected)+d.MultiThreshold
	}
	return english >= d.Threshold
}
