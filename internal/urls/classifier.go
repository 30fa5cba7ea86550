package urls

import (
	"log/slog"
	"math"

	"tuesearch/internal/artifact"
)

// classifierVersion is the supported schema version of the classifier
// artifact.
const classifierVersion = 1

// Classifier is the black-box URL relevance model. Predict returns 1 when
// the URL looks topical, 0 otherwise.
type Classifier interface {
	Predict(u *URL) int
}

// LinearModel is the default classifier: a logistic scorer over URL and
// anchor-text tokens with weights trained offline and shipped as an
// artifact.
type LinearModel struct {
	Bias    float64
	Weights map[string]float64
}

// LoadClassifier reads the trained model from path. A missing or
// unreadable artifact degrades to a zero classifier so the crawl keeps
// running on rule bonuses alone.
func LoadClassifier(path string, logger *slog.Logger) Classifier {
	var m LinearModel
	if err := artifact.Load(path, "url-classifier", classifierVersion, &m); err != nil {
		if logger != nil {
			logger.Warn("url classifier unavailable, scoring on rules only", "path", path, "error", err)
		}
		return zeroClassifier{}
	}
	return &m
}

// Predict applies the logistic scorer to the URL and anchor tokens.
func (m *LinearModel) Predict(u *URL) int {
	z := m.Bias
	for _, tok := range u.URLTokens() {
		z += m.Weights[tok]
	}
	for _, tok := range u.AnchorTextTokens() {
		z += m.Weights[tok]
	}
	if 1.0/(1.0+math.Exp(-z)) >= 0.5 {
		return 1
	}
	return 0
}

type zeroClassifier struct{}

func (zeroClassifier) Predict(*URL) int { return 0 }
