package risk

import (
	"errors"
	"fmt"

	"github.com/BradenHooton/riskgate/internal/anomaly"
	"github.com/BradenHooton/riskgate/internal/models"
)

// Scorer produces a normality score for a feature vector together with the
// thresholds it should be judged against.
type Scorer interface {
	Score(vec models.FeatureVector) (float64, anomaly.Thresholds, error)
}

// Engine combines the scorer and classifier.
type Engine struct {
	scorer     Scorer
	classifier *Classifier
}

func NewEngine(scorer Scorer, classifier *Classifier) *Engine {
	return &Engine{scorer: scorer, classifier: classifier}
}

func (e *Engine) Classifier() *Classifier { return e.classifier }

// Evaluate scores vec and classifies it. A missing model falls back to the
// rule-based classifier; an incomplete vector is returned as an error.
func (e *Engine) Evaluate(vec models.FeatureVector) (models.Verdict, error) {
	score, th, err := e.scorer.Score(vec)
	switch {
	case err == nil:
		return e.classifier.Classify(score, vec, th), nil
	case errors.Is(err, anomaly.ErrModelUnavailable):
		if e.classifier.HardOverride(vec) {
			return e.classifier.Classify(0, vec, anomaly.DefaultThresholds()), nil
		}
		return e.classifier.Fallback(vec), nil
	default:
		return models.Verdict{}, fmt.Errorf("score login attempt: %w", err)
	}
}
