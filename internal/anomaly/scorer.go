package anomaly

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/BradenHooton/riskgate/internal/models"
)

// Loader owns the model bundle. The bundle is read from disk on first use
// and kept for the life of the process, including a failed load.
type Loader struct {
	dir    string
	logger *slog.Logger

	once   sync.Once
	bundle *Bundle
	err    error
}

func NewLoader(dir string, logger *slog.Logger) *Loader {
	return &Loader{dir: dir, logger: logger}
}

// NewStaticLoader wraps an already built bundle.
func NewStaticLoader(b *Bundle) *Loader {
	l := &Loader{bundle: b}
	l.once.Do(func() {})
	return l
}

func (l *Loader) Bundle() (*Bundle, error) {
	l.once.Do(func() {
		l.bundle, l.err = LoadBundle(l.dir)
		if l.logger == nil {
			return
		}
		if l.err != nil {
			l.logger.Warn("anomaly model unavailable, using rule-based classification",
				slog.String("model_dir", l.dir),
				slog.Any("error", l.err))
			return
		}
		l.logger.Info("anomaly model loaded",
			slog.String("model_dir", l.dir),
			slog.String("version", l.bundle.Version),
			slog.Int("trees", len(l.bundle.Forest.Trees)))
	})
	return l.bundle, l.err
}

// Scorer turns feature vectors into normality scores.
type Scorer struct {
	loader *Loader
}

func NewScorer(loader *Loader) *Scorer {
	return &Scorer{loader: loader}
}

// Score normalizes vec, evaluates the forest and returns a score where
// larger means more normal, along with the bundle's thresholds.
func (s *Scorer) Score(vec models.FeatureVector) (float64, Thresholds, error) {
	b, err := s.loader.Bundle()
	if err != nil {
		return 0, Thresholds{}, err
	}
	x, err := b.project(vec.Lookup)
	if err != nil {
		return 0, Thresholds{}, err
	}
	z, err := b.Scaler.Transform(x)
	if err != nil {
		return 0, Thresholds{}, err
	}
	return NormalityScore(b.Forest.Outlierness(z)), b.Stats.Thresholds(), nil
}

// Info describes the loaded bundle.
type Info struct {
	Version      string     `json:"version"`
	TrainedAt    time.Time  `json:"trained_at"`
	Trees        int        `json:"trees"`
	MaxSamples   int        `json:"max_samples"`
	FeatureNames []string   `json:"feature_names"`
	SampleCount  int        `json:"sample_count"`
	ScoreMin     float64    `json:"score_min"`
	ScoreMax     float64    `json:"score_max"`
	Thresholds   Thresholds `json:"thresholds"`
}

func (s *Scorer) Info() (*Info, error) {
	b, err := s.loader.Bundle()
	if err != nil {
		return nil, err
	}
	return &Info{
		Version:      b.Version,
		TrainedAt:    b.TrainedAt,
		Trees:        len(b.Forest.Trees),
		MaxSamples:   b.Forest.MaxSamples,
		FeatureNames: b.FeatureNames,
		SampleCount:  b.Stats.SampleCount,
		ScoreMin:     b.Stats.ScoreMin,
		ScoreMax:     b.Stats.ScoreMax,
		Thresholds:   b.Stats.Thresholds(),
	}, nil
}

func isNaNOrInf(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
