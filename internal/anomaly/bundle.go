package anomaly

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	modelFile  = "model.json"
	scalerFile = "scaler.json"
	statsFile  = "stats.json"
)

var (
	// ErrModelUnavailable means the bundle is missing or unreadable. Callers
	// fall back to rule-based classification.
	ErrModelUnavailable = errors.New("anomaly model unavailable")

	// ErrIncompleteFeatures means a vector lacks a feature the model needs.
	ErrIncompleteFeatures = errors.New("feature vector incomplete")

	errInvalidForest = errors.New("invalid forest")
)

// Default thresholds used when stats.json omits them.
const (
	DefaultLowMin    = 0.15
	DefaultMediumMin = 0.05
	DefaultHighMin   = -0.05
)

// Thresholds are the percentile cut points of the training scores, ordered
// LowMin >= MediumMin >= HighMin.
type Thresholds struct {
	LowMin    float64 `json:"low_min"`    // P75
	MediumMin float64 `json:"medium_min"` // P50
	HighMin   float64 `json:"high_min"`   // P25
}

func DefaultThresholds() Thresholds {
	return Thresholds{LowMin: DefaultLowMin, MediumMin: DefaultMediumMin, HighMin: DefaultHighMin}
}

// Stats summarizes the training score distribution.
type Stats struct {
	ScoreMin    float64  `json:"score_min"`
	ScoreMax    float64  `json:"score_max"`
	LowMin      *float64 `json:"threshold_low_min,omitempty"`
	MediumMin   *float64 `json:"threshold_medium_min,omitempty"`
	HighMin     *float64 `json:"threshold_high_min,omitempty"`
	SampleCount int      `json:"sample_count"`
}

// Thresholds returns the stored cut points, filling gaps with defaults.
func (s Stats) Thresholds() Thresholds {
	t := DefaultThresholds()
	if s.LowMin != nil {
		t.LowMin = *s.LowMin
	}
	if s.MediumMin != nil {
		t.MediumMin = *s.MediumMin
	}
	if s.HighMin != nil {
		t.HighMin = *s.HighMin
	}
	return t
}

type modelDocument struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	FeatureNames []string  `json:"feature_names"`
	Forest       *Forest   `json:"forest"`
}

// Bundle is a loaded model artifact: forest, normalizer and stats.
type Bundle struct {
	Version      string
	TrainedAt    time.Time
	FeatureNames []string
	Forest       *Forest
	Scaler       *StandardScaler
	Stats        Stats
}

// LoadBundle reads a bundle from dir. Every failure wraps ErrModelUnavailable.
func LoadBundle(dir string) (*Bundle, error) {
	var doc modelDocument
	if err := readJSON(filepath.Join(dir, modelFile), &doc); err != nil {
		return nil, err
	}
	var scaler StandardScaler
	if err := readJSON(filepath.Join(dir, scalerFile), &scaler); err != nil {
		return nil, err
	}
	var stats Stats
	if err := readJSON(filepath.Join(dir, statsFile), &stats); err != nil {
		return nil, err
	}

	b := &Bundle{
		Version:      doc.Version,
		TrainedAt:    doc.TrainedAt,
		FeatureNames: doc.FeatureNames,
		Forest:       doc.Forest,
		Scaler:       &scaler,
		Stats:        stats,
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, dir, err)
	}
	return b, nil
}

func (b *Bundle) validate() error {
	if b.Forest == nil {
		return errors.New("model has no forest")
	}
	if err := b.Forest.validate(); err != nil {
		return err
	}
	width := len(b.FeatureNames)
	if width == 0 || b.Forest.NumFeatures != width {
		return fmt.Errorf("forest expects %d features, model lists %d", b.Forest.NumFeatures, width)
	}
	if len(b.Scaler.Mean) != width || len(b.Scaler.Scale) != width {
		return fmt.Errorf("scaler width does not match %d features", width)
	}
	for _, s := range b.Scaler.Scale {
		if s == 0 {
			return errors.New("scaler has a zero scale")
		}
	}
	return nil
}

// Save writes the bundle into dir, creating it if needed.
func (b *Bundle) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}
	doc := modelDocument{
		Version:      b.Version,
		TrainedAt:    b.TrainedAt,
		FeatureNames: b.FeatureNames,
		Forest:       b.Forest,
	}
	if err := writeJSON(filepath.Join(dir, modelFile), doc); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, scalerFile), b.Scaler); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, statsFile), b.Stats)
}

// project orders the vector by the bundle's feature names.
func (b *Bundle) project(get func(string) (float64, bool)) ([]float64, error) {
	x := make([]float64, len(b.FeatureNames))
	for i, name := range b.FeatureNames {
		v, ok := get(name)
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrIncompleteFeatures, name)
		}
		if isNaNOrInf(v) {
			return nil, fmt.Errorf("%w: %q is not finite", ErrIncompleteFeatures, name)
		}
		x[i] = v
	}
	return x, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrModelUnavailable, filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
