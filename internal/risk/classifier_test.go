package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/riskgate/internal/anomaly"
	"github.com/BradenHooton/riskgate/internal/models"
)

var testThresholds = anomaly.Thresholds{LowMin: 0.15, MediumMin: 0.05, HighMin: -0.05}

// overrideVector satisfies every hard-rule condition.
func overrideVector() models.FeatureVector {
	return models.FeatureVector{
		LocationScore:   1,
		HighRiskCountry: true,
		NightLogin:      true,
		LoginHour:       2,
		IPFrequency:     Frequency(0),
		ComboFrequency:  Frequency(0),
	}
}

func TestClassify_ThresholdBoundaries(t *testing.T) {
	c := NewClassifier(DefaultPolicy())

	tests := []struct {
		name   string
		score  float64
		tier   models.RiskTier
		action models.Action
	}{
		{"above P75", 0.20, models.TierLow, models.ActionAllow},
		{"exactly P75", 0.15, models.TierLow, models.ActionAllow},
		{"just below P75", math.Nextafter(0.15, 0), models.TierMedium, models.ActionWarn},
		{"exactly P50", 0.05, models.TierMedium, models.ActionWarn},
		{"just below P50", math.Nextafter(0.05, 0), models.TierHigh, models.ActionDelay},
		{"exactly P25", -0.05, models.TierHigh, models.ActionDelay},
		{"just below P25", math.Nextafter(-0.05, -1), models.TierCritical, models.ActionBlock},
		{"far below", -0.4, models.TierCritical, models.ActionBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.score, models.FeatureVector{IPFrequency: Frequency(5)}, testThresholds)
			assert.Equal(t, tt.tier, v.Tier)
			assert.Equal(t, tt.action, v.Action)
			assert.Equal(t, tt.score, v.Score)
			assert.Equal(t, models.SourceModel, v.Source)
		})
	}
}

func TestClassify_HardOverrideBeatsScore(t *testing.T) {
	c := NewClassifier(DefaultPolicy())

	for _, score := range []float64{0.90, 0.20, 0} {
		v := c.Classify(score, overrideVector(), testThresholds)
		assert.Equal(t, models.TierCritical, v.Tier)
		assert.Equal(t, models.ActionBlock, v.Action)
		assert.True(t, v.AdminRequired)
		assert.True(t, v.AutoBlock)
		assert.Equal(t, models.SourceOverride, v.Source)
	}
}

func TestClassify_HardOverrideNeedsEveryCondition(t *testing.T) {
	c := NewClassifier(DefaultPolicy())

	knockouts := map[string]func(*models.FeatureVector){
		"location resolved": func(v *models.FeatureVector) { v.LocationScore = 0 },
		"safe country":      func(v *models.FeatureVector) { v.HighRiskCountry = false },
		"daytime":           func(v *models.FeatureVector) { v.NightLogin = false },
		"known origin":      func(v *models.FeatureVector) { v.IPFrequency = Frequency(1) },
	}
	for name, knock := range knockouts {
		t.Run(name, func(t *testing.T) {
			vec := overrideVector()
			knock(&vec)
			v := c.Classify(0.90, vec, testThresholds)
			assert.Equal(t, models.TierLow, v.Tier)
			assert.Equal(t, models.ActionAllow, v.Action)
		})
	}
}

func TestClassify_HardOverrideDisabled(t *testing.T) {
	p := DefaultPolicy()
	p.HardRule.Enabled = false
	v := NewClassifier(p).Classify(0.90, overrideVector(), testThresholds)
	assert.Equal(t, models.TierLow, v.Tier)
}

func TestVerdict_ActionInvariants(t *testing.T) {
	c := NewClassifier(DefaultPolicy())
	vec := models.FeatureVector{IPFrequency: Frequency(4)}

	for score := -0.5; score <= 0.5; score += 0.01 {
		v := c.Classify(score, vec, testThresholds)
		switch v.Action {
		case models.ActionDelay:
			assert.Equal(t, 60, v.DelaySeconds)
			assert.True(t, v.AdminRequired)
		case models.ActionAllow:
			assert.Equal(t, 0, v.DelaySeconds)
			assert.False(t, v.AutoBlock)
		default:
			assert.Equal(t, 0, v.DelaySeconds)
		}
		assert.NotEmpty(t, v.Message)
	}
}

func TestFallback_Tiers(t *testing.T) {
	c := NewClassifier(DefaultPolicy())
	known := Frequency(10)

	tests := []struct {
		name string
		vec  models.FeatureVector
		tier models.RiskTier
	}{
		{"clean desktop", models.FeatureVector{IPFrequency: known}, models.TierLow},
		{"unknown location", models.FeatureVector{LocationScore: 1, IPFrequency: known}, models.TierMedium},
		// 0.1 new origin + 0.1 night
		{"new origin at night", models.FeatureVector{NightLogin: true, IPFrequency: Frequency(0)}, models.TierHigh},
		// 0.1 location + 0.2 country + 0.1 night
		{"risky country at night", models.FeatureVector{LocationScore: 1, HighRiskCountry: true, NightLogin: true, IPFrequency: known}, models.TierCritical},
		{"odd device only", models.FeatureVector{DeviceScore: 1, OSScore: 0.5, IPFrequency: known}, models.TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Fallback(tt.vec)
			assert.Equal(t, tt.tier, v.Tier)
			assert.Equal(t, models.SourceFallback, v.Source)
			assert.Equal(t, fallbackDetail, v.Detail)
		})
	}
}

func TestFallback_NewOriginBaselineIsInclusive(t *testing.T) {
	c := NewClassifier(DefaultPolicy())

	// ln(3): the second sighting of an origin still counts as new.
	assert.InDelta(t, 0.1, c.FallbackScore(models.FeatureVector{IPFrequency: Frequency(1)}), 1e-12)
	assert.InDelta(t, 0.0, c.FallbackScore(models.FeatureVector{IPFrequency: Frequency(2)}), 1e-12)
}

func TestClassifyFailures_Ladder(t *testing.T) {
	c := NewClassifier(DefaultPolicy())

	tests := []struct {
		attempt int
		tier    models.RiskTier
		action  models.Action
	}{
		{1, models.TierLow, models.ActionAllow},
		{2, models.TierLow, models.ActionAllow},
		{3, models.TierMedium, models.ActionWarn},
		{4, models.TierHigh, models.ActionDelay},
		{5, models.TierHigh, models.ActionDelay},
		{6, models.TierCritical, models.ActionBlock},
		{9, models.TierCritical, models.ActionBlock},
	}

	for _, tt := range tests {
		v := c.ClassifyFailures(tt.attempt)
		assert.Equal(t, tt.tier, v.Tier, "attempt %d", tt.attempt)
		assert.Equal(t, tt.action, v.Action, "attempt %d", tt.attempt)
		assert.Equal(t, models.SourceBruteForce, v.Source)
	}

	fifth := c.ClassifyFailures(5)
	assert.Equal(t, 60, fifth.DelaySeconds)
	assert.True(t, fifth.AdminRequired)
	assert.False(t, fifth.AutoBlock)

	sixth := c.ClassifyFailures(6)
	assert.True(t, sixth.AutoBlock)
	assert.Equal(t, 0.5, sixth.Score)
}

type stubScorer struct {
	score float64
	err   error
}

func (s stubScorer) Score(models.FeatureVector) (float64, anomaly.Thresholds, error) {
	return s.score, testThresholds, s.err
}

func TestEngine_Evaluate(t *testing.T) {
	c := NewClassifier(DefaultPolicy())

	v, err := NewEngine(stubScorer{score: 0.20}, c).Evaluate(models.FeatureVector{IPFrequency: Frequency(3)})
	require.NoError(t, err)
	assert.Equal(t, models.TierLow, v.Tier)
	assert.Equal(t, models.ActionAllow, v.Action)

	v, err = NewEngine(stubScorer{score: 0.90}, c).Evaluate(overrideVector())
	require.NoError(t, err)
	assert.Equal(t, models.TierCritical, v.Tier)
	assert.Equal(t, models.ActionBlock, v.Action)
}

func TestEngine_FallsBackWhenModelUnavailable(t *testing.T) {
	engine := NewEngine(stubScorer{err: anomaly.ErrModelUnavailable}, NewClassifier(DefaultPolicy()))

	v, err := engine.Evaluate(models.FeatureVector{LocationScore: 1, IPFrequency: Frequency(10)})
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, v.Source)
	assert.Equal(t, models.TierMedium, v.Tier)

	v, err = engine.Evaluate(overrideVector())
	require.NoError(t, err)
	assert.Equal(t, models.SourceOverride, v.Source)
	assert.Equal(t, models.ActionBlock, v.Action)
}

func TestEngine_IncompleteFeaturesIsFatal(t *testing.T) {
	engine := NewEngine(stubScorer{err: anomaly.ErrIncompleteFeatures}, NewClassifier(DefaultPolicy()))

	_, err := engine.Evaluate(models.FeatureVector{})
	assert.ErrorIs(t, err, anomaly.ErrIncompleteFeatures)
}
