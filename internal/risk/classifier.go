package risk

import (
	"fmt"

	"github.com/BradenHooton/riskgate/internal/anomaly"
	"github.com/BradenHooton/riskgate/internal/models"
)

const fallbackDetail = "rule-based (model unavailable)"

type Classifier struct {
	policy Policy
}

func NewClassifier(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

func (c *Classifier) Policy() Policy { return c.policy }

// HardOverride reports whether vec matches the signature that is blocked
// regardless of score.
func (c *Classifier) HardOverride(vec models.FeatureVector) bool {
	r := c.policy.HardRule
	return r.Enabled &&
		vec.LocationScore == 1 &&
		vec.HighRiskCountry &&
		vec.NightLogin &&
		vec.IPFrequency <= r.MaxOriginFrequency
}

// Classify maps a normality score to a verdict. Each threshold is inclusive
// on its lower bound.
func (c *Classifier) Classify(score float64, vec models.FeatureVector, th anomaly.Thresholds) models.Verdict {
	if c.HardOverride(vec) {
		return newVerdict(models.TierCritical, score,
			"hard rule: unknown location, high-risk country, night login, new origin",
			models.SourceOverride, c.policy.DelaySeconds)
	}

	var tier models.RiskTier
	switch {
	case score >= th.LowMin:
		tier = models.TierLow
	case score >= th.MediumMin:
		tier = models.TierMedium
	case score >= th.HighMin:
		tier = models.TierHigh
	default:
		tier = models.TierCritical
	}
	detail := fmt.Sprintf("score %.4f against thresholds low>=%.4f medium>=%.4f high>=%.4f",
		score, th.LowMin, th.MediumMin, th.HighMin)
	return newVerdict(tier, score, detail, models.SourceModel, c.policy.DelaySeconds)
}

// FallbackScore is the weighted rule sum used without a model. Larger is
// riskier, unlike the model score.
func (c *Classifier) FallbackScore(vec models.FeatureVector) float64 {
	f := c.policy.Fallback
	sum := vec.LocationScore*f.LocationWeight +
		vec.DeviceScore*f.DeviceWeight +
		vec.OSScore*f.OSWeight +
		vec.BrowserScore*f.BrowserWeight
	if vec.HighRiskCountry {
		sum += f.HighRiskCountry
	}
	if vec.NightLogin {
		sum += f.NightLogin
	}
	if vec.IPFrequency <= f.NewOriginFrequency {
		sum += f.NewOrigin
	}
	return sum
}

// Fallback classifies vec with the weighted rule sum.
func (c *Classifier) Fallback(vec models.FeatureVector) models.Verdict {
	f := c.policy.Fallback
	risk := c.FallbackScore(vec)

	var tier models.RiskTier
	switch {
	case risk >= f.BlockAt:
		tier = models.TierCritical
	case risk >= f.DelayAt:
		tier = models.TierHigh
	case risk >= f.WarnAt:
		tier = models.TierMedium
	default:
		tier = models.TierLow
	}
	// Reported with the model's orientation so higher stays more normal.
	return newVerdict(tier, -risk, fallbackDetail, models.SourceFallback, c.policy.DelaySeconds)
}
