package risk

import (
	"fmt"

	"github.com/BradenHooton/riskgate/internal/models"
)

// Fixed scores recorded for brute-force verdicts.
const (
	bruteForceBlockScore  = 0.5
	bruteForceDelayScore  = 0.0
	bruteForceWarnScore   = -0.03
	bruteForceNormalScore = -0.1
)

// ClassifyFailures maps the ordinal of a failed attempt within the window,
// the current failure included, onto the action ladder.
func (c *Classifier) ClassifyFailures(attempt int) models.Verdict {
	b := c.policy.BruteForce

	var (
		tier  models.RiskTier
		score float64
	)
	switch {
	case attempt >= b.BlockAt:
		tier, score = models.TierCritical, bruteForceBlockScore
	case attempt >= b.DelayAt:
		tier, score = models.TierHigh, bruteForceDelayScore
	case attempt >= b.WarnAt:
		tier, score = models.TierMedium, bruteForceWarnScore
	default:
		tier, score = models.TierLow, bruteForceNormalScore
	}

	v := newVerdict(tier, score,
		fmt.Sprintf("brute force: %d failed attempts within %s", attempt, b.Window),
		models.SourceBruteForce, c.policy.DelaySeconds)
	v.Message = failureMessage(tier, attempt, c.policy.DelaySeconds)
	return v
}

func failureMessage(tier models.RiskTier, attempt, delaySeconds int) string {
	switch tier {
	case models.TierCritical:
		return fmt.Sprintf("Account blocked after %d failed login attempts. Contact an administrator.", attempt)
	case models.TierHigh:
		return fmt.Sprintf("Too many failed attempts (%d). Login is delayed for %d seconds.", attempt, delaySeconds)
	case models.TierMedium:
		return fmt.Sprintf("Invalid username or password. Warning: %d failed attempts.", attempt)
	}
	return "Invalid username or password."
}
