package risk

import "github.com/BradenHooton/riskgate/internal/models"

var tierMessages = map[models.RiskTier]string{
	models.TierLow:      "Login successful. The pattern matches your normal history.",
	models.TierMedium:   "Login allowed with a warning. Unusual activity was detected and the account will be monitored.",
	models.TierHigh:     "Login delayed for 1 minute. The account has been placed under admin monitoring.",
	models.TierCritical: "Login blocked due to highly suspicious activity. Contact an administrator.",
}

var tierActions = map[models.RiskTier]models.Action{
	models.TierLow:      models.ActionAllow,
	models.TierMedium:   models.ActionWarn,
	models.TierHigh:     models.ActionDelay,
	models.TierCritical: models.ActionBlock,
}

// newVerdict fills the fields every path derives from the tier alone.
func newVerdict(tier models.RiskTier, score float64, detail string, source models.VerdictSource, delaySeconds int) models.Verdict {
	v := models.Verdict{
		Score:   score,
		Tier:    tier,
		Action:  tierActions[tier],
		Message: tierMessages[tier],
		Detail:  detail,
		Source:  source,
	}
	switch tier {
	case models.TierHigh:
		v.DelaySeconds = delaySeconds
		v.AdminRequired = true
	case models.TierCritical:
		v.AdminRequired = true
		v.AutoBlock = true
	}
	return v
}
