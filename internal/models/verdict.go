package models

// RiskTier is one of four ordered risk levels.
type RiskTier string

const (
	TierLow      RiskTier = "low"
	TierMedium   RiskTier = "medium"
	TierHigh     RiskTier = "high"
	TierCritical RiskTier = "critical"
)

// Action is the automatic response bound to a tier.
type Action string

const (
	ActionAllow Action = "allow"
	ActionWarn  Action = "warn"
	ActionDelay Action = "delay"
	ActionBlock Action = "block"
)

// Outcome is the persisted label of an attempt's action.
func (a Action) Outcome() AttemptOutcome {
	switch a {
	case ActionWarn:
		return OutcomeWarn
	case ActionDelay:
		return OutcomeDelay
	case ActionBlock:
		return OutcomeBlock
	}
	return OutcomeNormal
}

// VerdictSource records which path produced a verdict.
type VerdictSource string

const (
	SourceModel      VerdictSource = "model"
	SourceFallback   VerdictSource = "fallback"
	SourceOverride   VerdictSource = "override"
	SourceBruteForce VerdictSource = "bruteforce"
)

// Verdict is the immutable result of evaluating a login attempt. Score is
// oriented so that higher means more normal.
type Verdict struct {
	Score         float64       `json:"score"`
	Tier          RiskTier      `json:"tier"`
	Action        Action        `json:"action"`
	DelaySeconds  int           `json:"delay_seconds"`
	AdminRequired bool          `json:"admin_required"`
	AutoBlock     bool          `json:"auto_block"`
	Message       string        `json:"message"`
	Detail        string        `json:"detail"`
	Source        VerdictSource `json:"source"`
}

// Escalates reports whether the verdict must be recorded for review.
func (v Verdict) Escalates() bool {
	return v.Tier != TierLow
}
