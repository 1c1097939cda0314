package models

import "time"

// AttemptStatus is the credential outcome of a login attempt.
type AttemptStatus string

const (
	AttemptSuccess  AttemptStatus = "success"
	AttemptFailed   AttemptStatus = "failed"
	AttemptRejected AttemptStatus = "rejected" // refused before the password was checked
)

// AttemptOutcome is what the gate did with the attempt.
type AttemptOutcome string

const (
	OutcomeNormal AttemptOutcome = "normal"
	OutcomeWarn   AttemptOutcome = "warn"
	OutcomeDelay  AttemptOutcome = "delay"
	OutcomeBlock  AttemptOutcome = "block"
)

// LoginAttempt is the persisted record of a single login attempt
type LoginAttempt struct {
	ID            string
	AccountID     *string // nil when the username did not resolve
	Username      string
	IPAddress     string
	UserAgent     string
	Location      string
	Country       string
	City          string
	Device        string
	OS            string
	Browser       string
	Features      FeatureVector
	Status        AttemptStatus
	Outcome       AttemptOutcome
	Score         *float64
	Tier          *RiskTier
	Message       string
	FailureReason *string
	AttemptNumber int // failure ordinal within the brute-force window, 0 for non-failures
	CreatedAt     time.Time
}
