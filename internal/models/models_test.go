package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeatureVector_ValuesFollowFeatureNames(t *testing.T) {
	v := FeatureVector{
		IPScore:         0,
		LocationScore:   1,
		DeviceScore:     0.25,
		OSScore:         0.5,
		BrowserScore:    0,
		LoginHour:       3,
		IPFrequency:     0.69,
		HighRiskCountry: true,
		NightLogin:      true,
		ComboFrequency:  1.1,
	}

	assert.Equal(t, []float64{0, 1, 0.25, 0.5, 0, 3, 0.69, 1, 1, 1.1}, v.Values())

	_, ok := v.Lookup("unknown_feature")
	assert.False(t, ok)
}

func TestDelayedLogin_RemainingRoundsUp(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	d := &DelayedLogin{StartedAt: start, EndsAt: start.Add(60 * time.Second)}

	assert.Equal(t, 60, d.Remaining(start))
	assert.Equal(t, 30, d.Remaining(start.Add(29500*time.Millisecond)))
	assert.Equal(t, 0, d.Remaining(start.Add(60*time.Second)))
	assert.Equal(t, 0, d.Remaining(start.Add(2*time.Minute)))
}

func TestAccount_MonitoringTransitions(t *testing.T) {
	now := time.Now()
	a := &Account{Status: AccountStatusActive}

	assert.True(t, a.StartMonitoring(now))
	assert.False(t, a.StartMonitoring(now.Add(time.Minute)), "already monitored")
	assert.Equal(t, now, *a.MonitoringStart)

	assert.True(t, a.StopMonitoring(now.Add(time.Hour)))
	assert.False(t, a.StopMonitoring(now.Add(2*time.Hour)))
	assert.False(t, a.Monitored)
}

func TestNewDetection_ReviewStatus(t *testing.T) {
	now := time.Now()

	high := NewDetection("acc", "att", Verdict{Tier: TierHigh, Action: ActionDelay, AdminRequired: true}, now)
	assert.Equal(t, ReviewUnreviewed, high.ReviewStatus)

	medium := NewDetection("acc", "att", Verdict{Tier: TierMedium, Action: ActionWarn}, now)
	assert.Equal(t, ReviewReviewed, medium.ReviewStatus)
}

func TestAction_Outcome(t *testing.T) {
	assert.Equal(t, OutcomeNormal, ActionAllow.Outcome())
	assert.Equal(t, OutcomeWarn, ActionWarn.Outcome())
	assert.Equal(t, OutcomeDelay, ActionDelay.Outcome())
	assert.Equal(t, OutcomeBlock, ActionBlock.Outcome())
}
