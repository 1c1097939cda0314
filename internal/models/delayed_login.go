package models

import "time"

type DelayStatus string

const (
	DelayWaiting   DelayStatus = "waiting"
	DelayCompleted DelayStatus = "completed"
	DelayCancelled DelayStatus = "cancelled"
	DelayExpired   DelayStatus = "expired"
)

// DelayedLogin is a time-boxed hold on an account's login.
type DelayedLogin struct {
	ID             string
	AccountID      string
	LoginAttemptID string
	DelaySeconds   int
	StartedAt      time.Time
	EndsAt         time.Time
	Status         DelayStatus
	IPAddress      string
	UserAgent      string
	ResolvedAt     *time.Time

	// PasswordVerified is set when the delayed attempt presented the correct
	// password. Only such delays can be exchanged for a session.
	PasswordVerified bool
	ClaimedAt        *time.Time
}

// Remaining returns the whole seconds left at now, rounded up.
func (d *DelayedLogin) Remaining(now time.Time) int {
	left := d.EndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	secs := int(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs
}
