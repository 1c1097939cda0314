package models

import "time"

// AccountStatus is the login-gate status of an account.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusBlocked AccountStatus = "blocked"
	AccountStatusDelayed AccountStatus = "delayed"
)

// Actor identifies who triggered a state change.
type Actor string

const (
	ActorSystem Actor = "system"
	ActorAdmin  Actor = "admin"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Account struct {
	ID              string
	Username        string
	PasswordHash    string
	Role            string // "user" or "admin"
	Status          AccountStatus
	BlockedAt       *time.Time
	BlockedReason   *string
	BlockedBy       *Actor
	Monitored       bool
	MonitoringStart *time.Time
	MonitoringEnd   *time.Time
	LastLoginAt     *time.Time
	LastLoginIP     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Account) IsBlocked() bool { return a.Status == AccountStatusBlocked }

// Block moves the account to blocked, recording who did it and why.
func (a *Account) Block(at time.Time, reason string, by Actor) {
	a.Status = AccountStatusBlocked
	a.BlockedAt = &at
	a.BlockedReason = &reason
	a.BlockedBy = &by
}

// Unblock returns the account to active and clears block metadata.
func (a *Account) Unblock() {
	a.Status = AccountStatusActive
	a.BlockedAt = nil
	a.BlockedReason = nil
	a.BlockedBy = nil
}

// StartMonitoring flags the account for admin attention. It reports whether
// the flag was newly set.
func (a *Account) StartMonitoring(at time.Time) bool {
	if a.Monitored {
		return false
	}
	a.Monitored = true
	a.MonitoringStart = &at
	a.MonitoringEnd = nil
	return true
}

// StopMonitoring clears the monitoring flag. It reports whether the account
// was monitored.
func (a *Account) StopMonitoring(at time.Time) bool {
	if !a.Monitored {
		return false
	}
	a.Monitored = false
	a.MonitoringEnd = &at
	return true
}

func (a *Account) RecordLogin(at time.Time, ip string) {
	a.LastLoginAt = &at
	a.LastLoginIP = &ip
}

// AccountStats aggregates account counts for the admin dashboard.
type AccountStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Blocked   int `json:"blocked"`
	Delayed   int `json:"delayed"`
	Monitored int `json:"monitored"`
}
