package models

import "time"

type SecurityEventType string

const (
	EventBlocked         SecurityEventType = "blocked"
	EventUnblocked       SecurityEventType = "unblocked"
	EventMonitoringStart SecurityEventType = "monitoring_start"
	EventMonitoringEnd   SecurityEventType = "monitoring_end"
	EventPasswordReset   SecurityEventType = "password_reset"
)

// SecurityEvent is an append-only audit row for account state changes.
type SecurityEvent struct {
	ID        string            `json:"id"`
	AccountID string            `json:"account_id"`
	Type      SecurityEventType `json:"event_type"`
	Actor     Actor             `json:"actor"`
	AdminID   *string           `json:"admin_id,omitempty"`
	Reason    string            `json:"reason"`
	CreatedAt time.Time         `json:"created_at"`
}
