package logger

import (
	"context"
	"log/slog"
	"time"
)

// SecurityEvent is a structured record of a login-gate decision or an
// account state change.
type SecurityEvent struct {
	EventType string
	AccountID string
	Username  string
	IPAddress string
	Actor     string
	AdminID   string
	Tier      string
	Action    string
	Reason    string
	Metadata  map[string]string
}

// SecurityLogger writes security events to the application log.
type SecurityLogger struct {
	logger *slog.Logger
}

func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger}
}

// Log writes event at warn when it escalates, info otherwise.
func (sl *SecurityLogger) Log(ctx context.Context, event SecurityEvent, escalated bool) {
	if sl == nil || sl.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	optional := []struct{ key, value string }{
		{"account_id", event.AccountID},
		{"username", SanitizedUsername(event.Username)},
		{"ip_address", event.IPAddress},
		{"actor", event.Actor},
		{"admin_id", event.AdminID},
		{"tier", event.Tier},
		{"action", event.Action},
		{"reason", SanitizeField(event.Reason)},
	}
	for _, kv := range optional {
		if kv.value != "" {
			attrs = append(attrs, slog.String(kv.key, kv.value))
		}
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, SanitizeField(v)))
	}

	level := slog.LevelInfo
	if escalated {
		level = slog.LevelWarn
	}
	sl.logger.LogAttrs(ctx, level, "security", attrs...)
}
