package events

import (
	"context"
	"time"
)

// Security event types emitted by the auth and admin flows.
const (
	TypeSessionBreach = "session.breach"
	TypeLogin         = "auth.login"
	TypeRegister      = "auth.register"
	TypeLogout        = "auth.logout"
	TypeRoleChanged   = "user.role_changed"
	TypeAdminAction   = "admin.action"
)

// Event is a security-relevant fact keyed by user.
type Event struct {
	Type       string            `json:"type"`
	UserID     string            `json:"userId"`
	OccurredAt time.Time         `json:"occurredAt"`
	RequestID  string            `json:"requestId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers events to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
