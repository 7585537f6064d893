// Package queue moves audit events through RabbitMQ: the API publishes them
// and the audit consumer stores them in the audit_log table.
package queue

import "time"

// AuditQueue is the durable queue audit events are published to.
const AuditQueue = "audit.events"

// AuditEvent describes one state change. Before and After are JSON
// snapshots of the entity; the side that does not exist is omitted.
type AuditEvent struct {
	Entity     string         `json:"entity"`
	Action     string         `json:"action"`
	UserID     *int64         `json:"user_id,omitempty"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	OccurredAt string         `json:"occurred_at"`
}

// NewAuditEvent stamps an event with the current time.
func NewAuditEvent(entity, action string, userID int64) AuditEvent {
	ev := AuditEvent{
		Entity:     entity,
		Action:     action,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if userID > 0 {
		ev.UserID = &userID
	}
	return ev
}
