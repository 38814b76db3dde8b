package events

import (
	"time"

	"github.com/spec-kit/escalation-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventTicketPriorityBumped EventType = "ticket_priority_bumped"
	EventRuleFired            EventType = "rule_fired"
	EventResponseRecorded     EventType = "response_recorded"
)

// Event represents a domain event emitted by the engine or services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketPriorityBumpedPayload payload.
type TicketPriorityBumpedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
	SLADeadline time.Time             `json:"sla_deadline"`
}

// RuleFiredPayload payload.
type RuleFiredPayload struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Actions  int    `json:"actions"`
}

// ResponseRecordedPayload payload.
type ResponseRecordedPayload struct {
	First       bool      `json:"first"`
	RespondedAt time.Time `json:"responded_at"`
}
