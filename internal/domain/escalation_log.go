package domain

import "time"

// SystemActor is recorded on log entries written by automatic rule firings.
const SystemActor = "system"

// EscalationLog is an immutable audit trail entry. One entry is
// written per rule firing or manual transition, never per action.
type EscalationLog struct {
	ID         string
	TicketID   string
	RuleID     *string
	FromStatus TicketStatus
	ToStatus   TicketStatus
	Reason     string
	Actor      string
	CreatedAt  time.Time
}
