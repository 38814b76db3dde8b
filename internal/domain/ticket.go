package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusEscalated  TicketStatus = "ESCALATED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

var priorityOrder = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityCritical,
}

// Next returns the next higher priority. The second return value is
// false when the priority is already CRITICAL.
func (p TicketPriority) Next() (TicketPriority, bool) {
	for i, candidate := range priorityOrder {
		if candidate == p && i+1 < len(priorityOrder) {
			return priorityOrder[i+1], true
		}
	}
	return p, false
}

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	for _, candidate := range priorityOrder {
		if candidate == p {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for complaint tickets. The engine never
// creates or deletes tickets; it only transitions and annotates them.
type Ticket struct {
	ID               string
	Number           int64
	Title            string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	UnitID           *string
	AssigneeID       *string
	Category         string
	SubmitterID      string
	SentimentScore   *float64
	ReviewFlag       bool
	SLADeadline      time.Time
	FirstResponseAt  *time.Time
	LastResponseAt   *time.Time
	LastEscalationAt *time.Time
	ResolvedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
}

// ReferenceTime is the timestamp escalation thresholds are measured
// against. A staff response or an escalation resets the clock; other
// edits do not.
func (t *Ticket) ReferenceTime() time.Time {
	ref := t.CreatedAt
	if t.LastResponseAt != nil && t.LastResponseAt.After(ref) {
		ref = *t.LastResponseAt
	}
	if t.LastEscalationAt != nil && t.LastEscalationAt.After(ref) {
		ref = *t.LastEscalationAt
	}
	return ref
}

// Terminal reports whether the ticket is past escalation evaluation.
func (t *Ticket) Terminal() bool {
	return t.Status == TicketStatusResolved || t.Status == TicketStatusClosed
}
