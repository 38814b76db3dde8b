package dto

import (
	"time"

	"github.com/spec-kit/escalation-engine/internal/domain"
)

// TransitionRequest payload.
type TransitionRequest struct {
	TargetStatus domain.TicketStatus `json:"target_status"`
	Reason       string              `json:"reason"`
}

// TicketResponse is the engine's view of a ticket.
type TicketResponse struct {
	ID              string                `json:"id"`
	Number          int64                 `json:"number"`
	Title           string                `json:"title"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	UnitID          *string               `json:"unit_id"`
	AssigneeID      *string               `json:"assignee_id"`
	ReviewFlag      bool                  `json:"review_flag"`
	SLADeadline     time.Time             `json:"sla_deadline"`
	FirstResponseAt *time.Time            `json:"first_response_at"`
	ResolvedAt      *time.Time            `json:"resolved_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Version         int64                 `json:"version"`
}

// EscalationLogResponse is one audit trail entry.
type EscalationLogResponse struct {
	ID         string              `json:"id"`
	TicketID   string              `json:"ticket_id"`
	RuleID     *string             `json:"rule_id"`
	FromStatus domain.TicketStatus `json:"from_status"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	Reason     string              `json:"reason"`
	Actor      string              `json:"actor"`
	CreatedAt  time.Time           `json:"created_at"`
}

// FromTicket maps a domain ticket.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		Number:          t.Number,
		Title:           t.Title,
		Status:          t.Status,
		Priority:        t.Priority,
		UnitID:          t.UnitID,
		AssigneeID:      t.AssigneeID,
		ReviewFlag:      t.ReviewFlag,
		SLADeadline:     t.SLADeadline,
		FirstResponseAt: t.FirstResponseAt,
		ResolvedAt:      t.ResolvedAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		Version:         t.Version,
	}
}

// FromLogEntry maps a domain log entry.
func FromLogEntry(entry domain.EscalationLog) EscalationLogResponse {
	return EscalationLogResponse{
		ID:         entry.ID,
		TicketID:   entry.TicketID,
		RuleID:     entry.RuleID,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		Reason:     entry.Reason,
		Actor:      entry.Actor,
		CreatedAt:  entry.CreatedAt,
	}
}
