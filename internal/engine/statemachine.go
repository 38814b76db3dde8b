package engine

import (
	"fmt"
	"time"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/pkg/util"
)

// allowedTransitions is the authoritative transition table. It is
// enforced for both manual staff actions and automatic rule firings;
// CLOSED is terminal.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusEscalated, domain.TicketStatusResolved},
	domain.TicketStatusInProgress: {domain.TicketStatusEscalated, domain.TicketStatusResolved},
	domain.TicketStatusEscalated:  {domain.TicketStatusInProgress, domain.TicketStatusResolved},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {},
}

// CanTransition reports whether the move is allowed.
func CanTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transition applies a status change and its side effects to the
// ticket in place. The caller is responsible for persisting the result.
func Transition(t *domain.Ticket, target domain.TicketStatus, now time.Time) error {
	if !CanTransition(t.Status, target) {
		return fmt.Errorf("%w: %s -> %s", util.ErrInvalidTransition, t.Status, target)
	}

	from := t.Status
	t.Status = target

	switch target {
	case domain.TicketStatusInProgress:
		// Leaving open counts as the first staff touch, so it also
		// resets the escalation reference clock.
		if from == domain.TicketStatusOpen && t.FirstResponseAt == nil {
			firstResponse := now
			t.FirstResponseAt = &firstResponse
			t.LastResponseAt = &firstResponse
		}
	case domain.TicketStatusResolved:
		resolvedAt := now
		t.ResolvedAt = &resolvedAt
	case domain.TicketStatusEscalated:
		escalatedAt := now
		t.LastEscalationAt = &escalatedAt
	}
	return nil
}
