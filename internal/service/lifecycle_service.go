package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/internal/engine"
	"github.com/spec-kit/escalation-engine/internal/events"
	"github.com/spec-kit/escalation-engine/internal/observability"
	"github.com/spec-kit/escalation-engine/internal/repository"
	apperrors "github.com/spec-kit/escalation-engine/pkg/util"
)

// LifecycleService is the staff-facing surface of the engine: manual
// transitions, response recording and audit history. The UI is a thin
// caller of these operations.
type LifecycleService struct {
	tickets    repository.TicketRepository
	logs       repository.EscalationLogRepository
	dispatcher events.Dispatcher
	sla        domain.SLAPolicy
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// LifecycleDependencies bundles collaborators for the service.
type LifecycleDependencies struct {
	TicketRepo repository.TicketRepository
	LogRepo    repository.EscalationLogRepository
	Dispatcher events.Dispatcher
	SLA        domain.SLAPolicy
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	sla := deps.SLA
	if sla == nil {
		sla = domain.DefaultSLAPolicy()
	}
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		logs:       deps.LogRepo,
		dispatcher: deps.Dispatcher,
		sla:        sla,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// ManualTransition applies a staff-initiated status change. The commit
// is version-guarded: a concurrent mutation surfaces as a conflict
// rather than silently overwriting the other writer.
func (s *LifecycleService) ManualTransition(ctx context.Context, ticketID string, target domain.TicketStatus, actorID, reason string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	from := ticket.Status
	now := time.Now()
	if err := engine.Transition(ticket, target, now); err != nil {
		return nil, apperrors.NewInvalidTransition(string(from), string(target))
	}

	entry := &domain.EscalationLog{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		FromStatus: from,
		ToStatus:   target,
		Reason:     reason,
		Actor:      actorID,
	}
	if err := s.tickets.UpdateWithLog(ctx, ticket, ticket.Version, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.metrics != nil {
		s.metrics.ManualTransitions.WithLabelValues(string(target)).Inc()
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actorID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: from,
			NewStatus: target,
			Reason:    reason,
		},
	})
	return ticket, nil
}

// RecordStaffResponse marks a staff response on the ticket: the first
// one sets first_response_at and moves an open ticket to in progress;
// every response resets the escalation reference clock.
func (s *LifecycleService) RecordStaffResponse(ctx context.Context, ticketID, actorID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusInProgress))
	}

	now := time.Now()
	from := ticket.Status
	first := ticket.FirstResponseAt == nil

	var entry *domain.EscalationLog
	if ticket.Status == domain.TicketStatusOpen {
		if err := engine.Transition(ticket, domain.TicketStatusInProgress, now); err != nil {
			return nil, apperrors.NewInvalidTransition(string(from), string(domain.TicketStatusInProgress))
		}
		entry = &domain.EscalationLog{
			ID:         uuid.NewString(),
			TicketID:   ticket.ID,
			FromStatus: from,
			ToStatus:   ticket.Status,
			Reason:     "first staff response",
			Actor:      actorID,
		}
	}
	if first && ticket.FirstResponseAt == nil {
		ticket.FirstResponseAt = &now
	}
	ticket.LastResponseAt = &now

	if err := s.tickets.UpdateWithLog(ctx, ticket, ticket.Version, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventResponseRecorded,
		TicketID: ticket.ID,
		Actor:    actorID,
		Payload: events.ResponseRecordedPayload{
			First:       first,
			RespondedAt: now,
		},
	})
	return ticket, nil
}

// GetEscalationHistory returns the append-only audit trail for a ticket.
func (s *LifecycleService) GetEscalationHistory(ctx context.Context, ticketID string) ([]domain.EscalationLog, error) {
	entries, err := s.logs.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// ListEscalationsByRange returns audit entries in a time window, for
// the external reporting collaborator.
func (s *LifecycleService) ListEscalationsByRange(ctx context.Context, from, to time.Time) ([]domain.EscalationLog, error) {
	entries, err := s.logs.ListByTimeRange(ctx, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
