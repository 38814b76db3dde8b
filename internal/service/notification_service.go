package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/internal/events"
	"github.com/spec-kit/escalation-engine/internal/notify"
	"github.com/spec-kit/escalation-engine/internal/repository"
)

// NotificationService translates manual-path domain events into
// notification requests. Automatic rule firings enqueue their own
// requests in the executor; this service covers staff actions, e.g.
// telling the submitter their ticket was resolved.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      notify.Dispatcher
	tickets    repository.TicketRepository
	channel    domain.NotificationChannel
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue notify.Dispatcher, tickets repository.TicketRepository, channel domain.NotificationChannel, logger *zap.Logger) *NotificationService {
	if channel == "" {
		channel = domain.ChannelEmail
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		tickets:    tickets,
		channel:    channel,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleStatusChanged)
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	// Automatic firings notify through rule actions; avoid doubling up.
	if event.Actor == domain.SystemActor {
		return nil
	}

	req := domain.NotificationRequest{
		ID:        uuid.NewString(),
		Channel:   n.channel,
		TicketID:  event.TicketID,
		CreatedAt: event.Timestamp,
	}
	switch payload.NewStatus {
	case domain.TicketStatusResolved:
		ticket, err := n.tickets.GetByID(ctx, event.TicketID)
		if err != nil {
			n.logger.Warn("ticket lookup for notification failed",
				zap.String("ticket_id", event.TicketID), zap.Error(err))
			return nil
		}
		req.RecipientKind = domain.RecipientUser
		req.Recipient = ticket.SubmitterID
		req.Message = fmt.Sprintf("your ticket #%d has been resolved", ticket.Number)
	case domain.TicketStatusEscalated:
		req.RecipientKind = domain.RecipientRole
		req.Recipient = domain.RoleUnitManager
		req.Message = fmt.Sprintf("ticket escalated: %s", payload.Reason)
	default:
		return nil
	}

	if err := n.queue.Enqueue(ctx, req); err != nil {
		n.logger.Warn("notification enqueue failed",
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
	return nil
}
