package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/internal/events"
	"github.com/spec-kit/escalation-engine/internal/notify"
	"github.com/spec-kit/escalation-engine/internal/observability"
	"github.com/spec-kit/escalation-engine/internal/repository"
)

// Executor applies a matched rule's action list to a ticket. The
// ticket mutation and the audit entry commit atomically; notification
// requests are emitted only after the commit and are best-effort.
type Executor struct {
	tickets    repository.TicketRepository
	dispatcher notify.Dispatcher
	bus        events.Dispatcher
	sla        domain.SLAPolicy
	channel    domain.NotificationChannel
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// ExecutorDependencies bundles collaborators for the executor.
type ExecutorDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher notify.Dispatcher
	Bus        events.Dispatcher
	SLA        domain.SLAPolicy
	Channel    domain.NotificationChannel
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewExecutor constructs the executor.
func NewExecutor(deps ExecutorDependencies) *Executor {
	channel := deps.Channel
	if channel == "" {
		channel = domain.ChannelEmail
	}
	sla := deps.SLA
	if sla == nil {
		sla = domain.DefaultSLAPolicy()
	}
	return &Executor{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		bus:        deps.Bus,
		sla:        sla,
		channel:    channel,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// Execute applies the match's action list in order. It returns
// util.ErrVersionConflict when the ticket changed concurrently and
// util.ErrInvalidTransition when an escalate action cannot apply; in
// both cases nothing is persisted.
func (x *Executor) Execute(ctx context.Context, match Match, now time.Time) error {
	work := match.Ticket
	from := work.Status
	oldPriority := work.Priority

	var (
		requests []domain.NotificationRequest
		skipped  []string
	)

	for _, action := range match.Rule.Actions {
		switch a := action.(type) {
		case domain.NotifyManagerAction:
			requests = append(requests, x.buildRequest(&work, domain.RecipientRole, domain.RoleUnitManager, a.Message, match.Rule.Name))
		case domain.NotifyAssigneeAction:
			if work.AssigneeID == nil {
				skipped = append(skipped, "notify_assignee: no assignee")
				continue
			}
			requests = append(requests, x.buildRequest(&work, domain.RecipientUser, *work.AssigneeID, a.Message, match.Rule.Name))
		case domain.BumpPriorityAction:
			next, ok := work.Priority.Next()
			if !ok {
				skipped = append(skipped, "bump_priority: already critical")
				continue
			}
			work.Priority = next
			work.SLADeadline = x.sla.DeadlineFor(next, now)
		case domain.FlagReviewAction:
			work.ReviewFlag = true
		case domain.EscalateToRoleAction:
			if err := Transition(&work, domain.TicketStatusEscalated, now); err != nil {
				// The rule does not apply right now; drop the firing.
				return err
			}
			if a.UnitID != nil {
				work.UnitID = a.UnitID
			}
			requests = append(requests, x.buildRequest(&work, domain.RecipientRole, a.Role, a.Message, match.Rule.Name))
		}
	}

	reason := match.Rule.Name
	if len(skipped) > 0 {
		reason = fmt.Sprintf("%s (skipped: %s)", reason, strings.Join(skipped, "; "))
	}
	ruleID := match.Rule.ID
	entry := &domain.EscalationLog{
		ID:         uuid.NewString(),
		TicketID:   work.ID,
		RuleID:     &ruleID,
		FromStatus: from,
		ToStatus:   work.Status,
		Reason:     reason,
		Actor:      domain.SystemActor,
	}

	if err := x.tickets.UpdateWithLog(ctx, &work, match.Ticket.Version, entry); err != nil {
		return err
	}

	if x.metrics != nil {
		x.metrics.FiringsTotal.Inc()
	}
	x.emitNotifications(ctx, requests)
	x.publishFiring(ctx, &match, &work, from, oldPriority)
	return nil
}

func (x *Executor) buildRequest(t *domain.Ticket, kind domain.RecipientKind, recipient, message, ruleName string) domain.NotificationRequest {
	if message == "" {
		message = fmt.Sprintf("escalation rule %q fired for ticket #%d", ruleName, t.Number)
	}
	return domain.NotificationRequest{
		ID:            uuid.NewString(),
		RecipientKind: kind,
		Recipient:     recipient,
		Channel:       x.channel,
		TicketID:      t.ID,
		Message:       message,
		CreatedAt:     time.Now(),
	}
}

func (x *Executor) emitNotifications(ctx context.Context, requests []domain.NotificationRequest) {
	for _, req := range requests {
		if err := x.dispatcher.Enqueue(ctx, req); err != nil {
			// Best effort: delivery failures never roll back the ticket.
			x.logger.Warn("notification enqueue failed",
				zap.String("ticket_id", req.TicketID),
				zap.String("recipient", req.Recipient),
				zap.Error(err))
			if x.metrics != nil {
				x.metrics.NotifyFailuresTotal.Inc()
			}
		}
	}
}

func (x *Executor) publishFiring(ctx context.Context, match *Match, work *domain.Ticket, from domain.TicketStatus, oldPriority domain.TicketPriority) {
	if x.bus == nil {
		return
	}
	_ = x.bus.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventRuleFired,
		TicketID:  work.ID,
		Actor:     domain.SystemActor,
		Timestamp: time.Now(),
		Payload: events.RuleFiredPayload{
			RuleID:   match.Rule.ID,
			RuleName: match.Rule.Name,
			Actions:  len(match.Rule.Actions),
		},
	})
	if work.Status != from {
		_ = x.bus.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketStatusChanged,
			TicketID:  work.ID,
			Actor:     domain.SystemActor,
			Timestamp: time.Now(),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: from,
				NewStatus: work.Status,
				Reason:    match.Rule.Name,
			},
		})
	}
	if work.Priority != oldPriority {
		_ = x.bus.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketPriorityBumped,
			TicketID:  work.ID,
			Actor:     domain.SystemActor,
			Timestamp: time.Now(),
			Payload: events.TicketPriorityBumpedPayload{
				OldPriority: oldPriority,
				NewPriority: work.Priority,
				SLADeadline: work.SLADeadline,
			},
		})
	}
}
