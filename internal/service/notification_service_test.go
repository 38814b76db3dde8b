package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/internal/events"
	"github.com/spec-kit/escalation-engine/internal/notify"
	"github.com/spec-kit/escalation-engine/internal/repository"
)

func newNotificationFixture() (events.Dispatcher, *notify.MemoryDispatcher, *repository.MemoryTicketRepository) {
	bus := events.NewInMemoryDispatcher()
	queue := notify.NewMemoryDispatcher()
	tickets := repository.NewMemoryTicketRepository(nil)

	svc := NewNotificationService(bus, queue, tickets, domain.ChannelEmail, zap.NewNop())
	svc.RegisterHandlers()
	return bus, queue, tickets
}

func TestResolvedTicketNotifiesSubmitter(t *testing.T) {
	bus, queue, tickets := newNotificationFixture()
	tickets.Put(&domain.Ticket{ID: "t1", Number: 17, SubmitterID: "user-4", Status: domain.TicketStatusResolved})

	err := bus.Publish(context.Background(), events.Event{
		Type:      events.EventTicketStatusChanged,
		TicketID:  "t1",
		Actor:     "staff-7",
		Timestamp: time.Now(),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusInProgress,
			NewStatus: domain.TicketStatusResolved,
		},
	})
	require.NoError(t, err)

	requests := queue.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, domain.RecipientUser, requests[0].RecipientKind)
	assert.Equal(t, "user-4", requests[0].Recipient)
	assert.Contains(t, requests[0].Message, "#17")
}

func TestManualEscalationNotifiesUnitManager(t *testing.T) {
	bus, queue, tickets := newNotificationFixture()
	tickets.Put(&domain.Ticket{ID: "t1", Status: domain.TicketStatusEscalated})

	err := bus.Publish(context.Background(), events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: "t1",
		Actor:    "staff-7",
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusEscalated,
			Reason:    "needs supervisor",
		},
	})
	require.NoError(t, err)

	requests := queue.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, domain.RecipientRole, requests[0].RecipientKind)
	assert.Equal(t, domain.RoleUnitManager, requests[0].Recipient)
	assert.Contains(t, requests[0].Message, "needs supervisor")
}

func TestSystemEventsAreNotDoubled(t *testing.T) {
	bus, queue, tickets := newNotificationFixture()
	tickets.Put(&domain.Ticket{ID: "t1", Status: domain.TicketStatusEscalated})

	err := bus.Publish(context.Background(), events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: "t1",
		Actor:    domain.SystemActor,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusEscalated,
		},
	})
	require.NoError(t, err)
	assert.Empty(t, queue.Requests())
}

func TestUninterestingTransitionsAreIgnored(t *testing.T) {
	bus, queue, tickets := newNotificationFixture()
	tickets.Put(&domain.Ticket{ID: "t1", Status: domain.TicketStatusInProgress})

	err := bus.Publish(context.Background(), events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: "t1",
		Actor:    "staff-7",
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusInProgress,
		},
	})
	require.NoError(t, err)
	assert.Empty(t, queue.Requests())
}
