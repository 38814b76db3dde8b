package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/internal/events"
	"github.com/spec-kit/escalation-engine/internal/notify"
	"github.com/spec-kit/escalation-engine/internal/repository"
	"github.com/spec-kit/escalation-engine/pkg/util"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type executorFixture struct {
	executor   *Executor
	tickets    *repository.MemoryTicketRepository
	logs       *repository.MemoryEscalationLogRepository
	dispatcher *notify.MemoryDispatcher
	recorder   *eventRecorder
}

func newExecutorFixture() *executorFixture {
	logs := repository.NewMemoryEscalationLogRepository()
	tickets := repository.NewMemoryTicketRepository(logs)
	dispatcher := notify.NewMemoryDispatcher()
	recorder := &eventRecorder{}

	bus := events.NewInMemoryDispatcher()
	bus.Subscribe(events.EventRuleFired, recorder.record)
	bus.Subscribe(events.EventTicketStatusChanged, recorder.record)
	bus.Subscribe(events.EventTicketPriorityBumped, recorder.record)

	executor := NewExecutor(ExecutorDependencies{
		TicketRepo: tickets,
		Dispatcher: dispatcher,
		Bus:        bus,
		Channel:    domain.ChannelEmail,
		Logger:     zap.NewNop(),
	})
	return &executorFixture{
		executor:   executor,
		tickets:    tickets,
		logs:       logs,
		dispatcher: dispatcher,
		recorder:   recorder,
	}
}

func matchFor(ticket domain.Ticket, actions ...domain.Action) Match {
	return Match{
		Rule: domain.EscalationRule{
			ID:      "rule-1",
			Name:    "unattended high priority",
			Active:  true,
			Actions: actions,
		},
		Ticket: ticket,
		Ref:    ticket.ReferenceTime(),
	}
}

func TestExecuteAppliesActionsInOrder(t *testing.T) {
	fx := newExecutorFixture()
	now := time.Now()

	ticket := domain.Ticket{
		ID:        "t1",
		Number:    42,
		Status:    domain.TicketStatusOpen,
		Priority:  domain.TicketPriorityMedium,
		CreatedAt: now.Add(-5 * time.Hour),
	}
	fx.tickets.Put(&ticket)

	match := matchFor(ticket,
		domain.NotifyManagerAction{Message: "please look"},
		domain.BumpPriorityAction{},
		domain.FlagReviewAction{},
		domain.EscalateToRoleAction{Role: "SUPERVISOR"},
	)

	require.NoError(t, fx.executor.Execute(context.Background(), match, now))

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, stored.Status)
	assert.Equal(t, domain.TicketPriorityHigh, stored.Priority)
	assert.True(t, stored.ReviewFlag)
	assert.Equal(t, domain.DefaultSLAPolicy().DeadlineFor(domain.TicketPriorityHigh, now), stored.SLADeadline)
	assert.Equal(t, int64(1), stored.Version)
	require.NotNil(t, stored.LastEscalationAt)

	entries, err := fx.logs.ListByTicket(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.SystemActor, entries[0].Actor)
	assert.Equal(t, domain.TicketStatusOpen, entries[0].FromStatus)
	assert.Equal(t, domain.TicketStatusEscalated, entries[0].ToStatus)
	require.NotNil(t, entries[0].RuleID)
	assert.Equal(t, "rule-1", *entries[0].RuleID)

	requests := fx.dispatcher.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, domain.RoleUnitManager, requests[0].Recipient)
	assert.Equal(t, "please look", requests[0].Message)
	assert.Equal(t, "SUPERVISOR", requests[1].Recipient)

	assert.Len(t, fx.recorder.ofType(events.EventRuleFired), 1)
	assert.Len(t, fx.recorder.ofType(events.EventTicketStatusChanged), 1)
	assert.Len(t, fx.recorder.ofType(events.EventTicketPriorityBumped), 1)
}

func TestExecuteBumpAtCriticalIsNoted(t *testing.T) {
	fx := newExecutorFixture()
	now := time.Now()

	ticket := domain.Ticket{
		ID:          "t1",
		Status:      domain.TicketStatusInProgress,
		Priority:    domain.TicketPriorityCritical,
		SLADeadline: now.Add(time.Hour),
		CreatedAt:   now.Add(-time.Hour),
	}
	fx.tickets.Put(&ticket)

	match := matchFor(ticket, domain.BumpPriorityAction{})
	require.NoError(t, fx.executor.Execute(context.Background(), match, now))

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityCritical, stored.Priority)
	assert.Equal(t, ticket.SLADeadline, stored.SLADeadline)

	entries, err := fx.logs.ListByTicket(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Reason, "already critical")
}

func TestExecuteNotifyAssigneeWithoutAssignee(t *testing.T) {
	fx := newExecutorFixture()
	now := time.Now()

	ticket := domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow, CreatedAt: now.Add(-time.Hour)}
	fx.tickets.Put(&ticket)

	match := matchFor(ticket, domain.NotifyAssigneeAction{Message: "ping"})
	require.NoError(t, fx.executor.Execute(context.Background(), match, now))

	assert.Empty(t, fx.dispatcher.Requests())

	entries, err := fx.logs.ListByTicket(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Reason, "no assignee")
}

func TestExecuteVersionConflictPersistsNothing(t *testing.T) {
	fx := newExecutorFixture()
	now := time.Now()

	ticket := domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow, CreatedAt: now.Add(-time.Hour), Version: 3}
	fx.tickets.Put(&ticket)

	stale := ticket
	stale.Version = 2
	match := matchFor(stale, domain.FlagReviewAction{}, domain.NotifyManagerAction{})

	err := fx.executor.Execute(context.Background(), match, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrVersionConflict))

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, stored.ReviewFlag)
	assert.Equal(t, int64(3), stored.Version)

	entries, err := fx.logs.ListByTicket(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, fx.dispatcher.Requests())
	assert.Empty(t, fx.recorder.ofType(events.EventRuleFired))
}

func TestExecuteStorageFailureEmitsNothing(t *testing.T) {
	fx := newExecutorFixture()
	fx.tickets.FailUpdates = true
	now := time.Now()

	ticket := domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow, CreatedAt: now.Add(-time.Hour)}
	fx.tickets.Put(&ticket)

	match := matchFor(ticket, domain.NotifyManagerAction{}, domain.FlagReviewAction{})
	err := fx.executor.Execute(context.Background(), match, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrStorageUnavailable))

	assert.Empty(t, fx.dispatcher.Requests())
	assert.Empty(t, fx.recorder.ofType(events.EventRuleFired))
}

func TestExecuteEscalateFromTerminalStatusDropsFiring(t *testing.T) {
	fx := newExecutorFixture()
	now := time.Now()

	ticket := domain.Ticket{ID: "t1", Status: domain.TicketStatusResolved, Priority: domain.TicketPriorityHigh, CreatedAt: now.Add(-time.Hour)}
	fx.tickets.Put(&ticket)

	match := matchFor(ticket, domain.EscalateToRoleAction{Role: "SUPERVISOR"})
	err := fx.executor.Execute(context.Background(), match, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrInvalidTransition))

	entries, err := fx.logs.ListByTicket(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecuteNotificationFailureDoesNotRollBack(t *testing.T) {
	fx := newExecutorFixture()
	fx.dispatcher.FailEnqueue = true
	now := time.Now()

	ticket := domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow, CreatedAt: now.Add(-time.Hour)}
	fx.tickets.Put(&ticket)

	match := matchFor(ticket, domain.NotifyManagerAction{}, domain.FlagReviewAction{})
	require.NoError(t, fx.executor.Execute(context.Background(), match, now))

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, stored.ReviewFlag)
	assert.Equal(t, int64(1), stored.Version)
}
