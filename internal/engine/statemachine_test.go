package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/pkg/util"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    domain.TicketStatus
		to      domain.TicketStatus
		allowed bool
	}{
		{domain.TicketStatusOpen, domain.TicketStatusInProgress, true},
		{domain.TicketStatusOpen, domain.TicketStatusEscalated, true},
		{domain.TicketStatusOpen, domain.TicketStatusResolved, true},
		{domain.TicketStatusOpen, domain.TicketStatusClosed, false},
		{domain.TicketStatusInProgress, domain.TicketStatusEscalated, true},
		{domain.TicketStatusInProgress, domain.TicketStatusResolved, true},
		{domain.TicketStatusInProgress, domain.TicketStatusOpen, false},
		{domain.TicketStatusEscalated, domain.TicketStatusInProgress, true},
		{domain.TicketStatusEscalated, domain.TicketStatusResolved, true},
		{domain.TicketStatusEscalated, domain.TicketStatusEscalated, false},
		{domain.TicketStatusResolved, domain.TicketStatusClosed, true},
		{domain.TicketStatusResolved, domain.TicketStatusOpen, false},
		{domain.TicketStatusClosed, domain.TicketStatusOpen, false},
		{domain.TicketStatusClosed, domain.TicketStatusResolved, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	ticket := domain.Ticket{Status: domain.TicketStatusClosed}
	err := Transition(&ticket, domain.TicketStatusOpen, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrInvalidTransition))
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
}

func TestTransitionFirstResponseSideEffect(t *testing.T) {
	now := time.Now()
	ticket := domain.Ticket{Status: domain.TicketStatusOpen, CreatedAt: now.Add(-time.Hour)}

	require.NoError(t, Transition(&ticket, domain.TicketStatusInProgress, now))
	require.NotNil(t, ticket.FirstResponseAt)
	assert.Equal(t, now, *ticket.FirstResponseAt)
	require.NotNil(t, ticket.LastResponseAt)
	assert.Equal(t, now, ticket.ReferenceTime())

	// A second pass through in progress must not move the first response mark.
	later := now.Add(time.Hour)
	require.NoError(t, Transition(&ticket, domain.TicketStatusEscalated, later))
	require.NoError(t, Transition(&ticket, domain.TicketStatusInProgress, later.Add(time.Minute)))
	assert.Equal(t, now, *ticket.FirstResponseAt)
}

func TestTransitionResolvedSideEffect(t *testing.T) {
	now := time.Now()
	ticket := domain.Ticket{Status: domain.TicketStatusInProgress}

	require.NoError(t, Transition(&ticket, domain.TicketStatusResolved, now))
	require.NotNil(t, ticket.ResolvedAt)
	assert.Equal(t, now, *ticket.ResolvedAt)
}

func TestTransitionEscalatedSideEffect(t *testing.T) {
	now := time.Now()
	ticket := domain.Ticket{Status: domain.TicketStatusOpen, CreatedAt: now.Add(-time.Hour)}

	require.NoError(t, Transition(&ticket, domain.TicketStatusEscalated, now))
	require.NotNil(t, ticket.LastEscalationAt)
	assert.Equal(t, now, *ticket.LastEscalationAt)
	assert.Equal(t, now, ticket.ReferenceTime())
}
