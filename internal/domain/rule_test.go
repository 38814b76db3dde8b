package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActions(t *testing.T) {
	raw := []byte(`[
		{"type":"notify_manager","message":"check this"},
		{"type":"bump_priority"},
		{"type":"flag_review"},
		{"type":"notify_assignee"},
		{"type":"escalate_to_role","target":"SUPERVISOR","unit_id":"u-9"}
	]`)

	actions, err := DecodeActions(raw)
	require.NoError(t, err)
	require.Len(t, actions, 5)

	assert.Equal(t, NotifyManagerAction{Message: "check this"}, actions[0])
	assert.Equal(t, BumpPriorityAction{}, actions[1])
	assert.Equal(t, FlagReviewAction{}, actions[2])
	assert.Equal(t, NotifyAssigneeAction{}, actions[3])

	escalate, ok := actions[4].(EscalateToRoleAction)
	require.True(t, ok)
	assert.Equal(t, "SUPERVISOR", escalate.Role)
	require.NotNil(t, escalate.UnitID)
	assert.Equal(t, "u-9", *escalate.UnitID)
}

func TestDecodeActionsRejectsUnknownType(t *testing.T) {
	_, err := DecodeActions([]byte(`[{"type":"delete_ticket"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestDecodeActionsRequiresEscalationTarget(t *testing.T) {
	_, err := DecodeActions([]byte(`[{"type":"escalate_to_role"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires target")
}

func TestEncodeActionsRoundTrip(t *testing.T) {
	unit := "u-1"
	original := []Action{
		NotifyManagerAction{Message: "hi"},
		BumpPriorityAction{},
		EscalateToRoleAction{Role: "SUPERVISOR", UnitID: &unit, Message: "up"},
	}

	raw, err := EncodeActions(original)
	require.NoError(t, err)

	decoded, err := DecodeActions(raw)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestTriggerWithoutConditionsNeverMatches(t *testing.T) {
	ticket := Ticket{
		Status:    TicketStatusOpen,
		Priority:  TicketPriorityHigh,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}

	trigger := Trigger{}
	assert.False(t, trigger.HasConditions())
	assert.False(t, trigger.Matches(&ticket, time.Now()))
}

func TestTriggerTimeThreshold(t *testing.T) {
	threshold := int64(3600)
	trigger := Trigger{TimeThresholdSeconds: &threshold}
	now := time.Now()

	fresh := Ticket{Status: TicketStatusOpen, CreatedAt: now.Add(-30 * time.Minute)}
	stale := Ticket{Status: TicketStatusOpen, CreatedAt: now.Add(-2 * time.Hour)}

	assert.False(t, trigger.Matches(&fresh, now))
	assert.True(t, trigger.Matches(&stale, now))
}

func TestTriggerTimeThresholdUsesReferenceTime(t *testing.T) {
	threshold := int64(3600)
	trigger := Trigger{TimeThresholdSeconds: &threshold}
	now := time.Now()
	responded := now.Add(-10 * time.Minute)

	ticket := Ticket{
		Status:         TicketStatusInProgress,
		CreatedAt:      now.Add(-72 * time.Hour),
		LastResponseAt: &responded,
	}

	// The response reset the clock; the old age no longer counts.
	assert.False(t, trigger.Matches(&ticket, now))
}

func TestTriggerSentimentStrictlyBelow(t *testing.T) {
	below := 0.3
	trigger := Trigger{SentimentBelow: &below}
	now := time.Now()

	angry := 0.1
	borderline := 0.3
	unscored := Ticket{Status: TicketStatusOpen}

	assert.True(t, trigger.Matches(&Ticket{Status: TicketStatusOpen, SentimentScore: &angry}, now))
	assert.False(t, trigger.Matches(&Ticket{Status: TicketStatusOpen, SentimentScore: &borderline}, now))
	assert.False(t, trigger.Matches(&unscored, now))
}

func TestTriggerAllConditionsMustHold(t *testing.T) {
	threshold := int64(60)
	trigger := Trigger{
		Priorities:           []TicketPriority{TicketPriorityHigh},
		Statuses:             []TicketStatus{TicketStatusOpen},
		TimeThresholdSeconds: &threshold,
	}
	now := time.Now()

	matching := Ticket{Status: TicketStatusOpen, Priority: TicketPriorityHigh, CreatedAt: now.Add(-time.Hour)}
	wrongPriority := Ticket{Status: TicketStatusOpen, Priority: TicketPriorityLow, CreatedAt: now.Add(-time.Hour)}
	wrongStatus := Ticket{Status: TicketStatusResolved, Priority: TicketPriorityHigh, CreatedAt: now.Add(-time.Hour)}

	assert.True(t, trigger.Matches(&matching, now))
	assert.False(t, trigger.Matches(&wrongPriority, now))
	assert.False(t, trigger.Matches(&wrongStatus, now))
}

func TestPriorityNext(t *testing.T) {
	next, ok := TicketPriorityLow.Next()
	require.True(t, ok)
	assert.Equal(t, TicketPriorityMedium, next)

	next, ok = TicketPriorityHigh.Next()
	require.True(t, ok)
	assert.Equal(t, TicketPriorityCritical, next)

	_, ok = TicketPriorityCritical.Next()
	assert.False(t, ok)
}

func TestTicketReferenceTime(t *testing.T) {
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	responded := created.Add(4 * time.Hour)
	escalated := created.Add(2 * time.Hour)

	ticket := Ticket{CreatedAt: created}
	assert.Equal(t, created, ticket.ReferenceTime())

	ticket.LastEscalationAt = &escalated
	assert.Equal(t, escalated, ticket.ReferenceTime())

	ticket.LastResponseAt = &responded
	assert.Equal(t, responded, ticket.ReferenceTime())
}

func TestRuleValidate(t *testing.T) {
	valid := EscalationRule{ID: "r1", Actions: []Action{FlagReviewAction{}}}
	assert.NoError(t, valid.Validate())

	noActions := EscalationRule{ID: "r2"}
	assert.Error(t, noActions.Validate())

	badPriority := EscalationRule{
		ID:      "r3",
		Actions: []Action{FlagReviewAction{}},
		Trigger: Trigger{Priorities: []TicketPriority{"URGENT"}},
	}
	assert.Error(t, badPriority.Validate())
}
