package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EscalationRule is a configured condition/action pair evaluated
// against tickets on every engine tick. Rules are administered by an
// external CRUD surface and are read-only here.
type EscalationRule struct {
	ID          string
	Name        string
	Description string
	Active      bool
	Trigger     Trigger
	Actions     []Action
	CreatedAt   time.Time

	// LoadErr records a decode failure; the evaluator skips such
	// rules for the tick without aborting the others.
	LoadErr error
}

// Validate checks that a loaded rule is executable.
func (r *EscalationRule) Validate() error {
	if r.LoadErr != nil {
		return r.LoadErr
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("rule %s: no actions", r.ID)
	}
	for _, p := range r.Trigger.Priorities {
		if !p.Valid() {
			return fmt.Errorf("rule %s: unknown priority %q", r.ID, p)
		}
	}
	return nil
}

// Trigger holds the optional match conditions of a rule. All present
// conditions must hold; a trigger with no conditions never matches.
type Trigger struct {
	Priorities           []TicketPriority `json:"priorities,omitempty"`
	Statuses             []TicketStatus   `json:"statuses,omitempty"`
	TimeThresholdSeconds *int64           `json:"time_threshold_seconds,omitempty"`
	SentimentBelow       *float64         `json:"sentiment_below,omitempty"`
}

// HasConditions reports whether any condition is present.
func (tr Trigger) HasConditions() bool {
	return len(tr.Priorities) > 0 || len(tr.Statuses) > 0 ||
		tr.TimeThresholdSeconds != nil || tr.SentimentBelow != nil
}

// Matches evaluates the trigger against a ticket at the given time.
func (tr Trigger) Matches(t *Ticket, now time.Time) bool {
	if !tr.HasConditions() {
		return false
	}
	if len(tr.Priorities) > 0 && !containsPriority(tr.Priorities, t.Priority) {
		return false
	}
	if len(tr.Statuses) > 0 && !containsStatus(tr.Statuses, t.Status) {
		return false
	}
	if tr.TimeThresholdSeconds != nil {
		threshold := time.Duration(*tr.TimeThresholdSeconds) * time.Second
		if now.Sub(t.ReferenceTime()) < threshold {
			return false
		}
	}
	if tr.SentimentBelow != nil {
		// Strictly less than: an unscored ticket cannot match.
		if t.SentimentScore == nil || *t.SentimentScore >= *tr.SentimentBelow {
			return false
		}
	}
	return true
}

func containsPriority(set []TicketPriority, p TicketPriority) bool {
	for _, candidate := range set {
		if candidate == p {
			return true
		}
	}
	return false
}

func containsStatus(set []TicketStatus, s TicketStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

// ActionType identifies an escalation action kind.
type ActionType string

const (
	ActionNotifyManager  ActionType = "notify_manager"
	ActionNotifyAssignee ActionType = "notify_assignee"
	ActionBumpPriority   ActionType = "bump_priority"
	ActionFlagReview     ActionType = "flag_review"
	ActionEscalateToRole ActionType = "escalate_to_role"
)

// Action is the closed set of things a rule firing may do to a ticket.
type Action interface {
	Type() ActionType
}

// NotifyManagerAction emits a notification request to the unit manager role.
type NotifyManagerAction struct {
	Message string
}

func (NotifyManagerAction) Type() ActionType { return ActionNotifyManager }

// NotifyAssigneeAction emits a notification request to the current assignee.
type NotifyAssigneeAction struct {
	Message string
}

func (NotifyAssigneeAction) Type() ActionType { return ActionNotifyAssignee }

// BumpPriorityAction raises priority one step, capped at CRITICAL.
type BumpPriorityAction struct{}

func (BumpPriorityAction) Type() ActionType { return ActionBumpPriority }

// FlagReviewAction marks the ticket for supervisory review.
type FlagReviewAction struct{}

func (FlagReviewAction) Type() ActionType { return ActionFlagReview }

// EscalateToRoleAction transitions the ticket to ESCALATED and
// optionally reassigns it to another unit.
type EscalateToRoleAction struct {
	Role    string
	UnitID  *string
	Message string
}

func (EscalateToRoleAction) Type() ActionType { return ActionEscalateToRole }

type rawAction struct {
	Type    ActionType `json:"type"`
	Target  string     `json:"target,omitempty"`
	UnitID  *string    `json:"unit_id,omitempty"`
	Message string     `json:"message,omitempty"`
}

// DecodeActions parses the stored action list, rejecting unknown
// action types and missing required fields at load time rather than
// at execution time.
func DecodeActions(raw []byte) ([]Action, error) {
	var entries []rawAction
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	actions := make([]Action, 0, len(entries))
	for i, entry := range entries {
		switch entry.Type {
		case ActionNotifyManager:
			actions = append(actions, NotifyManagerAction{Message: entry.Message})
		case ActionNotifyAssignee:
			actions = append(actions, NotifyAssigneeAction{Message: entry.Message})
		case ActionBumpPriority:
			actions = append(actions, BumpPriorityAction{})
		case ActionFlagReview:
			actions = append(actions, FlagReviewAction{})
		case ActionEscalateToRole:
			if entry.Target == "" {
				return nil, fmt.Errorf("action %d: escalate_to_role requires target", i)
			}
			actions = append(actions, EscalateToRoleAction{
				Role:    entry.Target,
				UnitID:  entry.UnitID,
				Message: entry.Message,
			})
		default:
			return nil, fmt.Errorf("action %d: unknown type %q", i, entry.Type)
		}
	}
	return actions, nil
}

// EncodeActions serializes an action list back to the stored form.
func EncodeActions(actions []Action) ([]byte, error) {
	entries := make([]rawAction, 0, len(actions))
	for _, action := range actions {
		entry := rawAction{Type: action.Type()}
		switch a := action.(type) {
		case NotifyManagerAction:
			entry.Message = a.Message
		case NotifyAssigneeAction:
			entry.Message = a.Message
		case EscalateToRoleAction:
			entry.Target = a.Role
			entry.UnitID = a.UnitID
			entry.Message = a.Message
		}
		entries = append(entries, entry)
	}
	return json.Marshal(entries)
}
