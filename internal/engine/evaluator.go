package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/internal/observability"
	"github.com/spec-kit/escalation-engine/internal/repository"
)

// candidateStatuses bounds rule evaluation: resolved and closed
// tickets are never evaluated.
var candidateStatuses = []domain.TicketStatus{
	domain.TicketStatusOpen,
	domain.TicketStatusInProgress,
	domain.TicketStatusEscalated,
}

// Match is a rule/ticket pair whose trigger conditions hold at
// evaluation time. Ref is the ticket's reference time at that moment;
// the tracker is keyed on it after a confirmed commit.
type Match struct {
	Rule   domain.EscalationRule
	Ticket domain.Ticket
	Ref    time.Time
}

// Evaluator produces the set of matches for one tick.
type Evaluator struct {
	tickets repository.TicketRepository
	rules   repository.RuleRepository
	tracker FiringTracker
	logger  *zap.Logger
	metrics *observability.Metrics
}

// EvaluatorDependencies bundles collaborators for the evaluator.
type EvaluatorDependencies struct {
	TicketRepo repository.TicketRepository
	RuleRepo   repository.RuleRepository
	Tracker    FiringTracker
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewEvaluator constructs the evaluator.
func NewEvaluator(deps EvaluatorDependencies) *Evaluator {
	return &Evaluator{
		tickets: deps.TicketRepo,
		rules:   deps.RuleRepo,
		tracker: deps.Tracker,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

// Evaluate returns all matches at now, in rule creation order. A
// storage failure on either fetch aborts the tick; failures local to
// a single rule skip only that rule.
//
// One candidate fetch covers every rule. The set is deliberately
// wider than any single rule's conditions: a pair's fired state must
// be cleared when its ticket leaves the triggering status or
// priority, so such tickets still have to be seen here.
func (e *Evaluator) Evaluate(ctx context.Context, now time.Time) ([]Match, error) {
	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	tickets, err := e.tickets.ListWithFilter(ctx, repository.TicketFilter{Statuses: candidateStatuses})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var matches []Match
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			e.logger.Warn("rule skipped for tick",
				zap.String("rule_id", rule.ID),
				zap.Error(err))
			if e.metrics != nil {
				e.metrics.RulesSkippedTotal.Inc()
			}
			continue
		}
		if !rule.Trigger.HasConditions() {
			// Fail closed: a rule without conditions matches nothing.
			continue
		}
		for _, ticket := range tickets {
			if ticket.Terminal() {
				continue
			}
			if !rule.Trigger.Matches(&ticket, now) {
				// Leaving the triggering state re-arms the pair.
				if err := e.tracker.Clear(ctx, rule.ID, ticket.ID); err != nil {
					e.logger.Warn("firing tracker clear failed", zap.Error(err))
				}
				continue
			}
			ref := ticket.ReferenceTime()
			fired, err := e.tracker.AlreadyFired(ctx, rule.ID, ticket.ID, ref)
			if err != nil {
				e.logger.Warn("firing tracker read failed; skipping pair",
					zap.String("rule_id", rule.ID),
					zap.String("ticket_id", ticket.ID),
					zap.Error(err))
				continue
			}
			if fired {
				continue
			}
			matches = append(matches, Match{Rule: rule, Ticket: ticket, Ref: ref})
			if e.metrics != nil {
				e.metrics.RuleMatchesTotal.Inc()
			}
		}
	}
	return matches, nil
}
