package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/pkg/util"
)

// MemoryTicketRepository is an in-memory TicketRepository used when no
// POSTGRES_DSN is configured and throughout the test suites.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	logs    *MemoryEscalationLogRepository

	// FailUpdates forces UpdateWithLog to fail, for storage fault tests.
	FailUpdates bool
}

// NewMemoryTicketRepository builds an empty store. When logs is
// non-nil, UpdateWithLog appends audit entries to it atomically with
// the ticket mutation.
func NewMemoryTicketRepository(logs *MemoryEscalationLogRepository) *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets: make(map[string]*domain.Ticket),
		logs:    logs,
	}
}

// Put seeds or replaces a ticket.
func (r *MemoryTicketRepository) Put(ticket *domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	clone := *ticket
	r.tickets[ticket.ID] = &clone
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *MemoryTicketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if len(filter.Statuses) > 0 && !statusIn(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !priorityIn(filter.Priorities, ticket.Priority) {
			continue
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *MemoryTicketRepository) UpdateWithLog(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, entry *domain.EscalationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdates {
		return util.ErrStorageUnavailable
	}
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != expectedVersion {
		return util.ErrVersionConflict
	}
	clone := *ticket
	clone.Version = expectedVersion + 1
	clone.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = &clone
	ticket.Version = clone.Version
	ticket.UpdatedAt = clone.UpdatedAt
	if entry != nil && r.logs != nil {
		r.logs.append(entry)
	}
	return nil
}

func statusIn(set []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

func priorityIn(set []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, candidate := range set {
		if candidate == p {
			return true
		}
	}
	return false
}

// MemoryRuleRepository is an in-memory RuleRepository.
type MemoryRuleRepository struct {
	mu    sync.Mutex
	rules []domain.EscalationRule

	// FailList forces ListActive to fail, simulating storage loss.
	FailList bool
}

// NewMemoryRuleRepository builds an empty store.
func NewMemoryRuleRepository() *MemoryRuleRepository {
	return &MemoryRuleRepository{}
}

// Put adds or replaces a rule.
func (r *MemoryRuleRepository) Put(rule domain.EscalationRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == rule.ID {
			r.rules[i] = rule
			return
		}
	}
	r.rules = append(r.rules, rule)
}

func (r *MemoryRuleRepository) ListActive(ctx context.Context) ([]domain.EscalationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailList {
		return nil, util.ErrStorageUnavailable
	}
	var result []domain.EscalationRule
	for _, rule := range r.rules {
		if rule.Active {
			result = append(result, rule)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// MemoryEscalationLogRepository is an in-memory EscalationLogRepository.
type MemoryEscalationLogRepository struct {
	mu      sync.Mutex
	entries []domain.EscalationLog
}

// NewMemoryEscalationLogRepository builds an empty store.
func NewMemoryEscalationLogRepository() *MemoryEscalationLogRepository {
	return &MemoryEscalationLogRepository{}
}

func (r *MemoryEscalationLogRepository) Append(ctx context.Context, entry *domain.EscalationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(entry)
	return nil
}

func (r *MemoryEscalationLogRepository) append(entry *domain.EscalationLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
}

func (r *MemoryEscalationLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.EscalationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.EscalationLog
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *MemoryEscalationLogRepository) ListByTimeRange(ctx context.Context, from, to time.Time) ([]domain.EscalationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.EscalationLog
	for _, entry := range r.entries {
		if !entry.CreatedAt.Before(from) && !entry.CreatedAt.After(to) {
			result = append(result, entry)
		}
	}
	return result, nil
}
