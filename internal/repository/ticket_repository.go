package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/pkg/util"
)

// TicketFilter bounds the candidate set before condition evaluation.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
}

// TicketRepository encapsulates ticket persistence. All writes are
// version-guarded; a stale version yields util.ErrVersionConflict.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateWithLog commits the ticket mutation and, when entry is
	// non-nil, the audit entry in a single transaction.
	UpdateWithLog(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, entry *domain.EscalationLog) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, title, description, status, priority, unit_id, assignee_id,
               category, submitter_id, sentiment_score, review_flag, sla_deadline,
               first_response_at, last_response_at, last_escalation_at, resolved_at,
               created_at, updated_at, version`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at ASC LIMIT %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateWithLog(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, entry *domain.EscalationLog) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const update = `
        UPDATE tickets SET status=$1, priority=$2, unit_id=$3, assignee_id=$4, review_flag=$5,
            sla_deadline=$6, first_response_at=$7, last_response_at=$8, last_escalation_at=$9,
            resolved_at=$10, version=version+1, updated_at=NOW()
        WHERE id=$11 AND version=$12
        RETURNING version, updated_at`
	if err := tx.QueryRow(ctx, update,
		ticket.Status,
		ticket.Priority,
		ticket.UnitID,
		ticket.AssigneeID,
		ticket.ReviewFlag,
		ticket.SLADeadline,
		ticket.FirstResponseAt,
		ticket.LastResponseAt,
		ticket.LastEscalationAt,
		ticket.ResolvedAt,
		ticket.ID,
		expectedVersion,
	).Scan(&ticket.Version, &ticket.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.ErrVersionConflict
		}
		return fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}

	if entry != nil {
		const insert = `
            INSERT INTO escalation_log (id, ticket_id, rule_id, from_status, to_status, reason, actor)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            RETURNING created_at`
		if err := tx.QueryRow(ctx, insert,
			entry.ID,
			entry.TicketID,
			entry.RuleID,
			entry.FromStatus,
			entry.ToStatus,
			entry.Reason,
			entry.Actor,
		).Scan(&entry.CreatedAt); err != nil {
			return fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.UnitID,
		&ticket.AssigneeID,
		&ticket.Category,
		&ticket.SubmitterID,
		&ticket.SentimentScore,
		&ticket.ReviewFlag,
		&ticket.SLADeadline,
		&ticket.FirstResponseAt,
		&ticket.LastResponseAt,
		&ticket.LastEscalationAt,
		&ticket.ResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Version,
	)
}
