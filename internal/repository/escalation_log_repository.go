package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/pkg/util"
)

// EscalationLogRepository stores the append-only escalation audit trail.
type EscalationLogRepository interface {
	Append(ctx context.Context, entry *domain.EscalationLog) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.EscalationLog, error)
	ListByTimeRange(ctx context.Context, from, to time.Time) ([]domain.EscalationLog, error)
}

type escalationLogRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationLogRepository builds repository.
func NewEscalationLogRepository(pool *pgxpool.Pool) EscalationLogRepository {
	return &escalationLogRepository{pool: pool}
}

const logColumns = `id, ticket_id, rule_id, from_status, to_status, reason, actor, created_at`

func (r *escalationLogRepository) Append(ctx context.Context, entry *domain.EscalationLog) error {
	const query = `
        INSERT INTO escalation_log (id, ticket_id, rule_id, from_status, to_status, reason, actor)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	if err := r.pool.QueryRow(ctx, query,
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
	return nil
}

func (r *escalationLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.EscalationLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM escalation_log WHERE ticket_id=$1 ORDER BY created_at ASC`, logColumns)
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

func (r *escalationLogRepository) ListByTimeRange(ctx context.Context, from, to time.Time) ([]domain.EscalationLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM escalation_log WHERE created_at >= $1 AND created_at <= $2 ORDER BY created_at ASC`, logColumns)
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

func scanLogEntries(rows pgx.Rows) ([]domain.EscalationLog, error) {
	var result []domain.EscalationLog
	for rows.Next() {
		var entry domain.EscalationLog
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.RuleID,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Reason,
			&entry.Actor,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
