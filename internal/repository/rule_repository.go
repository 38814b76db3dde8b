package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/pkg/util"
)

// RuleRepository reads escalation rule definitions. Rule CRUD belongs
// to the external administration surface.
type RuleRepository interface {
	ListActive(ctx context.Context) ([]domain.EscalationRule, error)
}

type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository instantiates repository.
func NewRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepository{pool: pool}
}

func (r *ruleRepository) ListActive(ctx context.Context) ([]domain.EscalationRule, error) {
	const query = `
        SELECT id, name, description, active, trigger_conditions, actions, created_at
        FROM escalation_rules WHERE active = TRUE ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var result []domain.EscalationRule
	for rows.Next() {
		var (
			rule       domain.EscalationRule
			rawTrigger []byte
			rawActions []byte
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Description,
			&rule.Active,
			&rawTrigger,
			&rawActions,
			&rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawTrigger, &rule.Trigger); err != nil {
			rule.LoadErr = fmt.Errorf("%w: trigger: %v", util.ErrRuleInvalid, err)
		} else if actions, err := domain.DecodeActions(rawActions); err != nil {
			rule.LoadErr = fmt.Errorf("%w: %v", util.ErrRuleInvalid, err)
		} else {
			rule.Actions = actions
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
