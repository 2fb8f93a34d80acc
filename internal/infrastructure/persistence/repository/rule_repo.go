package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
)

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sqlite.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

const ruleColumns = `id, org_id, name, description, rule_type, percentage_threshold,
	specific_approver_id, is_active, created_at, updated_at`

func (r *RuleRepository) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := r.db.Executor(txCtx)
		_, err := ex.ExecContext(txCtx, `INSERT INTO approval_rules (`+ruleColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.ID, rule.OrgID, rule.Name, rule.Description, rule.RuleType,
			nullInt(rule.PercentageThreshold), rule.SpecificApproverID, rule.IsActive,
			rule.CreatedAt, rule.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create rule", zap.String("rule_id", rule.ID), zap.Error(err))
			return fmt.Errorf("failed to create rule: %w", err)
		}
		return r.insertSteps(txCtx, ex, rule)
	})
}

func (r *RuleRepository) insertSteps(ctx context.Context, ex sqlite.Executor, rule *entity.ApprovalRule) error {
	for i, s := range rule.Steps {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO rule_steps (rule_id, sequence, role, approver_id) VALUES (?, ?, ?, ?)`,
			rule.ID, i, s.Role, s.ApproverID,
		); err != nil {
			return fmt.Errorf("failed to create rule step %d: %w", i, err)
		}
	}
	return nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRule, error) {
	return r.getOne(ctx, `SELECT `+ruleColumns+` FROM approval_rules WHERE id = ?`, id)
}

// GetActive returns the organization's active rule or port.ErrNotFound
func (r *RuleRepository) GetActive(ctx context.Context, orgID string) (*entity.ApprovalRule, error) {
	return r.getOne(ctx, `SELECT `+ruleColumns+` FROM approval_rules WHERE org_id = ? AND is_active = 1`, orgID)
}

func (r *RuleRepository) getOne(ctx context.Context, query string, arg string) (*entity.ApprovalRule, error) {
	ex := r.db.Executor(ctx)
	rule, err := scanRule(ex.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", arg, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get rule", zap.String("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get rule: %w", sqlite.Classify(err))
	}
	if rule.Steps, err = r.loadSteps(ctx, ex, rule.ID); err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *RuleRepository) List(ctx context.Context, orgID string) ([]*entity.ApprovalRule, error) {
	ex := r.db.Executor(ctx)
	rows, err := ex.QueryContext(ctx, `SELECT `+ruleColumns+` FROM approval_rules WHERE org_id = ? ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", sqlite.Classify(err))
	}

	rules := []*entity.ApprovalRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Steps are loaded after the cursor is closed; a transaction has one connection
	for _, rule := range rules {
		if rule.Steps, err = r.loadSteps(ctx, ex, rule.ID); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// Update replaces the rule definition and its steps. Activation is left alone.
func (r *RuleRepository) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := r.db.Executor(txCtx)
		res, err := ex.ExecContext(txCtx, `
			UPDATE approval_rules
			SET name = ?, description = ?, rule_type = ?, percentage_threshold = ?,
				specific_approver_id = ?, updated_at = ?
			WHERE id = ?`,
			rule.Name, rule.Description, rule.RuleType, nullInt(rule.PercentageThreshold),
			rule.SpecificApproverID, rule.UpdatedAt, rule.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("rule %s: %w", rule.ID, port.ErrNotFound)
		}
		if _, err := ex.ExecContext(txCtx, `DELETE FROM rule_steps WHERE rule_id = ?`, rule.ID); err != nil {
			return fmt.Errorf("failed to clear rule steps: %w", err)
		}
		return r.insertSteps(txCtx, ex, rule)
	})
}

// Activate deactivates the organization's current rule and activates id
func (r *RuleRepository) Activate(ctx context.Context, orgID, id string) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := r.db.Executor(txCtx)
		if _, err := ex.ExecContext(txCtx,
			`UPDATE approval_rules SET is_active = 0 WHERE org_id = ? AND is_active = 1 AND id <> ?`, orgID, id,
		); err != nil {
			return fmt.Errorf("failed to deactivate rules: %w", err)
		}
		res, err := ex.ExecContext(txCtx,
			`UPDATE approval_rules SET is_active = 1 WHERE id = ? AND org_id = ?`, id, orgID,
		)
		if err != nil {
			return fmt.Errorf("failed to activate rule: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("rule %s: %w", id, port.ErrNotFound)
		}
		return nil
	})
}

func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM approval_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", sqlite.Classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %s: %w", id, port.ErrNotFound)
	}
	return nil
}

func (r *RuleRepository) loadSteps(ctx context.Context, ex sqlite.Executor, ruleID string) ([]entity.RuleStep, error) {
	rows, err := ex.QueryContext(ctx, `SELECT role, approver_id FROM rule_steps WHERE rule_id = ? ORDER BY sequence`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule steps: %w", sqlite.Classify(err))
	}
	defer rows.Close()

	var steps []entity.RuleStep
	for rows.Next() {
		var s entity.RuleStep
		if err := rows.Scan(&s.Role, &s.ApproverID); err != nil {
			return nil, fmt.Errorf("failed to scan rule step: %w", err)
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func scanRule(row rowScanner) (*entity.ApprovalRule, error) {
	var (
		rule entity.ApprovalRule
		pct  sql.NullInt64
	)
	err := row.Scan(&rule.ID, &rule.OrgID, &rule.Name, &rule.Description, &rule.RuleType,
		&pct, &rule.SpecificApproverID, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if pct.Valid {
		p := int(pct.Int64)
		rule.PercentageThreshold = &p
	}
	return &rule, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

var _ port.RuleRepository = (*RuleRepository)(nil)
