package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
)

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sqlite.DB, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

const expenseColumns = `
	id, org_id, title, description, amount, currency, original_amount, original_currency,
	submitted_by, expense_date, submitted_at, status, rule_id, rule_type_snapshot,
	percentage_snapshot, specific_approver_snapshot, version, updated_at`

// Create inserts the expense row and its steps in one transaction
func (r *ExpenseRepository) Create(ctx context.Context, exp *entity.Expense) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := r.db.Executor(txCtx)

		var pct sql.NullInt64
		if exp.PercentageSnapshot != nil {
			pct = sql.NullInt64{Int64: int64(*exp.PercentageSnapshot), Valid: true}
		}
		if exp.UpdatedAt.IsZero() {
			exp.UpdatedAt = exp.SubmittedAt
		}

		_, err := ex.ExecContext(txCtx, `INSERT INTO expenses (`+expenseColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			exp.ID, exp.OrgID, exp.Title, exp.Description,
			exp.Amount, exp.Currency, exp.OriginalAmount, exp.OriginalCurrency,
			exp.SubmittedBy, exp.Date, exp.SubmittedAt, exp.Status,
			exp.RuleID, exp.RuleTypeSnapshot, pct, exp.SpecificApproverSnapshot,
			exp.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create expense", zap.String("expense_id", exp.ID), zap.Error(err))
			return fmt.Errorf("failed to create expense: %w", err)
		}

		for i := range exp.ApprovalSteps {
			step := &exp.ApprovalSteps[i]
			res, err := ex.ExecContext(txCtx, `
				INSERT INTO approval_steps (expense_id, sequence, role, approver_id, decision, decided_by, comment, decided_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				exp.ID, step.Sequence, step.Role, step.ApproverID, step.Decision,
				step.DecidedBy, step.Comment, nullTime(step.DecidedAt),
			)
			if err != nil {
				return fmt.Errorf("failed to create approval step %d: %w", step.Sequence, err)
			}
			if step.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}
		}

		exp.Version = 1
		return nil
	})
}

// GetByID loads an expense with its steps ordered by sequence
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	ex := r.db.Executor(ctx)

	row := ex.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	exp, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.String("expense_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", sqlite.Classify(err))
	}

	steps, err := r.loadSteps(ctx, ex, []string{id})
	if err != nil {
		return nil, err
	}
	exp.ApprovalSteps = steps[id]
	return exp, nil
}

// Save writes status and step decisions guarded by the version column
func (r *ExpenseRepository) Save(ctx context.Context, exp *entity.Expense) error {
	now := time.Now().UTC()
	err := r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := r.db.Executor(txCtx)

		res, err := ex.ExecContext(txCtx, `
			UPDATE expenses SET status = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			exp.Status, now, exp.ID, exp.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			var exists int
			err := ex.QueryRowContext(txCtx, `SELECT 1 FROM expenses WHERE id = ?`, exp.ID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("expense %s: %w", exp.ID, port.ErrNotFound)
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("expense %s at version %d: %w", exp.ID, exp.Version, port.ErrVersionConflict)
		}

		for _, step := range exp.ApprovalSteps {
			_, err := ex.ExecContext(txCtx, `
				UPDATE approval_steps SET decision = ?, decided_by = ?, comment = ?, decided_at = ?
				WHERE expense_id = ? AND sequence = ?`,
				step.Decision, step.DecidedBy, step.Comment, nullTime(step.DecidedAt),
				exp.ID, step.Sequence,
			)
			if err != nil {
				return fmt.Errorf("failed to update approval step %d: %w", step.Sequence, err)
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, port.ErrVersionConflict) {
			r.logger.Error("Failed to save expense", zap.String("expense_id", exp.ID), zap.Error(err))
		}
		return err
	}

	exp.Version++
	exp.UpdatedAt = now
	return nil
}

// List returns an organization's expenses, newest first
func (r *ExpenseRepository) List(ctx context.Context, orgID string, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	if filter.Submitters != nil && len(filter.Submitters) == 0 {
		return []*entity.Expense{}, nil
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE org_id = ?`
	args := []interface{}{orgID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.SubmittedBy != "" {
		query += ` AND submitted_by = ?`
		args = append(args, filter.SubmittedBy)
	}
	if len(filter.Submitters) > 0 {
		query += ` AND submitted_by IN (` + placeholders(len(filter.Submitters)) + `)`
		for _, id := range filter.Submitters {
			args = append(args, id)
		}
	}
	query += ` ORDER BY submitted_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	expenses, err := r.query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.String("org_id", orgID), zap.Error(err))
		return nil, err
	}
	return expenses, nil
}

// ListPendingByRuleType returns pending expenses of every organization whose
// snapshot uses the given rule type, oldest first
func (r *ExpenseRepository) ListPendingByRuleType(ctx context.Context, ruleType entity.RuleType) ([]*entity.Expense, error) {
	return r.query(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE status = ? AND rule_type_snapshot = ?
		ORDER BY submitted_at, id`, entity.StatusPending, ruleType)
}

func (r *ExpenseRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Expense, error) {
	ex := r.db.Executor(ctx)

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", sqlite.Classify(err))
	}
	defer rows.Close()

	var expenses []*entity.Expense
	var ids []string
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, exp)
		ids = append(ids, exp.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*entity.Expense{}, nil
	}

	steps, err := r.loadSteps(ctx, ex, ids)
	if err != nil {
		return nil, err
	}
	for _, exp := range expenses {
		exp.ApprovalSteps = steps[exp.ID]
	}
	return expenses, nil
}

func (r *ExpenseRepository) loadSteps(ctx context.Context, ex sqlite.Executor, expenseIDs []string) (map[string][]entity.ApprovalStep, error) {
	args := make([]interface{}, len(expenseIDs))
	for i, id := range expenseIDs {
		args[i] = id
	}

	rows, err := ex.QueryContext(ctx, `
		SELECT id, expense_id, sequence, role, approver_id, decision, decided_by, comment, decided_at
		FROM approval_steps
		WHERE expense_id IN (`+placeholders(len(expenseIDs))+`)
		ORDER BY expense_id, sequence`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval steps: %w", sqlite.Classify(err))
	}
	defer rows.Close()

	result := make(map[string][]entity.ApprovalStep, len(expenseIDs))
	for rows.Next() {
		var (
			step      entity.ApprovalStep
			expenseID string
			decidedAt sql.NullTime
		)
		if err := rows.Scan(&step.ID, &expenseID, &step.Sequence, &step.Role, &step.ApproverID,
			&step.Decision, &step.DecidedBy, &step.Comment, &decidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		if decidedAt.Valid {
			t := decidedAt.Time
			step.DecidedAt = &t
		}
		result[expenseID] = append(result[expenseID], step)
	}
	return result, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row rowScanner) (*entity.Expense, error) {
	var (
		exp entity.Expense
		pct sql.NullInt64
	)
	err := row.Scan(
		&exp.ID, &exp.OrgID, &exp.Title, &exp.Description,
		&exp.Amount, &exp.Currency, &exp.OriginalAmount, &exp.OriginalCurrency,
		&exp.SubmittedBy, &exp.Date, &exp.SubmittedAt, &exp.Status,
		&exp.RuleID, &exp.RuleTypeSnapshot, &pct, &exp.SpecificApproverSnapshot,
		&exp.Version, &exp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if pct.Valid {
		p := int(pct.Int64)
		exp.PercentageSnapshot = &p
	}
	return &exp, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
