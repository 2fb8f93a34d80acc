package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append adds an audit entry. Entries are never updated or deleted.
func (r *HistoryRepository) Append(ctx context.Context, h *entity.ExpenseHistory) error {
	var step sql.NullInt64
	if h.StepSequence != nil {
		step = sql.NullInt64{Int64: int64(*h.StepSequence), Valid: true}
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO expense_history (
			expense_id, actor_id, actor_role, action_type, step_sequence,
			previous_status, new_status, comment, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ExpenseID, h.ActorID, h.ActorRole, h.ActionType, step,
		h.PreviousStatus, h.NewStatus, h.Comment, h.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append history", zap.String("expense_id", h.ExpenseID), zap.Error(err))
		return fmt.Errorf("failed to append history: %w", sqlite.Classify(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// ListByExpense returns an expense's audit trail in insertion order
func (r *HistoryRepository) ListByExpense(ctx context.Context, expenseID string) ([]*entity.ExpenseHistory, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, expense_id, actor_id, actor_role, action_type, step_sequence,
			previous_status, new_status, comment, timestamp
		FROM expense_history
		WHERE expense_id = ?
		ORDER BY id ASC`, expenseID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", sqlite.Classify(err))
	}
	defer rows.Close()

	records := []*entity.ExpenseHistory{}
	for rows.Next() {
		var (
			h    entity.ExpenseHistory
			step sql.NullInt64
		)
		if err := rows.Scan(&h.ID, &h.ExpenseID, &h.ActorID, &h.ActorRole, &h.ActionType, &step,
			&h.PreviousStatus, &h.NewStatus, &h.Comment, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if step.Valid {
			s := int(step.Int64)
			h.StepSequence = &s
		}
		records = append(records, &h)
	}
	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
