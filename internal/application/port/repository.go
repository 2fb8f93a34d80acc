package port

import (
	"context"
	"errors"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by ExpenseRepository.Save when the stored
	// version no longer matches the one the caller loaded
	ErrVersionConflict = errors.New("version conflict")
)

// ExpenseRepository persists expenses together with their approval steps
type ExpenseRepository interface {
	// Create inserts the expense and its steps, assigning step IDs and version 1
	Create(ctx context.Context, exp *entity.Expense) error

	// GetByID loads an expense with its steps ordered by sequence
	GetByID(ctx context.Context, id string) (*entity.Expense, error)

	// Save writes status and step decisions if the stored version equals
	// exp.Version, then bumps exp.Version. Otherwise ErrVersionConflict.
	Save(ctx context.Context, exp *entity.Expense) error

	// List returns an organization's expenses, newest first
	List(ctx context.Context, orgID string, filter entity.ExpenseFilter) ([]*entity.Expense, error)
}

// RuleRepository persists approval rules. At most one rule per organization is active.
type RuleRepository interface {
	Create(ctx context.Context, rule *entity.ApprovalRule) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalRule, error)
	GetActive(ctx context.Context, orgID string) (*entity.ApprovalRule, error)
	List(ctx context.Context, orgID string) ([]*entity.ApprovalRule, error)
	Update(ctx context.Context, rule *entity.ApprovalRule) error

	// Activate makes the rule the organization's only active rule
	Activate(ctx context.Context, orgID, id string) error
	Delete(ctx context.Context, id string) error
}

// HistoryRepository persists the append-only audit trail
type HistoryRepository interface {
	Append(ctx context.Context, h *entity.ExpenseHistory) error
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.ExpenseHistory, error)
}

// DirectoryRepository persists the organization chart used to scope team views
type DirectoryRepository interface {
	// Upsert creates or replaces a user's directory entry
	Upsert(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, orgID, id string) (*entity.User, error)
	List(ctx context.Context, orgID string) ([]*entity.User, error)

	// ReportsOf returns the IDs of the users whose manager is managerID
	ReportsOf(ctx context.Context, orgID, managerID string) ([]string, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
