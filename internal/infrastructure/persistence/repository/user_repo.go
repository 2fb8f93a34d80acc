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

// UserRepository implements port.DirectoryRepository
type UserRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewUserRepository creates a new directory repository
func NewUserRepository(db *sqlite.DB, logger *zap.Logger) port.DirectoryRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

func (r *UserRepository) Upsert(ctx context.Context, user *entity.User) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO users (id, org_id, role, manager_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (org_id, id) DO UPDATE SET
			role = excluded.role,
			manager_id = excluded.manager_id,
			updated_at = excluded.updated_at`,
		user.ID, user.OrgID, user.Role, user.ManagerID, user.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", sqlite.Classify(err))
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, orgID, id string) (*entity.User, error) {
	var u entity.User
	err := r.db.Executor(ctx).QueryRowContext(ctx, `
		SELECT id, org_id, role, manager_id, updated_at FROM users
		WHERE org_id = ? AND id = ?`, orgID, id,
	).Scan(&u.ID, &u.OrgID, &u.Role, &u.ManagerID, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", sqlite.Classify(err))
	}
	return &u, nil
}

// List returns an organization's directory ordered by user ID
func (r *UserRepository) List(ctx context.Context, orgID string) ([]*entity.User, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, org_id, role, manager_id, updated_at FROM users
		WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		r.logger.Error("Failed to list users", zap.String("org_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", sqlite.Classify(err))
	}
	defer rows.Close()

	users := []*entity.User{}
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Role, &u.ManagerID, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (r *UserRepository) ReportsOf(ctx context.Context, orgID, managerID string) ([]string, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id FROM users WHERE org_id = ? AND manager_id = ? ORDER BY id`, orgID, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", sqlite.Classify(err))
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ port.DirectoryRepository = (*UserRepository)(nil)
