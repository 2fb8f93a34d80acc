package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// UserInput is an admin's change to one directory entry
type UserInput struct {
	Role      entity.Role
	ManagerID string
}

// DirectoryService lets admins maintain who reports to whom
type DirectoryService interface {
	List(ctx context.Context, actor entity.Actor) ([]*entity.User, error)
	Upsert(ctx context.Context, actor entity.Actor, userID string, in UserInput) (*entity.User, error)
}

type directoryServiceImpl struct {
	directory port.DirectoryRepository
	logger    Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(directory port.DirectoryRepository, logger Logger) DirectoryService {
	return &directoryServiceImpl{directory: directory, logger: logger}
}

func (s *directoryServiceImpl) List(ctx context.Context, actor entity.Actor) ([]*entity.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.directory.List(ctx, actor.OrgID)
}

// Upsert records a user's role and manager. The manager must already be in
// the organization's directory.
func (s *directoryServiceImpl) Upsert(ctx context.Context, actor entity.Actor, userID string, in UserInput) (*entity.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	user := &entity.User{
		ID:        strings.TrimSpace(userID),
		OrgID:     actor.OrgID,
		Role:      entity.Role(strings.ToLower(strings.TrimSpace(string(in.Role)))),
		ManagerID: strings.TrimSpace(in.ManagerID),
		UpdatedAt: time.Now().UTC(),
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !user.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if user.ManagerID == user.ID {
		return nil, fmt.Errorf("%w: user %s cannot manage themselves", ErrInvalidInput, user.ID)
	}
	if user.ManagerID != "" {
		_, err := s.directory.GetByID(ctx, actor.OrgID, user.ManagerID)
		if errors.Is(err, port.ErrNotFound) {
			return nil, fmt.Errorf("%w: manager %s is not in the directory", ErrInvalidInput, user.ManagerID)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := s.directory.Upsert(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("Directory entry saved", "user_id", user.ID, "role", user.Role, "manager_id", user.ManagerID)
	return user, nil
}
