package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/approval"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/event"
)

// RuleInput describes an approval rule to create or replace
type RuleInput struct {
	Name                string
	Description         string
	RuleType            entity.RuleType
	PercentageThreshold *int
	SpecificApproverID  string
	Steps               []entity.RuleStep
}

// RuleService lets admins manage their organization's approval rules
type RuleService interface {
	List(ctx context.Context, actor entity.Actor) ([]*entity.ApprovalRule, error)
	Get(ctx context.Context, actor entity.Actor, id string) (*entity.ApprovalRule, error)
	Create(ctx context.Context, actor entity.Actor, in RuleInput) (*entity.ApprovalRule, error)
	Update(ctx context.Context, actor entity.Actor, id string, in RuleInput) (*entity.ApprovalRule, error)
	Activate(ctx context.Context, actor entity.Actor, id string) error
	Delete(ctx context.Context, actor entity.Actor, id string) error
}

type ruleServiceImpl struct {
	ruleRepo  port.RuleRepository
	txManager port.TransactionManager
	publisher Publisher
	logger    Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(ruleRepo port.RuleRepository, txManager port.TransactionManager, publisher Publisher, logger Logger) RuleService {
	return &ruleServiceImpl{
		ruleRepo:  ruleRepo,
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
	}
}

func requireAdmin(actor entity.Actor) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin only", ErrForbidden)
	}
	return nil
}

func (s *ruleServiceImpl) List(ctx context.Context, actor entity.Actor) ([]*entity.ApprovalRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.ruleRepo.List(ctx, actor.OrgID)
}

func (s *ruleServiceImpl) Get(ctx context.Context, actor entity.Actor, id string) (*entity.ApprovalRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, actor, id)
}

func (s *ruleServiceImpl) load(ctx context.Context, actor entity.Actor, id string) (*entity.ApprovalRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.OrgID != actor.OrgID {
		return nil, fmt.Errorf("rule %s: %w", id, port.ErrNotFound)
	}
	return rule, nil
}

// apply copies the input onto the rule and validates the result
func (s *ruleServiceImpl) apply(rule *entity.ApprovalRule, in RuleInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	rule.Name = strings.TrimSpace(in.Name)
	rule.Description = in.Description
	rule.RuleType = in.RuleType
	rule.PercentageThreshold = in.PercentageThreshold
	rule.SpecificApproverID = in.SpecificApproverID
	rule.Steps = append([]entity.RuleStep(nil), in.Steps...)

	if err := approval.ValidateRule(rule); err != nil {
		return err
	}
	if rule.RuleType == entity.RuleTypeHybrid && !rule.BindsApprover(rule.SpecificApproverID) {
		s.logger.Warn("Hybrid rule names an approver bound to no step; only the percentage path can approve",
			"rule_name", rule.Name,
			"specific_approver_id", rule.SpecificApproverID,
		)
	}
	return nil
}

// Create stores a new rule. The first rule of an organization becomes its active rule.
func (s *ruleServiceImpl) Create(ctx context.Context, actor entity.Actor, in RuleInput) (*entity.ApprovalRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule := &entity.ApprovalRule{
		ID:        uuid.NewString(),
		OrgID:     actor.OrgID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.apply(rule, in); err != nil {
		return nil, err
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		_, err := s.ruleRepo.GetActive(txCtx, actor.OrgID)
		switch {
		case errors.Is(err, port.ErrNotFound):
			rule.IsActive = true
		case err != nil:
			return err
		}
		return s.ruleRepo.Create(txCtx, rule)
	})
	if err != nil {
		s.logger.Error("Failed to create rule", "error", err, "org_id", actor.OrgID)
		return nil, err
	}

	s.logger.Info("Rule created", "rule_id", rule.ID, "rule_type", rule.RuleType, "active", rule.IsActive)
	return rule, nil
}

// Update replaces a rule's definition. Expenses already submitted keep their snapshot.
func (s *ruleServiceImpl) Update(ctx context.Context, actor entity.Actor, id string, in RuleInput) (*entity.ApprovalRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	rule, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(rule, in); err != nil {
		return nil, err
	}
	rule.UpdatedAt = time.Now().UTC()

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		s.logger.Error("Failed to update rule", "error", err, "rule_id", id)
		return nil, err
	}
	s.logger.Info("Rule updated", "rule_id", id)
	return rule, nil
}

// Activate makes the rule the one new submissions use
func (s *ruleServiceImpl) Activate(ctx context.Context, actor entity.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	rule, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	// Stored rules may predate stricter validation
	if err := approval.ValidateRule(rule); err != nil {
		return err
	}
	if err := s.ruleRepo.Activate(ctx, actor.OrgID, id); err != nil {
		return err
	}

	s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypeRuleActivated, actor.OrgID, "", map[string]interface{}{
		event.KeyRuleID:   id,
		event.KeyRuleType: rule.RuleType.String(),
		event.KeyActorID:  actor.ID,
	}))
	s.logger.Info("Rule activated", "rule_id", id, "org_id", actor.OrgID)
	return nil
}

func (s *ruleServiceImpl) Delete(ctx context.Context, actor entity.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	rule, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if rule.IsActive {
		return fmt.Errorf("%w: activate another rule before deleting %s", ErrRuleActive, id)
	}
	return s.ruleRepo.Delete(ctx, id)
}
