package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/approval"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/event"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// SubmitInput is what an employee provides when filing an expense
type SubmitInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
	Currency    string
	Date        time.Time
}

// ExpenseService manages submission and retrieval of expenses
type ExpenseService interface {
	Submit(ctx context.Context, actor entity.Actor, in SubmitInput) (*entity.Expense, error)
	Get(ctx context.Context, actor entity.Actor, id string) (*entity.Expense, error)
	ListMine(ctx context.Context, actor entity.Actor, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	ListTeam(ctx context.Context, actor entity.Actor, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	ListAll(ctx context.Context, actor entity.Actor, filter entity.ExpenseFilter) ([]*entity.Expense, error)
}

type expenseServiceImpl struct {
	expenseRepo  port.ExpenseRepository
	ruleRepo     port.RuleRepository
	historyRepo  port.HistoryRepository
	directory    port.DirectoryRepository
	txManager    port.TransactionManager
	converter    port.CurrencyConverter
	engine       *approval.Engine
	publisher    Publisher
	baseCurrency string
	logger       Logger
}

// NewExpenseService creates a new ExpenseService. Amounts are stored in baseCurrency.
func NewExpenseService(
	expenseRepo port.ExpenseRepository,
	ruleRepo port.RuleRepository,
	historyRepo port.HistoryRepository,
	directory port.DirectoryRepository,
	txManager port.TransactionManager,
	converter port.CurrencyConverter,
	engine *approval.Engine,
	publisher Publisher,
	baseCurrency string,
	logger Logger,
) ExpenseService {
	return &expenseServiceImpl{
		expenseRepo:  expenseRepo,
		ruleRepo:     ruleRepo,
		historyRepo:  historyRepo,
		directory:    directory,
		txManager:    txManager,
		converter:    converter,
		engine:       engine,
		publisher:    publisher,
		baseCurrency: strings.ToUpper(baseCurrency),
		logger:       logger,
	}
}

// normalizeSubmit validates the input and returns it with clean text fields
// and an upper-case currency code
func normalizeSubmit(in SubmitInput) (SubmitInput, error) {
	in.Title = utils.SanitizeString(in.Title)
	in.Description = utils.SanitizeString(in.Description)
	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return in, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	currency, err := utils.NormalizeCurrency(in.Currency)
	if err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	in.Currency = currency
	if in.Date.IsZero() {
		return in, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	return in, nil
}

// Submit files an expense against the organization's active rule
func (s *expenseServiceImpl) Submit(ctx context.Context, actor entity.Actor, in SubmitInput) (*entity.Expense, error) {
	in, err := normalizeSubmit(in)
	if err != nil {
		return nil, err
	}

	rule, err := s.ruleRepo.GetActive(ctx, actor.OrgID)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: organization %s has no active rule", approval.ErrMalformedRule, actor.OrgID)
	}
	if err != nil {
		return nil, fmt.Errorf("load active rule: %w", err)
	}

	amount, err := s.converter.Convert(ctx, in.Amount, in.Currency, s.baseCurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	exp := &entity.Expense{
		ID:               uuid.NewString(),
		OrgID:            actor.OrgID,
		Title:            in.Title,
		Description:      in.Description,
		Amount:           amount,
		Currency:         s.baseCurrency,
		OriginalAmount:   in.Amount,
		OriginalCurrency: in.Currency,
		SubmittedBy:      actor.ID,
		Date:             in.Date,
		SubmittedAt:      now,
		UpdatedAt:        now,
	}
	if err := s.engine.Materialize(rule, exp); err != nil {
		s.logger.Error("Active rule cannot be materialized", "error", err, "rule_id", rule.ID, "org_id", actor.OrgID)
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.expenseRepo.Create(txCtx, exp); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		return s.historyRepo.Append(txCtx, &entity.ExpenseHistory{
			ExpenseID:  exp.ID,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			ActionType: entity.ActionSubmit,
			NewStatus:  exp.Status,
			Timestamp:  now,
		})
	})
	if err != nil {
		s.logger.Error("Failed to submit expense", "error", err, "submitted_by", actor.ID)
		return nil, err
	}

	submitted := event.NewEvent(event.TypeExpenseSubmitted, exp.OrgID, exp.ID, map[string]interface{}{
		event.KeySubmittedBy: exp.SubmittedBy,
		event.KeyRuleID:      exp.RuleID,
		event.KeyRuleType:    exp.RuleTypeSnapshot.String(),
	})
	s.publisher.DispatchAsync(ctx, submitted)
	if exp.Status == entity.StatusApproved {
		s.publisher.DispatchAsync(ctx, event.NewEventWithCorrelation(event.TypeExpenseApproved, exp.OrgID, exp.ID, map[string]interface{}{
			event.KeySubmittedBy: exp.SubmittedBy,
			event.KeyStatus:      exp.Status.String(),
			event.KeyRuleType:    exp.RuleTypeSnapshot.String(),
		}, submitted.ID))
	}

	s.logger.Info("Expense submitted",
		"expense_id", exp.ID,
		"submitted_by", exp.SubmittedBy,
		"rule_type", exp.RuleTypeSnapshot,
		"status", exp.Status,
		"steps", len(exp.ApprovalSteps),
	)
	return exp, nil
}

// Get returns an expense visible to the actor. Expenses of other
// organizations are reported as not found.
func (s *expenseServiceImpl) Get(ctx context.Context, actor entity.Actor, id string) (*entity.Expense, error) {
	return loadVisible(ctx, s.expenseRepo, actor, id)
}

func loadVisible(ctx context.Context, repo port.ExpenseRepository, actor entity.Actor, id string) (*entity.Expense, error) {
	exp, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.OrgID != actor.OrgID {
		return nil, fmt.Errorf("expense %s: %w", id, port.ErrNotFound)
	}
	if actor.Role == entity.RoleEmployee && exp.SubmittedBy != actor.ID {
		return nil, fmt.Errorf("%w: expense %s belongs to another employee", ErrForbidden, id)
	}
	return exp, nil
}

func (s *expenseServiceImpl) ListMine(ctx context.Context, actor entity.Actor, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	filter.SubmittedBy = actor.ID
	return s.expenseRepo.List(ctx, actor.OrgID, filter)
}

// ListTeam shows managers their direct reports' expenses and the other
// approver roles the whole organization's
func (s *expenseServiceImpl) ListTeam(ctx context.Context, actor entity.Actor, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	if !actor.Role.IsApprover() {
		return nil, fmt.Errorf("%w: role %s cannot view team expenses", ErrForbidden, actor.Role)
	}
	if actor.Role == entity.RoleManager {
		reports, err := s.directory.ReportsOf(ctx, actor.OrgID, actor.ID)
		if err != nil {
			s.logger.Error("Failed to load direct reports", "error", err, "manager_id", actor.ID)
			return nil, fmt.Errorf("load reports: %w", err)
		}
		filter.Submitters = append([]string{}, reports...)
	}
	return s.expenseRepo.List(ctx, actor.OrgID, filter)
}

// ListAll backs the admin dashboard
func (s *expenseServiceImpl) ListAll(ctx context.Context, actor entity.Actor, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	return s.expenseRepo.List(ctx, actor.OrgID, filter)
}
