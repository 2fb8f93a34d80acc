package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/approval"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/event"
)

// ConflictObserver is told about every lost compare-and-swap
type ConflictObserver interface {
	RecordConflict()
}

type noopConflicts struct{}

func (noopConflicts) RecordConflict() {}

// ApprovalService records approver decisions and answers "what is waiting for me"
type ApprovalService interface {
	Decide(ctx context.Context, actor entity.Actor, expenseID string, decision entity.Decision, comment string) (*entity.Expense, error)
	PendingFor(ctx context.Context, actor entity.Actor) ([]*entity.Expense, error)
	History(ctx context.Context, actor entity.Actor, expenseID string) ([]*entity.ExpenseHistory, error)
}

type approvalServiceImpl struct {
	expenseRepo port.ExpenseRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	engine      *approval.Engine
	publisher   Publisher
	conflicts   ConflictObserver
	maxRetries  int
	logger      Logger
}

// ApprovalOption configures the approval service
type ApprovalOption func(*approvalServiceImpl)

// WithMaxConflictRetries bounds how often Decide reloads after losing a race
func WithMaxConflictRetries(n int) ApprovalOption {
	return func(s *approvalServiceImpl) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithConflictObserver reports lost races, typically to metrics
func WithConflictObserver(o ConflictObserver) ApprovalOption {
	return func(s *approvalServiceImpl) {
		s.conflicts = o
	}
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	expenseRepo port.ExpenseRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	engine *approval.Engine,
	publisher Publisher,
	logger Logger,
	opts ...ApprovalOption,
) ApprovalService {
	s := &approvalServiceImpl{
		expenseRepo: expenseRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		engine:      engine,
		publisher:   publisher,
		conflicts:   noopConflicts{},
		maxRetries:  5,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decide applies one decision with load, decide, compare-and-swap save. A
// lost race reloads and re-runs the whole sequence, so the retry observes
// the winner's write.
func (s *approvalServiceImpl) Decide(ctx context.Context, actor entity.Actor, expenseID string, decision entity.Decision, comment string) (*entity.Expense, error) {
	if !decision.IsDecided() {
		return nil, fmt.Errorf("%w: %q", approval.ErrInvalidDecision, decision)
	}

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", approval.ErrTransientFailure, err)
		}

		before, after, ref, err := s.decideOnce(ctx, actor, expenseID, decision, comment)
		if errors.Is(err, port.ErrVersionConflict) {
			s.conflicts.RecordConflict()
			s.logger.Info("Decision lost a concurrent update, retrying",
				"expense_id", expenseID,
				"actor_id", actor.ID,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publishDecision(ctx, actor, before, after, ref, decision)
		s.logger.Info("Decision recorded",
			"expense_id", expenseID,
			"actor_id", actor.ID,
			"decision", decision,
			"step", ref.Sequence,
			"status", after.Status,
		)
		return after, nil
	}

	s.logger.Error("Decision abandoned after repeated conflicts", "expense_id", expenseID, "actor_id", actor.ID)
	return nil, fmt.Errorf("%w: expense %s still contended after %d retries", approval.ErrTransientFailure, expenseID, s.maxRetries)
}

func (s *approvalServiceImpl) decideOnce(ctx context.Context, actor entity.Actor, expenseID string, decision entity.Decision, comment string) (before, after *entity.Expense, ref approval.StepRef, err error) {
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.expenseRepo.GetByID(txCtx, expenseID)
		if err != nil {
			return err
		}
		if current.OrgID != actor.OrgID {
			return fmt.Errorf("expense %s: %w", expenseID, port.ErrNotFound)
		}

		ref, err = s.engine.FindActionableStep(current, actor.ID, actor.Role)
		if err != nil {
			if s.engine.IsEligible(current, actor.ID, actor.Role) {
				return fmt.Errorf("%w: actor %s has no undecided step left on expense %s", approval.ErrAlreadyDecided, actor.ID, expenseID)
			}
			return err
		}

		updated, err := s.engine.RecordDecision(current, ref, decision, comment, actor.ID)
		if err != nil {
			return err
		}
		if err := s.expenseRepo.Save(txCtx, updated); err != nil {
			return err
		}

		seq := ref.Sequence
		action := entity.ActionApprove
		if decision == entity.DecisionRejected {
			action = entity.ActionReject
		}
		if err := s.historyRepo.Append(txCtx, &entity.ExpenseHistory{
			ExpenseID:      expenseID,
			ActorID:        actor.ID,
			ActorRole:      actor.Role,
			ActionType:     action,
			StepSequence:   &seq,
			PreviousStatus: current.Status,
			NewStatus:      updated.Status,
			Comment:        comment,
			Timestamp:      *updated.ApprovalSteps[ref.Index].DecidedAt,
		}); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		before, after = current, updated
		return nil
	})
	return before, after, ref, err
}

func (s *approvalServiceImpl) publishDecision(ctx context.Context, actor entity.Actor, before, after *entity.Expense, ref approval.StepRef, decision entity.Decision) {
	recorded := event.NewEvent(event.TypeDecisionRecorded, after.OrgID, after.ID, map[string]interface{}{
		event.KeyActorID:    actor.ID,
		event.KeyActorRole:  actor.Role.String(),
		event.KeyDecision:   decision.String(),
		event.KeyStep:       ref.Sequence,
		event.KeyPrevStatus: before.Status.String(),
		event.KeyStatus:     after.Status.String(),
	})
	s.publisher.DispatchAsync(ctx, recorded)

	if before.Status == after.Status {
		return
	}
	var terminal event.Type
	switch after.Status {
	case entity.StatusApproved:
		terminal = event.TypeExpenseApproved
	case entity.StatusRejected:
		terminal = event.TypeExpenseRejected
	default:
		return
	}
	s.publisher.DispatchAsync(ctx, event.NewEventWithCorrelation(terminal, after.OrgID, after.ID, map[string]interface{}{
		event.KeySubmittedBy: after.SubmittedBy,
		event.KeyStatus:      after.Status.String(),
		event.KeyRuleType:    after.RuleTypeSnapshot.String(),
	}, recorded.ID))
}

// PendingFor lists the organization's pending expenses the actor can act on, oldest first
func (s *approvalServiceImpl) PendingFor(ctx context.Context, actor entity.Actor) ([]*entity.Expense, error) {
	pending, err := s.expenseRepo.List(ctx, actor.OrgID, entity.ExpenseFilter{Status: entity.StatusPending})
	if err != nil {
		s.logger.Error("Failed to list pending expenses", "error", err, "org_id", actor.OrgID)
		return nil, fmt.Errorf("list pending: %w", err)
	}

	result := make([]*entity.Expense, 0, len(pending))
	for exp := range s.engine.ListPendingFor(actor.ID, actor.Role, pending) {
		result = append(result, exp)
	}
	slices.SortStableFunc(result, func(a, b *entity.Expense) int {
		return cmp.Compare(a.SubmittedAt.UnixNano(), b.SubmittedAt.UnixNano())
	})
	return result, nil
}

// History returns the audit trail of an expense visible to the actor
func (s *approvalServiceImpl) History(ctx context.Context, actor entity.Actor, expenseID string) ([]*entity.ExpenseHistory, error) {
	if _, err := loadVisible(ctx, s.expenseRepo, actor, expenseID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByExpense(ctx, expenseID)
}
