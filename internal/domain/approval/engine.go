// Package approval decides an expense's status from its approval steps and
// the rule parameters snapshotted at submission.
//
// The engine is a pure function of (expense, snapshot, action): it never
// reads storage and keeps no state between calls, so it needs no locking.
// Serializing concurrent decisions is the persistence layer's job.
package approval

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/workflow"
)

// StepRef identifies a step inside one expense's step list
type StepRef struct {
	Index    int
	Sequence int
}

// Engine evaluates approval decisions
type Engine struct {
	now func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the clock used for decidedAt
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindActionableStep returns the first undecided step the actor may decide:
// either bound to the actor personally or unbound and requiring the actor's role.
func (e *Engine) FindActionableStep(exp *entity.Expense, actorID string, actorRole entity.Role) (StepRef, error) {
	for i, step := range exp.ApprovalSteps {
		if step.Decision.IsDecided() {
			continue
		}
		if canAct(step, actorID, actorRole) {
			return StepRef{Index: i, Sequence: step.Sequence}, nil
		}
	}
	return StepRef{}, fmt.Errorf("%w: actor %s (%s) on expense %s", ErrNotAnApprover, actorID, actorRole, exp.ID)
}

// IsEligible reports whether the actor matches any step, decided or not.
// Together with FindActionableStep it separates "not yours" from "too late".
func (e *Engine) IsEligible(exp *entity.Expense, actorID string, actorRole entity.Role) bool {
	for _, step := range exp.ApprovalSteps {
		if canAct(step, actorID, actorRole) {
			return true
		}
	}
	return false
}

func canAct(step entity.ApprovalStep, actorID string, actorRole entity.Role) bool {
	if step.ApproverID != "" {
		return actorID != "" && step.ApproverID == actorID
	}
	return step.Role == actorRole
}

// RecordDecision applies one decision to one step and re-derives the status.
// The input expense is left untouched; the returned copy carries the change.
func (e *Engine) RecordDecision(exp *entity.Expense, ref StepRef, decision entity.Decision, comment, actorID string) (*entity.Expense, error) {
	if !decision.IsDecided() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
	if exp.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: expense %s is %s", ErrAlreadyDecided, exp.ID, exp.Status)
	}
	if ref.Index < 0 || ref.Index >= len(exp.ApprovalSteps) || exp.ApprovalSteps[ref.Index].Sequence != ref.Sequence {
		return nil, fmt.Errorf("%w: step %d not found on expense %s", ErrNotAnApprover, ref.Sequence, exp.ID)
	}
	if exp.ApprovalSteps[ref.Index].Decision.IsDecided() {
		return nil, fmt.Errorf("%w: step %d of expense %s", ErrAlreadyDecided, ref.Sequence, exp.ID)
	}

	updated := exp.Clone()
	decidedAt := e.now()
	step := &updated.ApprovalSteps[ref.Index]
	step.Decision = decision
	step.Comment = comment
	step.DecidedBy = actorID
	step.DecidedAt = &decidedAt

	status, err := e.EvaluateStatus(updated)
	if err != nil {
		return nil, err
	}
	if err := workflow.Transition(workflow.State(exp.Status), workflow.State(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlreadyDecided, err)
	}
	updated.Status = status

	return updated, nil
}

// EvaluateStatus derives the status from scratch. A single rejection vetoes
// the expense regardless of rule type.
func (e *Engine) EvaluateStatus(exp *entity.Expense) (entity.Status, error) {
	steps := exp.ApprovalSteps
	if len(steps) == 0 {
		return "", fmt.Errorf("%w: expense %s has no approval steps", ErrMalformedRule, exp.ID)
	}

	for _, s := range steps {
		if s.Decision == entity.DecisionRejected {
			return entity.StatusRejected, nil
		}
	}

	var approved bool
	switch exp.RuleTypeSnapshot {
	case entity.RuleTypePercentage:
		met, err := percentageMet(exp)
		if err != nil {
			return "", err
		}
		approved = met
	case entity.RuleTypeSpecific:
		approved = specificMet(exp)
	case entity.RuleTypeHybrid:
		met, err := percentageMet(exp)
		if err != nil {
			return "", err
		}
		approved = met || specificMet(exp)
	default:
		// sequential, and the fallback for any unrecognized snapshot
		approved = allApproved(steps)
	}

	if approved {
		return entity.StatusApproved, nil
	}
	return entity.StatusPending, nil
}

func allApproved(steps []entity.ApprovalStep) bool {
	for _, s := range steps {
		if s.Decision != entity.DecisionApproved {
			return false
		}
	}
	return true
}

// percentageMet compares approved/total*100 >= threshold. Both sides are
// multiplied by total so the comparison is exact.
func percentageMet(exp *entity.Expense) (bool, error) {
	if exp.PercentageSnapshot == nil {
		return false, fmt.Errorf("%w: %s rule on expense %s has no threshold", ErrMalformedRule, exp.RuleTypeSnapshot, exp.ID)
	}
	threshold := *exp.PercentageSnapshot
	if threshold < 0 || threshold > 100 {
		return false, fmt.Errorf("%w: threshold %d out of range on expense %s", ErrMalformedRule, threshold, exp.ID)
	}
	total := len(exp.ApprovalSteps)
	return exp.ApprovedCount()*100 >= threshold*total, nil
}

func specificMet(exp *entity.Expense) bool {
	if exp.SpecificApproverSnapshot == "" {
		return false
	}
	for _, s := range exp.ApprovalSteps {
		if s.ApproverID == exp.SpecificApproverSnapshot && s.Decision == entity.DecisionApproved {
			return true
		}
	}
	return false
}

// IsStalled reports a pending specific-rule expense whose named approver is
// not bound to any of its steps. Such an expense can only ever be rejected.
func (e *Engine) IsStalled(exp *entity.Expense) bool {
	if exp.Status != entity.StatusPending || exp.RuleTypeSnapshot != entity.RuleTypeSpecific {
		return false
	}
	for _, s := range exp.ApprovalSteps {
		if exp.SpecificApproverSnapshot != "" && s.ApproverID == exp.SpecificApproverSnapshot {
			return false
		}
	}
	return true
}

// ListPendingFor yields, in input order, the pending expenses the actor can
// act on. The sequence is restartable.
func (e *Engine) ListPendingFor(actorID string, actorRole entity.Role, expenses []*entity.Expense) iter.Seq[*entity.Expense] {
	return func(yield func(*entity.Expense) bool) {
		for _, exp := range expenses {
			if exp == nil || exp.Status != entity.StatusPending {
				continue
			}
			if _, err := e.FindActionableStep(exp, actorID, actorRole); err != nil {
				continue
			}
			if !yield(exp) {
				return
			}
		}
	}
}

// PendingFor collects ListPendingFor into a slice
func (e *Engine) PendingFor(actorID string, actorRole entity.Role, expenses []*entity.Expense) []*entity.Expense {
	return slices.Collect(e.ListPendingFor(actorID, actorRole, expenses))
}
