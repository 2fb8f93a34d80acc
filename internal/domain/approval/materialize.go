package approval

import (
	"fmt"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ValidateRule rejects rules the engine could not evaluate. Unknown rule
// types are refused here even though stored snapshots fall back to sequential.
func ValidateRule(rule *entity.ApprovalRule) error {
	if rule == nil {
		return fmt.Errorf("%w: no rule", ErrMalformedRule)
	}
	if !rule.RuleType.IsKnown() {
		return fmt.Errorf("%w: unknown rule type %q", ErrMalformedRule, rule.RuleType)
	}
	if len(rule.Steps) == 0 {
		return fmt.Errorf("%w: rule %q has no steps", ErrMalformedRule, rule.Name)
	}
	for i, s := range rule.Steps {
		if !s.Role.IsApprover() {
			return fmt.Errorf("%w: step %d has role %q", ErrMalformedRule, i, s.Role)
		}
	}

	if rule.RuleType.NeedsThreshold() {
		if rule.PercentageThreshold == nil {
			return fmt.Errorf("%w: %s rule requires a percentage threshold", ErrMalformedRule, rule.RuleType)
		}
		if p := *rule.PercentageThreshold; p < 0 || p > 100 {
			return fmt.Errorf("%w: percentage threshold %d outside 0-100", ErrMalformedRule, p)
		}
	}

	if rule.RuleType.NeedsSpecificApprover() {
		if rule.SpecificApproverID == "" {
			return fmt.Errorf("%w: %s rule requires a specific approver", ErrMalformedRule, rule.RuleType)
		}
		// A specific rule whose approver holds no step could never approve
		if rule.RuleType == entity.RuleTypeSpecific && !rule.BindsApprover(rule.SpecificApproverID) {
			return fmt.Errorf("%w: specific approver %s is not bound to any step", ErrMalformedRule, rule.SpecificApproverID)
		}
	}

	return nil
}

// Materialize snapshots the rule onto a new expense: one undecided step per
// rule step plus the rule parameters. The expense never looks at the live
// rule again. The initial status is evaluated against the snapshot, so a
// percentage threshold of 0 approves at submission.
func (e *Engine) Materialize(rule *entity.ApprovalRule, exp *entity.Expense) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	original := *exp

	steps := make([]entity.ApprovalStep, 0, len(rule.Steps))
	for i, rs := range rule.Steps {
		steps = append(steps, entity.ApprovalStep{
			Sequence:   i,
			Role:       rs.Role,
			ApproverID: rs.ApproverID,
			Decision:   entity.DecisionUndecided,
		})
	}

	exp.ApprovalSteps = steps
	exp.Status = entity.StatusPending
	exp.RuleID = rule.ID
	exp.RuleTypeSnapshot = rule.RuleType
	exp.SpecificApproverSnapshot = rule.SpecificApproverID
	exp.PercentageSnapshot = nil
	if rule.PercentageThreshold != nil {
		p := *rule.PercentageThreshold
		exp.PercentageSnapshot = &p
	}

	status, err := e.EvaluateStatus(exp)
	if err != nil {
		*exp = original
		return err
	}
	exp.Status = status
	return nil
}
