package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

func TestValidateRule(t *testing.T) {
	steps := []entity.RuleStep{{Role: entity.RoleManager}, {Role: entity.RoleFinance, ApproverID: "U7"}}

	tests := []struct {
		name    string
		rule    *entity.ApprovalRule
		wantErr bool
	}{
		{"nil rule", nil, true},
		{"sequential", &entity.ApprovalRule{RuleType: entity.RuleTypeSequential, Steps: steps}, false},
		{"unknown type", &entity.ApprovalRule{RuleType: "weighted", Steps: steps}, true},
		{"no steps", &entity.ApprovalRule{RuleType: entity.RuleTypeSequential}, true},
		{"employee step role", &entity.ApprovalRule{RuleType: entity.RuleTypeSequential, Steps: []entity.RuleStep{{Role: entity.RoleEmployee}}}, true},
		{"free-form step role", &entity.ApprovalRule{RuleType: entity.RuleTypeSequential, Steps: []entity.RuleStep{{Role: "cfo"}}}, true},
		{"percentage ok", &entity.ApprovalRule{RuleType: entity.RuleTypePercentage, PercentageThreshold: intPtr(60), Steps: steps}, false},
		{"percentage missing threshold", &entity.ApprovalRule{RuleType: entity.RuleTypePercentage, Steps: steps}, true},
		{"percentage above 100", &entity.ApprovalRule{RuleType: entity.RuleTypePercentage, PercentageThreshold: intPtr(101), Steps: steps}, true},
		{"percentage negative", &entity.ApprovalRule{RuleType: entity.RuleTypePercentage, PercentageThreshold: intPtr(-1), Steps: steps}, true},
		{"specific ok", &entity.ApprovalRule{RuleType: entity.RuleTypeSpecific, SpecificApproverID: "U7", Steps: steps}, false},
		{"specific missing approver", &entity.ApprovalRule{RuleType: entity.RuleTypeSpecific, Steps: steps}, true},
		{"specific approver not bound", &entity.ApprovalRule{RuleType: entity.RuleTypeSpecific, SpecificApproverID: "U9", Steps: steps}, true},
		{"hybrid approver not bound is allowed", &entity.ApprovalRule{RuleType: entity.RuleTypeHybrid, PercentageThreshold: intPtr(50), SpecificApproverID: "U9", Steps: steps}, false},
		{"hybrid missing threshold", &entity.ApprovalRule{RuleType: entity.RuleTypeHybrid, SpecificApproverID: "U7", Steps: steps}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRule(tt.rule)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaterialize(t *testing.T) {
	engine := newTestEngine()
	rule := &entity.ApprovalRule{
		ID:                  "rule-9",
		RuleType:            entity.RuleTypeHybrid,
		PercentageThreshold: intPtr(75),
		SpecificApproverID:  "U7",
		Steps: []entity.RuleStep{
			{Role: entity.RoleManager},
			{Role: entity.RoleFinance},
			{Role: entity.RoleDirector, ApproverID: "U7"},
		},
	}

	exp := &entity.Expense{ID: "exp-m"}
	require.NoError(t, engine.Materialize(rule, exp))

	assert.Equal(t, entity.StatusPending, exp.Status)
	assert.Equal(t, "rule-9", exp.RuleID)
	assert.Equal(t, entity.RuleTypeHybrid, exp.RuleTypeSnapshot)
	assert.Equal(t, "U7", exp.SpecificApproverSnapshot)
	require.NotNil(t, exp.PercentageSnapshot)
	assert.Equal(t, 75, *exp.PercentageSnapshot)

	require.Len(t, exp.ApprovalSteps, 3)
	for i, s := range exp.ApprovalSteps {
		assert.Equal(t, i, s.Sequence)
		assert.Equal(t, rule.Steps[i].Role, s.Role)
		assert.Equal(t, rule.Steps[i].ApproverID, s.ApproverID)
		assert.Equal(t, entity.DecisionUndecided, s.Decision)
		assert.Nil(t, s.DecidedAt)
	}

	t.Run("later rule edits do not reach the snapshot", func(t *testing.T) {
		*rule.PercentageThreshold = 10
		rule.SpecificApproverID = "U8"
		rule.Steps[0].Role = entity.RoleAdmin

		assert.Equal(t, 75, *exp.PercentageSnapshot)
		assert.Equal(t, "U7", exp.SpecificApproverSnapshot)
		assert.Equal(t, entity.RoleManager, exp.ApprovalSteps[0].Role)
	})

	t.Run("zero percentage threshold approves at submission", func(t *testing.T) {
		zero := &entity.ApprovalRule{
			ID:                  "rule-0",
			RuleType:            entity.RuleTypePercentage,
			PercentageThreshold: intPtr(0),
			Steps:               []entity.RuleStep{{Role: entity.RoleManager}, {Role: entity.RoleFinance}},
		}
		fresh := &entity.Expense{ID: "exp-0"}
		require.NoError(t, engine.Materialize(zero, fresh))

		assert.Equal(t, entity.StatusApproved, fresh.Status)
		for _, s := range fresh.ApprovalSteps {
			assert.Equal(t, entity.DecisionUndecided, s.Decision)
		}

		status, err := engine.EvaluateStatus(fresh)
		require.NoError(t, err)
		assert.Equal(t, fresh.Status, status)
	})

	t.Run("nonzero threshold starts pending", func(t *testing.T) {
		sixty := &entity.ApprovalRule{
			RuleType:            entity.RuleTypePercentage,
			PercentageThreshold: intPtr(60),
			Steps:               []entity.RuleStep{{Role: entity.RoleManager}, {Role: entity.RoleFinance}},
		}
		fresh := &entity.Expense{ID: "exp-60"}
		require.NoError(t, engine.Materialize(sixty, fresh))
		assert.Equal(t, entity.StatusPending, fresh.Status)
	})

	t.Run("specific snapshots from valid rules never stall", func(t *testing.T) {
		specific := &entity.ApprovalRule{
			RuleType:           entity.RuleTypeSpecific,
			SpecificApproverID: "U7",
			Steps:              []entity.RuleStep{{Role: entity.RoleManager}, {Role: entity.RoleDirector, ApproverID: "U7"}},
		}
		fresh := &entity.Expense{ID: "exp-s"}
		require.NoError(t, engine.Materialize(specific, fresh))
		assert.False(t, engine.IsStalled(fresh))

		specific.SpecificApproverID = "U9"
		stuck := &entity.Expense{ID: "exp-u"}
		assert.ErrorIs(t, engine.Materialize(specific, stuck), ErrMalformedRule)
		assert.Empty(t, stuck.ApprovalSteps)
	})

	t.Run("invalid rule leaves the expense untouched", func(t *testing.T) {
		fresh := &entity.Expense{ID: "exp-x"}
		err := engine.Materialize(&entity.ApprovalRule{RuleType: entity.RuleTypeSequential}, fresh)

		assert.ErrorIs(t, err, ErrMalformedRule)
		assert.Empty(t, fresh.ApprovalSteps)
		assert.Empty(t, fresh.Status)
	})
}
