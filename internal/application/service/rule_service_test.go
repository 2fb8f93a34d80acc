package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/approval"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/event"
)

func sequentialInput(name string) RuleInput {
	return RuleInput{
		Name:     name,
		RuleType: entity.RuleTypeSequential,
		Steps:    []entity.RuleStep{{Role: entity.RoleManager}, {Role: entity.RoleFinance}},
	}
}

func newRuleFixture() (*mockRuleRepo, *mockPublisher, *mockLogger, RuleService) {
	repo := newMockRuleRepo()
	pub := &mockPublisher{}
	logger := &mockLogger{}
	return repo, pub, logger, NewRuleService(repo, &mockTxManager{}, pub, logger)
}

func TestRuleService_CreateAndActivate(t *testing.T) {
	repo, pub, _, svc := newRuleFixture()
	ctx := context.Background()

	first, err := svc.Create(ctx, admin, sequentialInput("Default"))
	require.NoError(t, err)
	assert.True(t, first.IsActive, "first rule of an organization is active")
	assert.Equal(t, "org-1", first.OrgID)

	second, err := svc.Create(ctx, admin, sequentialInput("Strict"))
	require.NoError(t, err)
	assert.False(t, second.IsActive)

	require.NoError(t, svc.Activate(ctx, admin, second.ID))
	active, err := repo.GetActive(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, []event.Type{event.TypeRuleActivated}, pub.types())

	err = svc.Delete(ctx, admin, second.ID)
	assert.ErrorIs(t, err, ErrRuleActive)
	require.NoError(t, svc.Delete(ctx, admin, first.ID))

	rules, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestRuleService_Validation(t *testing.T) {
	_, _, logger, svc := newRuleFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, RuleInput{Name: "", RuleType: entity.RuleTypeSequential, Steps: []entity.RuleStep{{Role: entity.RoleManager}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, admin, RuleInput{Name: "x", RuleType: entity.RuleTypePercentage, Steps: []entity.RuleStep{{Role: entity.RoleManager}}})
	assert.ErrorIs(t, err, approval.ErrMalformedRule)

	_, err = svc.Create(ctx, admin, RuleInput{
		Name:               "CFO",
		RuleType:           entity.RuleTypeSpecific,
		SpecificApproverID: "CFO1",
		Steps:              []entity.RuleStep{{Role: entity.RoleManager}},
	})
	assert.ErrorIs(t, err, approval.ErrMalformedRule)

	_, err = svc.Create(ctx, admin, RuleInput{
		Name:                "Hybrid",
		RuleType:            entity.RuleTypeHybrid,
		PercentageThreshold: intPtr(50),
		SpecificApproverID:  "CFO1",
		Steps:               []entity.RuleStep{{Role: entity.RoleManager}, {Role: entity.RoleFinance}},
	})
	require.NoError(t, err)
	assert.Len(t, logger.warns, 1)
}

func TestRuleService_Update(t *testing.T) {
	_, _, _, svc := newRuleFixture()
	ctx := context.Background()

	rule, err := svc.Create(ctx, admin, sequentialInput("Default"))
	require.NoError(t, err)
	before := rule.UpdatedAt
	time.Sleep(time.Millisecond)

	in := sequentialInput("Default v2")
	in.Steps = append(in.Steps, entity.RuleStep{Role: entity.RoleDirector})
	updated, err := svc.Update(ctx, admin, rule.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Default v2", updated.Name)
	assert.Len(t, updated.Steps, 3)
	assert.True(t, updated.UpdatedAt.After(before))

	_, err = svc.Update(ctx, admin, rule.ID, RuleInput{Name: "bad", RuleType: "weighted", Steps: in.Steps})
	assert.ErrorIs(t, err, approval.ErrMalformedRule)

	got, err := svc.Get(ctx, admin, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Default v2", got.Name)
}

func TestRuleService_AccessControl(t *testing.T) {
	_, _, _, svc := newRuleFixture()
	ctx := context.Background()

	rule, err := svc.Create(ctx, admin, sequentialInput("Default"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, manager, sequentialInput("Mine"))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.List(ctx, finance)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.Activate(ctx, employee, rule.ID), ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, director, rule.ID), ErrForbidden)

	otherAdmin := entity.Actor{ID: "A2", Role: entity.RoleAdmin, OrgID: "org-2"}
	_, err = svc.Get(ctx, otherAdmin, rule.ID)
	assert.ErrorIs(t, err, port.ErrNotFound)
}
