package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/approval"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/event"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type countingObserver struct{ n atomic.Int32 }

func (c *countingObserver) RecordConflict() { c.n.Add(1) }

type approvalFixture struct {
	repo      *memExpenseRepo
	history   *mockHistoryRepo
	publisher *mockPublisher
	conflicts *countingObserver
	svc       ApprovalService
}

func newApprovalFixture(repo *memExpenseRepo, opts ...ApprovalOption) *approvalFixture {
	f := &approvalFixture{
		repo:      repo,
		history:   &mockHistoryRepo{},
		publisher: &mockPublisher{},
		conflicts: &countingObserver{},
	}
	opts = append([]ApprovalOption{WithConflictObserver(f.conflicts)}, opts...)
	f.svc = NewApprovalService(repo, f.history, &mockTxManager{}, approval.NewEngine(), f.publisher, &mockLogger{}, opts...)
	return f
}

func TestApprovalService_Decide_Sequential(t *testing.T) {
	exp := pendingExpense("exp-1", entity.RuleTypeSequential, t0, entity.RoleManager, entity.RoleFinance)
	f := newApprovalFixture(newMemExpenseRepo(exp))
	ctx := context.Background()

	got, err := f.svc.Decide(ctx, manager, "exp-1", entity.DecisionApproved, "ok")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "M1", got.ApprovalSteps[0].DecidedBy)
	assert.Equal(t, "ok", got.ApprovalSteps[0].Comment)

	got, err = f.svc.Decide(ctx, finance, "exp-1", entity.DecisionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, got.Status)
	assert.Equal(t, entity.StatusApproved, f.repo.stored("exp-1").Status)

	assert.Equal(t, []event.Type{
		event.TypeDecisionRecorded,
		event.TypeDecisionRecorded,
		event.TypeExpenseApproved,
	}, f.publisher.types())
	assert.Equal(t, f.publisher.events[1].ID, f.publisher.events[2].CorrelationID)

	require.Equal(t, 2, f.history.count())
	last := f.history.entries[1]
	assert.Equal(t, entity.ActionApprove, last.ActionType)
	assert.Equal(t, entity.StatusPending, last.PreviousStatus)
	assert.Equal(t, entity.StatusApproved, last.NewStatus)
	require.NotNil(t, last.StepSequence)
	assert.Equal(t, 1, *last.StepSequence)
}

func TestApprovalService_Decide_VetoThenTerminal(t *testing.T) {
	exp := pendingExpense("exp-1", entity.RuleTypePercentage, t0, entity.RoleManager, entity.RoleFinance, entity.RoleDirector)
	exp.PercentageSnapshot = intPtr(50)
	f := newApprovalFixture(newMemExpenseRepo(exp))
	ctx := context.Background()

	got, err := f.svc.Decide(ctx, finance, "exp-1", entity.DecisionRejected, "no receipt")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, got.Status)
	assert.Equal(t, []event.Type{event.TypeDecisionRecorded, event.TypeExpenseRejected}, f.publisher.types())
	assert.Equal(t, entity.ActionReject, f.history.entries[0].ActionType)

	_, err = f.svc.Decide(ctx, director, "exp-1", entity.DecisionApproved, "")
	assert.ErrorIs(t, err, approval.ErrAlreadyDecided)
	assert.Equal(t, entity.StatusRejected, f.repo.stored("exp-1").Status)
}

func TestApprovalService_Decide_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    entity.Actor
		id       string
		decision entity.Decision
		wantErr  error
	}{
		{"employee is not an approver", employee, "exp-1", entity.DecisionApproved, approval.ErrNotAnApprover},
		{"other organization", entity.Actor{ID: "M9", Role: entity.RoleManager, OrgID: "org-2"}, "exp-1", entity.DecisionApproved, port.ErrNotFound},
		{"missing expense", manager, "nope", entity.DecisionApproved, port.ErrNotFound},
		{"undecided is not a decision", manager, "exp-1", entity.DecisionUndecided, approval.ErrInvalidDecision},
		{"garbage decision", manager, "exp-1", "maybe", approval.ErrInvalidDecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := pendingExpense("exp-1", entity.RuleTypeSequential, t0, entity.RoleManager)
			f := newApprovalFixture(newMemExpenseRepo(exp))

			_, err := f.svc.Decide(ctx, tt.actor, tt.id, tt.decision, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.repo.saves)
			assert.Empty(t, f.publisher.types())
		})
	}
}

func TestApprovalService_Decide_SameStepLoserGetsAlreadyDecided(t *testing.T) {
	exp := pendingExpense("exp-1", entity.RuleTypeSequential, t0, entity.RoleManager)
	repo := newMemExpenseRepo(exp)
	var once sync.Once
	repo.beforeSave = func(*entity.Expense) error {
		once.Do(func() {
			repo.mutate("exp-1", func(e *entity.Expense) {
				e.ApprovalSteps[0].Decision = entity.DecisionApproved
				e.ApprovalSteps[0].DecidedBy = "M2"
				e.Status = entity.StatusApproved
			})
		})
		return nil
	}
	f := newApprovalFixture(repo)

	_, err := f.svc.Decide(context.Background(), manager, "exp-1", entity.DecisionRejected, "")
	assert.ErrorIs(t, err, approval.ErrAlreadyDecided)
	assert.Equal(t, int32(1), f.conflicts.n.Load())

	stored := repo.stored("exp-1")
	assert.Equal(t, entity.StatusApproved, stored.Status)
	assert.Equal(t, "M2", stored.ApprovalSteps[0].DecidedBy)
	assert.Zero(t, f.history.count())
}

func TestApprovalService_Decide_DifferentStepLoserIsAppliedOnTop(t *testing.T) {
	exp := pendingExpense("exp-1", entity.RuleTypeSequential, t0, entity.RoleManager, entity.RoleFinance)
	repo := newMemExpenseRepo(exp)
	var once sync.Once
	repo.beforeSave = func(*entity.Expense) error {
		once.Do(func() {
			repo.mutate("exp-1", func(e *entity.Expense) {
				e.ApprovalSteps[1].Decision = entity.DecisionApproved
				e.ApprovalSteps[1].DecidedBy = "F1"
			})
		})
		return nil
	}
	f := newApprovalFixture(repo)

	got, err := f.svc.Decide(context.Background(), manager, "exp-1", entity.DecisionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, got.Status)
	assert.Equal(t, "F1", got.ApprovalSteps[1].DecidedBy, "winner's decision survives")
	assert.Equal(t, "M1", got.ApprovalSteps[0].DecidedBy)
	assert.Equal(t, int32(1), f.conflicts.n.Load())
	assert.Contains(t, f.publisher.types(), event.TypeExpenseApproved)
}

func TestApprovalService_Decide_RetriesExhausted(t *testing.T) {
	exp := pendingExpense("exp-1", entity.RuleTypeSequential, t0, entity.RoleManager)
	repo := newMemExpenseRepo(exp)
	var attempts int
	repo.beforeSave = func(*entity.Expense) error {
		attempts++
		return port.ErrVersionConflict
	}
	f := newApprovalFixture(repo, WithMaxConflictRetries(2))

	_, err := f.svc.Decide(context.Background(), manager, "exp-1", entity.DecisionApproved, "")
	assert.ErrorIs(t, err, approval.ErrTransientFailure)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, int32(3), f.conflicts.n.Load())
	assert.Empty(t, f.publisher.types())
}

func TestApprovalService_Decide_TransientFailuresAreNotRetried(t *testing.T) {
	exp := pendingExpense("exp-1", entity.RuleTypeSequential, t0, entity.RoleManager)
	var calls int
	tx := &mockTxManager{withTransactionFunc: func(ctx context.Context, fn func(ctx context.Context) error) error {
		calls++
		return errors.Join(approval.ErrTransientFailure, errors.New("database is locked"))
	}}
	svc := NewApprovalService(newMemExpenseRepo(exp), &mockHistoryRepo{}, tx, approval.NewEngine(), &mockPublisher{}, &mockLogger{})

	_, err := svc.Decide(context.Background(), manager, "exp-1", entity.DecisionApproved, "")
	assert.ErrorIs(t, err, approval.ErrTransientFailure)
	assert.Equal(t, 1, calls)
}

func TestApprovalService_Decide_CancelledContext(t *testing.T) {
	exp := pendingExpense("exp-1", entity.RuleTypeSequential, t0, entity.RoleManager)
	f := newApprovalFixture(newMemExpenseRepo(exp))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Decide(ctx, manager, "exp-1", entity.DecisionApproved, "")
	assert.ErrorIs(t, err, approval.ErrTransientFailure)
}

func TestApprovalService_Decide_ConcurrentApproversAreAllApplied(t *testing.T) {
	exp := pendingExpense("exp-1", entity.RuleTypeSequential, t0,
		entity.RoleManager, entity.RoleFinance, entity.RoleDirector, entity.RoleAdmin)
	f := newApprovalFixture(newMemExpenseRepo(exp), WithMaxConflictRetries(10))

	actors := []entity.Actor{manager, finance, director, admin}
	var wg sync.WaitGroup
	errs := make([]error, len(actors))
	for i, a := range actors {
		wg.Add(1)
		go func(i int, a entity.Actor) {
			defer wg.Done()
			_, errs[i] = f.svc.Decide(context.Background(), a, "exp-1", entity.DecisionApproved, "")
		}(i, a)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "actor %s", actors[i].ID)
	}
	stored := f.repo.stored("exp-1")
	assert.Equal(t, entity.StatusApproved, stored.Status)
	assert.Equal(t, 4, stored.ApprovedCount())
	assert.Equal(t, int64(5), stored.Version)
	assert.Equal(t, 4, f.history.count())
}

func TestApprovalService_PendingFor(t *testing.T) {
	older := pendingExpense("old", entity.RuleTypeSequential, t0, entity.RoleManager)
	newer := pendingExpense("new", entity.RuleTypeSequential, t0.Add(time.Hour), entity.RoleManager)
	financeOnly := pendingExpense("fin", entity.RuleTypeSequential, t0.Add(-time.Hour), entity.RoleFinance)
	done := pendingExpense("done", entity.RuleTypeSequential, t0.Add(-2*time.Hour), entity.RoleManager)
	done.Status = entity.StatusApproved
	foreign := pendingExpense("foreign", entity.RuleTypeSequential, t0, entity.RoleManager)
	foreign.OrgID = "org-2"

	f := newApprovalFixture(newMemExpenseRepo(newer, financeOnly, older, done, foreign))

	got, err := f.svc.PendingFor(context.Background(), manager)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "old", got[0].ID)
	assert.Equal(t, "new", got[1].ID)

	none, err := f.svc.PendingFor(context.Background(), employee)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	f.repo.listErr = errors.New("disk gone")
	_, err = f.svc.PendingFor(context.Background(), manager)
	assert.Error(t, err)
}

func TestApprovalService_History(t *testing.T) {
	exp := pendingExpense("exp-1", entity.RuleTypeSequential, t0, entity.RoleManager)
	f := newApprovalFixture(newMemExpenseRepo(exp))
	ctx := context.Background()

	_, err := f.svc.Decide(ctx, manager, "exp-1", entity.DecisionApproved, "fine")
	require.NoError(t, err)

	trail, err := f.svc.History(ctx, employee, "exp-1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "fine", trail[0].Comment)

	stranger := entity.Actor{ID: "E2", Role: entity.RoleEmployee, OrgID: "org-1"}
	_, err = f.svc.History(ctx, stranger, "exp-1")
	assert.ErrorIs(t, err, ErrForbidden)
}
