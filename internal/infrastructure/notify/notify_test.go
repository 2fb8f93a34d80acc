package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

type countingNotifier struct {
	approvers, submitters int
	err                   error
}

func (c *countingNotifier) NotifyApprovers(context.Context, *entity.Expense, []entity.ApprovalStep) error {
	c.approvers++
	return c.err
}

func (c *countingNotifier) NotifySubmitter(context.Context, *entity.Expense) error {
	c.submitters++
	return c.err
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))
	exp := &entity.Expense{ID: "exp-1", Amount: decimal.NewFromInt(5), Currency: "USD", SubmittedBy: "u1", Status: entity.StatusApproved}

	require.NoError(t, n.NotifyApprovers(context.Background(), exp, []entity.ApprovalStep{
		{Sequence: 0, Role: entity.RoleManager},
		{Sequence: 1, Role: entity.RoleFinance, ApproverID: "u9"},
	}))
	require.NoError(t, n.NotifySubmitter(context.Background(), exp))

	assert.Equal(t, 2, logs.FilterMessage("Approval requested").Len())
	finalized := logs.FilterMessage("Expense finalized").All()
	require.Len(t, finalized, 1)
	assert.Equal(t, "approved", finalized[0].ContextMap()["status"])
}

func TestMulti(t *testing.T) {
	failing := &countingNotifier{err: errors.New("down")}
	ok := &countingNotifier{}
	m := Multi{failing, ok}

	err := m.NotifyApprovers(context.Background(), &entity.Expense{}, nil)
	assert.ErrorContains(t, err, "down")
	assert.NoError(t, Multi{ok}.NotifySubmitter(context.Background(), &entity.Expense{}))

	assert.Equal(t, 1, failing.approvers)
	assert.Equal(t, 1, ok.approvers)
	assert.Equal(t, 1, ok.submitters)
}
