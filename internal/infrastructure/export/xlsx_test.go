package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

func sampleExpenses() []*entity.Expense {
	decided := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return []*entity.Expense{
		{
			ID:               "exp-1",
			Title:            "Taxi",
			SubmittedBy:      "u1",
			Date:             time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			SubmittedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			Amount:           decimal.RequireFromString("42.50"),
			Currency:         "USD",
			OriginalAmount:   decimal.RequireFromString("42.50"),
			OriginalCurrency: "USD",
			RuleTypeSnapshot: entity.RuleTypeSequential,
			Status:           entity.StatusPending,
			ApprovalSteps: []entity.ApprovalStep{
				{Sequence: 0, Role: entity.RoleManager, Decision: entity.DecisionApproved, DecidedBy: "m1", DecidedAt: &decided},
				{Sequence: 1, Role: entity.RoleFinance, Decision: entity.DecisionUndecided},
			},
		},
		{
			ID:               "exp-2",
			Title:            "Hotel",
			SubmittedBy:      "u2",
			Amount:           decimal.NewFromInt(300),
			Currency:         "USD",
			RuleTypeSnapshot: entity.RuleTypeSpecific,
			Status:           entity.StatusRejected,
			ApprovalSteps: []entity.ApprovalStep{
				{Sequence: 0, Role: entity.RoleDirector, ApproverID: "d1", Decision: entity.DecisionRejected, Comment: "too pricey"},
			},
		},
	}
}

func TestXLSXExporter_Export(t *testing.T) {
	x := NewXLSXExporter("", 0, zap.NewNop())
	var buf bytes.Buffer
	require.NoError(t, x.Export(context.Background(), sampleExpenses(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetExpenses, SheetSteps}, f.GetSheetList())

	rows, err := f.GetRows(SheetExpenses)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Title", rows[0][1])
	assert.Equal(t, []string{"exp-1", "Taxi", "u1", "2026-03-01", "2026-03-01T09:00:00Z", "42.5", "USD", "42.5", "USD", "sequential", "pending", "1", "2"}, rows[1])
	assert.Equal(t, "rejected", rows[2][10])

	steps, err := f.GetRows(SheetSteps)
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, []string{"exp-1", "1", "manager", "", "approved", "m1", "2026-03-02T10:00:00Z"}, steps[1])
	assert.Equal(t, "too pricey", steps[3][7])
}

func TestXLSXExporter_RowLimit(t *testing.T) {
	x := NewXLSXExporter("2006-01-02", 1, zap.NewNop())
	err := x.Export(context.Background(), sampleExpenses(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "limit is 1")
}

func TestXLSXExporter_Empty(t *testing.T) {
	x := NewXLSXExporter("2006-01-02", 10, zap.NewNop())
	var buf bytes.Buffer
	require.NoError(t, x.Export(context.Background(), nil, &buf))
	assert.Equal(t, xlsxContentType, x.ContentType())

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	rows, err := f.GetRows(SheetExpenses)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
