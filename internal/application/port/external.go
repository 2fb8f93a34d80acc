package port

import (
	"context"
	"io"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Notifier delivers human-facing messages about expenses
type Notifier interface {
	// NotifyApprovers tells the holders of the given steps that an expense awaits them
	NotifyApprovers(ctx context.Context, exp *entity.Expense, steps []entity.ApprovalStep) error

	// NotifySubmitter tells the submitter that their expense reached a final status
	NotifySubmitter(ctx context.Context, exp *entity.Expense) error
}

// CurrencyConverter converts a submitted amount into the organization's currency
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// ExpenseExporter renders expenses into a downloadable report
type ExpenseExporter interface {
	Export(ctx context.Context, expenses []*entity.Expense, w io.Writer) error
	ContentType() string
}
