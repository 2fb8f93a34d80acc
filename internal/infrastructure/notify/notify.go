// Package notify holds notifiers that need no external service.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// LogNotifier writes notifications to the structured log. It is the
// fallback when no messaging backend is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyApprovers(_ context.Context, exp *entity.Expense, steps []entity.ApprovalStep) error {
	for _, step := range steps {
		n.logger.Info("Approval requested",
			zap.String("expense_id", exp.ID),
			zap.Int("sequence", step.Sequence),
			zap.String("role", step.Role.String()),
			zap.String("approver_id", step.ApproverID),
			zap.String("amount", exp.Amount.StringFixed(2)),
			zap.String("currency", exp.Currency))
	}
	return nil
}

func (n *LogNotifier) NotifySubmitter(_ context.Context, exp *entity.Expense) error {
	n.logger.Info("Expense finalized",
		zap.String("expense_id", exp.ID),
		zap.String("submitted_by", exp.SubmittedBy),
		zap.String("status", exp.Status.String()))
	return nil
}

// Multi fans a notification out to several notifiers. Every notifier is
// tried; the errors are joined.
type Multi []port.Notifier

func (m Multi) NotifyApprovers(ctx context.Context, exp *entity.Expense, steps []entity.ApprovalStep) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifyApprovers(ctx, exp, steps))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifySubmitter(ctx context.Context, exp *entity.Expense) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifySubmitter(ctx, exp))
	}
	return errors.Join(errs...)
}
