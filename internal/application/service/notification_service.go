package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approval/internal/application/dispatcher"
	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/event"
)

// NotificationService turns expense events into messages for people
type NotificationService interface {
	// Subscribe registers the service's handlers on the dispatcher
	Subscribe(d dispatcher.Dispatcher)

	NotifyApprovers(ctx context.Context, expenseID string) error
	NotifySubmitter(ctx context.Context, expenseID string) error
}

type notificationServiceImpl struct {
	expenseRepo port.ExpenseRepository
	notifier    port.Notifier
	logger      Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(expenseRepo port.ExpenseRepository, notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		expenseRepo: expenseRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *notificationServiceImpl) Subscribe(d dispatcher.Dispatcher) {
	notifyApprovers := func(ctx context.Context, evt *event.Event) error {
		return s.NotifyApprovers(ctx, evt.ExpenseID)
	}
	notifySubmitter := func(ctx context.Context, evt *event.Event) error {
		return s.NotifySubmitter(ctx, evt.ExpenseID)
	}

	d.SubscribeNamed(event.TypeExpenseSubmitted, "notify-approvers", notifyApprovers)
	d.SubscribeNamed(event.TypeExpenseApproved, "notify-submitter", notifySubmitter)
	d.SubscribeNamed(event.TypeExpenseRejected, "notify-submitter", notifySubmitter)
}

// NotifyApprovers messages the holders of every undecided step of a pending expense
func (s *notificationServiceImpl) NotifyApprovers(ctx context.Context, expenseID string) error {
	exp, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if exp.Status != entity.StatusPending {
		return nil
	}

	var waiting []entity.ApprovalStep
	for _, step := range exp.ApprovalSteps {
		if !step.Decision.IsDecided() {
			waiting = append(waiting, step)
		}
	}
	if len(waiting) == 0 {
		return nil
	}

	if err := s.notifier.NotifyApprovers(ctx, exp, waiting); err != nil {
		s.logger.Error("Failed to notify approvers", "error", err, "expense_id", expenseID)
		return fmt.Errorf("notify approvers: %w", err)
	}
	s.logger.Info("Approvers notified", "expense_id", expenseID, "steps", len(waiting))
	return nil
}

// NotifySubmitter tells the submitter about a final decision
func (s *notificationServiceImpl) NotifySubmitter(ctx context.Context, expenseID string) error {
	exp, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if !exp.Status.IsTerminal() {
		return nil
	}

	if err := s.notifier.NotifySubmitter(ctx, exp); err != nil {
		s.logger.Error("Failed to notify submitter", "error", err, "expense_id", expenseID, "submitted_by", exp.SubmittedBy)
		return fmt.Errorf("notify submitter: %w", err)
	}
	s.logger.Info("Submitter notified", "expense_id", expenseID, "status", exp.Status)
	return nil
}
