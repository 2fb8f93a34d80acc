package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

const receiveIDTypeChat = "chat_id"

// Notifier delivers expense notifications as Lark text messages.
// Steps bound to a person go to that person. Steps open to a role go to the
// role's configured group chat and are skipped when none is configured.
type Notifier struct {
	sender        MessageSender
	receiveIDType string
	roleChats     map[entity.Role]string
	logger        *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(sender MessageSender, cfg Config, logger *zap.Logger) *Notifier {
	chats := make(map[entity.Role]string, len(cfg.RoleChats))
	for role, chat := range cfg.RoleChats {
		chats[entity.Role(strings.ToLower(role))] = chat
	}
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = "user_id"
	}
	return &Notifier{
		sender:        sender,
		receiveIDType: idType,
		roleChats:     chats,
		logger:        logger,
	}
}

// NotifyApprovers asks each waiting step holder to review the expense.
// Each recipient is messaged once even if it holds several steps.
func (n *Notifier) NotifyApprovers(ctx context.Context, exp *entity.Expense, steps []entity.ApprovalStep) error {
	text := fmt.Sprintf("Expense awaiting your approval\n%s\nAmount: %s %s\nSubmitted by: %s\nID: %s",
		exp.Title, exp.Amount.StringFixed(2), exp.Currency, exp.SubmittedBy, exp.ID)

	sent := make(map[string]bool)
	var errs []error
	for _, step := range steps {
		idType, receiver := n.receiverFor(step)
		if receiver == "" {
			n.logger.Debug("No Lark receiver for step",
				zap.String("expense_id", exp.ID),
				zap.Int("sequence", step.Sequence),
				zap.String("role", step.Role.String()))
			continue
		}
		key := idType + ":" + receiver
		if sent[key] {
			continue
		}
		sent[key] = true

		if err := n.sendText(ctx, idType, receiver, text); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", step.Sequence, err))
		}
	}
	return errors.Join(errs...)
}

// NotifySubmitter reports the final status to the submitter
func (n *Notifier) NotifySubmitter(ctx context.Context, exp *entity.Expense) error {
	text := fmt.Sprintf("Your expense %q was %s\nAmount: %s %s\nID: %s",
		exp.Title, exp.Status, exp.Amount.StringFixed(2), exp.Currency, exp.ID)
	for _, step := range exp.ApprovalSteps {
		if step.Decision == entity.DecisionRejected && step.Comment != "" {
			text += "\nComment: " + step.Comment
		}
	}
	return n.sendText(ctx, n.receiveIDType, exp.SubmittedBy, text)
}

func (n *Notifier) receiverFor(step entity.ApprovalStep) (string, string) {
	if step.ApproverID != "" {
		return n.receiveIDType, step.ApproverID
	}
	return receiveIDTypeChat, n.roleChats[step.Role]
}

func (n *Notifier) sendText(ctx context.Context, idType, receiver, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msgID, err := n.sender.Send(ctx, idType, receiver, "text", string(content))
	if err != nil {
		return err
	}
	n.logger.Info("Lark message sent",
		zap.String("message_id", msgID),
		zap.String("receive_id_type", idType),
		zap.String("receive_id", receiver))
	return nil
}
