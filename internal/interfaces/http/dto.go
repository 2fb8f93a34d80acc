package http

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// SubmitExpenseRequest is the body of POST /expenses
type SubmitExpenseRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        string          `json:"date"` // YYYY-MM-DD
}

// DecisionRequest is the body of POST /expenses/:id/decision
type DecisionRequest struct {
	Decision string `json:"decision"` // approve or reject
	Comment  string `json:"comment"`
}

// DecisionResponse reports the expense status after a decision
type DecisionResponse struct {
	ExpenseID string                `json:"expense_id"`
	Status    entity.Status         `json:"status"`
	Steps     []entity.ApprovalStep `json:"steps"`
	Version   int64                 `json:"version"`
}

// RuleRequest is the body of POST and PUT /rules
type RuleRequest struct {
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	RuleType            entity.RuleType   `json:"rule_type"`
	PercentageThreshold *int              `json:"percentage_threshold"`
	SpecificApproverID  string            `json:"specific_approver_id"`
	Steps               []entity.RuleStep `json:"steps"`
}

// UserRequest is the body of PUT /users/:id
type UserRequest struct {
	Role      entity.Role `json:"role"`
	ManagerID string      `json:"manager_id"`
}

// ListQuery holds the common listing parameters
type ListQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (q ListQuery) filter() entity.ExpenseFilter {
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	return entity.ExpenseFilter{
		Status: entity.Status(strings.ToLower(q.Status)),
		Limit:  limit,
		Offset: offset,
	}
}

// parseDecision accepts both the verb and the past-tense form
func parseDecision(raw string) entity.Decision {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approve", "approved":
		return entity.DecisionApproved
	case "reject", "rejected":
		return entity.DecisionRejected
	default:
		return entity.Decision(raw)
	}
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, raw)
}
