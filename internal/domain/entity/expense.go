package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStep is one required sign-off slot in an expense's workflow
type ApprovalStep struct {
	ID         int64      `json:"id,omitempty"`
	Sequence   int        `json:"sequence"`
	Role       Role       `json:"role"`
	ApproverID string     `json:"approver_id,omitempty"` // empty: any holder of Role may act
	Decision   Decision   `json:"decision"`
	DecidedBy  string     `json:"decided_by,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}

// Expense is a submitted expense together with its approval snapshot
type Expense struct {
	ID               string          `json:"id"`
	OrgID            string          `json:"org_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	OriginalCurrency string          `json:"original_currency"`
	SubmittedBy      string          `json:"submitted_by"`
	Date             time.Time       `json:"date"`
	SubmittedAt      time.Time       `json:"submitted_at"`

	Status        Status         `json:"status"`
	ApprovalSteps []ApprovalStep `json:"approval_steps"`

	// Copied from the active rule at submission time
	RuleID                   string   `json:"rule_id,omitempty"`
	RuleTypeSnapshot         RuleType `json:"rule_type"`
	PercentageSnapshot       *int     `json:"percentage,omitempty"`
	SpecificApproverSnapshot string   `json:"specific_approver_id,omitempty"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can derive a new expense without
// touching the original
func (e *Expense) Clone() *Expense {
	if e == nil {
		return nil
	}
	c := *e
	if e.ApprovalSteps != nil {
		c.ApprovalSteps = make([]ApprovalStep, len(e.ApprovalSteps))
		for i, s := range e.ApprovalSteps {
			if s.DecidedAt != nil {
				t := *s.DecidedAt
				s.DecidedAt = &t
			}
			c.ApprovalSteps[i] = s
		}
	}
	if e.PercentageSnapshot != nil {
		p := *e.PercentageSnapshot
		c.PercentageSnapshot = &p
	}
	return &c
}

// ApprovedCount returns the number of steps with an approved decision
func (e *Expense) ApprovedCount() int {
	n := 0
	for _, s := range e.ApprovalSteps {
		if s.Decision == DecisionApproved {
			n++
		}
	}
	return n
}

// ExpenseFilter narrows expense listings
type ExpenseFilter struct {
	Status      Status
	SubmittedBy string
	// Submitters restricts results to these submitters when non-nil; an
	// empty non-nil slice matches nothing
	Submitters []string
	Limit       int
	Offset      int
}
