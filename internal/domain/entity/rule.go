package entity

import "time"

// RuleStep is one (role, approver) pair used to materialize an ApprovalStep
type RuleStep struct {
	Role       Role   `json:"role"`
	ApproverID string `json:"approver_id,omitempty"`
}

// ApprovalRule is an organization's approval policy. Expenses never read it
// after submission; they keep a snapshot.
type ApprovalRule struct {
	ID                  string     `json:"id"`
	OrgID               string     `json:"org_id"`
	Name                string     `json:"name"`
	Description         string     `json:"description,omitempty"`
	RuleType            RuleType   `json:"rule_type"`
	PercentageThreshold *int       `json:"percentage_threshold,omitempty"`
	SpecificApproverID  string     `json:"specific_approver_id,omitempty"`
	Steps               []RuleStep `json:"steps"`
	IsActive            bool       `json:"is_active"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// BindsApprover reports whether any step is bound to the given user
func (r *ApprovalRule) BindsApprover(userID string) bool {
	if userID == "" {
		return false
	}
	for _, s := range r.Steps {
		if s.ApproverID == userID {
			return true
		}
	}
	return false
}
