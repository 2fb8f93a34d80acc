package entity

// Role is the capability a user holds inside an organization
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleFinance  Role = "finance"
	RoleDirector Role = "director"
	RoleAdmin    Role = "admin"
)

// approverRoles is the closed set of roles an approval step may require
var approverRoles = map[Role]bool{
	RoleManager:  true,
	RoleFinance:  true,
	RoleDirector: true,
	RoleAdmin:    true,
}

// IsApprover reports whether the role may be bound to an approval step
func (r Role) IsApprover() bool {
	return approverRoles[r]
}

// IsValid reports whether the role is known, including employee
func (r Role) IsValid() bool {
	return r == RoleEmployee || approverRoles[r]
}

func (r Role) String() string {
	return string(r)
}

// Decision is the tri-state outcome of a single approval step
type Decision string

const (
	DecisionUndecided Decision = "undecided"
	DecisionApproved  Decision = "approved"
	DecisionRejected  Decision = "rejected"
)

// IsDecided reports whether a decision has been made
func (d Decision) IsDecided() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// IsValid reports whether d is one of the three decision values
func (d Decision) IsValid() bool {
	return d == DecisionUndecided || d.IsDecided()
}

func (d Decision) String() string {
	return string(d)
}

// Status is the overall state of an expense
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal returns true once no further decisions may change the status
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	return s == StatusPending || s.IsTerminal()
}

func (s Status) String() string {
	return string(s)
}

// RuleType is the policy used to aggregate step decisions into a status
type RuleType string

const (
	RuleTypeSequential RuleType = "sequential"
	RuleTypePercentage RuleType = "percentage"
	RuleTypeSpecific   RuleType = "specific"
	RuleTypeHybrid     RuleType = "hybrid"
)

// IsKnown reports whether the rule type is one of the four supported policies
func (t RuleType) IsKnown() bool {
	switch t {
	case RuleTypeSequential, RuleTypePercentage, RuleTypeSpecific, RuleTypeHybrid:
		return true
	default:
		return false
	}
}

// NeedsThreshold reports whether the rule type evaluates a percentage
func (t RuleType) NeedsThreshold() bool {
	return t == RuleTypePercentage || t == RuleTypeHybrid
}

// NeedsSpecificApprover reports whether the rule type evaluates a named approver
func (t RuleType) NeedsSpecificApprover() bool {
	return t == RuleTypeSpecific || t == RuleTypeHybrid
}

func (t RuleType) String() string {
	return string(t)
}

// History action constants
const (
	ActionSubmit  = "SUBMIT"
	ActionApprove = "APPROVE"
	ActionReject  = "REJECT"
)
