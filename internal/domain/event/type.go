package event

// Type identifies the type of domain event
type Type string

const (
	TypeExpenseSubmitted Type = "expense.submitted"
	TypeDecisionRecorded Type = "expense.decision_recorded"
	TypeExpenseApproved  Type = "expense.approved"
	TypeExpenseRejected  Type = "expense.rejected"
	TypeRuleActivated    Type = "rule.activated"
)

func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeExpenseSubmitted,
		TypeDecisionRecorded,
		TypeExpenseApproved,
		TypeExpenseRejected,
		TypeRuleActivated:
		return true
	default:
		return false
	}
}

// Payload keys shared by producers and subscribers
const (
	KeyActorID     = "actor_id"
	KeyActorRole   = "actor_role"
	KeyDecision    = "decision"
	KeyStatus      = "status"
	KeyPrevStatus  = "previous_status"
	KeySubmittedBy = "submitted_by"
	KeyStep        = "step_sequence"
	KeyRuleID      = "rule_id"
	KeyRuleType    = "rule_type"
)
