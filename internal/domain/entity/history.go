package entity

import "time"

// ExpenseHistory is one entry of an expense's audit trail
type ExpenseHistory struct {
	ID             int64     `json:"id"`
	ExpenseID      string    `json:"expense_id"`
	ActorID        string    `json:"actor_id"`
	ActorRole      Role      `json:"actor_role"`
	ActionType     string    `json:"action_type"`
	StepSequence   *int      `json:"step_sequence,omitempty"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	NewStatus      Status    `json:"new_status"`
	Comment        string    `json:"comment,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
