package workflow

// Trigger is the outcome of re-evaluating an expense after a step decision
type Trigger string

const (
	// TriggerStepDecided keeps the expense pending
	TriggerStepDecided Trigger = "STEP_DECIDED"
	TriggerApprove     Trigger = "APPROVE"
	TriggerReject      Trigger = "REJECT"
)

func (t Trigger) String() string {
	return string(t)
}

// TriggerFor maps an evaluated target state to the trigger that reaches it
func TriggerFor(target State) Trigger {
	switch target {
	case StateApproved:
		return TriggerApprove
	case StateRejected:
		return TriggerReject
	default:
		return TriggerStepDecided
	}
}
