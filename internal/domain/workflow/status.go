package workflow

// expenseLifecycle is the only transition table an expense goes through.
// Approved and rejected have no outgoing transitions.
var expenseLifecycle = func() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StatePending).
		Permit(TriggerStepDecided, StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)
	return b
}()

// NewExpenseMachine returns a lifecycle machine positioned at current
func NewExpenseMachine(current State) StateMachine {
	return expenseLifecycle.Build(current)
}

// Transition validates moving an expense from current to target
func Transition(current, target State) error {
	return NewExpenseMachine(current).Fire(TriggerFor(target))
}
