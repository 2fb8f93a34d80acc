package workflow

// StateMachine tracks one expense's status and validates transitions
type StateMachine interface {
	State() State
	// Fire moves to the trigger's target state or returns an error leaving
	// the state untouched
	Fire(trigger Trigger) error
}
