package approval

import "errors"

// Caller errors. None of them is retried or recovered inside the engine.
var (
	// ErrNotAnApprover is returned when the actor has no undecided step on the expense
	ErrNotAnApprover = errors.New("not an approver for this expense")

	// ErrAlreadyDecided is returned for a second decision on the same step,
	// or for any decision on an expense whose status is already final
	ErrAlreadyDecided = errors.New("already decided")

	// ErrMalformedRule is returned for rules or snapshots that cannot be evaluated
	ErrMalformedRule = errors.New("malformed approval rule")

	// ErrInvalidDecision is returned when asked to record anything but approve or reject
	ErrInvalidDecision = errors.New("invalid decision")
)

// ErrTransientFailure marks persistence contention or timeouts. Callers may
// retry with backoff.
var ErrTransientFailure = errors.New("transient failure")
