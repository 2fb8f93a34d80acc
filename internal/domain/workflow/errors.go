package workflow

import "errors"

// ErrInvalidTransition is returned when the current state does not permit the trigger
var ErrInvalidTransition = errors.New("invalid state transition")
