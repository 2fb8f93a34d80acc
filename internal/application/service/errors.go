package service

import (
	"context"
	"errors"

	"github.com/garyjia/expense-approval/internal/domain/event"
)

var (
	// ErrForbidden is returned when the actor's role does not allow the operation
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput is returned for request payloads that fail validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrRuleActive is returned when deleting the organization's active rule
	ErrRuleActive = errors.New("rule is active")
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Publisher hands committed events to subscribers
type Publisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}
