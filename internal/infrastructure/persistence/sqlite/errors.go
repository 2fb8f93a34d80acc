package sqlite

import (
	"context"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/garyjia/expense-approval/internal/domain/approval"
)

// Classify marks contention and timeouts as approval.ErrTransientFailure.
// The original error stays in the chain.
func Classify(err error) error {
	if err == nil || errors.Is(err, approval.ErrTransientFailure) {
		return err
	}
	if IsTransient(err) {
		return errors.Join(approval.ErrTransientFailure, err)
	}
	return err
}

// IsTransient reports SQLITE_BUSY, SQLITE_LOCKED and context deadlines
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsConstraint reports a UNIQUE, FOREIGN KEY or CHECK violation
func IsConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
