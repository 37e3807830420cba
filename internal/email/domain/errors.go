package domain

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is returned when a cycle cannot start because another
// cycle holds the global exclusion flag.
var ErrSyncInProgress = errors.New("sync already in progress")

// ScopeError signals that the account's credential lacks the access an
// operation required. The fix is user re-authorization, not a retry, so it
// is surfaced all the way to the caller.
type ScopeError struct {
	Op  string
	Err error
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("insufficient mailbox access during %s: %v (reconnect the account to grant full permissions)", e.Op, e.Err)
}

func (e *ScopeError) Unwrap() error {
	return e.Err
}

// IsScopeError reports whether any error in the chain is a ScopeError.
func IsScopeError(err error) bool {
	var se *ScopeError
	return errors.As(err, &se)
}

// TransientError marks provider failures worth retrying on the next cycle:
// rate limits, timeouts, 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether any error in the chain is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
