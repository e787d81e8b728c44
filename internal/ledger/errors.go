package ledger

import (
	"errors"

	"github.com/lib/pq"
)

// Failure taxonomy for ledger operations. Validation and business
// errors are terminal for the request; ErrConcurrentModification is
// retried once internally before being surfaced as ErrInternal.
var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrAccountNotFound        = errors.New("account not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrReasonRequired         = errors.New("reason is required")
	ErrNotPending             = errors.New("transaction is not pending")
	ErrInternal               = errors.New("internal ledger error")
)

// terminalForRequest reports whether the error must never be retried.
func terminalForRequest(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrNotPending)
}

// isUniqueViolation detects a transaction-id collision, which the
// engine treats as a concurrent modification and retries with a
// freshly generated id.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
