/*
errors.go - Error kinds for the storefront core

PURPOSE:
  All core error types in one place. The conversation and admin shells
  never see raw store errors; every operation returns one of these kinds
  (possibly wrapped with context) and the shells translate them into
  user-facing text or HTTP statuses.

ERROR KINDS:
  NotFound      - user/product/request absent
  InvalidState  - insufficient balance, out of stock, terminal request
  Persistence   - a store write did not take effect (retryable)
  Validation    - malformed input (amount, transfer date text)

USAGE:
  Wrap with context, match with errors.Is / errors.As:

    if errors.Is(err, ledger.ErrOutOfStock) { ... }

    var short *ledger.InsufficientBalanceError
    if errors.As(err, &short) { short.Shortfall }

SEE ALSO:
  - ledger.go: the operations returning these
  - api/handlers.go: kind -> HTTP status mapping
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUserNotFound is returned when the referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrProductNotFound is returned when the referenced product doesn't exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrRequestNotFound is returned when the referenced recharge request
	// doesn't exist.
	ErrRequestNotFound = errors.New("recharge request not found")

	// ErrProductExists is returned when creating a product whose id is taken.
	ErrProductExists = errors.New("product already exists")

	// ErrInsufficientBalance is returned when a purchase exceeds the
	// available balance. Carries no detail; see InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOutOfStock is returned when a product's code queue is empty.
	ErrOutOfStock = errors.New("out of stock")

	// ErrAlreadyProcessed is returned when deciding a recharge request that
	// already left pending. Re-deciding is a no-op, never a double credit.
	ErrAlreadyProcessed = errors.New("request already processed")

	// ErrTransactionFailed is returned when a store write did not take
	// effect. Side effects are rolled back before this is returned.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrValidation is returned for malformed caller input.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports exactly how much is missing, so the
// shell can tell the buyer what to top up.
type InsufficientBalanceError struct {
	UserID    string
	Available int64
	Required  int64
	Shortfall int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, required %d, shortfall %d",
		e.Available, e.Required, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error names a missing user, product or
// request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}

// IsClientError reports whether the error is the caller's fault rather
// than the system's.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrProductExists) ||
		errors.Is(err, ErrValidation)
}

// IsRetryable reports whether the operation might succeed if re-invoked.
// The core performs no automatic retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}
