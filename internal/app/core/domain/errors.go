package domain

import (
	"errors"
	"fmt"
)

// ErrorKind buckets every failure the engine can return. Callers map kinds
// to transport status codes; the concrete code stays stable per failure.
type ErrorKind uint8

const (
	// KindValidation covers caller-fixable input faults, rejected before
	// any store access.
	KindValidation ErrorKind = iota + 1
	// KindNotFound covers references to accounts or movements that do not
	// exist.
	KindNotFound
	// KindConflict covers state that forbids the operation: insufficient
	// balance, already reverted, not revertible.
	KindConflict
	// KindInfrastructure covers store failures inside the atomic scope.
	// The scope has already been rolled back when one of these surfaces.
	KindInfrastructure
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Error is the engine's typed failure value. The engine returns, never
// panics; every store error crossing the scope boundary is wrapped into
// one of these.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on Code so sentinel comparisons survive wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

var (
	// ErrInvalidAmount amount must be strictly positive.
	ErrInvalidAmount = &Error{Kind: KindValidation, Code: "invalid_amount", Message: "movement amount must be positive"}

	// ErrSelfTransfer sender and receiver are the same account.
	ErrSelfTransfer = &Error{Kind: KindValidation, Code: "self_transfer", Message: "cannot transfer to the same account"}

	// ErrMissingSender transfer without a resolved caller identity.
	ErrMissingSender = &Error{Kind: KindValidation, Code: "missing_sender", Message: "sender is required for transfers"}

	// ErrMissingAccountID listing without an account id.
	ErrMissingAccountID = &Error{Kind: KindValidation, Code: "missing_account_id", Message: "account id is required"}

	// ErrMissingMovementID revert without a movement id.
	ErrMissingMovementID = &Error{Kind: KindValidation, Code: "missing_movement_id", Message: "movement id is required"}

	// ErrAccountNotFound generic store-level miss; the engine maps it to
	// the role-specific sender/receiver variant.
	ErrAccountNotFound = &Error{Kind: KindNotFound, Code: "account_not_found", Message: "account not found"}

	// ErrSenderNotFound transfer sender account does not exist.
	ErrSenderNotFound = &Error{Kind: KindNotFound, Code: "sender_not_found", Message: "sender account not found"}

	// ErrReceiverNotFound receiver account does not exist.
	ErrReceiverNotFound = &Error{Kind: KindNotFound, Code: "receiver_not_found", Message: "receiver account not found"}

	// ErrMovementNotFound referenced movement does not exist.
	ErrMovementNotFound = &Error{Kind: KindNotFound, Code: "movement_not_found", Message: "movement not found"}

	// ErrInsufficientBalance sender cannot cover the transfer.
	ErrInsufficientBalance = &Error{Kind: KindConflict, Code: "insufficient_balance", Message: "insufficient balance"}

	// ErrAlreadyReverted the movement was already reverted.
	ErrAlreadyReverted = &Error{Kind: KindConflict, Code: "already_reverted", Message: "movement was already reverted"}

	// ErrInvalidStateForReversal only COMPLETED movements can be reverted.
	ErrInvalidStateForReversal = &Error{Kind: KindConflict, Code: "invalid_state_for_reversal", Message: "movement must be COMPLETED to be reverted"}
)

// WrapInfra converts a store failure into an infrastructure-kind error.
// Typed domain errors pass through untouched so precondition failures
// raised inside the atomic scope keep their kind.
func WrapInfra(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Kind:    KindInfrastructure,
		Code:    "infrastructure",
		Message: fmt.Sprintf("store failure: %v", err),
		cause:   err,
	}
}

// KindOf extracts the error kind, defaulting to infrastructure for
// untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}
