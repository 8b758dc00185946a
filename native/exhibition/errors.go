package exhibition

import (
	"errors"

	ledgererrors "steadrent/core/errors"
)

// Error taxonomy. Every handler failure wraps exactly one of these.
var (
	ErrFeeOutOfRange       = errors.New("fee out of range")
	ErrArithmetic          = errors.New("arithmetic error")
	ErrConstraintViolation = errors.New("constraint violation")
)

// Specific constraint violations.
var (
	ErrUnauthorized        = wrapConstraint("caller not authorised")
	ErrExhibitionNotActive = wrapConstraint("exhibition not active")
	ErrAlreadyCancelled    = wrapConstraint("exhibition already cancelled")
	ErrExhibitionNotEmpty  = wrapConstraint("exhibition still holds items")
	ErrExhibitionNotFound  = wrapConstraint("exhibition not found")
	ErrItemNotFound        = wrapConstraint("exhibition item not found")
	ErrItemMismatch        = wrapConstraint("item does not belong to exhibition")
	ErrHoldingAmount       = wrapConstraint("holding must contain exactly one unit of the asset")
	ErrAlreadyInitialized  = wrapConstraint("config already initialised")
	ErrConfigNotFound      = wrapConstraint("config not initialised")

	// ErrRecordType is returned when an address holds a record of another
	// kind, e.g. an item id passed where an exhibition id is expected.
	ErrRecordType   = wrapConstraint("record discriminator mismatch")
	// ErrZeroIdentity rejects the unset identity as an acting party or payer.
	ErrZeroIdentity = wrapConstraint("zero identity cannot act or pay")
)

type constraintError struct {
	msg string
}

func (e *constraintError) Error() string { return "constraint violation: " + e.msg }

func (e *constraintError) Unwrap() error { return ErrConstraintViolation }

func wrapConstraint(msg string) error { return &constraintError{msg: msg} }

// Error tags surfaced to callers of a rejected instruction.
const (
	TagFeeOutOfRange       = "FeeOutOfRange"
	TagArithmetic          = "ArithmeticError"
	TagConstraintViolation = "ConstraintViolation"
	TagInsufficientFunds   = "InsufficientFunds"
	TagInternal            = "InternalError"
)

// ErrorTag maps err onto the user-visible tag carried by a rejected
// instruction. It returns "" for a nil error.
func ErrorTag(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFeeOutOfRange):
		return TagFeeOutOfRange
	case errors.Is(err, ErrArithmetic), errors.Is(err, ledgererrors.ErrBalanceOverflow):
		return TagArithmetic
	case errors.Is(err, ledgererrors.ErrInsufficientFunds):
		return TagInsufficientFunds
	case errors.Is(err, ErrConstraintViolation),
		errors.Is(err, ledgererrors.ErrAccountExists),
		errors.Is(err, ledgererrors.ErrAccountNotFound),
		errors.Is(err, ledgererrors.ErrInvalidAuthority),
		errors.Is(err, ledgererrors.ErrAssetMismatch),
		errors.Is(err, ledgererrors.ErrHoldingNotEmpty):
		return TagConstraintViolation
	default:
		return TagInternal
	}
}
