package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound                = errors.New("resource not found")
	ErrAlreadyExists           = errors.New("resource already exists")
	ErrClientNotFound          = errors.New("client not found")
	ErrUnitNotFound            = errors.New("unit not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidInput            = errors.New("invalid input")
	ErrForbidden               = errors.New("forbidden")
	ErrStale                   = errors.New("document changed concurrently")
	ErrStoreTimeout            = errors.New("store operation timed out")
	ErrBillAlreadyExists       = errors.New("water bill already exists for quarter")
	ErrMissingReadings         = errors.New("readings missing for quarter")
	ErrCorruptSplit            = errors.New("split transaction without allocations")
	ErrSplitSumMismatch        = errors.New("allocations do not sum to transaction amount")
	ErrCreditNegative          = errors.New("credit balance would become negative")
	ErrInsufficientObligations = errors.New("no open obligations for payment")
	ErrClientIDMismatch        = errors.New("import clientId does not match target client")
	ErrJobAlreadyRunning       = errors.New("a background job is already running for this client")
)

// ErrorKind classifies an error for the boundary layer, which maps kinds to
// protocol status codes without string matching.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindNotFound     ErrorKind = "not_found"
	KindForbidden    ErrorKind = "forbidden"
	KindConflict     ErrorKind = "conflict"
	KindConfig       ErrorKind = "config_error"
	KindIntegrity    ErrorKind = "integrity"
	KindTransient    ErrorKind = "transient"
	KindSafetyCheck  ErrorKind = "safety_check_failed"
	KindInternal     ErrorKind = "internal"
)

// Error is a structured error carrying a kind and optional details.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError creates a structured error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError wraps err with a kind and message.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// With attaches a detail key/value and returns e for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// KindOf classifies err. Structured errors report their own kind; sentinel
// errors map to the table in the error-handling design; anything else is
// internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrClientNotFound),
		errors.Is(err, ErrUnitNotFound),
		errors.Is(err, ErrTransactionNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrMissingReadings),
		errors.Is(err, ErrInsufficientObligations):
		return KindInvalidInput
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrStale),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrBillAlreadyExists),
		errors.Is(err, ErrJobAlreadyRunning):
		return KindConflict
	case errors.Is(err, ErrCorruptSplit),
		errors.Is(err, ErrSplitSumMismatch),
		errors.Is(err, ErrCreditNegative):
		return KindIntegrity
	case errors.Is(err, ErrStoreTimeout):
		return KindTransient
	case errors.Is(err, ErrClientIDMismatch):
		return KindSafetyCheck
	default:
		return KindInternal
	}
}
