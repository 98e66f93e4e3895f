package people

import (
	"errors"
	"fmt"
)

// Error represents a usage or validation error raised by a public
// operation. Transport outcomes are never reported as Error; they arrive as
// model.Result on the callback.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the public operation that raised the error (e.g. "delete_user").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any (e.g. mutation.ValidationErrors).
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates some properties were dropped at encode time.
	// The rest of the call may still have been dispatched.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotIdentified indicates an operation that needs a resolved
	// profile id ran before identify.
	ErrCodeNotIdentified ErrorCode = "NOT_IDENTIFIED"

	// ErrCodeOptedOut indicates the consent guard rejected the operation.
	ErrCodeOptedOut ErrorCode = "OPTED_OUT"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrNotIdentified = &Error{Code: ErrCodeNotIdentified, Message: "identity has not been resolved"}
	ErrOptedOut      = &Error{Code: ErrCodeOptedOut, Message: "tracking is opted out"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s (op=%s)", msg, e.Op)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsUsageError returns true if err reports an operation called in the wrong
// identity state. Uses errors.As to handle wrapped errors.
func IsUsageError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeNotIdentified
	}
	return false
}

// IsValidationError returns true if err reports dropped properties.
func IsValidationError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeValidation
	}
	return false
}

func newNotIdentifiedError(op string) *Error {
	return &Error{
		Code:    ErrCodeNotIdentified,
		Op:      op,
		Message: "identify must be called before " + op,
	}
}

func newOptedOutError(op string) *Error {
	return &Error{Code: ErrCodeOptedOut, Op: op, Message: ErrOptedOut.Message}
}

func newValidationError(op string, cause error) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Op:      op,
		Message: "invalid properties were dropped",
		Err:     cause,
	}
}
