package store

import (
	"context"
	"errors"
	"fmt"
)

// Code is a backend-neutral failure class, spelled the way Firestore spells
// its status codes.
type Code string

const (
	CodePermissionDenied   Code = "permission-denied"
	CodeUnavailable        Code = "unavailable"
	CodeDeadlineExceeded   Code = "deadline-exceeded"
	CodeResourceExhausted  Code = "resource-exhausted"
	CodeInvalidArgument    Code = "invalid-argument"
	CodeNotFound           Code = "not-found"
	CodeAlreadyExists      Code = "already-exists"
	CodeFailedPrecondition Code = "failed-precondition"
	CodeAborted            Code = "aborted"
	CodeOutOfRange         Code = "out-of-range"
	CodeUnimplemented      Code = "unimplemented"
	CodeInternal           Code = "internal"
	CodeDataLoss           Code = "data-loss"
	CodeUnauthenticated    Code = "unauthenticated"
	CodeUnknown            Code = "unknown"
)

// StoreError carries the backend code of a failed store call.
type StoreError struct {
	Code Code
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewError wraps err with a code. Context errors keep their own class.
func NewError(code Code, op string, err error) *StoreError {
	return &StoreError{Code: code, Op: op, Err: err}
}

// wrapContext converts a context failure into a StoreError, or returns nil
// when err is not one.
func wrapContext(op string, err error) *StoreError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeDeadlineExceeded, op, err)
	case errors.Is(err, context.Canceled):
		return NewError(CodeAborted, op, err)
	}
	return nil
}

// CodeOf extracts the store code from anywhere in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	if ce := wrapContext("", err); ce != nil {
		return ce.Code
	}
	return CodeUnknown
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

func IsAlreadyExists(err error) bool {
	return CodeOf(err) == CodeAlreadyExists
}

// FallbackMessage is shown for unrecognised failures.
const FallbackMessage = "An unexpected error occurred. Please try again..."

var userMessages = map[Code]string{
	CodePermissionDenied:   "You do not have permission to perform this action.",
	CodeUnavailable:        "Service is currently unavailable. Please try again later.",
	CodeDeadlineExceeded:   "Request timed out. Please check your connection.",
	CodeResourceExhausted:  "Too many requests. Please try again later.",
	CodeInvalidArgument:    "Invalid data provided.",
	CodeNotFound:           "Requested data not found.",
	CodeAlreadyExists:      "This item already exists.",
	CodeFailedPrecondition: "Operation failed due to current state.",
	CodeAborted:            "Operation was aborted.",
	CodeOutOfRange:         "Value is out of valid range.",
	CodeUnimplemented:      "This feature is not yet implemented.",
	CodeInternal:           "Internal server error occurred.",
	CodeDataLoss:           "Data loss occurred.",
	CodeUnauthenticated:    "Authentication required.",
}

// UserMessage translates a store failure into the message shown to users.
func UserMessage(err error) string {
	if msg, ok := userMessages[CodeOf(err)]; ok {
		return msg
	}
	return FallbackMessage
}

// MessageFor returns the fixed message of a code.
func MessageFor(code Code) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return FallbackMessage
}
