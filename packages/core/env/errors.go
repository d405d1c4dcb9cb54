package env

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of a rejected operation.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"
	CodeLastValue       ErrorCode = "LAST_VALUE"
	CodeLengthMismatch  ErrorCode = "LENGTH_MISMATCH"
	CodeUnknownVariable ErrorCode = "UNKNOWN_VARIABLE"
	CodeGroupNotFound   ErrorCode = "GROUP_NOT_FOUND"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeDuplicateKey    ErrorCode = "DUPLICATE_KEY"
	CodeGroupExists     ErrorCode = "GROUP_EXISTS"
	CodeInvariant       ErrorCode = "INVARIANT"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrIndexOutOfRange = &Error{Code: CodeIndexOutOfRange, Message: "index out of range"}
	ErrLastValue       = &Error{Code: CodeLastValue, Message: "cannot remove the last value"}
	ErrLengthMismatch  = &Error{Code: CodeLengthMismatch, Message: "value counts differ"}
	ErrUnknownVariable = &Error{Code: CodeUnknownVariable, Message: "variable outside the group"}
	ErrGroupNotFound   = &Error{Code: CodeGroupNotFound, Message: "group not found"}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrDuplicateKey    = &Error{Code: CodeDuplicateKey, Message: "duplicate key"}
	ErrGroupExists     = &Error{Code: CodeGroupExists, Message: "group exists"}
)

// Error is a coded error returned by model and coordinator operations.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetail attaches a key/value pair for callers that want structure.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error. Returns nil for a nil err.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Wrapped: err}
}

// IsErrorCode reports whether err carries the given code anywhere in its
// chain, including errors wrapped by another *Error or joined together.
func IsErrorCode(err error, code ErrorCode) bool {
	return errors.Is(err, &Error{Code: code})
}

// CodeOf returns the code of the first *Error in the chain, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// NotFoundf builds a NOT_FOUND error for an absent environment, variable or
// collection.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}
