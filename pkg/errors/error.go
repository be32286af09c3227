package errors

import (
	stderrors "errors"
	"fmt"
)

// Error carries an ErrorCode alongside a message and optional context.
// It wraps an underlying cause so errors.Is and errors.As keep working
// across package boundaries.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the code's default message.
func New(code ErrorCode) *Error {
	return &Error{Code: code, Message: code.Message()}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an existing error, keeping it as the cause.
func Wrap(err error, code ErrorCode) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// Wrapf attaches a code and a formatted message to an existing error.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithMessage replaces the message and returns the error for chaining.
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithDetail records a key-value pair for structured logging.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// GetCode resolves the ErrorCode anywhere in err's chain. A nil error
// maps to Success, anything without a code to InternalServerError.
func GetCode(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalServerError
}

// GetError resolves the *Error anywhere in err's chain, wrapping
// foreign errors as InternalServerError.
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Wrap(err, InternalServerError)
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// BadRequest is shorthand for an InvalidParams error with a message.
func BadRequest(msg string) *Error {
	return New(InvalidParams).WithMessage(msg)
}

// NotFoundError is shorthand for a NotFound error naming the resource.
func NotFoundError(resource string) *Error {
	return Newf(NotFound, "%s not found", resource)
}

// InternalError wraps err as InternalServerError, or creates a bare one.
func InternalError(err error) *Error {
	if err == nil {
		return New(InternalServerError)
	}
	return Wrap(err, InternalServerError)
}
