package session

import (
	"errors"
	"fmt"
)

// Code classifies a session failure.
type Code string

// Error codes.
const (
	CodeInvalidIndex        Code = "INVALID_INDEX"
	CodeDeviceUnavailable   Code = "DEVICE_UNAVAILABLE"
	CodeNoFrameAvailable    Code = "NO_FRAME_AVAILABLE"
	CodeUnstableStream      Code = "UNSTABLE_STREAM"
	CodeUnknownProperty     Code = "UNKNOWN_PROPERTY"
	CodePropertyNotSettable Code = "PROPERTY_NOT_SETTABLE"
	CodeRestartExhausted    Code = "RESTART_EXHAUSTED"
	CodeSessionClosed       Code = "SESSION_CLOSED"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrInvalidIndex        = &Error{Code: CodeInvalidIndex}
	ErrDeviceUnavailable   = &Error{Code: CodeDeviceUnavailable}
	ErrNoFrameAvailable    = &Error{Code: CodeNoFrameAvailable}
	ErrUnstableStream      = &Error{Code: CodeUnstableStream}
	ErrUnknownProperty     = &Error{Code: CodeUnknownProperty}
	ErrPropertyNotSettable = &Error{Code: CodePropertyNotSettable}
	ErrRestartExhausted    = &Error{Code: CodeRestartExhausted}
	ErrSessionClosed       = &Error{Code: CodeSessionClosed}
)

// Error is a session failure with enough context for a caller to explain it.
type Error struct {
	Code     Code
	Stage    string
	Index    int
	Property string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code Code, stage string, index int, msg string, cause error) *Error {
	return &Error{
		Code:    code,
		Stage:   stage,
		Index:   index,
		Message: msg,
		Cause:   cause,
	}
}

func propertyError(code Code, name, msg string) *Error {
	return &Error{
		Code:     code,
		Stage:    "property",
		Index:    -1,
		Property: name,
		Message:  msg,
	}
}
