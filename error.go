package modharvest

import (
	"errors"
	"fmt"
	"strings"
)

// Application error codes.
const (
	EINTERNAL    = "internal"
	EINVALID     = "invalid"
	ENOTFOUND    = "not_found"
	ETIMEOUT     = "timeout"
	EINTERRUPTED = "interrupted"
)

// Error represents an application-specific error. Application errors can be
// unwrapped by the caller to extract the code and message.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("modharvest error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper function to return an Error with a given code and
// formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors return the underlying error text.
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// detachedPatterns are fragments of browser protocol errors that indicate the
// execution context or session was torn down underneath the caller.
var detachedPatterns = []string{
	"execution context was destroyed",
	"cannot find context with specified id",
	"target closed",
	"session closed",
	"session with given id not found",
	"browser has disconnected",
	"use of closed network connection",
}

// IsDetachedError reports whether err is evidence of a forced session
// teardown rather than a failure of the current operation.
func IsDetachedError(err error) bool {
	if err == nil {
		return false
	}
	if ErrorCode(err) == EINTERRUPTED {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range detachedPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
