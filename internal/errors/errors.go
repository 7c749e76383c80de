// Package errors defines the coded application errors shared by the session,
// orchestration and media layers.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown       = "UNKNOWN"
	CodeDataLoad      = "DATA_LOAD"
	CodeCredential    = "CREDENTIAL"
	CodeOrchestration = "ORCHESTRATION"
	CodeMedia         = "MEDIA"
	CodePollFailed    = "POLL_FAILED"
	CodePollTimeout   = "POLL_TIMEOUT"
	CodeBusy          = "BUSY"
	CodeValidation    = "VALIDATION"
	CodeNotFound      = "NOT_FOUND"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a coded application error.
type Error struct {
	code    string
	message string
	err     error
}

// defaultMessages describe the bare sentinels, which carry no message.
var defaultMessages = map[string]string{
	CodeBusy:        "another request is already in progress",
	CodeCredential:  "an API key is required",
	CodeNotFound:    "not found",
	CodePollTimeout: "video job did not finish in time",
}

func (e *Error) Error() string {
	msg := e.message
	if msg == "" {
		msg = defaultMessages[e.code]
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %v", msg, e.err)
	}

	return msg
}

// Code returns the error code.
func (e *Error) Code() string {
	return e.code
}

// Message returns the message without the wrapped cause.
func (e *Error) Message() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an Error with the same code, so sentinel
// values like ErrBusy match any error carrying that code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code && t.message == "" && t.err == nil
}

// New creates a coded error.
func New(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// Sentinels usable with errors.Is.
var (
	ErrBusy               = &Error{code: CodeBusy}
	ErrCredentialRequired = &Error{code: CodeCredential}
	ErrNotFound           = &Error{code: CodeNotFound}
	ErrPollTimeout        = &Error{code: CodePollTimeout}
)

func NewDataLoadError(message string, cause error) error {
	return New(CodeDataLoad, message, cause)
}

func NewCredentialError(message string, cause error) error {
	return New(CodeCredential, message, cause)
}

func NewOrchestrationError(message string, cause error) error {
	return New(CodeOrchestration, message, cause)
}

func NewMediaError(message string, cause error) error {
	return New(CodeMedia, message, cause)
}

func NewPollError(message string) error {
	return New(CodePollFailed, message, nil)
}

func NewPollTimeoutError(attempts int) error {
	return New(CodePollTimeout, fmt.Sprintf("video job still running after %d polls", attempts), nil)
}

func NewValidationError(message string, cause error) error {
	return New(CodeValidation, message, cause)
}

func NewNotFoundError(message string) error {
	return New(CodeNotFound, message, nil)
}

// IsMediaFailure reports whether err is one of the media-generation failure
// kinds (generation, terminal job error, polling timeout).
func IsMediaFailure(err error) bool {
	switch Code(err) {
	case CodeMedia, CodePollFailed, CodePollTimeout:
		return true
	}
	return false
}
