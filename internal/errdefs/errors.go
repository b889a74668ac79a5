// Package errdefs defines the failure taxonomy shared by the narration
// pipeline: collection, voice assignment and synthesis.
package errdefs

import (
	"errors"
	"fmt"
)

// Code identifies a class of pipeline failure.
type Code string

const (
	// CodeSourceUnavailable means the root item could not be fetched or has no title.
	CodeSourceUnavailable Code = "SOURCE_UNAVAILABLE"
	// CodeEmptyCatalog means the voice catalog has no entries.
	CodeEmptyCatalog Code = "EMPTY_CATALOG"
	// CodeAuth means the synthesis credentials were rejected.
	CodeAuth Code = "AUTH"
	// CodeRateLimited means the synthesis service asked us to slow down.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeSynthesis means synthesis of a single node failed.
	CodeSynthesis Code = "SYNTHESIS"
	// CodeTreeFetch means a single comment could not be fetched or validated.
	CodeTreeFetch Code = "TREE_FETCH"
	// CodeCanceled means the run was aborted by the caller.
	CodeCanceled Code = "CANCELED"
)

// Sentinels usable with errors.Is. Any *Error with the same code matches.
var (
	ErrSourceUnavailable = &Error{Code: CodeSourceUnavailable, Message: "thread source unavailable"}
	ErrEmptyCatalog      = &Error{Code: CodeEmptyCatalog, Message: "voice catalog is empty"}
	ErrAuth              = &Error{Code: CodeAuth, Message: "invalid API key"}
	ErrRateLimited       = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrSynthesis         = &Error{Code: CodeSynthesis, Message: "synthesis failed"}
	ErrTreeFetch         = &Error{Code: CodeTreeFetch, Message: "comment fetch failed"}
	ErrCanceled          = &Error{Code: CodeCanceled, Message: "run canceled"}
)

// Error is a pipeline error with a code and optional context.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]any
}

// New creates a new error with the given code.
func New(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsFatal returns true if the error must abort the whole run.
func (e *Error) IsFatal() bool {
	switch e.Code {
	case CodeSourceUnavailable, CodeEmptyCatalog, CodeAuth:
		return true
	default:
		return false
	}
}

// IsRetryable returns true if the operation may succeed when retried.
func (e *Error) IsRetryable() bool {
	return e.Code == CodeRateLimited
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether err is a retryable pipeline error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsRetryable()
}
