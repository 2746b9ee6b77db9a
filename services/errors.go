package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transport layers can map them without string matching.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindAuthorization     ErrorKind = "authorization"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindInternal          ErrorKind = "internal"
)

// AppError is the single error type returned by the workflow and ledger services.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation        = &AppError{Kind: KindValidation}
	ErrAuthorization     = &AppError{Kind: KindAuthorization}
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrInvalidTransition = &AppError{Kind: KindInvalidTransition}
	ErrInternal          = &AppError{Kind: KindInternal}
)

func ValidationError(format string, args ...any) error {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func AuthorizationError(format string, args ...any) error {
	return &AppError{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...any) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransitionError(format string, args ...any) error {
	return &AppError{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// InternalError wraps an unexpected failure. The message is safe to show; err is not.
func InternalError(err error, message string) error {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf classifies any error. Errors that are not AppErrors count as internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Internal server error"
}
