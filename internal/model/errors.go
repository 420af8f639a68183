package model

import (
	"context"
	"errors"
)

// ErrorKind classifies failures surfaced to callers
type ErrorKind string

const (
	ErrValidation       ErrorKind = "validation"
	ErrExtraction       ErrorKind = "extraction"
	ErrDownload         ErrorKind = "download"
	ErrRetriesExhausted ErrorKind = "retries_exhausted"
	ErrBusy             ErrorKind = "busy"
	ErrCancelled        ErrorKind = "cancelled"
)

// Error is a failure tagged with its kind
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error without an underlying cause
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError tags err with a kind
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or def when err carries none.
// Context cancellation maps to ErrCancelled.
func KindOf(err error, def ErrorKind) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return def
}
