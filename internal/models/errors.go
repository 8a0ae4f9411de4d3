package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. Every error returned across the
// API boundary carries a kind plus a message; raw provider error text stays
// wrapped underneath.
type ErrorKind string

const (
	KindVideoNotFound           ErrorKind = "VideoNotFound"
	KindTranscriptUnavailable   ErrorKind = "TranscriptUnavailable"
	KindProcessingInProgress    ErrorKind = "ProcessingInProgress"
	KindNotProcessed            ErrorKind = "NotProcessed"
	KindEmbeddingProviderError  ErrorKind = "EmbeddingProviderError"
	KindGenerationProviderError ErrorKind = "GenerationProviderError"
	KindEmptyContext            ErrorKind = "EmptyContext"
	KindInvalidRequest          ErrorKind = "InvalidRequest"
	KindTimeout                 ErrorKind = "Timeout"
	KindInternal                ErrorKind = "Internal"
)

// Error is a structured pipeline error with a kind and message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// E returns a structured error with the given kind and message.
func E(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef returns a structured error with a formatted message.
func Ef(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a structured error wrapping cause. A nil cause returns nil.
func Wrap(kind ErrorKind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
