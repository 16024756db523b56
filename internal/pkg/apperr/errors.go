// Package apperr holds the typed errors shared by parsers, the pipeline, the
// queue and the HTTP layer, plus the classifier that decides whether a failed
// job is worth retrying.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type ParseErrorKind string

const (
	ParseNotFound   ParseErrorKind = "not_found"
	ParseCorrupt    ParseErrorKind = "corrupt"
	ParseEmpty      ParseErrorKind = "empty"
	ParseUnreadable ParseErrorKind = "unreadable"
)

type ParseError struct {
	Path string
	Kind ParseErrorKind
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s (%s): %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("parse %s (%s)", e.Path, e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q", e.Format)
}

type TimeoutError struct {
	Stage string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Stage, e.After)
}

// ProcessingError wraps the failure of one pipeline stage.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type QueueErrorKind string

const (
	QueueUnavailable QueueErrorKind = "unavailable"
	QueueNotFound    QueueErrorKind = "not_found"
	QueueConflict    QueueErrorKind = "conflict"
)

type QueueError struct {
	Kind  QueueErrorKind
	JobID string
	Err   error
}

func (e *QueueError) Error() string {
	msg := fmt.Sprintf("queue %s", e.Kind)
	if e.JobID != "" {
		msg += " job " + e.JobID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QueueError) Unwrap() error { return e.Err }

// ValidationError covers bad input: a grade out of range, an unknown id, a
// document that is already being processed.
type ValidationError struct {
	Field    string
	Message  string
	NotFound bool
	Conflict bool
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func NewNotFound(what string) *ValidationError {
	return &ValidationError{Field: "id", Message: what + " not found", NotFound: true}
}

func NewConflict(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Conflict: true}
}

// ErrCancelled is returned by the pipeline when a job was cancelled between stages.
var ErrCancelled = errors.New("processing cancelled")

// Retryable reports whether a failed job may be attempted again. Bad input
// and broken files never get better on their own; timeouts, storage, queue
// and unknown errors might.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var parseErr *ParseError
	var unsupportedErr *UnsupportedFormatError
	var validationErr *ValidationError

	switch {
	case errors.As(err, &parseErr):
		return false
	case errors.As(err, &unsupportedErr):
		return false
	case errors.As(err, &validationErr):
		return false
	case errors.Is(err, ErrCancelled):
		return false
	}
	return true
}
