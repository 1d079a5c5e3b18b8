// Package common provides shared utilities and types used across the pipeline.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Upload errors. ErrUnsupportedFormat and ErrEmptyFile are fatal for the
	// whole upload before any schema work; ErrSchemaRejected is the Bouncer's
	// distinct reason code.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file contains no data")
	ErrSchemaRejected    = errors.New("schema rejected")
	ErrNoHeader          = errors.New("no header row found")

	// Oracle errors. Never surfaced to the caller as an upload failure;
	// recovered via deterministic fallback.
	ErrOracleUnavailable = errors.New("disambiguation oracle unavailable")
	ErrRateLimit         = errors.New("rate limit exceeded")
	ErrMaxRetries        = errors.New("max retries exceeded")

	// Quarantine errors.
	ErrAlreadyResolved = errors.New("quarantine record already resolved")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}

// RejectionError carries the structured reason an upload was turned away.
type RejectionError struct {
	Err    error
	Code   string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// NewRejection wraps a sentinel upload error with its reason string.
func NewRejection(err error, code, reason string) error {
	return &RejectionError{Err: err, Code: code, Reason: reason}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
