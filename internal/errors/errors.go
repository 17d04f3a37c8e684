// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrCacheExpired indicates cached data has exceeded TTL.
	ErrCacheExpired = errors.New("cache expired")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrNoFace indicates face detection found no face in the image.
	ErrNoFace = errors.New("no face detected")
)

// FailureKind distinguishes why an external service call failed.
type FailureKind string

// Failure kinds for ExternalError.
const (
	KindNetwork   FailureKind = "network"
	KindAuth      FailureKind = "auth"
	KindQuota     FailureKind = "quota"
	KindMalformed FailureKind = "malformed"
	KindNotFound  FailureKind = "notfound"
)

// ExternalError represents a failure from an external collaborator
// (vision, hosting, profile lookup, search) with a distinguishable kind.
// Routers collapse these into a user-facing fallback reply at the boundary;
// everything below keeps the full classification for logs and metrics.
type ExternalError struct {
	Service string // e.g. "vision", "hosting", "profile", "stackoverflow"
	Kind    FailureKind
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s %s failure: %v", e.Service, e.Kind, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// NewExternalError creates a new external service error.
func NewExternalError(service string, kind FailureKind, err error) *ExternalError {
	return &ExternalError{Service: service, Kind: kind, Err: err}
}

// ExternalKind extracts the failure kind from an error chain.
// Returns "" when the chain contains no ExternalError.
func ExternalKind(err error) FailureKind {
	var ee *ExternalError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// IsRetryable reports whether an external failure is worth retrying.
// Auth, quota and malformed responses will not improve on retry; key
// rotation handles auth/quota instead.
func IsRetryable(err error) bool {
	switch ExternalKind(err) {
	case KindAuth, KindQuota, KindMalformed, KindNotFound:
		return false
	case KindNetwork:
		return true
	}
	return true
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
