/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these with context; the HTTP layer maps them to
  status codes with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Parse errors - malformed JSON uploads, time or date strings
  2. Validation errors - bad ids, missing fields, rejected updates
  3. Not-found errors - unknown record or employee
  4. Upstream errors - biometric vendor failures and timeouts

USAGE:
  if errors.Is(err, generic.ErrNotFound) {
      // 404
  }

  var pe *generic.ParseError
  if errors.As(err, &pe) {
      log.Printf("bad input %q", pe.Input)
  }

SEE ALSO:
  - api/handlers.go: writeServiceError maps these to HTTP statuses
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrParse is returned for malformed uploads and time strings.
	ErrParse = errors.New("parse error")

	// ErrValidation is returned when a request fails validation. No mutation
	// has been performed.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned for unknown records or employees.
	ErrNotFound = errors.New("not found")

	// ErrUpstream is returned when the biometric vendor fails or times out.
	// No ledger state has been committed.
	ErrUpstream = errors.New("upstream error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ParseError reports input that did not match the expected layout.
type ParseError struct {
	Input  string
	Layout string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("cannot parse %q as %s", e.Input, e.Layout)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// ValidationError reports a rejected field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// NotFoundError names the missing resource.
type NotFoundError struct {
	Kind string // "attendance record", "employee"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UpstreamError wraps a failed call to an external system.
type UpstreamError struct {
	Service    string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrParse) || errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUpstream returns true if an external dependency failed.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
