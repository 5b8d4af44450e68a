// Package errs defines the typed error kinds shared across the agent's
// components, matching the teacher's pkg/errors convention of a small
// Kind enum plus a wrapping error type.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the boundary it crossed.
type Kind string

const (
	KindIntegrationUnavailable Kind = "integration_unavailable"
	KindRateLimited            Kind = "rate_limited"
	KindLLMTimeout             Kind = "llm_timeout"
	KindLLMBadOutput           Kind = "llm_bad_output"
	KindLLMPayloadTooLarge     Kind = "llm_payload_too_large"
	KindLLMQuotaExceeded       Kind = "llm_quota_exceeded"
	KindStorageUnavailable     Kind = "storage_unavailable"
	KindToolExecution          Kind = "tool_execution"
	KindValidation             Kind = "validation"
)

// Error wraps an underlying cause with a Kind and the component that
// observed it, so callers can branch on Kind without string matching.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func New(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
