package generator

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned before any network call when no API key is set.
var ErrNotConfigured = errors.New("OpenAI API key not configured")

// ParseError means the service answered but the content was not the JSON
// shape the caller asked for.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// ServiceError wraps transport faults, API error statuses, timeouts and empty
// completions.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("AI service error: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
