package domain

import (
	"errors"
	"fmt"
)

// ErrPostNotFound is returned when the upstream reports a missing or removed post.
var ErrPostNotFound = errors.New("post not found or removed")

// AuthError means the credential exchange failed. Callers fall back to
// unauthenticated access instead of surfacing it.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError is returned once every rung of the fetch ladder failed.
type UpstreamError struct {
	Status int
	Source string
	Rung   string
	Err    error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream error %d for %s", e.Status, e.Source)
	if e.Rung != "" {
		msg += " (last rung " + e.Rung + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RateLimited reports whether the upstream throttled the request.
func (e *UpstreamError) RateLimited() bool { return e.Status == 429 }

// ValidationError marks malformed input. Link-level validation errors are
// consumed by the extractor and never reach callers.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// CacheIOError wraps a failed snapshot read or write.
type CacheIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }
