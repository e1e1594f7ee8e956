// Package apperr defines the error taxonomy shared by the AI components,
// the job queue, and the pipeline. Errors are matched with errors.Is/As;
// only UpstreamUnavailable is retryable.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for well-known failure conditions.
var (
	ErrNoPillarsAvailable   = errors.New("no active pillars available for classification")
	ErrNoActivePillar       = errors.New("user has no active pillar")
	ErrDimensionMismatch    = errors.New("embedding dimension mismatch")
	ErrEmptyInput           = errors.New("empty input")
	ErrEmbeddingUnavailable = errors.New("embedding capability unavailable")
)

// ValidationError reports bad input shape or length. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing referenced entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// UpstreamUnavailable reports an infrastructure-class failure from an
// external capability (embedding, completion, research). Retryable.
type UpstreamUnavailable struct {
	Capability string
	Err        error
}

func (e *UpstreamUnavailable) Error() string {
	return fmt.Sprintf("%s capability unavailable: %v", e.Capability, e.Err)
}

func (e *UpstreamUnavailable) Unwrap() error { return e.Err }

// ParseError reports a structurally invalid response from a generation
// capability. Not retryable: it is a semantic failure, not a transient
// fault. RawPayload is kept for diagnosis.
type ParseError struct {
	Capability string
	RawPayload string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Capability, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UsageLimitExceeded reports an explicit plan denial. Never retried.
type UsageLimitExceeded struct {
	Action string
	Plan   string
}

func (e *UsageLimitExceeded) Error() string {
	return fmt.Sprintf("usage limit exceeded for %s on plan %q", e.Action, e.Plan)
}

// IsRetryable reports whether err is an infrastructure failure worth
// retrying with backoff. Parse failures, validation failures, and limit
// denials surface immediately.
func IsRetryable(err error) bool {
	var upstream *UpstreamUnavailable
	return errors.As(err, &upstream)
}
