package service

import (
	"errors"
	"fmt"
)

// --- Error Definitions (shared across services) ---
var (
	ErrSessionAlreadyActive = errors.New("a workout session is already active")
	ErrNoActiveSession      = errors.New("no active workout session")
	ErrValidationFailed     = errors.New("validation failed")
	ErrIdentityConflict     = errors.New("identity already registered to a different account")
	ErrOffDomainRequest     = errors.New("request rejected as out of domain")
	ErrHistoryCapReached    = errors.New("thread history cap reached")
)

// RateLimitError signals an active cooldown. It is expected control flow, not
// a failure, and carries the seconds the caller must wait.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfterSeconds)
}

// ModerationBanError signals that the account is currently banned from
// AI-assisted plan modification. Threads refuse to forward messages to the
// model while this is in force.
type ModerationBanError struct {
	RetryAfterSeconds int
}

func (e *ModerationBanError) Error() string {
	return fmt.Sprintf("account banned from AI requests, retry after %ds", e.RetryAfterSeconds)
}

// Reject kinds for SchemaContractError. Parse failures and schema failures
// are distinct rejection reasons, but neither escalates moderation (only the
// explicit refusal sentinel does).
const (
	RejectParse  = "parse"
	RejectSchema = "schema"
)

// SchemaContractError signals that an AI response failed the plan contract.
// User-retryable.
type SchemaContractError struct {
	Kind   string // RejectParse or RejectSchema
	Reason string
}

func (e *SchemaContractError) Error() string {
	return fmt.Sprintf("AI response rejected (%s): %s", e.Kind, e.Reason)
}

// UpstreamError wraps a persistence / AI-model / verification-provider
// failure or timeout. Not auto-retried by the core; surfaced generically.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure in %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// upstream wraps err as an UpstreamError unless it is nil.
func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}
