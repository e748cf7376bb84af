package domain

import "errors"

// Sentinel errors for the core subsystem. Callers branch with errors.Is;
// services wrap these with fmt.Errorf("...: %w", err) to add detail.
var (
	// ErrInvalidTransition is returned when a workflow status change is not
	// allowed by the transition table.
	ErrInvalidTransition = errors.New("invalid workflow status transition")

	// ErrConcurrencyConflict is the infrastructure-level optimistic locking
	// failure: a write that did not observe the current version. Recoverable,
	// re-read and retry. Not to be confused with the Conflict entity, which is
	// a domain-level disagreement between users.
	ErrConcurrencyConflict = errors.New("version mismatch, re-read and retry")

	ErrWorkflowNotFound   = errors.New("workflow not found")
	ErrContextNotFound    = errors.New("shared context not found")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrConflictNotFound   = errors.New("conflict not found")
	ErrDecisionNotFound   = errors.New("decision not found")
	ErrVersionNotFound    = errors.New("decision version not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrReviewNotFound     = errors.New("review not found")

	// ErrConflictAlreadyResolved guards the resolve-exactly-once rule.
	ErrConflictAlreadyResolved = errors.New("conflict already resolved")

	// ErrInputValidationFailed marks a queued input with malformed content.
	ErrInputValidationFailed = errors.New("input validation failed")

	// ErrDecisionLocked is returned when a new version is appended to a
	// locked decision.
	ErrDecisionLocked = errors.New("decision is locked")

	// ErrReviewReasonRequired is returned when an unlock or review action is
	// missing its audit reason (must be 5-500 characters).
	ErrReviewReasonRequired = errors.New("a reason of 5-500 characters is required")

	// ErrAlreadyResponded guards the one-response-per-reviewer rule.
	ErrAlreadyResponded = errors.New("reviewer has already responded")
)
