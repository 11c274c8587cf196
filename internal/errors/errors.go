// Package errors provides centralized error definitions and error handling
// utilities for pjnsync. It defines domain-specific errors, sentinel errors,
// constructors with context wrapping, and classification helpers used by the
// error-propagation policy: portal errors are retried at case or credential
// granularity, auth failures abort a credential's run but leave it resumable,
// and reconciliation invariant violations are fatal and never ignored.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Credential and lease errors
var (
	// ErrCredentialNotFound indicates the credential document does not exist.
	ErrCredentialNotFound = New("credential not found")
	// ErrCredentialDisabled indicates the credential is disabled or invalid.
	ErrCredentialDisabled = New("credential is disabled")
	// ErrCredentialLocked indicates another worker holds the credential's
	// sync lease (syncStatus = in_progress).
	ErrCredentialLocked = New("credential sync already in progress")
)

// Run ledger errors
var (
	// ErrRunNotFound indicates the run record does not exist.
	ErrRunNotFound = New("run not found")
	// ErrRunNotResumable indicates the run is in a terminal state or has
	// exhausted its resume attempts.
	ErrRunNotResumable = New("run is not resumable")
)

// Portal errors
var (
	// ErrAuthFailed indicates the portal rejected the credential's login.
	ErrAuthFailed = New("portal authentication failed")
	// ErrJurisdictionUnavailable indicates a jurisdiction-wide outage,
	// structurally distinct from a single case missing.
	ErrJurisdictionUnavailable = New("jurisdiction unavailable")
	// ErrCausaNotFound indicates the portal does not list the case.
	ErrCausaNotFound = New("causa not found on portal")
	// ErrPortalTimeout indicates a transient portal timeout.
	ErrPortalTimeout = New("portal request timed out")
)

// Store errors
var (
	// ErrNotFound indicates a document does not exist.
	ErrNotFound = New("not found")
	// ErrConflict indicates a compare-and-swap guard missed.
	ErrConflict = New("conflict")
)

// Reconciler errors
var (
	// ErrNotSyncOwned indicates an attempted hard delete of a causa the
	// synchronization system did not create. Always a programming error.
	ErrNotSyncOwned = New("causa is not sync-owned")
	// ErrPartialScan indicates pjnNotFound reconciliation was attempted
	// from an incomplete portal scan.
	ErrPartialScan = New("not-found reconciliation requires a complete scan")
)

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// PortalError represents an error from the external portal, carrying the
// credential and jurisdiction it occurred under. Transient portal errors are
// retryable; authentication failures are not.
type PortalError struct {
	CredentialID string
	Fuero        string
	message      string
	cause        error
}

// NewPortalError creates a new PortalError wrapping the cause.
func NewPortalError(message string, cause error) *PortalError {
	return &PortalError{message: message, cause: cause}
}

// WithCredential adds the credential id to the error context.
func (e *PortalError) WithCredential(id string) *PortalError {
	e.CredentialID = id
	return e
}

// WithFuero adds the jurisdiction to the error context.
func (e *PortalError) WithFuero(fuero string) *PortalError {
	e.Fuero = fuero
	return e
}

// Error returns the formatted error message.
func (e *PortalError) Error() string {
	var parts []string
	if e.CredentialID != "" {
		parts = append(parts, fmt.Sprintf("credential=%s", e.CredentialID))
	}
	if e.Fuero != "" {
		parts = append(parts, fmt.Sprintf("fuero=%s", e.Fuero))
	}
	prefix := "portal error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("portal error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *PortalError) Unwrap() error { return e.cause }

// RunError represents a credential-level failure of a synchronization run.
type RunError struct {
	RunID        string
	CredentialID string
	message      string
	cause        error
}

// NewRunError creates a new RunError wrapping the cause.
func NewRunError(message string, cause error) *RunError {
	return &RunError{message: message, cause: cause}
}

// WithRun adds the run id to the error context.
func (e *RunError) WithRun(id string) *RunError {
	e.RunID = id
	return e
}

// WithCredential adds the credential id to the error context.
func (e *RunError) WithCredential(id string) *RunError {
	e.CredentialID = id
	return e
}

// Error returns the formatted error message.
func (e *RunError) Error() string {
	var parts []string
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	if e.CredentialID != "" {
		parts = append(parts, fmt.Sprintf("credential=%s", e.CredentialID))
	}
	prefix := "run error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("run error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error { return e.cause }

// ReconcileError represents a record-reconciliation failure. Invariant
// violations (wrapping ErrNotSyncOwned or ErrPartialScan) are fatal: the
// reconciler must stop rather than corrupt ownership state.
type ReconcileError struct {
	CausaKey string
	message  string
	cause    error
}

// NewReconcileError creates a new ReconcileError wrapping the cause.
func NewReconcileError(message string, cause error) *ReconcileError {
	return &ReconcileError{message: message, cause: cause}
}

// WithCausa adds the causa's natural key to the error context.
func (e *ReconcileError) WithCausa(key string) *ReconcileError {
	e.CausaKey = key
	return e
}

// Error returns the formatted error message.
func (e *ReconcileError) Error() string {
	prefix := "reconcile error"
	if e.CausaKey != "" {
		prefix = fmt.Sprintf("reconcile error [causa=%s]", e.CausaKey)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *ReconcileError) Unwrap() error { return e.cause }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true for transient errors that may succeed on retry:
// portal timeouts, jurisdiction-wide outages and store CAS conflicts.
// Authentication failures and invariant violations are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrPortalTimeout) ||
		Is(err, ErrJurisdictionUnavailable) ||
		Is(err, ErrConflict)
}

// IsAuth returns true for portal authentication failures, which abort the
// credential's run and leave it resumable.
func IsAuth(err error) bool {
	return Is(err, ErrAuthFailed)
}

// IsFatal returns true for reconciliation invariant violations, which must
// surface as assertion failures rather than be silently ignored.
func IsFatal(err error) bool {
	return Is(err, ErrNotSyncOwned) || Is(err, ErrPartialScan)
}

// IsJurisdictionOutage returns true when the error indicates a
// jurisdiction-wide portal outage. A single observation is sufficient to
// cool down the affected cases.
func IsJurisdictionOutage(err error) bool {
	return Is(err, ErrJurisdictionUnavailable)
}
