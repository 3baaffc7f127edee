package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// Sentinel errors. Callers match with errors.Is; the typed errors below carry
// the detail.
var (
	ErrValidation                = errors.New("validation failed")
	ErrInvalidScheduleParameters = errors.New("invalid schedule parameters")
	ErrApprovalLimitExceeded     = errors.New("approval limit exceeded")
	ErrInvalidStateTransition    = errors.New("invalid state transition")
	ErrConcurrencyConflict       = errors.New("concurrency conflict")
	ErrAllocationInvariant       = errors.New("allocation invariant violated")
	ErrNotFound                  = errors.New("not found")
)

// ValidationError reports malformed input rejected before any state change.
type ValidationError struct {
	Field  string
	Reason string
	// Kind optionally narrows the failure, e.g. ErrInvalidScheduleParameters.
	Kind error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Kind}
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) error {
	return invalid(field, format, args...)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func invalidSchedule(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...), Kind: ErrInvalidScheduleParameters}
}

// InvalidStateTransitionError is returned when an operation is not legal in
// the loan's current lifecycle state. Nothing is changed.
type InvalidStateTransitionError struct {
	LoanID     string
	Current    valueobject.LoanStatus
	Transition string
	Required   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("loan %s: cannot %s while %s (requires %s)", e.LoanID, e.Transition, e.Current, e.Required)
}

func (e *InvalidStateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

func requireStatus(loanID string, current valueobject.LoanStatus, transition string, allowed ...valueobject.LoanStatus) error {
	if current.In(allowed...) {
		return nil
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = s.String()
	}
	return &InvalidStateTransitionError{
		LoanID:     loanID,
		Current:    current,
		Transition: transition,
		Required:   "status " + strings.Join(names, " or "),
	}
}

// ConcurrencyConflictError is returned by repositories when the stored version
// no longer matches the version the caller loaded. The caller must reload.
type ConcurrencyConflictError struct {
	AggregateType string
	AggregateID   string
	Expected      int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %s: version %d is stale", e.AggregateType, e.AggregateID, e.Expected)
}

func (e *ConcurrencyConflictError) Unwrap() error { return ErrConcurrencyConflict }

// AllocationInvariantError is returned when applying or reversing money would
// break a balance invariant. Sequence is zero when no single installment is
// at fault.
type AllocationInvariantError struct {
	LoanID    string
	Sequence  int
	Invariant string
}

func (e *AllocationInvariantError) Error() string {
	if e.Sequence == 0 {
		return fmt.Sprintf("loan %s: %s", e.LoanID, e.Invariant)
	}
	return fmt.Sprintf("loan %s installment %d: %s", e.LoanID, e.Sequence, e.Invariant)
}

func (e *AllocationInvariantError) Unwrap() error { return ErrAllocationInvariant }
