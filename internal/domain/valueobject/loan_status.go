package valueobject

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// LoanStatus – immutable value object
// ---------------------------------------------------------------------------

// LoanStatus represents the lifecycle stage of a loan.
type LoanStatus struct {
	value string
}

const (
	loanStatusDraft              = "DRAFT"
	loanStatusPendingApproval    = "PENDING_APPROVAL"
	loanStatusApproved           = "APPROVED"
	loanStatusRejected           = "REJECTED"
	loanStatusPartiallyDisbursed = "PARTIALLY_DISBURSED"
	loanStatusActive             = "ACTIVE"
	loanStatusRestructured       = "RESTRUCTURED"
	loanStatusDefaulted          = "DEFAULTED"
	loanStatusWrittenOff         = "WRITTEN_OFF"
	loanStatusClosed             = "CLOSED"
)

var (
	LoanStatusDraft              = LoanStatus{value: loanStatusDraft}
	LoanStatusPendingApproval    = LoanStatus{value: loanStatusPendingApproval}
	LoanStatusApproved           = LoanStatus{value: loanStatusApproved}
	LoanStatusRejected           = LoanStatus{value: loanStatusRejected}
	LoanStatusPartiallyDisbursed = LoanStatus{value: loanStatusPartiallyDisbursed}
	LoanStatusActive             = LoanStatus{value: loanStatusActive}
	LoanStatusRestructured       = LoanStatus{value: loanStatusRestructured}
	LoanStatusDefaulted          = LoanStatus{value: loanStatusDefaulted}
	LoanStatusWrittenOff         = LoanStatus{value: loanStatusWrittenOff}
	LoanStatusClosed             = LoanStatus{value: loanStatusClosed}
)

var validLoanStatuses = map[string]LoanStatus{
	loanStatusDraft:              LoanStatusDraft,
	loanStatusPendingApproval:    LoanStatusPendingApproval,
	loanStatusApproved:           LoanStatusApproved,
	loanStatusRejected:           LoanStatusRejected,
	loanStatusPartiallyDisbursed: LoanStatusPartiallyDisbursed,
	loanStatusActive:             LoanStatusActive,
	loanStatusRestructured:       LoanStatusRestructured,
	loanStatusDefaulted:          LoanStatusDefaulted,
	loanStatusWrittenOff:         LoanStatusWrittenOff,
	loanStatusClosed:             LoanStatusClosed,
}

// loanTransitions is the complete table of legal edges. Anything absent is
// rejected; there is no way back to an earlier stage except through the
// compensating DEFAULTED -> RESTRUCTURED edge.
var loanTransitions = map[string][]string{
	loanStatusDraft:              {loanStatusPendingApproval},
	loanStatusPendingApproval:    {loanStatusApproved, loanStatusRejected},
	loanStatusApproved:           {loanStatusPartiallyDisbursed, loanStatusActive},
	loanStatusPartiallyDisbursed: {loanStatusPartiallyDisbursed, loanStatusActive},
	loanStatusActive:             {loanStatusRestructured, loanStatusDefaulted, loanStatusWrittenOff, loanStatusClosed},
	loanStatusRestructured:       {loanStatusDefaulted, loanStatusWrittenOff, loanStatusClosed},
	loanStatusDefaulted:          {loanStatusRestructured, loanStatusWrittenOff, loanStatusClosed},
}

// NewLoanStatus creates a LoanStatus from a raw string.
func NewLoanStatus(s string) (LoanStatus, error) {
	v, ok := validLoanStatuses[s]
	if !ok {
		return LoanStatus{}, fmt.Errorf("invalid loan status: %q", s)
	}
	return v, nil
}

// String returns the string representation of the status.
func (s LoanStatus) String() string { return s.value }

// IsZero returns true if the status has not been initialised.
func (s LoanStatus) IsZero() bool { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s LoanStatus) Equal(other LoanStatus) bool { return s.value == other.value }

// In reports whether s is any of the given statuses.
func (s LoanStatus) In(statuses ...LoanStatus) bool {
	for _, o := range statuses {
		if s.value == o.value {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, v := range loanTransitions[s.value] {
		if v == next.value {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s LoanStatus) IsTerminal() bool {
	return len(loanTransitions[s.value]) == 0
}

// AcceptsRepayments reports whether the schedule clock is running.
func (s LoanStatus) AcceptsRepayments() bool {
	return s.In(LoanStatusActive, LoanStatusRestructured, LoanStatusDefaulted)
}

// MarshalText implements encoding.TextMarshaler.
func (s LoanStatus) MarshalText() ([]byte, error) { return []byte(s.value), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LoanStatus) UnmarshalText(b []byte) error {
	v, err := NewLoanStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
