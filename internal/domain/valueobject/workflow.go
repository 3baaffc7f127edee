package valueobject

import "fmt"

// WorkflowStatus tracks a restructure or write-off request through its
// maker-checker chain.
type WorkflowStatus string

const (
	WorkflowSubmitted WorkflowStatus = "SUBMITTED"
	WorkflowApproved  WorkflowStatus = "APPROVED"
	WorkflowRejected  WorkflowStatus = "REJECTED"
	// WorkflowActivated is the final state of a restructure.
	WorkflowActivated WorkflowStatus = "ACTIVATED"
	// WorkflowProcessed is the final state of a write-off.
	WorkflowProcessed WorkflowStatus = "PROCESSED"
)

// NewWorkflowStatus parses a raw workflow status.
func NewWorkflowStatus(s string) (WorkflowStatus, error) {
	switch w := WorkflowStatus(s); w {
	case WorkflowSubmitted, WorkflowApproved, WorkflowRejected, WorkflowActivated, WorkflowProcessed:
		return w, nil
	}
	return "", fmt.Errorf("invalid workflow status: %q", s)
}

// IsOpen reports whether the request still awaits a decision or execution.
func (w WorkflowStatus) IsOpen() bool {
	return w == WorkflowSubmitted || w == WorkflowApproved
}

// VerificationStatus is the state of a tranche milestone.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationFailed   VerificationStatus = "FAILED"
)

// NewVerificationStatus parses a raw verification status.
func NewVerificationStatus(s string) (VerificationStatus, error) {
	switch v := VerificationStatus(s); v {
	case VerificationPending, VerificationVerified, VerificationFailed:
		return v, nil
	}
	return "", fmt.Errorf("invalid verification status: %q", s)
}

// InstallmentStatus is derived from balances and the evaluation date.
type InstallmentStatus string

const (
	InstallmentPending       InstallmentStatus = "PENDING"
	InstallmentPartiallyPaid InstallmentStatus = "PARTIALLY_PAID"
	InstallmentPaid          InstallmentStatus = "PAID"
	InstallmentOverdue       InstallmentStatus = "OVERDUE"
	InstallmentWaived        InstallmentStatus = "WAIVED"
)
