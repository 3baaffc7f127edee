package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Product DTOs
// ---------------------------------------------------------------------------

// FeeDTO describes one product fee.
type FeeDTO struct {
	Name    string          `json:"name"`
	Kind    string          `json:"kind"`
	Amount  decimal.Decimal `json:"amount"`
	Trigger string          `json:"trigger"`
}

// ProductTermsDTO is the wire form of a product's lending terms.
type ProductTermsDTO struct {
	Currency               string          `json:"currency"`
	InterestMethod         string          `json:"interest_method"`
	AnnualRate             decimal.Decimal `json:"annual_rate"`
	Frequency              string          `json:"frequency"`
	MinInstallments        int             `json:"min_installments"`
	MaxInstallments        int             `json:"max_installments"`
	MinPrincipal           decimal.Decimal `json:"min_principal"`
	MaxPrincipal           decimal.Decimal `json:"max_principal"`
	GracePeriods           int             `json:"grace_periods"`
	InterestDuringGrace    bool            `json:"interest_during_grace"`
	Fees                   []FeeDTO        `json:"fees,omitempty"`
	PenaltyRate            decimal.Decimal `json:"penalty_rate"`
	AllocationOrder        []string        `json:"allocation_order,omitempty"`
	AllocationPolicy       string          `json:"allocation_policy,omitempty"`
	AllowUnderDisbursement bool            `json:"allow_under_disbursement"`
}

// CreateProductRequest publishes version 1 of a product.
type CreateProductRequest struct {
	TenantID string          `json:"tenant_id"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Terms    ProductTermsDTO `json:"terms"`
}

// ReviseProductRequest publishes the next version of a product.
type ReviseProductRequest struct {
	TenantID  string          `json:"tenant_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Terms     ProductTermsDTO `json:"terms"`
}

// GetProductRequest identifies a product. Version 0 means the latest.
type GetProductRequest struct {
	TenantID  string `json:"tenant_id"`
	ProductID string `json:"product_id"`
	Version   int    `json:"version,omitempty"`
}

// PreviewScheduleRequest asks for a schedule without creating a loan.
type PreviewScheduleRequest struct {
	TenantID     string          `json:"tenant_id"`
	ProductID    string          `json:"product_id"`
	Principal    decimal.Decimal `json:"principal"`
	Installments int             `json:"installments"`
	StartDate    time.Time       `json:"start_date"`
}

// ProductResponse is the external representation of a product version.
type ProductResponse struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	Terms     ProductTermsDTO `json:"terms"`
	CreatedAt time.Time       `json:"created_at"`
}

// ScheduleResponse is a standalone schedule preview.
type ScheduleResponse struct {
	Entries []ScheduleEntryResponse `json:"entries"`
	Totals  BalancesResponse        `json:"totals"`
}

// ---------------------------------------------------------------------------
// Origination DTOs
// ---------------------------------------------------------------------------

// CreateLoanRequest opens a draft loan against a product.
type CreateLoanRequest struct {
	TenantID        string          `json:"tenant_id"`
	MemberID        string          `json:"member_id"`
	ProductID       string          `json:"product_id"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	Installments    int             `json:"installments"`
	Purpose         string          `json:"purpose"`
	CollateralIDs   []string        `json:"collateral_ids,omitempty"`
	GuarantorIDs    []string        `json:"guarantor_ids,omitempty"`
}

// UpdateDraftRequest edits a draft. Nil fields are left unchanged.
type UpdateDraftRequest struct {
	TenantID        string           `json:"tenant_id"`
	LoanID          string           `json:"loan_id"`
	RequestedAmount *decimal.Decimal `json:"requested_amount,omitempty"`
	Installments    *int             `json:"installments,omitempty"`
	Purpose         *string          `json:"purpose,omitempty"`
	CollateralIDs   []string         `json:"collateral_ids,omitempty"`
	GuarantorIDs    []string         `json:"guarantor_ids,omitempty"`
}

// LoanActionRequest identifies a loan for a parameterless transition.
type LoanActionRequest struct {
	TenantID string `json:"tenant_id"`
	LoanID   string `json:"loan_id"`
}

// ApproveLoanRequest approves a submitted loan. A zero ApprovedAmount
// approves the requested amount.
type ApproveLoanRequest struct {
	TenantID       string          `json:"tenant_id"`
	LoanID         string          `json:"loan_id"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
}

// RejectLoanRequest declines a submitted loan.
type RejectLoanRequest struct {
	TenantID   string `json:"tenant_id"`
	LoanID     string `json:"loan_id"`
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

// ---------------------------------------------------------------------------
// Disbursement DTOs
// ---------------------------------------------------------------------------

// TrancheSpecDTO is one planned tranche.
type TrancheSpecDTO struct {
	Amount    decimal.Decimal `json:"amount"`
	Milestone string          `json:"milestone"`
}

// PlanTranchesRequest records a staged disbursement plan.
type PlanTranchesRequest struct {
	TenantID string           `json:"tenant_id"`
	LoanID   string           `json:"loan_id"`
	Tranches []TrancheSpecDTO `json:"tranches"`
}

// RecordMilestoneRequest records the verification outcome of a tranche
// milestone.
type RecordMilestoneRequest struct {
	TenantID   string `json:"tenant_id"`
	LoanID     string `json:"loan_id"`
	Sequence   int    `json:"sequence"`
	Status     string `json:"status"`
	VerifiedBy string `json:"verified_by"`
}

// DisburseLoanRequest disburses an approved loan in a single draw.
type DisburseLoanRequest struct {
	TenantID    string          `json:"tenant_id"`
	LoanID      string          `json:"loan_id"`
	Amount      decimal.Decimal `json:"amount"`
	DisbursedAt time.Time       `json:"disbursed_at"`
}

// DisburseTrancheRequest draws one planned tranche.
type DisburseTrancheRequest struct {
	TenantID    string          `json:"tenant_id"`
	LoanID      string          `json:"loan_id"`
	Sequence    int             `json:"sequence"`
	Amount      decimal.Decimal `json:"amount"`
	DisbursedAt time.Time       `json:"disbursed_at"`
}

// ---------------------------------------------------------------------------
// Servicing DTOs
// ---------------------------------------------------------------------------

// MakePaymentRequest carries one repayment. Reference is the idempotency key.
type MakePaymentRequest struct {
	TenantID  string          `json:"tenant_id"`
	LoanID    string          `json:"loan_id"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}

// ReverseRepaymentRequest compensates an earlier repayment.
type ReverseRepaymentRequest struct {
	TenantID    string `json:"tenant_id"`
	LoanID      string `json:"loan_id"`
	RepaymentID string `json:"repayment_id"`
	Reason      string `json:"reason"`
}

// AssessOverdueRequest charges penalties on installments due before AsOf.
type AssessOverdueRequest struct {
	TenantID string    `json:"tenant_id"`
	LoanID   string    `json:"loan_id"`
	AsOf     time.Time `json:"as_of"`
}

// WaiveInstallmentRequest forgives components of one installment.
type WaiveInstallmentRequest struct {
	TenantID   string   `json:"tenant_id"`
	LoanID     string   `json:"loan_id"`
	Sequence   int      `json:"sequence"`
	Components []string `json:"components"`
	WaivedBy   string   `json:"waived_by"`
	Reason     string   `json:"reason"`
}

// MarkDefaultedRequest moves a loan to DEFAULTED.
type MarkDefaultedRequest struct {
	TenantID string `json:"tenant_id"`
	LoanID   string `json:"loan_id"`
	Reason   string `json:"reason"`
}

// ---------------------------------------------------------------------------
// Workout DTOs
// ---------------------------------------------------------------------------

// RestructureTermsDTO is the wire form of renegotiated terms.
type RestructureTermsDTO struct {
	AnnualRate      decimal.Decimal `json:"annual_rate"`
	Installments    int             `json:"installments"`
	Frequency       string          `json:"frequency"`
	InterestMethod  string          `json:"interest_method"`
	GracePeriods    int             `json:"grace_periods"`
	WaivedPrincipal decimal.Decimal `json:"waived_principal"`
	WaivedInterest  decimal.Decimal `json:"waived_interest"`
}

// SubmitRestructureRequest opens a restructure request.
type SubmitRestructureRequest struct {
	TenantID    string              `json:"tenant_id"`
	LoanID      string              `json:"loan_id"`
	Terms       RestructureTermsDTO `json:"terms"`
	SubmittedBy string              `json:"submitted_by"`
	Reason      string              `json:"reason"`
}

// DecisionRequest approves or rejects a pending workout request.
type DecisionRequest struct {
	TenantID  string `json:"tenant_id"`
	LoanID    string `json:"loan_id"`
	RequestID string `json:"request_id"`
	DecidedBy string `json:"decided_by"`
	Note      string `json:"note"`
}

// ActivateRestructureRequest swaps in the restructured schedule.
type ActivateRestructureRequest struct {
	TenantID  string    `json:"tenant_id"`
	LoanID    string    `json:"loan_id"`
	RequestID string    `json:"request_id"`
	StartDate time.Time `json:"start_date"`
	Actor     string    `json:"actor"`
}

// SubmitWriteOffRequest opens a write-off request.
type SubmitWriteOffRequest struct {
	TenantID    string `json:"tenant_id"`
	LoanID      string `json:"loan_id"`
	SubmittedBy string `json:"submitted_by"`
	Reason      string `json:"reason"`
}

// ProcessWriteOffRequest removes the balances of an approved write-off.
type ProcessWriteOffRequest struct {
	TenantID  string `json:"tenant_id"`
	LoanID    string `json:"loan_id"`
	RequestID string `json:"request_id"`
	Actor     string `json:"actor"`
}

// RecoveryRequest records money collected on a written-off loan.
type RecoveryRequest struct {
	TenantID  string          `json:"tenant_id"`
	LoanID    string          `json:"loan_id"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}

// ---------------------------------------------------------------------------
// Query DTOs
// ---------------------------------------------------------------------------

// GetLoanRequest identifies a loan to retrieve.
type GetLoanRequest struct {
	TenantID string `json:"tenant_id"`
	LoanID   string `json:"loan_id"`
}

// ListLoansRequest lists a member's loans.
type ListLoansRequest struct {
	TenantID string `json:"tenant_id"`
	MemberID string `json:"member_id"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// BalancesResponse is a per-component amount split.
type BalancesResponse struct {
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Fees      decimal.Decimal `json:"fees"`
	Penalties decimal.Decimal `json:"penalties"`
	Total     decimal.Decimal `json:"total"`
}

// ScheduleEntryResponse is one installment.
type ScheduleEntryResponse struct {
	Sequence       int             `json:"sequence"`
	Generation     int             `json:"generation"`
	DueDate        time.Time       `json:"due_date"`
	Status         string          `json:"status"`
	PrincipalDue   decimal.Decimal `json:"principal_due"`
	InterestDue    decimal.Decimal `json:"interest_due"`
	FeeDue         decimal.Decimal `json:"fee_due"`
	PenaltyDue     decimal.Decimal `json:"penalty_due"`
	PrincipalPaid  decimal.Decimal `json:"principal_paid"`
	InterestPaid   decimal.Decimal `json:"interest_paid"`
	FeePaid        decimal.Decimal `json:"fee_paid"`
	PenaltyPaid    decimal.Decimal `json:"penalty_paid"`
	InterestWaived decimal.Decimal `json:"interest_waived"`
	FeeWaived      decimal.Decimal `json:"fee_waived"`
	PenaltyWaived  decimal.Decimal `json:"penalty_waived"`
	Remaining      decimal.Decimal `json:"remaining"`
}

// AllocationLineResponse is the part of a repayment applied to one installment.
type AllocationLineResponse struct {
	Sequence           int             `json:"sequence"`
	Penalty            decimal.Decimal `json:"penalty"`
	Fee                decimal.Decimal `json:"fee"`
	Interest           decimal.Decimal `json:"interest"`
	Principal          decimal.Decimal `json:"principal"`
	InterestAdjustment decimal.Decimal `json:"interest_adjustment,omitempty"`
}

// RepaymentResponse is one ledger record. Duplicate is set when the request
// replayed an already-recorded reference.
type RepaymentResponse struct {
	ID         string                   `json:"id"`
	LoanID     string                   `json:"loan_id"`
	Reference  string                   `json:"reference"`
	Kind       string                   `json:"kind"`
	Amount     decimal.Decimal          `json:"amount"`
	PaidAt     time.Time                `json:"paid_at"`
	RecordedAt time.Time                `json:"recorded_at"`
	ReversalOf string                   `json:"reversal_of,omitempty"`
	Reason     string                   `json:"reason,omitempty"`
	Allocation []AllocationLineResponse `json:"allocation"`
	LoanStatus string                   `json:"loan_status"`
	Duplicate  bool                     `json:"duplicate"`
}

// TrancheResponse is one disbursement tranche.
type TrancheResponse struct {
	Sequence        int             `json:"sequence"`
	Milestone       string          `json:"milestone"`
	PlannedAmount   decimal.Decimal `json:"planned_amount"`
	DisbursedAmount decimal.Decimal `json:"disbursed_amount"`
	Verification    string          `json:"verification"`
	VerifiedBy      string          `json:"verified_by,omitempty"`
	DisbursedAt     *time.Time      `json:"disbursed_at,omitempty"`
}

// WorkflowResponse is a restructure or write-off request.
type WorkflowResponse struct {
	ID          string           `json:"id"`
	LoanID      string           `json:"loan_id"`
	Kind        string           `json:"kind"`
	Status      string           `json:"status"`
	Reason      string           `json:"reason"`
	SubmittedBy string           `json:"submitted_by"`
	DecidedBy   string           `json:"decided_by,omitempty"`
	Note        string           `json:"note,omitempty"`
	Before      BalancesResponse `json:"before"`
	Amounts     BalancesResponse `json:"amounts"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// LoanResponse is the external representation of a loan.
type LoanResponse struct {
	ID              string                  `json:"id"`
	TenantID        string                  `json:"tenant_id"`
	MemberID        string                  `json:"member_id"`
	ProductID       string                  `json:"product_id"`
	ProductVersion  int                     `json:"product_version"`
	Purpose         string                  `json:"purpose"`
	Status          string                  `json:"status"`
	Currency        string                  `json:"currency"`
	RequestedAmount decimal.Decimal         `json:"requested_amount"`
	Principal       decimal.Decimal         `json:"principal"`
	TotalDisbursed  decimal.Decimal         `json:"total_disbursed"`
	Installments    int                     `json:"installments"`
	Generation      int                     `json:"generation"`
	ApprovedBy      string                  `json:"approved_by,omitempty"`
	DecisionReason  string                  `json:"decision_reason,omitempty"`
	Outstanding     BalancesResponse        `json:"outstanding"`
	Schedule        []ScheduleEntryResponse `json:"schedule"`
	Tranches        []TrancheResponse       `json:"tranches,omitempty"`
	Repayments      []RepaymentResponse     `json:"repayments,omitempty"`
	Workouts        []WorkflowResponse      `json:"workouts,omitempty"`
	CollateralIDs   []string                `json:"collateral_ids,omitempty"`
	GuarantorIDs    []string                `json:"guarantor_ids,omitempty"`
	ActivatedAt     *time.Time              `json:"activated_at,omitempty"`
	ExpectedEndDate *time.Time              `json:"expected_end_date,omitempty"`
	Version         int                     `json:"version"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// ListLoansResponse is a member's loan list.
type ListLoansResponse struct {
	Loans []LoanResponse `json:"loans"`
}
