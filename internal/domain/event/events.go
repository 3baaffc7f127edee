package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/pkg/events"
)

// DomainEvent is an alias for the shared pkg/events.DomainEvent interface.
type DomainEvent = events.DomainEvent

const (
	aggregateLoan    = "Loan"
	aggregateProduct = "LoanProduct"
)

// Event type names. Consumers route on these, so they are part of the wire
// contract.
const (
	TypeLoanCreated              = "lending.loan.created"
	TypeLoanSubmitted            = "lending.loan.submitted"
	TypeLoanApproved             = "lending.loan.approved"
	TypeLoanRejected             = "lending.loan.rejected"
	TypeLoanTranchesPlanned      = "lending.loan.tranches_planned"
	TypeLoanMilestoneRecorded    = "lending.loan.milestone_recorded"
	TypeLoanDisbursed            = "lending.loan.disbursed"
	TypeLoanActivated            = "lending.loan.activated"
	TypeLoanScheduleCreated      = "lending.loan.schedule_created"
	TypeLoanSchedulePaid         = "lending.loan.schedule_paid"
	TypeLoanScheduleWaived       = "lending.loan.schedule_waived"
	TypeLoanInstallmentOverdue   = "lending.loan.installment_overdue"
	TypeLoanRepaymentCreated     = "lending.loan.repayment_created"
	TypeLoanRepaymentReversed    = "lending.loan.repayment_reversed"
	TypeLoanRestructureSubmitted = "lending.loan.restructure_submitted"
	TypeLoanRestructureApproved  = "lending.loan.restructure_approved"
	TypeLoanRestructureRejected  = "lending.loan.restructure_rejected"
	TypeLoanRestructureActivated = "lending.loan.restructure_activated"
	TypeLoanWriteOffSubmitted    = "lending.loan.writeoff_submitted"
	TypeLoanWriteOffApproved     = "lending.loan.writeoff_approved"
	TypeLoanWriteOffRejected     = "lending.loan.writeoff_rejected"
	TypeLoanWriteOffProcessed    = "lending.loan.writeoff_processed"
	TypeLoanWriteOffRecovery     = "lending.loan.writeoff_recovery"
	TypeLoanPaidOff              = "lending.loan.paid_off"
	TypeLoanDefaulted            = "lending.loan.defaulted"
	TypeLoanProductPublished     = "lending.product.published"
)

func loanBase(eventType, loanID, tenantID string, at time.Time) events.BaseEvent {
	return events.NewBaseEvent(eventType, loanID, aggregateLoan, tenantID, at)
}

// Breakdown is the per-component split of a money movement.
type Breakdown struct {
	Penalty   decimal.Decimal `json:"penalty"`
	Fee       decimal.Decimal `json:"fee"`
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
}

// ---------------------------------------------------------------------------
// Origination
// ---------------------------------------------------------------------------

// LoanCreated is raised when a draft loan is opened for a member.
type LoanCreated struct {
	events.BaseEvent
	MemberID        string          `json:"member_id"`
	ProductID       string          `json:"product_id"`
	ProductVersion  int             `json:"product_version"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	Currency        string          `json:"currency"`
}

func NewLoanCreated(
	loanID, tenantID, memberID, productID string, productVersion int,
	requested decimal.Decimal, currency string, at time.Time,
) LoanCreated {
	return LoanCreated{
		BaseEvent:       loanBase(TypeLoanCreated, loanID, tenantID, at),
		MemberID:        memberID,
		ProductID:       productID,
		ProductVersion:  productVersion,
		RequestedAmount: requested,
		Currency:        currency,
	}
}

// LoanSubmitted is raised when a draft is sent for approval.
type LoanSubmitted struct {
	events.BaseEvent
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	Installments    int             `json:"installments"`
}

func NewLoanSubmitted(loanID, tenantID string, requested decimal.Decimal, installments int, at time.Time) LoanSubmitted {
	return LoanSubmitted{
		BaseEvent:       loanBase(TypeLoanSubmitted, loanID, tenantID, at),
		RequestedAmount: requested,
		Installments:    installments,
	}
}

// LoanApproved is raised when an authorised approver accepts the loan.
type LoanApproved struct {
	events.BaseEvent
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	ApprovedBy     string          `json:"approved_by"`
	ApprovalLimit  decimal.Decimal `json:"approval_limit"`
	AnnualRate     decimal.Decimal `json:"annual_rate"`
	Installments   int             `json:"installments"`
	ProductVersion int             `json:"product_version"`
}

func NewLoanApproved(
	loanID, tenantID string, amount decimal.Decimal, approvedBy string,
	limit, annualRate decimal.Decimal, installments, productVersion int, at time.Time,
) LoanApproved {
	return LoanApproved{
		BaseEvent:      loanBase(TypeLoanApproved, loanID, tenantID, at),
		ApprovedAmount: amount,
		ApprovedBy:     approvedBy,
		ApprovalLimit:  limit,
		AnnualRate:     annualRate,
		Installments:   installments,
		ProductVersion: productVersion,
	}
}

// LoanRejected is raised when a pending loan is declined.
type LoanRejected struct {
	events.BaseEvent
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

func NewLoanRejected(loanID, tenantID, rejectedBy, reason string, at time.Time) LoanRejected {
	return LoanRejected{
		BaseEvent:  loanBase(TypeLoanRejected, loanID, tenantID, at),
		RejectedBy: rejectedBy,
		Reason:     reason,
	}
}

// ---------------------------------------------------------------------------
// Disbursement
// ---------------------------------------------------------------------------

// PlannedTranche summarises one tranche of a disbursement plan.
type PlannedTranche struct {
	Sequence  int             `json:"sequence"`
	Amount    decimal.Decimal `json:"amount"`
	Milestone string          `json:"milestone"`
}

// LoanTranchesPlanned is raised when the staged disbursement plan is fixed.
type LoanTranchesPlanned struct {
	events.BaseEvent
	Tranches []PlannedTranche `json:"tranches"`
}

func NewLoanTranchesPlanned(loanID, tenantID string, tranches []PlannedTranche, at time.Time) LoanTranchesPlanned {
	return LoanTranchesPlanned{
		BaseEvent: loanBase(TypeLoanTranchesPlanned, loanID, tenantID, at),
		Tranches:  tranches,
	}
}

// LoanMilestoneRecorded is raised when a milestone verification outcome arrives.
type LoanMilestoneRecorded struct {
	events.BaseEvent
	TrancheSequence int    `json:"tranche_sequence"`
	Status          string `json:"status"`
	VerifiedBy      string `json:"verified_by"`
}

func NewLoanMilestoneRecorded(loanID, tenantID string, sequence int, status, verifiedBy string, at time.Time) LoanMilestoneRecorded {
	return LoanMilestoneRecorded{
		BaseEvent:       loanBase(TypeLoanMilestoneRecorded, loanID, tenantID, at),
		TrancheSequence: sequence,
		Status:          status,
		VerifiedBy:      verifiedBy,
	}
}

// LoanDisbursed is raised for every movement of funds to the borrower.
// TrancheSequence is zero for single full disbursements.
type LoanDisbursed struct {
	events.BaseEvent
	TrancheSequence int             `json:"tranche_sequence,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	TotalDisbursed  decimal.Decimal `json:"total_disbursed"`
	Currency        string          `json:"currency"`
	DisbursedAt     time.Time       `json:"disbursed_at"`
}

func NewLoanDisbursed(
	loanID, tenantID string, sequence int, amount, total decimal.Decimal,
	currency string, at time.Time,
) LoanDisbursed {
	return LoanDisbursed{
		BaseEvent:       loanBase(TypeLoanDisbursed, loanID, tenantID, at),
		TrancheSequence: sequence,
		Amount:          amount,
		TotalDisbursed:  total,
		Currency:        currency,
		DisbursedAt:     at,
	}
}

// LoanActivated is raised when the schedule clock starts.
type LoanActivated struct {
	events.BaseEvent
	Principal       decimal.Decimal `json:"principal"`
	WrittenDown     decimal.Decimal `json:"written_down"`
	FirstDueDate    time.Time       `json:"first_due_date"`
	ExpectedEndDate time.Time       `json:"expected_end_date"`
}

func NewLoanActivated(
	loanID, tenantID string, principal, writtenDown decimal.Decimal,
	firstDue, end, at time.Time,
) LoanActivated {
	return LoanActivated{
		BaseEvent:       loanBase(TypeLoanActivated, loanID, tenantID, at),
		Principal:       principal,
		WrittenDown:     writtenDown,
		FirstDueDate:    firstDue,
		ExpectedEndDate: end,
	}
}

// ---------------------------------------------------------------------------
// Schedule
// ---------------------------------------------------------------------------

// LoanScheduleCreated is raised whenever a schedule generation is produced.
type LoanScheduleCreated struct {
	events.BaseEvent
	Generation     int             `json:"generation"`
	Installments   int             `json:"installments"`
	TotalPrincipal decimal.Decimal `json:"total_principal"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	FirstDueDate   time.Time       `json:"first_due_date"`
	LastDueDate    time.Time       `json:"last_due_date"`
}

func NewLoanScheduleCreated(
	loanID, tenantID string, generation, installments int,
	principal, interest, fees decimal.Decimal, first, last, at time.Time,
) LoanScheduleCreated {
	return LoanScheduleCreated{
		BaseEvent:      loanBase(TypeLoanScheduleCreated, loanID, tenantID, at),
		Generation:     generation,
		Installments:   installments,
		TotalPrincipal: principal,
		TotalInterest:  interest,
		TotalFees:      fees,
		FirstDueDate:   first,
		LastDueDate:    last,
	}
}

// LoanSchedulePaid is raised when an installment has nothing left to pay.
type LoanSchedulePaid struct {
	events.BaseEvent
	Sequence int       `json:"sequence"`
	DueDate  time.Time `json:"due_date"`
}

func NewLoanSchedulePaid(loanID, tenantID string, sequence int, due, at time.Time) LoanSchedulePaid {
	return LoanSchedulePaid{
		BaseEvent: loanBase(TypeLoanSchedulePaid, loanID, tenantID, at),
		Sequence:  sequence,
		DueDate:   due,
	}
}

// LoanScheduleWaived is raised when charges on an installment are forgiven.
type LoanScheduleWaived struct {
	events.BaseEvent
	Sequence int             `json:"sequence"`
	Interest decimal.Decimal `json:"interest"`
	Fee      decimal.Decimal `json:"fee"`
	Penalty  decimal.Decimal `json:"penalty"`
	WaivedBy string          `json:"waived_by"`
	Reason   string          `json:"reason"`
}

func NewLoanScheduleWaived(
	loanID, tenantID string, sequence int, interest, fee, penalty decimal.Decimal,
	waivedBy, reason string, at time.Time,
) LoanScheduleWaived {
	return LoanScheduleWaived{
		BaseEvent: loanBase(TypeLoanScheduleWaived, loanID, tenantID, at),
		Sequence:  sequence,
		Interest:  interest,
		Fee:       fee,
		Penalty:   penalty,
		WaivedBy:  waivedBy,
		Reason:    reason,
	}
}

// LoanInstallmentOverdue is raised once per installment when a late penalty
// is assessed.
type LoanInstallmentOverdue struct {
	events.BaseEvent
	Sequence int             `json:"sequence"`
	DueDate  time.Time       `json:"due_date"`
	Unpaid   decimal.Decimal `json:"unpaid"`
	Penalty  decimal.Decimal `json:"penalty"`
}

func NewLoanInstallmentOverdue(
	loanID, tenantID string, sequence int, due time.Time, unpaid, penalty decimal.Decimal, at time.Time,
) LoanInstallmentOverdue {
	return LoanInstallmentOverdue{
		BaseEvent: loanBase(TypeLoanInstallmentOverdue, loanID, tenantID, at),
		Sequence:  sequence,
		DueDate:   due,
		Unpaid:    unpaid,
		Penalty:   penalty,
	}
}

// ---------------------------------------------------------------------------
// Repayments
// ---------------------------------------------------------------------------

// LoanRepaymentCreated is raised for every applied payment.
type LoanRepaymentCreated struct {
	events.BaseEvent
	RepaymentID string          `json:"repayment_id"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Allocation  Breakdown       `json:"allocation"`
	PaidAt      time.Time       `json:"paid_at"`
}

func NewLoanRepaymentCreated(
	loanID, tenantID, repaymentID, reference string, amount decimal.Decimal,
	currency string, allocation Breakdown, paidAt, at time.Time,
) LoanRepaymentCreated {
	return LoanRepaymentCreated{
		BaseEvent:   loanBase(TypeLoanRepaymentCreated, loanID, tenantID, at),
		RepaymentID: repaymentID,
		Reference:   reference,
		Amount:      amount,
		Currency:    currency,
		Allocation:  allocation,
		PaidAt:      paidAt,
	}
}

// LoanRepaymentReversed is raised when a payment is undone by a
// compensating record.
type LoanRepaymentReversed struct {
	events.BaseEvent
	RepaymentID string          `json:"repayment_id"`
	ReversalID  string          `json:"reversal_id"`
	Amount      decimal.Decimal `json:"amount"`
	Allocation  Breakdown       `json:"allocation"`
	Reason      string          `json:"reason"`
}

func NewLoanRepaymentReversed(
	loanID, tenantID, repaymentID, reversalID string, amount decimal.Decimal,
	allocation Breakdown, reason string, at time.Time,
) LoanRepaymentReversed {
	return LoanRepaymentReversed{
		BaseEvent:   loanBase(TypeLoanRepaymentReversed, loanID, tenantID, at),
		RepaymentID: repaymentID,
		ReversalID:  reversalID,
		Amount:      amount,
		Allocation:  allocation,
		Reason:      reason,
	}
}

// ---------------------------------------------------------------------------
// Restructure
// ---------------------------------------------------------------------------

// LoanRestructureChanged covers every step of the restructure approval chain.
// The step is carried in the event type.
type LoanRestructureChanged struct {
	events.BaseEvent
	RestructureID   string          `json:"restructure_id"`
	Actor           string          `json:"actor"`
	Reason          string          `json:"reason,omitempty"`
	Principal       decimal.Decimal `json:"principal"`
	WaivedPrincipal decimal.Decimal `json:"waived_principal"`
	WaivedInterest  decimal.Decimal `json:"waived_interest"`
	Installments    int             `json:"installments"`
	AnnualRate      decimal.Decimal `json:"annual_rate"`
}

// RestructureStep identifies the restructure event to raise.
type RestructureStep string

const (
	RestructureSubmitted RestructureStep = TypeLoanRestructureSubmitted
	RestructureApproved  RestructureStep = TypeLoanRestructureApproved
	RestructureRejected  RestructureStep = TypeLoanRestructureRejected
	RestructureActivated RestructureStep = TypeLoanRestructureActivated
)

func NewLoanRestructureChanged(
	step RestructureStep, loanID, tenantID, restructureID, actor, reason string,
	principal, waivedPrincipal, waivedInterest decimal.Decimal,
	installments int, annualRate decimal.Decimal, at time.Time,
) LoanRestructureChanged {
	return LoanRestructureChanged{
		BaseEvent:       loanBase(string(step), loanID, tenantID, at),
		RestructureID:   restructureID,
		Actor:           actor,
		Reason:          reason,
		Principal:       principal,
		WaivedPrincipal: waivedPrincipal,
		WaivedInterest:  waivedInterest,
		Installments:    installments,
		AnnualRate:      annualRate,
	}
}

// ---------------------------------------------------------------------------
// Write-off
// ---------------------------------------------------------------------------

// WriteOffStep identifies the write-off event to raise.
type WriteOffStep string

const (
	WriteOffSubmitted WriteOffStep = TypeLoanWriteOffSubmitted
	WriteOffApproved  WriteOffStep = TypeLoanWriteOffApproved
	WriteOffRejected  WriteOffStep = TypeLoanWriteOffRejected
	WriteOffProcessed WriteOffStep = TypeLoanWriteOffProcessed
)

// LoanWriteOffChanged covers every step of the write-off approval chain.
type LoanWriteOffChanged struct {
	events.BaseEvent
	WriteOffID string    `json:"write_off_id"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	Amounts    Breakdown `json:"amounts"`
}

func NewLoanWriteOffChanged(
	step WriteOffStep, loanID, tenantID, writeOffID, actor, reason string,
	amounts Breakdown, at time.Time,
) LoanWriteOffChanged {
	return LoanWriteOffChanged{
		BaseEvent:  loanBase(string(step), loanID, tenantID, at),
		WriteOffID: writeOffID,
		Actor:      actor,
		Reason:     reason,
		Amounts:    amounts,
	}
}

// LoanWriteOffRecovery is raised when money is collected on a written-off loan.
type LoanWriteOffRecovery struct {
	events.BaseEvent
	WriteOffID  string          `json:"write_off_id"`
	RepaymentID string          `json:"repayment_id"`
	Amount      decimal.Decimal `json:"amount"`
	Allocation  Breakdown       `json:"allocation"`
	Remaining   decimal.Decimal `json:"remaining"`
}

func NewLoanWriteOffRecovery(
	loanID, tenantID, writeOffID, repaymentID string, amount decimal.Decimal,
	allocation Breakdown, remaining decimal.Decimal, at time.Time,
) LoanWriteOffRecovery {
	return LoanWriteOffRecovery{
		BaseEvent:   loanBase(TypeLoanWriteOffRecovery, loanID, tenantID, at),
		WriteOffID:  writeOffID,
		RepaymentID: repaymentID,
		Amount:      amount,
		Allocation:  allocation,
		Remaining:   remaining,
	}
}

// ---------------------------------------------------------------------------
// Terminal and risk states
// ---------------------------------------------------------------------------

// LoanPaidOff is raised when every balance reaches zero through repayment.
type LoanPaidOff struct {
	events.BaseEvent
	TotalRepaid decimal.Decimal `json:"total_repaid"`
}

func NewLoanPaidOff(loanID, tenantID string, totalRepaid decimal.Decimal, at time.Time) LoanPaidOff {
	return LoanPaidOff{
		BaseEvent:   loanBase(TypeLoanPaidOff, loanID, tenantID, at),
		TotalRepaid: totalRepaid,
	}
}

// LoanDefaulted is raised when the remaining balance is flagged uncollectable.
type LoanDefaulted struct {
	events.BaseEvent
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	OutstandingInterest  decimal.Decimal `json:"outstanding_interest"`
	Reason               string          `json:"reason"`
}

func NewLoanDefaulted(loanID, tenantID string, principal, interest decimal.Decimal, reason string, at time.Time) LoanDefaulted {
	return LoanDefaulted{
		BaseEvent:            loanBase(TypeLoanDefaulted, loanID, tenantID, at),
		OutstandingPrincipal: principal,
		OutstandingInterest:  interest,
		Reason:               reason,
	}
}

// ---------------------------------------------------------------------------
// Product catalog
// ---------------------------------------------------------------------------

// LoanProductPublished is raised for every new product version.
type LoanProductPublished struct {
	events.BaseEvent
	Code       string          `json:"code"`
	Version    int             `json:"version"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	Method     string          `json:"interest_method"`
	Frequency  string          `json:"frequency"`
}

func NewLoanProductPublished(
	productID, tenantID, code string, version int, annualRate decimal.Decimal,
	method, frequency string, at time.Time,
) LoanProductPublished {
	return LoanProductPublished{
		BaseEvent:  events.NewBaseEvent(TypeLoanProductPublished, productID, aggregateProduct, tenantID, at),
		Code:       code,
		Version:    version,
		AnnualRate: annualRate,
		Method:     method,
		Frequency:  frequency,
	}
}
