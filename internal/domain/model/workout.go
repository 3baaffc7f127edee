package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// Restructure
// ---------------------------------------------------------------------------

// RestructureTerms are the renegotiated terms of a restructure request.
type RestructureTerms struct {
	AnnualRate      decimal.Decimal                `json:"annual_rate"`
	WaivedPrincipal decimal.Decimal                `json:"waived_principal"`
	WaivedInterest  decimal.Decimal                `json:"waived_interest"`
	Frequency       valueobject.RepaymentFrequency `json:"frequency"`
	Method          valueobject.InterestMethod     `json:"interest_method"`
	Installments    int                            `json:"installments"`
	GracePeriods    int                            `json:"grace_periods"`
}

func (t RestructureTerms) validate(outstanding Balances) error {
	switch {
	case t.AnnualRate.IsNegative():
		return invalid("annual_rate", "must not be negative")
	case t.Installments <= 0:
		return invalid("installments", "must be positive")
	case t.GracePeriods < 0:
		return invalid("grace_periods", "must not be negative")
	case t.Frequency.IsZero():
		return invalid("frequency", "is required")
	case t.Method.IsZero():
		return invalid("interest_method", "is required")
	case t.WaivedPrincipal.IsNegative():
		return invalid("waived_principal", "must not be negative")
	case t.WaivedInterest.IsNegative():
		return invalid("waived_interest", "must not be negative")
	case !t.WaivedPrincipal.LessThan(outstanding.Principal):
		return invalid("waived_principal", "must leave principal to reschedule")
	case t.WaivedInterest.GreaterThan(outstanding.Interest):
		return invalid("waived_interest", "exceeds outstanding interest %s", outstanding.Interest)
	}
	return nil
}

// Restructure is the audit record of one restructure request.
type Restructure struct {
	SubmittedAt    time.Time                  `json:"submitted_at"`
	DecidedAt      time.Time                  `json:"decided_at"`
	ActivatedAt    time.Time                  `json:"activated_at"`
	Before         Balances                   `json:"before"`
	Carried        Balances                   `json:"carried"`
	Terms          RestructureTerms           `json:"terms"`
	ID             string                     `json:"id"`
	Status         valueobject.WorkflowStatus `json:"status"`
	Reason         string                     `json:"reason"`
	SubmittedBy    string                     `json:"submitted_by"`
	DecidedBy      string                     `json:"decided_by"`
	DecisionNote   string                     `json:"decision_note"`
	FromGeneration int                        `json:"from_generation"`
	ToGeneration   int                        `json:"to_generation"`
}

// RestructureInput is the loan snapshot handed to the restructure engine.
type RestructureInput struct {
	StartDate           time.Time
	Entries             []ScheduleEntry
	Terms               RestructureTerms
	InstallmentFees     []FeeDefinition
	NextGeneration      int
	Precision           int32
	InterestDuringGrace bool
}

// RestructurePlan is the computed replacement schedule. Carried holds the
// arrears folded into the first new installment; its principal is always
// zero because overdue principal is rescheduled.
type RestructurePlan struct {
	Before   Balances
	Carried  Balances
	Schedule []ScheduleEntry
}

// ConservesPrincipal checks sum(new principal) + waived == outstanding before.
func (p RestructurePlan) ConservesPrincipal(waived decimal.Decimal) bool {
	return ScheduleTotals(p.Schedule).Principal.Add(waived).Equal(p.Before.Principal)
}

// ---------------------------------------------------------------------------
// Write-off
// ---------------------------------------------------------------------------

// WriteOff is the record of balances removed from the active book.
type WriteOff struct {
	SubmittedAt  time.Time                  `json:"submitted_at"`
	DecidedAt    time.Time                  `json:"decided_at"`
	ProcessedAt  time.Time                  `json:"processed_at"`
	Before       Balances                   `json:"before"`
	WrittenOff   Balances                   `json:"written_off"`
	Recovered    Balances                   `json:"recovered"`
	ID           string                     `json:"id"`
	Status       valueobject.WorkflowStatus `json:"status"`
	Reason       string                     `json:"reason"`
	SubmittedBy  string                     `json:"submitted_by"`
	DecidedBy    string                     `json:"decided_by"`
	DecisionNote string                     `json:"decision_note"`
}

// Remaining is the written-off balance not yet recovered.
func (w WriteOff) Remaining() Balances {
	return w.WrittenOff.Sub(w.Recovered)
}

// RecoverySchedule is a synthetic single installment equal to the written-off
// amounts, already credited with prior recoveries. Recoveries are allocated
// against it with the ordinary allocation engine.
func (w WriteOff) RecoverySchedule() []ScheduleEntry {
	return []ScheduleEntry{{
		Sequence:      1,
		DueDate:       w.ProcessedAt,
		PrincipalDue:  w.WrittenOff.Principal,
		InterestDue:   w.WrittenOff.Interest,
		FeeDue:        w.WrittenOff.Fees,
		PenaltyDue:    w.WrittenOff.Penalties,
		PrincipalPaid: w.Recovered.Principal,
		InterestPaid:  w.Recovered.Interest,
		FeePaid:       w.Recovered.Fees,
		PenaltyPaid:   w.Recovered.Penalties,
	}}
}
