package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/money"
)

// PlanTranches records a staged disbursement plan on an approved loan. The
// planned amounts must add up to the approved principal. A plan may be
// replaced until the first tranche is disbursed.
func (l Loan) PlanTranches(items []TranchePlanItem, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "plan tranches", valueobject.LoanStatusApproved); err != nil {
		return l, err
	}
	if len(items) == 0 {
		return l, invalid("tranches", "at least one tranche is required")
	}
	total := decimal.Zero
	for i, s := range items {
		if !s.Amount.IsPositive() {
			return l, invalid(fmt.Sprintf("tranches[%d].amount", i), "must be positive")
		}
		if s.Milestone == "" {
			return l, invalid(fmt.Sprintf("tranches[%d].milestone", i), "is required")
		}
		total = total.Add(s.Amount)
	}
	if !total.Equal(l.principal) {
		return l, invalid("tranches", "planned total %s must equal principal %s", total, l.principal)
	}

	next := l.mutate(now)
	next.tranches = make([]Tranche, len(items))
	planned := make([]event.PlannedTranche, len(items))
	for i, s := range items {
		next.tranches[i] = Tranche{
			ID:            uuid.New().String(),
			Sequence:      i + 1,
			PlannedAmount: s.Amount,
			Milestone:     s.Milestone,
			Verification:  valueobject.VerificationPending,
		}
		planned[i] = event.PlannedTranche{Sequence: i + 1, Amount: s.Amount, Milestone: s.Milestone}
	}
	next.Record(event.NewLoanTranchesPlanned(l.id, l.tenantID, planned, now))
	return next, nil
}

// RecordMilestone stores the outcome of an external milestone verification.
func (l Loan) RecordMilestone(sequence int, status valueobject.VerificationStatus, verifiedBy string, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "record milestone",
		valueobject.LoanStatusApproved, valueobject.LoanStatusPartiallyDisbursed); err != nil {
		return l, err
	}
	if status != valueobject.VerificationVerified && status != valueobject.VerificationFailed {
		return l, invalid("status", "must be VERIFIED or FAILED")
	}
	if verifiedBy == "" {
		return l, invalid("verified_by", "is required")
	}
	i, ok := l.trancheIndex(sequence)
	if !ok {
		return l, invalid("sequence", "tranche %d does not exist", sequence)
	}
	if l.tranches[i].IsDisbursed() {
		return l, invalid("sequence", "tranche %d is already disbursed", sequence)
	}

	next := l.mutate(now)
	next.tranches[i].Verification = status
	next.tranches[i].VerifiedBy = verifiedBy
	next.tranches[i].VerifiedAt = now
	next.Record(event.NewLoanMilestoneRecorded(l.id, l.tenantID, sequence, string(status), verifiedBy, now))
	return next, nil
}

// DisburseTranche commits a tranche draw authorised by the tranche manager.
// The loan is PARTIALLY_DISBURSED until the final draw, which activates it.
func (l Loan) DisburseTranche(d TrancheDisbursement, at, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "disburse tranche",
		valueobject.LoanStatusApproved, valueobject.LoanStatusPartiallyDisbursed); err != nil {
		return l, err
	}
	i, ok := l.trancheIndex(d.Sequence)
	if !ok {
		return l, invalid("sequence", "tranche %d does not exist", d.Sequence)
	}
	t := l.tranches[i]
	switch {
	case t.IsDisbursed():
		return l, invalid("sequence", "tranche %d is already disbursed", d.Sequence)
	case t.Verification != valueobject.VerificationVerified:
		return l, invalid("sequence", "milestone for tranche %d is not verified", d.Sequence)
	case !d.Amount.IsPositive() || d.Amount.GreaterThan(t.PlannedAmount):
		return l, invalid("amount", "must be positive and at most the planned %s", t.PlannedAmount)
	}
	for _, prior := range l.tranches[:i] {
		if !prior.IsDisbursed() {
			return l, invalid("sequence", "tranche %d must be disbursed before tranche %d", prior.Sequence, d.Sequence)
		}
	}
	total := l.totalDisbursed.Add(d.Amount)
	if total.GreaterThan(l.principal) {
		return l, &AllocationInvariantError{LoanID: l.id, Invariant: "total disbursed would exceed principal"}
	}
	final := d.Final || total.Equal(l.principal)
	if final && total.LessThan(l.principal) && !l.terms.AllowUnderDisbursement {
		return l, invalid("amount", "product does not allow under-disbursement")
	}

	next := l.mutate(now)
	next.tranches[i].DisbursedAmount = d.Amount
	next.tranches[i].DisbursedAt = at
	next.totalDisbursed = total
	next.Record(event.NewLoanDisbursed(l.id, l.tenantID, d.Sequence, d.Amount, total, l.terms.Currency.Code(), at))

	if final {
		if err := next.activate(at, now, "disburse tranche"); err != nil {
			return l, err
		}
		return next, nil
	}
	if err := next.setStatus(valueobject.LoanStatusPartiallyDisbursed, "disburse tranche"); err != nil {
		return l, err
	}
	next.refreshBalances()
	return next, nil
}

// Disburse moves the whole approved amount in one go and starts the
// schedule clock. Loans with a tranche plan must use DisburseTranche.
func (l Loan) Disburse(amount decimal.Decimal, at, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "disburse", valueobject.LoanStatusApproved); err != nil {
		return l, err
	}
	if len(l.tranches) > 0 {
		return l, &InvalidStateTransitionError{
			LoanID:     l.id,
			Current:    l.status,
			Transition: "disburse",
			Required:   "no tranche plan",
		}
	}
	if !amount.IsPositive() {
		return l, invalid("amount", "must be positive")
	}
	if amount.GreaterThan(l.principal) {
		return l, invalid("amount", "exceeds approved principal %s", l.principal)
	}
	if amount.LessThan(l.principal) && !l.terms.AllowUnderDisbursement {
		return l, invalid("amount", "must equal approved principal %s", l.principal)
	}

	next := l.mutate(now)
	next.totalDisbursed = amount
	next.Record(event.NewLoanDisbursed(l.id, l.tenantID, 0, amount, amount, l.terms.Currency.Code(), at))
	if err := next.activate(at, now, "disburse"); err != nil {
		return l, err
	}
	return next, nil
}

// activate starts the schedule clock at the disbursement date. Principal that
// was never drawn is written down and the schedule is regenerated so that it
// sums to what the member actually received.
func (l *Loan) activate(at, now time.Time, transition string) error {
	writtenDown := l.principal.Sub(l.totalDisbursed)
	if writtenDown.IsPositive() {
		l.principal = l.totalDisbursed
	}

	sched, err := GenerateSchedule(l.scheduleParams(l.principal, at, l.generation))
	if err != nil {
		return err
	}
	places := l.terms.Currency.Precision()
	for _, f := range l.terms.FeesFor(valueobject.FeeTriggerDisbursement) {
		sched[0].FeeDue = sched[0].FeeDue.Add(f.Charge(l.principal, places))
	}
	l.schedule = sched

	if err := l.setStatus(valueobject.LoanStatusActive, transition); err != nil {
		return err
	}
	l.activatedAt = at
	l.expectedEndDate = sched[len(sched)-1].DueDate
	l.refreshBalances()

	l.Record(event.NewLoanActivated(l.id, l.tenantID, l.principal, money.NonNegative(writtenDown),
		sched[0].DueDate, l.expectedEndDate, now))
	l.recordScheduleCreated(now)
	return nil
}

func (l Loan) trancheIndex(sequence int) (int, bool) {
	for i, t := range l.tranches {
		if t.Sequence == sequence {
			return i, true
		}
	}
	return 0, false
}
