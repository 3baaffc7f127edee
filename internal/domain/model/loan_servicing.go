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

// RepaymentByReference finds a payment or recovery by its idempotency
// reference. Reversals carry a derived reference and are never matched.
func (l Loan) RepaymentByReference(reference string) (Repayment, bool) {
	for _, r := range l.repayments {
		if r.Reference == reference && !r.IsReversal() {
			return r, true
		}
	}
	return Repayment{}, false
}

// AllocationRequest prepares the input for splitting amount paid at paidAt
// across the live schedule, under the loan's snapshotted terms.
func (l Loan) AllocationRequest(amount decimal.Decimal, paidAt time.Time) AllocationRequest {
	return AllocationRequest{
		PaidAt:       paidAt,
		Amount:       amount,
		PeriodicRate: l.terms.PeriodicRate(),
		Method:       l.terms.InterestMethod,
		Policy:       l.terms.AllocationPolicy,
		Entries:      cloneEntries(l.schedule),
		Order:        append([]valueobject.Component(nil), l.terms.AllocationOrder...),
		Precision:    l.terms.Currency.Precision(),
	}
}

// ApplyRepayment commits a payment whose split was computed by the allocation
// engine. A reference that is already on the ledger with the same amount
// returns the earlier record and leaves the loan untouched.
func (l Loan) ApplyRepayment(reference string, amount decimal.Decimal, paidAt time.Time, alloc Allocation, now time.Time) (Loan, Repayment, error) {
	if reference == "" {
		return l, Repayment{}, invalid("reference", "is required")
	}
	if prior, ok := l.RepaymentByReference(reference); ok {
		if prior.Kind == RepaymentKindPayment && prior.Amount.Equal(amount) {
			return l, prior, nil
		}
		return l, Repayment{}, invalid("reference", "%q was already used for a different payment", reference)
	}
	if err := requireStatus(l.id, l.status, "apply repayment",
		valueobject.LoanStatusActive, valueobject.LoanStatusRestructured, valueobject.LoanStatusDefaulted); err != nil {
		return l, Repayment{}, err
	}
	if !amount.IsPositive() {
		return l, Repayment{}, invalid("amount", "must be positive")
	}
	if !alloc.Total().Equal(amount) {
		return l, Repayment{}, &AllocationInvariantError{
			LoanID:    l.id,
			Invariant: fmt.Sprintf("allocation %s does not match payment %s", alloc.Total(), amount),
		}
	}
	sched, err := applyAllocation(l.id, l.schedule, alloc, 1)
	if err != nil {
		return l, Repayment{}, err
	}

	next := l.mutate(now)
	rec := Repayment{
		ID:         uuid.New().String(),
		Reference:  reference,
		Kind:       RepaymentKindPayment,
		Amount:     amount,
		PaidAt:     paidAt,
		RecordedAt: now,
		Allocation: alloc,
		Generation: l.generation,
	}
	next.schedule = sched
	next.repayments = append(next.repayments, rec)
	next.refreshBalances()

	next.Record(event.NewLoanRepaymentCreated(
		l.id, l.tenantID, rec.ID, reference, amount, l.terms.Currency.Code(),
		alloc.Breakdown(), paidAt, now,
	))
	next.recordNewlyPaid(l.schedule, now)
	if err := next.settle(now); err != nil {
		return l, Repayment{}, err
	}
	return next, rec, nil
}

// ReverseRepayment undoes exactly the deltas of an earlier payment by
// appending a compensating record. Payments made against a schedule that has
// since been replaced cannot be reversed.
func (l Loan) ReverseRepayment(repaymentID, reason string, now time.Time) (Loan, Repayment, error) {
	if err := requireStatus(l.id, l.status, "reverse repayment",
		valueobject.LoanStatusActive, valueobject.LoanStatusRestructured, valueobject.LoanStatusDefaulted); err != nil {
		return l, Repayment{}, err
	}
	if reason == "" {
		return l, Repayment{}, invalid("reason", "is required")
	}
	var original Repayment
	found := false
	for _, r := range l.repayments {
		if r.ID == repaymentID {
			original, found = r, true
		}
		if r.ReversalOf == repaymentID {
			return l, Repayment{}, &AllocationInvariantError{LoanID: l.id, Invariant: "repayment " + repaymentID + " is already reversed"}
		}
	}
	if !found {
		return l, Repayment{}, fmt.Errorf("repayment %s: %w", repaymentID, ErrNotFound)
	}
	if original.Kind != RepaymentKindPayment {
		return l, Repayment{}, &AllocationInvariantError{LoanID: l.id, Invariant: "only payments can be reversed"}
	}
	if original.Generation != l.generation {
		return l, Repayment{}, &AllocationInvariantError{LoanID: l.id, Invariant: "repayment predates the current schedule"}
	}
	sched, err := applyAllocation(l.id, l.schedule, original.Allocation, -1)
	if err != nil {
		return l, Repayment{}, err
	}

	next := l.mutate(now)
	rev := Repayment{
		ID:         uuid.New().String(),
		Reference:  "reversal:" + original.Reference,
		Kind:       RepaymentKindReversal,
		Amount:     original.Amount,
		PaidAt:     now,
		RecordedAt: now,
		Allocation: original.Allocation,
		ReversalOf: original.ID,
		Reason:     reason,
		Generation: l.generation,
	}
	next.schedule = sched
	next.repayments = append(next.repayments, rev)
	next.refreshBalances()
	next.Record(event.NewLoanRepaymentReversed(
		l.id, l.tenantID, original.ID, rev.ID, original.Amount,
		original.Allocation.Breakdown(), reason, now,
	))
	return next, rev, nil
}

// AssessOverdue charges the product penalty once on every installment that
// fell due before asOf with principal or interest still unpaid. The loan is
// returned unchanged when nothing is overdue.
func (l Loan) AssessOverdue(asOf, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "assess overdue",
		valueobject.LoanStatusActive, valueobject.LoanStatusRestructured, valueobject.LoanStatusDefaulted); err != nil {
		return l, err
	}
	var next *Loan
	for i, e := range l.schedule {
		if e.PenaltyAssessed || !e.DueDate.Before(asOf) {
			continue
		}
		unpaid := e.Remaining(valueobject.ComponentPrincipal).Add(e.Remaining(valueobject.ComponentInterest))
		if !unpaid.IsPositive() {
			continue
		}
		if next == nil {
			n := l.mutate(now)
			next = &n
		}
		penalty := money.Round(unpaid.Mul(l.terms.PenaltyRate), l.terms.Currency.Precision())
		next.schedule[i].PenaltyDue = next.schedule[i].PenaltyDue.Add(penalty)
		next.schedule[i].PenaltyAssessed = true
		next.Record(event.NewLoanInstallmentOverdue(l.id, l.tenantID, e.Sequence, e.DueDate, unpaid, penalty, now))
	}
	if next == nil {
		return l, nil
	}
	next.refreshBalances()
	return *next, nil
}

// WaiveInstallment forgives what is left of the given components on one
// installment. An empty component list waives interest, fees and penalties.
func (l Loan) WaiveInstallment(sequence int, components []valueobject.Component, waivedBy, reason string, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "waive installment",
		valueobject.LoanStatusActive, valueobject.LoanStatusRestructured, valueobject.LoanStatusDefaulted); err != nil {
		return l, err
	}
	if waivedBy == "" {
		return l, invalid("waived_by", "is required")
	}
	if len(components) == 0 {
		components = []valueobject.Component{valueobject.ComponentPenalty, valueobject.ComponentFee, valueobject.ComponentInterest}
	}
	for _, c := range components {
		if !c.IsWaivable() {
			return l, invalid("components", "%s cannot be waived on an installment", c)
		}
	}
	idx := -1
	for i, e := range l.schedule {
		if e.Sequence == sequence {
			idx = i
		}
	}
	if idx < 0 {
		return l, invalid("sequence", "installment %d does not exist", sequence)
	}

	next := l.mutate(now)
	e := &next.schedule[idx]
	var waived Balances
	for _, c := range components {
		rem := money.NonNegative(e.Remaining(c))
		switch c {
		case valueobject.ComponentInterest:
			e.InterestWaived = e.InterestWaived.Add(rem)
			waived.Interest = waived.Interest.Add(rem)
		case valueobject.ComponentFee:
			e.FeeWaived = e.FeeWaived.Add(rem)
			waived.Fees = waived.Fees.Add(rem)
		case valueobject.ComponentPenalty:
			e.PenaltyWaived = e.PenaltyWaived.Add(rem)
			waived.Penalties = waived.Penalties.Add(rem)
		}
	}
	if waived.IsZero() {
		return l, invalid("sequence", "installment %d has nothing left to waive", sequence)
	}
	next.refreshBalances()
	next.Record(event.NewLoanScheduleWaived(l.id, l.tenantID, sequence,
		waived.Interest, waived.Fees, waived.Penalties, waivedBy, reason, now))
	next.recordNewlyPaid(l.schedule, now)
	if err := next.settle(now); err != nil {
		return l, err
	}
	return next, nil
}

// MarkDefaulted flags the remaining balance as uncollectable pending a
// write-off decision.
func (l Loan) MarkDefaulted(reason string, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "mark defaulted",
		valueobject.LoanStatusActive, valueobject.LoanStatusRestructured); err != nil {
		return l, err
	}
	if reason == "" {
		return l, invalid("reason", "is required")
	}
	next := l.mutate(now)
	if err := next.setStatus(valueobject.LoanStatusDefaulted, "mark defaulted"); err != nil {
		return l, err
	}
	next.decisionReason = reason
	next.Record(event.NewLoanDefaulted(l.id, l.tenantID, l.outstanding.Principal, l.outstanding.Interest, reason, now))
	return next, nil
}

// Close ends a loan whose balances are all zero. Repayments and waivers close
// loans automatically; Close is for loans settled by other means.
func (l Loan) Close(now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "close",
		valueobject.LoanStatusActive, valueobject.LoanStatusRestructured, valueobject.LoanStatusDefaulted); err != nil {
		return l, err
	}
	if !l.outstanding.IsZero() {
		return l, &InvalidStateTransitionError{
			LoanID:     l.id,
			Current:    l.status,
			Transition: "close",
			Required:   "outstanding principal and interest both zero",
		}
	}
	next := l.mutate(now)
	if err := next.settle(now); err != nil {
		return l, err
	}
	return next, nil
}

// settle closes the loan once nothing remains owed.
func (l *Loan) settle(now time.Time) error {
	if !l.outstanding.IsZero() {
		return nil
	}
	if err := l.setStatus(valueobject.LoanStatusClosed, "close"); err != nil {
		return err
	}
	l.Record(event.NewLoanPaidOff(l.id, l.tenantID, l.totalRepaid(), now))
	return nil
}

func (l Loan) totalRepaid() decimal.Decimal {
	total := decimal.Zero
	for _, r := range l.repayments {
		switch r.Kind {
		case RepaymentKindPayment:
			total = total.Add(r.Amount)
		case RepaymentKindReversal:
			total = total.Sub(r.Amount)
		}
	}
	return total
}

// recordNewlyPaid raises LoanSchedulePaid for installments settled by the
// latest change.
func (l *Loan) recordNewlyPaid(before []ScheduleEntry, now time.Time) {
	settled := make(map[int]bool, len(before))
	for _, e := range before {
		settled[e.Sequence] = e.IsSettled()
	}
	for _, e := range l.schedule {
		if e.IsSettled() && !settled[e.Sequence] {
			l.Record(event.NewLoanSchedulePaid(l.id, l.tenantID, e.Sequence, e.DueDate, now))
		}
	}
}
