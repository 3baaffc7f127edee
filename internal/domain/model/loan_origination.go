package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// DraftChanges are the editable fields of a draft loan. Nil pointers and nil
// slices leave the current value in place.
type DraftChanges struct {
	RequestedAmount *decimal.Decimal
	Installments    *int
	Purpose         *string
	CollateralIDs   []string
	GuarantorIDs    []string
}

// UpdateDraft edits a loan that has not been submitted yet.
func (l Loan) UpdateDraft(c DraftChanges, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "update draft", valueobject.LoanStatusDraft); err != nil {
		return l, err
	}
	amount, installments := l.requestedAmount, l.installments
	if c.RequestedAmount != nil {
		amount = *c.RequestedAmount
	}
	if c.Installments != nil {
		installments = *c.Installments
	}
	if err := checkAgainstTerms(l.terms, amount, installments, "requested_amount"); err != nil {
		return l, err
	}

	next := l.mutate(now)
	next.requestedAmount = amount
	next.installments = installments
	if c.Purpose != nil {
		next.purpose = *c.Purpose
	}
	if c.CollateralIDs != nil {
		next.collateralIDs = append([]string(nil), c.CollateralIDs...)
	}
	if c.GuarantorIDs != nil {
		next.guarantorIDs = append([]string(nil), c.GuarantorIDs...)
	}
	return next, nil
}

// Submit sends the draft for approval.
func (l Loan) Submit(now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "submit", valueobject.LoanStatusDraft); err != nil {
		return l, err
	}
	next := l.mutate(now)
	if err := next.setStatus(valueobject.LoanStatusPendingApproval, "submit"); err != nil {
		return l, err
	}
	next.Record(event.NewLoanSubmitted(l.id, l.tenantID, l.requestedAmount, l.installments, now))
	return next, nil
}

// Approve accepts a pending loan for amount. The approver's authority was
// checked by the caller; the loan records who approved and the limit used.
// The product version given here is snapshotted and governs the loan for the
// rest of its life. A provisional schedule is generated from the approval
// date; disbursement regenerates it when the clock starts.
func (l Loan) Approve(product LoanProduct, amount decimal.Decimal, approverID string, limit decimal.Decimal, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "approve", valueobject.LoanStatusPendingApproval); err != nil {
		return l, err
	}
	if product.ID() != l.productID {
		return l, invalid("product_id", "loan was opened against product %s", l.productID)
	}
	if approverID == "" {
		return l, invalid("approved_by", "is required")
	}
	terms := product.Terms()
	if err := checkAgainstTerms(terms, amount, l.installments, "approved_amount"); err != nil {
		return l, err
	}
	if amount.GreaterThan(limit) {
		return l, &ValidationError{
			Field:  "approved_amount",
			Reason: "exceeds approver limit " + limit.String(),
			Kind:   ErrApprovalLimitExceeded,
		}
	}

	next := l.mutate(now)
	next.terms = terms
	next.productVersion = product.Version()
	next.principal = amount
	next.approvedBy = approverID
	next.approvalLimit = limit
	next.approvedAt = now
	next.generation = 1

	sched, err := GenerateSchedule(next.scheduleParams(amount, now, next.generation))
	if err != nil {
		return l, err
	}
	next.schedule = sched
	if err := next.setStatus(valueobject.LoanStatusApproved, "approve"); err != nil {
		return l, err
	}

	next.Record(event.NewLoanApproved(
		l.id, l.tenantID, amount, approverID, limit, terms.AnnualRate,
		l.installments, product.Version(), now,
	))
	next.recordScheduleCreated(now)
	return next, nil
}

// Reject declines a pending loan. Rejected is terminal.
func (l Loan) Reject(rejectedBy, reason string, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "reject", valueobject.LoanStatusPendingApproval); err != nil {
		return l, err
	}
	if reason == "" {
		return l, invalid("reason", "is required")
	}
	next := l.mutate(now)
	if err := next.setStatus(valueobject.LoanStatusRejected, "reject"); err != nil {
		return l, err
	}
	next.decisionReason = reason
	next.Record(event.NewLoanRejected(l.id, l.tenantID, rejectedBy, reason, now))
	return next, nil
}

func (l Loan) scheduleParams(principal decimal.Decimal, start time.Time, generation int) ScheduleParams {
	return ScheduleParams{
		StartDate:           start,
		Principal:           principal,
		AnnualRate:          l.terms.AnnualRate,
		Frequency:           l.terms.Frequency,
		Method:              l.terms.InterestMethod,
		InstallmentFees:     l.terms.FeesFor(valueobject.FeeTriggerInstallment),
		Installments:        l.installments,
		GracePeriods:        l.terms.GracePeriods,
		InterestDuringGrace: l.terms.InterestDuringGrace,
		Generation:          generation,
		Precision:           l.terms.Currency.Precision(),
	}
}

func (l *Loan) recordScheduleCreated(now time.Time) {
	if len(l.schedule) == 0 {
		return
	}
	totals := ScheduleTotals(l.schedule)
	l.Record(event.NewLoanScheduleCreated(
		l.id, l.tenantID, l.generation, len(l.schedule),
		totals.Principal, totals.Interest, totals.Fees,
		l.schedule[0].DueDate, l.schedule[len(l.schedule)-1].DueDate, now,
	))
}
