package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// Restructure chain: SUBMITTED -> APPROVED | REJECTED -> ACTIVATED
// ---------------------------------------------------------------------------

// SubmitRestructure opens a restructure request against the current balances.
func (l Loan) SubmitRestructure(terms RestructureTerms, submittedBy, reason string, now time.Time) (Loan, Restructure, error) {
	if err := requireStatus(l.id, l.status, "submit restructure",
		valueobject.LoanStatusActive, valueobject.LoanStatusDefaulted); err != nil {
		return l, Restructure{}, err
	}
	if submittedBy == "" {
		return l, Restructure{}, invalid("submitted_by", "is required")
	}
	for _, r := range l.restructures {
		if r.Status.IsOpen() {
			return l, Restructure{}, invalid("restructure", "request %s is still open", r.ID)
		}
	}
	if err := terms.validate(l.outstanding); err != nil {
		return l, Restructure{}, err
	}

	rec := Restructure{
		ID:             uuid.New().String(),
		Status:         valueobject.WorkflowSubmitted,
		Terms:          terms,
		Before:         l.outstanding,
		Reason:         reason,
		SubmittedBy:    submittedBy,
		SubmittedAt:    now,
		FromGeneration: l.generation,
	}
	next := l.mutate(now)
	next.restructures = append(next.restructures, rec)
	next.recordRestructure(event.RestructureSubmitted, rec, submittedBy, reason, now)
	return next, rec, nil
}

// ApproveRestructure records the checker's approval. The approver must not be
// the submitter.
func (l Loan) ApproveRestructure(restructureID, approver, note string, now time.Time) (Loan, error) {
	return l.decideRestructure(restructureID, approver, note, valueobject.WorkflowApproved, event.RestructureApproved, now)
}

// RejectRestructure closes the request without touching the schedule.
func (l Loan) RejectRestructure(restructureID, approver, note string, now time.Time) (Loan, error) {
	if note == "" {
		return l, invalid("note", "a rejection reason is required")
	}
	return l.decideRestructure(restructureID, approver, note, valueobject.WorkflowRejected, event.RestructureRejected, now)
}

func (l Loan) decideRestructure(
	restructureID, approver, note string,
	outcome valueobject.WorkflowStatus, step event.RestructureStep, now time.Time,
) (Loan, error) {
	i, err := l.openRestructure(restructureID, valueobject.WorkflowSubmitted)
	if err != nil {
		return l, err
	}
	if approver == "" {
		return l, invalid("decided_by", "is required")
	}
	if approver == l.restructures[i].SubmittedBy {
		return l, invalid("decided_by", "the submitter cannot decide their own request")
	}
	next := l.mutate(now)
	rec := &next.restructures[i]
	rec.Status = outcome
	rec.DecidedBy = approver
	rec.DecisionNote = note
	rec.DecidedAt = now
	next.recordRestructure(step, *rec, approver, note, now)
	return next, nil
}

// RestructureInput prepares the engine input for an approved request, with
// the new schedule starting at start.
func (l Loan) RestructureInput(restructureID string, start time.Time) (RestructureInput, error) {
	i, err := l.openRestructure(restructureID, valueobject.WorkflowApproved)
	if err != nil {
		return RestructureInput{}, err
	}
	return RestructureInput{
		StartDate:           start,
		Entries:             cloneEntries(l.schedule),
		Terms:               l.restructures[i].Terms,
		InstallmentFees:     l.terms.FeesFor(valueobject.FeeTriggerInstallment),
		NextGeneration:      l.generation + 1,
		Precision:           l.terms.Currency.Precision(),
		InterestDuringGrace: l.terms.InterestDuringGrace,
	}, nil
}

// ActivateRestructure replaces the live schedule with the planned one. The
// old entries are archived. The plan must have been computed from the loan's
// current balances and must conserve principal.
func (l Loan) ActivateRestructure(restructureID string, plan RestructurePlan, actor string, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "activate restructure",
		valueobject.LoanStatusActive, valueobject.LoanStatusDefaulted); err != nil {
		return l, err
	}
	i, err := l.openRestructure(restructureID, valueobject.WorkflowApproved)
	if err != nil {
		return l, err
	}
	terms := l.restructures[i].Terms
	if !plan.Before.Principal.Equal(l.outstanding.Principal) || !plan.Before.Interest.Equal(l.outstanding.Interest) {
		return l, &AllocationInvariantError{LoanID: l.id, Invariant: "restructure plan was computed from stale balances"}
	}
	if len(plan.Schedule) == 0 || !plan.ConservesPrincipal(terms.WaivedPrincipal) {
		return l, &AllocationInvariantError{
			LoanID: l.id,
			Invariant: fmt.Sprintf("new schedule principal %s plus waived %s must equal outstanding %s",
				ScheduleTotals(plan.Schedule).Principal, terms.WaivedPrincipal, plan.Before.Principal),
		}
	}

	next := l.mutate(now)
	next.archived = append(cloneEntries(l.archived), l.schedule...)
	next.schedule = cloneEntries(plan.Schedule)
	next.generation = l.generation + 1
	next.installments = terms.Installments
	next.terms.AnnualRate = terms.AnnualRate
	next.terms.Frequency = terms.Frequency
	next.terms.InterestMethod = terms.Method
	next.terms.GracePeriods = terms.GracePeriods
	next.expectedEndDate = plan.Schedule[len(plan.Schedule)-1].DueDate
	if err := next.setStatus(valueobject.LoanStatusRestructured, "activate restructure"); err != nil {
		return l, err
	}
	rec := &next.restructures[i]
	rec.Status = valueobject.WorkflowActivated
	rec.ActivatedAt = now
	rec.Carried = plan.Carried
	rec.ToGeneration = next.generation
	next.refreshBalances()

	next.recordRestructure(event.RestructureActivated, *rec, actor, "", now)
	next.recordScheduleCreated(now)
	return next, nil
}

func (l Loan) openRestructure(id string, want valueobject.WorkflowStatus) (int, error) {
	for i, r := range l.restructures {
		if r.ID != id {
			continue
		}
		if r.Status != want {
			return 0, invalid("restructure_id", "request %s is %s, expected %s", id, r.Status, want)
		}
		return i, nil
	}
	return 0, fmt.Errorf("restructure %s: %w", id, ErrNotFound)
}

func (l *Loan) recordRestructure(step event.RestructureStep, r Restructure, actor, reason string, now time.Time) {
	l.Record(event.NewLoanRestructureChanged(
		step, l.id, l.tenantID, r.ID, actor, reason,
		r.Before.Principal.Sub(r.Terms.WaivedPrincipal), r.Terms.WaivedPrincipal, r.Terms.WaivedInterest,
		r.Terms.Installments, r.Terms.AnnualRate, now,
	))
}

// ---------------------------------------------------------------------------
// Write-off chain: SUBMITTED -> APPROVED | REJECTED -> PROCESSED
// ---------------------------------------------------------------------------

// SubmitWriteOff opens a write-off request.
func (l Loan) SubmitWriteOff(submittedBy, reason string, now time.Time) (Loan, WriteOff, error) {
	if err := requireStatus(l.id, l.status, "submit write-off",
		valueobject.LoanStatusActive, valueobject.LoanStatusRestructured, valueobject.LoanStatusDefaulted); err != nil {
		return l, WriteOff{}, err
	}
	if submittedBy == "" {
		return l, WriteOff{}, invalid("submitted_by", "is required")
	}
	if reason == "" {
		return l, WriteOff{}, invalid("reason", "is required")
	}
	for _, w := range l.writeOffs {
		if w.Status.IsOpen() {
			return l, WriteOff{}, invalid("write_off", "request %s is still open", w.ID)
		}
	}
	rec := WriteOff{
		ID:          uuid.New().String(),
		Status:      valueobject.WorkflowSubmitted,
		Before:      l.outstanding,
		Reason:      reason,
		SubmittedBy: submittedBy,
		SubmittedAt: now,
	}
	next := l.mutate(now)
	next.writeOffs = append(next.writeOffs, rec)
	next.Record(event.NewLoanWriteOffChanged(event.WriteOffSubmitted, l.id, l.tenantID, rec.ID, submittedBy, reason, rec.Before.Breakdown(), now))
	return next, rec, nil
}

// ApproveWriteOff records the checker's approval.
func (l Loan) ApproveWriteOff(writeOffID, approver, note string, now time.Time) (Loan, error) {
	return l.decideWriteOff(writeOffID, approver, note, valueobject.WorkflowApproved, event.WriteOffApproved, now)
}

// RejectWriteOff closes the request; the loan stays on the book.
func (l Loan) RejectWriteOff(writeOffID, approver, note string, now time.Time) (Loan, error) {
	if note == "" {
		return l, invalid("note", "a rejection reason is required")
	}
	return l.decideWriteOff(writeOffID, approver, note, valueobject.WorkflowRejected, event.WriteOffRejected, now)
}

func (l Loan) decideWriteOff(
	writeOffID, approver, note string,
	outcome valueobject.WorkflowStatus, step event.WriteOffStep, now time.Time,
) (Loan, error) {
	i, err := l.writeOffIndex(writeOffID, valueobject.WorkflowSubmitted)
	if err != nil {
		return l, err
	}
	if approver == "" {
		return l, invalid("decided_by", "is required")
	}
	if approver == l.writeOffs[i].SubmittedBy {
		return l, invalid("decided_by", "the submitter cannot decide their own request")
	}
	next := l.mutate(now)
	rec := &next.writeOffs[i]
	rec.Status = outcome
	rec.DecidedBy = approver
	rec.DecisionNote = note
	rec.DecidedAt = now
	next.Record(event.NewLoanWriteOffChanged(step, l.id, l.tenantID, rec.ID, approver, note, rec.Before.Breakdown(), now))
	return next, nil
}

// ProcessWriteOff moves the assessed balances off the loan into the write-off
// record. amounts must equal the loan's current outstanding balances.
func (l Loan) ProcessWriteOff(writeOffID string, amounts Balances, actor string, now time.Time) (Loan, error) {
	if err := requireStatus(l.id, l.status, "process write-off",
		valueobject.LoanStatusActive, valueobject.LoanStatusRestructured, valueobject.LoanStatusDefaulted); err != nil {
		return l, err
	}
	i, err := l.writeOffIndex(writeOffID, valueobject.WorkflowApproved)
	if err != nil {
		return l, err
	}
	if !balancesEqual(amounts, l.outstanding) {
		return l, &AllocationInvariantError{LoanID: l.id, Invariant: "write-off amounts do not match outstanding balances"}
	}

	next := l.mutate(now)
	if err := next.setStatus(valueobject.LoanStatusWrittenOff, "process write-off"); err != nil {
		return l, err
	}
	rec := &next.writeOffs[i]
	rec.Status = valueobject.WorkflowProcessed
	rec.WrittenOff = amounts
	rec.ProcessedAt = now
	next.refreshBalances()
	next.Record(event.NewLoanWriteOffChanged(event.WriteOffProcessed, l.id, l.tenantID, rec.ID, actor, rec.Reason, amounts.Breakdown(), now))
	return next, nil
}

// ProcessedWriteOff returns the write-off that took the loan off the book.
func (l Loan) ProcessedWriteOff() (WriteOff, bool) {
	for _, w := range l.writeOffs {
		if w.Status == valueobject.WorkflowProcessed {
			return w, true
		}
	}
	return WriteOff{}, false
}

// ApplyRecovery commits money collected after write-off. The allocation is
// computed against the write-off's recovery schedule and reduces its
// remaining balance; the loan's own balances stay at zero.
func (l Loan) ApplyRecovery(reference string, amount decimal.Decimal, paidAt time.Time, alloc Allocation, now time.Time) (Loan, Repayment, error) {
	if reference == "" {
		return l, Repayment{}, invalid("reference", "is required")
	}
	if prior, ok := l.RepaymentByReference(reference); ok {
		if prior.Kind == RepaymentKindRecovery && prior.Amount.Equal(amount) {
			return l, prior, nil
		}
		return l, Repayment{}, invalid("reference", "%q was already used for a different payment", reference)
	}
	if err := requireStatus(l.id, l.status, "apply recovery", valueobject.LoanStatusWrittenOff); err != nil {
		return l, Repayment{}, err
	}
	if !amount.IsPositive() {
		return l, Repayment{}, invalid("amount", "must be positive")
	}
	wo, ok := l.ProcessedWriteOff()
	if !ok {
		return l, Repayment{}, &AllocationInvariantError{LoanID: l.id, Invariant: "no processed write-off to recover against"}
	}
	if !alloc.Total().Equal(amount) {
		return l, Repayment{}, &AllocationInvariantError{LoanID: l.id, Invariant: "recovery allocation does not match amount"}
	}
	if _, err := applyAllocation(l.id, wo.RecoverySchedule(), alloc, 1); err != nil {
		return l, Repayment{}, err
	}

	next := l.mutate(now)
	for i := range next.writeOffs {
		if next.writeOffs[i].ID == wo.ID {
			w := &next.writeOffs[i]
			totals := alloc.Totals()
			w.Recovered = Balances{
				Principal: w.Recovered.Principal.Add(totals.Principal),
				Interest:  w.Recovered.Interest.Add(totals.Interest),
				Fees:      w.Recovered.Fees.Add(totals.Fees),
				Penalties: w.Recovered.Penalties.Add(totals.Penalties),
			}
			wo = *w
		}
	}
	rec := Repayment{
		ID:         uuid.New().String(),
		Reference:  reference,
		Kind:       RepaymentKindRecovery,
		Amount:     amount,
		PaidAt:     paidAt,
		RecordedAt: now,
		Allocation: alloc,
		Generation: l.generation,
	}
	next.repayments = append(next.repayments, rec)
	next.Record(event.NewLoanWriteOffRecovery(l.id, l.tenantID, wo.ID, rec.ID, amount, alloc.Breakdown(), wo.Remaining().Total(), now))
	return next, rec, nil
}

func (l Loan) writeOffIndex(id string, want valueobject.WorkflowStatus) (int, error) {
	for i, w := range l.writeOffs {
		if w.ID != id {
			continue
		}
		if w.Status != want {
			return 0, invalid("write_off_id", "request %s is %s, expected %s", id, w.Status, want)
		}
		return i, nil
	}
	return 0, fmt.Errorf("write-off %s: %w", id, ErrNotFound)
}

func balancesEqual(a, b Balances) bool {
	return a.Principal.Equal(b.Principal) && a.Interest.Equal(b.Interest) &&
		a.Fees.Equal(b.Fees) && a.Penalties.Equal(b.Penalties)
}
