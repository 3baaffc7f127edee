package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/money"
)

func testTerms() model.ProductTerms {
	return model.ProductTerms{
		Currency:        money.USD,
		InterestMethod:  valueobject.InterestMethodFlat,
		AnnualRate:      dec("0.12"),
		Frequency:       valueobject.FrequencyMonthly,
		MinInstallments: 1,
		MaxInstallments: 36,
		MinPrincipal:    dec("100"),
		MaxPrincipal:    dec("50000"),
		PenaltyRate:     dec("0.05"),
	}
}

func newTestProduct(t *testing.T, terms model.ProductTerms) model.LoanProduct {
	t.Helper()
	p, err := model.NewLoanProduct("tenant-1", "GRP-12", "Group loan", terms, jan1)
	require.NoError(t, err)
	return p
}

func newPendingLoan(t *testing.T, product model.LoanProduct, amount string, n int) model.Loan {
	t.Helper()
	loan, err := model.NewLoan("tenant-1", "member-1", product, dec(amount), n, "stock", jan1)
	require.NoError(t, err)
	loan, err = loan.Submit(jan1)
	require.NoError(t, err)
	return loan
}

func eventTypes(l model.Loan) []string {
	var out []string
	for _, e := range l.DomainEvents() {
		out = append(out, e.EventType())
	}
	return out
}

func TestLoanProduct_Versions(t *testing.T) {
	p := newTestProduct(t, testTerms())
	assert.Equal(t, 1, p.Version())
	assert.Equal(t, valueobject.DefaultComponentOrder, p.Terms().AllocationOrder)
	assert.Equal(t, valueobject.AllocationStrictOldestFirst, p.Terms().AllocationPolicy)

	terms := testTerms()
	terms.AnnualRate = dec("0.18")
	v2, err := p.Revise("", terms, jan1.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version())
	assert.Equal(t, p.ID(), v2.ID())
	assert.Equal(t, "Group loan", v2.Name())
	assert.True(t, p.Terms().AnnualRate.Equal(dec("0.12")), "earlier version is untouched")
	assert.Len(t, p.DomainEvents(), 1)
	assert.Len(t, v2.DomainEvents(), 2)

	bad := testTerms()
	bad.MaxInstallments = 0
	_, err = p.Revise("", bad, jan1)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLoan_Creation(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan, err := model.NewLoan("tenant-1", "member-1", product, dec("1200"), 12, "stock", jan1)
	require.NoError(t, err)

	assert.NotEmpty(t, loan.ID())
	assert.True(t, loan.Status().Equal(valueobject.LoanStatusDraft))
	assert.True(t, loan.RequestedAmount().Equal(dec("1200")))
	assert.True(t, loan.OutstandingPrincipal().IsZero())
	assert.Equal(t, 0, loan.Version())
	assert.Equal(t, []string{event.TypeLoanCreated}, eventTypes(loan))

	t.Run("outside product range", func(t *testing.T) {
		_, err := model.NewLoan("tenant-1", "member-1", product, dec("99"), 12, "", jan1)
		assert.ErrorIs(t, err, model.ErrValidation)
		_, err = model.NewLoan("tenant-1", "member-1", product, dec("1200"), 37, "", jan1)
		assert.ErrorIs(t, err, model.ErrValidation)
	})
	t.Run("missing member", func(t *testing.T) {
		_, err := model.NewLoan("tenant-1", "", product, dec("1200"), 12, "", jan1)
		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "member_id", verr.Field)
	})
	t.Run("sub-cent amount", func(t *testing.T) {
		_, err := model.NewLoan("tenant-1", "member-1", product, dec("1200.001"), 12, "", jan1)
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestLoan_UpdateDraft(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan, err := model.NewLoan("tenant-1", "member-1", product, dec("1200"), 12, "stock", jan1)
	require.NoError(t, err)

	amount := dec("1500")
	n := 10
	updated, err := loan.UpdateDraft(model.DraftChanges{
		RequestedAmount: &amount,
		Installments:    &n,
		CollateralIDs:   []string{"col-1"},
		GuarantorIDs:    []string{"member-7", "member-9"},
	}, jan1)
	require.NoError(t, err)
	assert.True(t, updated.RequestedAmount().Equal(amount))
	assert.Equal(t, 10, updated.Installments())
	assert.Equal(t, []string{"col-1"}, updated.CollateralIDs())
	assert.Equal(t, []string{"member-7", "member-9"}, updated.GuarantorIDs())
	assert.True(t, loan.RequestedAmount().Equal(dec("1200")), "original value unchanged")

	submitted, err := updated.Submit(jan1)
	require.NoError(t, err)
	_, err = submitted.UpdateDraft(model.DraftChanges{Installments: &n}, jan1)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
}

func TestLoan_ApproveGeneratesSchedule(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan := newPendingLoan(t, product, "1200", 12)

	approved, err := loan.Approve(product, dec("1200"), "officer-1", dec("5000"), jan1)
	require.NoError(t, err)

	assert.True(t, approved.Status().Equal(valueobject.LoanStatusApproved))
	assert.Equal(t, "officer-1", approved.ApprovedBy())
	assert.True(t, approved.ApprovalLimit().Equal(dec("5000")))
	assert.Len(t, approved.Schedule(), 12)
	assert.True(t, model.ScheduleTotals(approved.Schedule()).Principal.Equal(dec("1200")))
	assert.Contains(t, eventTypes(approved), event.TypeLoanApproved)
	assert.Contains(t, eventTypes(approved), event.TypeLoanScheduleCreated)
	assert.True(t, loan.Status().Equal(valueobject.LoanStatusPendingApproval), "receiver is not modified")
}

func TestLoan_ApproveTwiceRejected(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan := newPendingLoan(t, product, "1200", 12)

	approved, err := loan.Approve(product, dec("1200"), "officer-1", dec("5000"), jan1)
	require.NoError(t, err)

	_, err = approved.Approve(product, dec("1200"), "officer-1", dec("5000"), jan1)
	require.Error(t, err)
	var terr *model.InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Current.Equal(valueobject.LoanStatusApproved))
	assert.Equal(t, "approve", terr.Transition)
	assert.Contains(t, terr.Required, "PENDING_APPROVAL")
}

func TestLoan_ApproveAboveLimit(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan := newPendingLoan(t, product, "1200", 12)

	_, err := loan.Approve(product, dec("1200"), "officer-1", dec("1000"), jan1)
	assert.ErrorIs(t, err, model.ErrApprovalLimitExceeded)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLoan_ProductSnapshotAtApproval(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan := newPendingLoan(t, product, "1200", 12)

	terms := testTerms()
	terms.AnnualRate = dec("0.24")
	v2, err := product.Revise("", terms, jan1)
	require.NoError(t, err)

	approved, err := loan.Approve(v2, dec("1200"), "officer-1", dec("5000"), jan1)
	require.NoError(t, err)
	assert.Equal(t, 2, approved.ProductVersion())
	assert.True(t, approved.Terms().AnnualRate.Equal(dec("0.24")))

	terms.AnnualRate = dec("0.36")
	_, err = v2.Revise("", terms, jan1)
	require.NoError(t, err)
	assert.True(t, approved.Terms().AnnualRate.Equal(dec("0.24")), "later revisions do not leak into the loan")
}

func TestLoan_Reject(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan := newPendingLoan(t, product, "1200", 12)

	_, err := loan.Reject("officer-1", "", jan1)
	assert.ErrorIs(t, err, model.ErrValidation)

	rejected, err := loan.Reject("officer-1", "insufficient guarantors", jan1)
	require.NoError(t, err)
	assert.True(t, rejected.Status().Equal(valueobject.LoanStatusRejected))
	assert.True(t, rejected.Status().IsTerminal())

	_, err = rejected.Approve(product, dec("1200"), "officer-1", dec("5000"), jan1)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
}

func TestLoan_DisburseOnDraftRejected(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan, err := model.NewLoan("tenant-1", "member-1", product, dec("1200"), 12, "", jan1)
	require.NoError(t, err)

	_, err = loan.Disburse(dec("1200"), jan1, jan1)
	var terr *model.InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Current.Equal(valueobject.LoanStatusDraft))
	assert.Equal(t, loan.ID(), terr.LoanID)
}

func TestLoan_DisburseActivates(t *testing.T) {
	terms := testTerms()
	terms.Fees = []model.FeeDefinition{
		{Name: "processing", Kind: valueobject.FeeKindPercentage, Amount: dec("0.02"), Trigger: valueobject.FeeTriggerDisbursement},
	}
	product := newTestProduct(t, terms)
	loan := newPendingLoan(t, product, "1200", 12)
	loan, err := loan.Approve(product, dec("1200"), "officer-1", dec("5000"), jan1)
	require.NoError(t, err)

	disbursedAt := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err = loan.Disburse(dec("1000"), disbursedAt, disbursedAt)
	assert.ErrorIs(t, err, model.ErrValidation, "partial disbursement needs product support")

	active, err := loan.Disburse(dec("1200"), disbursedAt, disbursedAt)
	require.NoError(t, err)

	assert.True(t, active.Status().Equal(valueobject.LoanStatusActive))
	assert.True(t, active.TotalDisbursed().Equal(dec("1200")))
	assert.Equal(t, disbursedAt, active.ActivatedAt())
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), active.Schedule()[0].DueDate, "clock starts at disbursement")
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), active.ExpectedEndDate())
	assert.True(t, active.Schedule()[0].FeeDue.Equal(dec("24")))
	assert.True(t, active.OutstandingPrincipal().Equal(dec("1200")))
	assert.True(t, active.OutstandingInterest().Equal(dec("144")))
	assert.True(t, active.Outstanding().Fees.Equal(dec("24")))
	assert.Contains(t, eventTypes(active), event.TypeLoanDisbursed)
	assert.Contains(t, eventTypes(active), event.TypeLoanActivated)
}

func TestLoan_UnderDisbursementWriteDown(t *testing.T) {
	terms := testTerms()
	terms.AllowUnderDisbursement = true
	product := newTestProduct(t, terms)
	loan := newPendingLoan(t, product, "1200", 12)
	loan, err := loan.Approve(product, dec("1200"), "officer-1", dec("5000"), jan1)
	require.NoError(t, err)

	active, err := loan.Disburse(dec("600"), jan1, jan1)
	require.NoError(t, err)
	assert.True(t, active.Principal().Equal(dec("600")))
	assert.True(t, model.ScheduleTotals(active.Schedule()).Principal.Equal(dec("600")))
}

func TestLoan_PlanTranches(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan := newPendingLoan(t, product, "1000", 10)
	loan, err := loan.Approve(product, dec("1000"), "officer-1", dec("5000"), jan1)
	require.NoError(t, err)

	_, err = loan.PlanTranches([]model.TranchePlanItem{
		{Amount: dec("500"), Milestone: "site cleared"},
		{Amount: dec("300"), Milestone: "walls"},
	}, jan1)
	assert.ErrorIs(t, err, model.ErrValidation, "plan must cover the principal")

	planned, err := loan.PlanTranches([]model.TranchePlanItem{
		{Amount: dec("500"), Milestone: "site cleared"},
		{Amount: dec("300"), Milestone: "walls"},
		{Amount: dec("200"), Milestone: "roof"},
	}, jan1)
	require.NoError(t, err)
	require.Len(t, planned.Tranches(), 3)
	assert.Equal(t, valueobject.VerificationPending, planned.Tranches()[0].Verification)

	_, err = planned.Disburse(dec("1000"), jan1, jan1)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition, "tranche loans disburse per tranche")

	_, err = planned.DisburseTranche(model.TrancheDisbursement{Sequence: 1, Amount: dec("500")}, jan1, jan1)
	assert.ErrorIs(t, err, model.ErrValidation, "milestone not verified")

	verified, err := planned.RecordMilestone(2, valueobject.VerificationVerified, "inspector-1", jan1)
	require.NoError(t, err)
	_, err = verified.DisburseTranche(model.TrancheDisbursement{Sequence: 2, Amount: dec("300")}, jan1, jan1)
	assert.ErrorIs(t, err, model.ErrValidation, "tranche 1 must go first")
}

func TestLoan_SnapshotRoundTrip(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan := newPendingLoan(t, product, "1200", 12)
	loan, err := loan.Approve(product, dec("1200"), "officer-1", dec("5000"), jan1)
	require.NoError(t, err)
	loan, err = loan.Disburse(dec("1200"), jan1, jan1)
	require.NoError(t, err)

	state := loan.Snapshot()
	state.Version = 4
	restored := model.ReconstructLoan(state)

	assert.Equal(t, loan.ID(), restored.ID())
	assert.Equal(t, 4, restored.Version())
	assert.True(t, restored.Status().Equal(valueobject.LoanStatusActive))
	assert.Equal(t, loan.Schedule(), restored.Schedule())
	assert.Empty(t, restored.DomainEvents())
	assert.False(t, restored.HasChanges())

	persisted := loan.Persisted(1)
	assert.Equal(t, 1, persisted.Version())
	assert.Empty(t, persisted.DomainEvents())
	assert.NotEmpty(t, loan.DomainEvents(), "persisting a copy leaves the original events alone")
}

func TestLoan_MarkDefaultedAndClose(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan := newPendingLoan(t, product, "1200", 12)
	loan, err := loan.Approve(product, dec("1200"), "officer-1", dec("5000"), jan1)
	require.NoError(t, err)
	loan, err = loan.Disburse(dec("1200"), jan1, jan1)
	require.NoError(t, err)

	_, err = loan.Close(jan1)
	var terr *model.InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Required, "zero")

	defaulted, err := loan.MarkDefaulted("member unreachable", jan1)
	require.NoError(t, err)
	assert.True(t, defaulted.Status().Equal(valueobject.LoanStatusDefaulted))
	assert.Contains(t, eventTypes(defaulted), event.TypeLoanDefaulted)

	_, err = defaulted.MarkDefaulted("again", jan1)
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition))
}

func TestLoan_AssessOverdueAndWaive(t *testing.T) {
	product := newTestProduct(t, testTerms())
	loan := newPendingLoan(t, product, "1200", 12)
	loan, err := loan.Approve(product, dec("1200"), "officer-1", dec("5000"), jan1)
	require.NoError(t, err)
	loan, err = loan.Disburse(dec("1200"), jan1, jan1)
	require.NoError(t, err)
	loan = loan.Persisted(1)

	same, err := loan.AssessOverdue(jan1.AddDate(0, 0, 15), jan1)
	require.NoError(t, err)
	assert.False(t, same.HasChanges(), "nothing overdue yet")

	asOf := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	assessed, err := loan.AssessOverdue(asOf, asOf)
	require.NoError(t, err)
	sched := assessed.Schedule()
	// 5% of the unpaid 112 on each of the first two installments.
	assert.True(t, sched[0].PenaltyDue.Equal(dec("5.6")))
	assert.True(t, sched[1].PenaltyDue.Equal(dec("5.6")))
	assert.True(t, sched[2].PenaltyDue.IsZero())
	assert.True(t, assessed.Outstanding().Penalties.Equal(dec("11.2")))
	assert.Len(t, assessed.DomainEvents(), 2)

	again, err := assessed.AssessOverdue(asOf.AddDate(0, 0, 1), asOf)
	require.NoError(t, err)
	assert.Len(t, again.DomainEvents(), 2, "penalty is assessed once per installment")

	waived, err := assessed.WaiveInstallment(1, []valueobject.Component{valueobject.ComponentPenalty}, "manager-1", "goodwill", asOf)
	require.NoError(t, err)
	assert.True(t, waived.Schedule()[0].PenaltyWaived.Equal(dec("5.6")))
	assert.True(t, waived.Outstanding().Penalties.Equal(dec("5.6")))

	_, err = assessed.WaiveInstallment(1, []valueobject.Component{valueobject.ComponentPrincipal}, "manager-1", "", asOf)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLoanProduct_PreviewSchedule(t *testing.T) {
	terms := testTerms()
	terms.Fees = []model.FeeDefinition{
		{Name: "processing", Kind: valueobject.FeeKindPercentage, Amount: dec("0.02"), Trigger: valueobject.FeeTriggerDisbursement},
		{Name: "ledger", Kind: valueobject.FeeKindFlat, Amount: dec("1"), Trigger: valueobject.FeeTriggerInstallment},
	}
	product := newTestProduct(t, terms)

	sched, err := product.PreviewSchedule(dec("1200"), 12, jan1)
	require.NoError(t, err)
	require.Len(t, sched, 12)
	assert.True(t, sched[0].FeeDue.Equal(dec("25")), "first installment carries the disbursement fee: %s", sched[0].FeeDue)
	assert.True(t, sched[1].FeeDue.Equal(dec("1")), "later installments carry the installment fee: %s", sched[1].FeeDue)
	totals := model.ScheduleTotals(sched)
	assert.True(t, totals.Principal.Equal(dec("1200")))
	assert.True(t, totals.Interest.Equal(dec("144")))

	_, err = product.PreviewSchedule(dec("60000"), 12, jan1)
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = product.PreviewSchedule(dec("1200"), 40, jan1)
	assert.ErrorIs(t, err, model.ErrValidation)
}
