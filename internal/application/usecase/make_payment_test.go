package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/pkg/testutil"
)

var feb1 = time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)

func paymentRequest(loanID, ref, amount string, at time.Time) dto.MakePaymentRequest {
	return dto.MakePaymentRequest{
		TenantID:  testutil.TestTenantID,
		LoanID:    loanID,
		Reference: ref,
		Amount:    testutil.Dec(amount),
		PaidAt:    at,
	}
}

func TestMakePayment_Execute(t *testing.T) {
	t.Run("allocates an installment payment", func(t *testing.T) {
		h := newHarness()
		loan := h.activeLoan(t, "1200", 12)

		resp, err := h.payment.Execute(context.Background(), paymentRequest(loan.ID, "mpesa-1", "112", feb1))

		require.NoError(t, err)
		assert.False(t, resp.Duplicate)
		assert.Equal(t, "PAYMENT", resp.Kind)
		assert.Equal(t, "ACTIVE", resp.LoanStatus)
		require.Len(t, resp.Allocation, 1)
		assertDecEqual(t, "12", resp.Allocation[0].Interest, "interest")
		assertDecEqual(t, "100", resp.Allocation[0].Principal, "principal")

		got, err := h.getLoan.Execute(context.Background(), dto.GetLoanRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID})
		require.NoError(t, err)
		assertDecEqual(t, "1100", got.Outstanding.Principal, "outstanding principal")
		assertDecEqual(t, "132", got.Outstanding.Interest, "outstanding interest")
		assert.Contains(t, h.loans.eventTypes(), event.TypeLoanRepaymentCreated)
		assert.Contains(t, h.loans.eventTypes(), event.TypeLoanSchedulePaid)
	})

	t.Run("paying the full 1344 closes the loan", func(t *testing.T) {
		h := newHarness()
		loan := h.activeLoan(t, "1200", 12)

		resp, err := h.payment.Execute(context.Background(), paymentRequest(loan.ID, "lump", "1344", feb1))

		require.NoError(t, err)
		assert.Equal(t, "CLOSED", resp.LoanStatus)
		assert.Contains(t, h.loans.eventTypes(), event.TypeLoanPaidOff)
	})

	t.Run("overpayment is rejected", func(t *testing.T) {
		h := newHarness()
		loan := h.activeLoan(t, "1200", 12)
		saves := len(h.loans.savedLoans)

		_, err := h.payment.Execute(context.Background(), paymentRequest(loan.ID, "lump", "1344.01", feb1))

		assert.ErrorIs(t, err, model.ErrValidation)
		assert.Len(t, h.loans.savedLoans, saves)
	})

	t.Run("replaying a reference changes nothing", func(t *testing.T) {
		h := newHarness()
		loan := h.activeLoan(t, "1200", 12)
		ctx := context.Background()

		first, err := h.payment.Execute(ctx, paymentRequest(loan.ID, "mpesa-1", "112", feb1))
		require.NoError(t, err)
		saves := len(h.loans.savedLoans)

		replay, err := h.payment.Execute(ctx, paymentRequest(loan.ID, "mpesa-1", "112", feb1))

		require.NoError(t, err)
		assert.True(t, replay.Duplicate)
		assert.Equal(t, first.ID, replay.ID)
		assert.Len(t, h.loans.savedLoans, saves)

		_, err = h.payment.Execute(ctx, paymentRequest(loan.ID, "mpesa-1", "50", feb1))
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("loan not yet disbursed cannot be repaid", func(t *testing.T) {
		h := newHarness()
		loan := h.approvedLoan(t, "1200", 12)

		_, err := h.payment.Execute(context.Background(), paymentRequest(loan.ID, "early", "112", feb1))

		assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	})

	t.Run("version conflict is returned without retry", func(t *testing.T) {
		h := newHarness()
		loan := h.activeLoan(t, "1200", 12)
		attempts := 0
		h.loans.saveFunc = func(_ context.Context, l model.Loan, expected int) error {
			attempts++
			return &model.ConcurrencyConflictError{AggregateType: "Loan", AggregateID: l.ID(), Expected: expected}
		}

		_, err := h.payment.Execute(context.Background(), paymentRequest(loan.ID, "mpesa-1", "112", feb1))

		assert.ErrorIs(t, err, model.ErrConcurrencyConflict)
		assert.Equal(t, 1, attempts)
	})

	t.Run("missing loan is not found", func(t *testing.T) {
		h := newHarness()

		_, err := h.payment.Execute(context.Background(), paymentRequest("nope", "mpesa-1", "112", feb1))

		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestMakePayment_Reverse(t *testing.T) {
	h := newHarness()
	loan := h.activeLoan(t, "1200", 12)
	ctx := context.Background()

	paid, err := h.payment.Execute(ctx, paymentRequest(loan.ID, "mpesa-1", "112", feb1))
	require.NoError(t, err)

	_, err = h.payment.Reverse(ctx, dto.ReverseRepaymentRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID, RepaymentID: paid.ID})
	assert.ErrorIs(t, err, model.ErrValidation)

	rev, err := h.payment.Reverse(ctx, dto.ReverseRepaymentRequest{
		TenantID:    testutil.TestTenantID,
		LoanID:      loan.ID,
		RepaymentID: paid.ID,
		Reason:      "bounced",
	})
	require.NoError(t, err)
	assert.Equal(t, "REVERSAL", rev.Kind)
	assert.Equal(t, paid.ID, rev.ReversalOf)

	got, err := h.getLoan.Execute(ctx, dto.GetLoanRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID})
	require.NoError(t, err)
	assertDecEqual(t, "1344", got.Outstanding.Total, "outstanding")
	assert.Len(t, got.Repayments, 2)
	assert.Contains(t, h.loans.eventTypes(), event.TypeLoanRepaymentReversed)

	t.Run("reversal references do not shadow caller references", func(t *testing.T) {
		again, err := h.payment.Execute(ctx, paymentRequest(loan.ID, "reversal:mpesa-1", "112", feb1))
		require.NoError(t, err)
		assert.False(t, again.Duplicate)
		assert.Equal(t, "PAYMENT", again.Kind)

		got, err := h.getLoan.Execute(ctx, dto.GetLoanRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID})
		require.NoError(t, err)
		assertDecEqual(t, "1232", got.Outstanding.Total, "outstanding after the new payment")
		assert.Len(t, got.Repayments, 3)
	})
}
