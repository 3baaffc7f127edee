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

var mar15 = time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

func TestServiceLoan_AssessOverdue(t *testing.T) {
	h := newHarness()
	loan := h.activeLoan(t, "1200", 12)
	ctx := context.Background()
	req := dto.AssessOverdueRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID, AsOf: mar15}

	assessed, err := h.servicing.AssessOverdue(ctx, req)

	require.NoError(t, err)
	assertDecEqual(t, "5.6", assessed.Schedule[0].PenaltyDue, "first penalty")
	assertDecEqual(t, "5.6", assessed.Schedule[1].PenaltyDue, "second penalty")
	assert.True(t, assessed.Schedule[2].PenaltyDue.IsZero())
	assertDecEqual(t, "11.2", assessed.Outstanding.Penalties, "penalties")
	assert.Equal(t, "OVERDUE", assessed.Schedule[0].Status)

	saves := len(h.loans.savedLoans)
	again, err := h.servicing.AssessOverdue(ctx, req)
	require.NoError(t, err)
	assertDecEqual(t, "11.2", again.Outstanding.Penalties, "penalties are charged once")
	assert.Len(t, h.loans.savedLoans, saves, "nothing new to assess is not saved")
}

func TestServiceLoan_WaiveInstallment(t *testing.T) {
	h := newHarness()
	loan := h.activeLoan(t, "1200", 12)
	ctx := context.Background()
	_, err := h.servicing.AssessOverdue(ctx, dto.AssessOverdueRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID, AsOf: mar15})
	require.NoError(t, err)

	t.Run("principal cannot be waived", func(t *testing.T) {
		_, err := h.servicing.WaiveInstallment(ctx, dto.WaiveInstallmentRequest{
			TenantID:   testutil.TestTenantID,
			LoanID:     loan.ID,
			Sequence:   1,
			Components: []string{"PRINCIPAL"},
			WaivedBy:   testutil.TestManagerID,
		})
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("unknown component is a validation error", func(t *testing.T) {
		_, err := h.servicing.WaiveInstallment(ctx, dto.WaiveInstallmentRequest{
			TenantID:   testutil.TestTenantID,
			LoanID:     loan.ID,
			Sequence:   1,
			Components: []string{"TIP"},
			WaivedBy:   testutil.TestManagerID,
		})
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("waives the penalty of one installment", func(t *testing.T) {
		waived, err := h.servicing.WaiveInstallment(ctx, dto.WaiveInstallmentRequest{
			TenantID:   testutil.TestTenantID,
			LoanID:     loan.ID,
			Sequence:   1,
			Components: []string{"PENALTY"},
			WaivedBy:   testutil.TestManagerID,
			Reason:     "flooding in the district",
		})

		require.NoError(t, err)
		assertDecEqual(t, "5.6", waived.Schedule[0].PenaltyWaived, "waived")
		assertDecEqual(t, "5.6", waived.Outstanding.Penalties, "remaining penalties")
		assert.Contains(t, h.loans.eventTypes(), event.TypeLoanScheduleWaived)
	})
}

func TestServiceLoan_MarkDefaulted(t *testing.T) {
	h := newHarness()
	loan := h.activeLoan(t, "1200", 12)
	ctx := context.Background()

	_, err := h.servicing.MarkDefaulted(ctx, dto.MarkDefaultedRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID})
	assert.ErrorIs(t, err, model.ErrValidation)

	defaulted, err := h.servicing.MarkDefaulted(ctx, dto.MarkDefaultedRequest{
		TenantID: testutil.TestTenantID,
		LoanID:   loan.ID,
		Reason:   "member relocated",
	})
	require.NoError(t, err)
	assert.Equal(t, "DEFAULTED", defaulted.Status)
	assert.Contains(t, h.loans.eventTypes(), event.TypeLoanDefaulted)

	_, err = h.servicing.MarkDefaulted(ctx, dto.MarkDefaultedRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID, Reason: "again"})
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)

	paid, err := h.payment.Execute(ctx, paymentRequest(loan.ID, "late-1", "112", mar15))
	require.NoError(t, err, "defaulted loans still accept repayments")
	assert.Equal(t, "DEFAULTED", paid.LoanStatus)
}

func TestServiceLoan_Close(t *testing.T) {
	h := newHarness()
	loan := h.activeLoan(t, "1200", 12)

	_, err := h.servicing.Close(context.Background(), dto.LoanActionRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID})

	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
}
