package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/pkg/testutil"
)

func TestGetLoanUseCase_Execute(t *testing.T) {
	t.Run("successfully retrieves a loan", func(t *testing.T) {
		h := newHarness()
		loan := h.activeLoan(t, "1200", 12)

		got, err := h.getLoan.Execute(context.Background(), dto.GetLoanRequest{
			TenantID: testutil.TestTenantID,
			LoanID:   loan.ID,
		})

		require.NoError(t, err)
		assert.Equal(t, loan.ID, got.ID)
		assert.Equal(t, "ACTIVE", got.Status)
		assert.Equal(t, "USD", got.Currency)
		assert.Equal(t, 4, got.Version)
		require.Len(t, got.Schedule, 12)
		assert.Equal(t, "PENDING", got.Schedule[0].Status)
	})

	t.Run("installment statuses follow the clock", func(t *testing.T) {
		h := newHarness()
		loan := h.activeLoan(t, "1200", 12)
		h.clock.At = testutil.Jan1.AddDate(0, 2, 0)

		got, err := h.getLoan.Execute(context.Background(), dto.GetLoanRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID})

		require.NoError(t, err)
		assert.Equal(t, "OVERDUE", got.Schedule[0].Status)
		assert.Equal(t, "PENDING", got.Schedule[2].Status)
	})

	t.Run("another tenant's loan is not found", func(t *testing.T) {
		h := newHarness()
		loan := h.activeLoan(t, "1200", 12)

		_, err := h.getLoan.Execute(context.Background(), dto.GetLoanRequest{TenantID: "other-tenant", LoanID: loan.ID})

		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("repository failure is wrapped", func(t *testing.T) {
		h := newHarness()
		h.loans.findByIDFunc = func(_ context.Context, _, _ string) (model.Loan, error) {
			return model.Loan{}, errors.New("database unavailable")
		}

		_, err := h.getLoan.Execute(context.Background(), dto.GetLoanRequest{TenantID: testutil.TestTenantID, LoanID: "loan-1"})

		require.Error(t, err)
		testutil.AssertErrorContains(t, err, "find loan")
		testutil.AssertErrorContains(t, err, "database unavailable")
	})
}

func TestGetLoanUseCase_ListByMember(t *testing.T) {
	h := newHarness()
	h.activeLoan(t, "1200", 12)
	h.pendingLoan(t, "600", 6)

	got, err := h.getLoan.ListByMember(context.Background(), dto.ListLoansRequest{
		TenantID: testutil.TestTenantID,
		MemberID: testutil.TestMemberID,
	})
	require.NoError(t, err)
	assert.Len(t, got.Loans, 2)

	none, err := h.getLoan.ListByMember(context.Background(), dto.ListLoansRequest{
		TenantID: testutil.TestTenantID,
		MemberID: "someone-else",
	})
	require.NoError(t, err)
	assert.Empty(t, none.Loans)
}
