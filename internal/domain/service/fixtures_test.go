package service_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/service"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/money"
)

var jan1 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(month time.Month, d int) time.Time {
	return time.Date(2025, month, d, 0, 0, 0, 0, time.UTC)
}

func flatTerms() model.ProductTerms {
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

func reducingTerms() model.ProductTerms {
	t := flatTerms()
	t.InterestMethod = valueobject.InterestMethodReducingBalance
	return t
}

// approvedLoan returns a loan approved for amount over n installments.
func approvedLoan(t *testing.T, terms model.ProductTerms, amount string, n int) model.Loan {
	t.Helper()
	product, err := model.NewLoanProduct("tenant-1", "GRP", "Group loan", terms, jan1)
	require.NoError(t, err)
	loan, err := model.NewLoan("tenant-1", "member-1", product, dec(amount), n, "", jan1)
	require.NoError(t, err)
	loan, err = loan.Submit(jan1)
	require.NoError(t, err)
	loan, err = loan.Approve(product, dec(amount), "officer-1", dec("100000"), jan1)
	require.NoError(t, err)
	return loan
}

// activeLoan returns a loan disbursed in full on 1 January with its events
// cleared.
func activeLoan(t *testing.T, terms model.ProductTerms, amount string, n int) model.Loan {
	t.Helper()
	loan := approvedLoan(t, terms, amount, n)
	loan, err := loan.Disburse(dec(amount), jan1, jan1)
	require.NoError(t, err)
	return loan.Persisted(1)
}

func pay(t *testing.T, loan model.Loan, ref, amount string, at time.Time) (model.Loan, model.Repayment) {
	t.Helper()
	alloc, err := service.NewAllocationEngine().Allocate(loan.AllocationRequest(dec(amount), at))
	require.NoError(t, err)
	updated, rec, err := loan.ApplyRepayment(ref, dec(amount), at, alloc, at)
	require.NoError(t, err)
	return updated, rec
}

func eventTypes(l model.Loan) []string {
	var out []string
	for _, e := range l.DomainEvents() {
		out = append(out, e.EventType())
	}
	return out
}

func assertDecEqual(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s got %s", label, want, got)
}

// assertSchedulesEqual compares schedules by amount rather than decimal
// representation.
func assertSchedulesEqual(t *testing.T, want, got []model.ScheduleEntry) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.Sequence, g.Sequence)
		for _, c := range valueobject.DefaultComponentOrder {
			assert.True(t, w.Due(c).Equal(g.Due(c)), "installment %d %s due: want %s got %s", w.Sequence, c, w.Due(c), g.Due(c))
			assert.True(t, w.Paid(c).Equal(g.Paid(c)), "installment %d %s paid: want %s got %s", w.Sequence, c, w.Paid(c), g.Paid(c))
		}
	}
}

func assertBalancesEqual(t *testing.T, want, got model.Balances) {
	t.Helper()
	assert.True(t, want.Principal.Equal(got.Principal), "principal: want %s got %s", want.Principal, got.Principal)
	assert.True(t, want.Interest.Equal(got.Interest), "interest: want %s got %s", want.Interest, got.Interest)
	assert.True(t, want.Fees.Equal(got.Fees), "fees: want %s got %s", want.Fees, got.Fees)
	assert.True(t, want.Penalties.Equal(got.Penalties), "penalties: want %s got %s", want.Penalties, got.Penalties)
}
