package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

var jan1 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func flatParams(principal string, n int) model.ScheduleParams {
	return model.ScheduleParams{
		StartDate:    jan1,
		Principal:    dec(principal),
		AnnualRate:   dec("0.12"),
		Frequency:    valueobject.FrequencyMonthly,
		Method:       valueobject.InterestMethodFlat,
		Installments: n,
		Generation:   1,
		Precision:    2,
	}
}

func TestGenerateSchedule_FlatExample(t *testing.T) {
	// $1,200 at 12% flat over 12 monthly installments.
	sched, err := model.GenerateSchedule(flatParams("1200", 12))
	require.NoError(t, err)
	require.Len(t, sched, 12)

	for i, e := range sched {
		assert.Equal(t, i+1, e.Sequence)
		assert.True(t, e.PrincipalDue.Equal(dec("100")), "installment %d principal %s", e.Sequence, e.PrincipalDue)
		assert.True(t, e.InterestDue.Equal(dec("12")), "installment %d interest %s", e.Sequence, e.InterestDue)
		assert.Equal(t, jan1.AddDate(0, i+1, 0), e.DueDate)
	}

	totals := model.ScheduleTotals(sched)
	assert.True(t, totals.Principal.Equal(dec("1200")))
	assert.True(t, totals.Interest.Equal(dec("144")))
	assert.True(t, totals.Total().Equal(dec("1344")))
}

func TestGenerateSchedule_ReducingBalance(t *testing.T) {
	p := flatParams("1000", 3)
	p.Method = valueobject.InterestMethodReducingBalance

	sched, err := model.GenerateSchedule(p)
	require.NoError(t, err)
	require.Len(t, sched, 3)

	want := []struct{ principal, interest string }{
		{"330.02", "10"},
		{"333.32", "6.70"},
		{"336.66", "3.37"},
	}
	for i, w := range want {
		assert.True(t, sched[i].PrincipalDue.Equal(dec(w.principal)), "installment %d principal %s", i+1, sched[i].PrincipalDue)
		assert.True(t, sched[i].InterestDue.Equal(dec(w.interest)), "installment %d interest %s", i+1, sched[i].InterestDue)
	}
}

func TestGenerateSchedule_PrincipalSumsExactly(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		n         int
		method    valueobject.InterestMethod
		freq      valueobject.RepaymentFrequency
		precision int32
	}{
		{"flat thirds", "100", "0.12", 3, valueobject.InterestMethodFlat, valueobject.FrequencyMonthly, 2},
		{"flat odd cents", "100.01", "0.3", 7, valueobject.InterestMethodFlat, valueobject.FrequencyWeekly, 2},
		{"reducing long", "999999.99", "0.24", 36, valueobject.InterestMethodReducingBalance, valueobject.FrequencyMonthly, 2},
		{"reducing weekly", "5000", "0.52", 52, valueobject.InterestMethodReducingBalance, valueobject.FrequencyWeekly, 2},
		{"reducing zero rate", "1000", "0", 7, valueobject.InterestMethodReducingBalance, valueobject.FrequencyBiweekly, 2},
		{"zero precision", "100000", "0.18", 7, valueobject.InterestMethodReducingBalance, valueobject.FrequencyMonthly, 0},
		{"tiny principal", "1", "0.12", 3, valueobject.InterestMethodFlat, valueobject.FrequencyMonthly, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sched, err := model.GenerateSchedule(model.ScheduleParams{
				StartDate:    jan1,
				Principal:    dec(tc.principal),
				AnnualRate:   dec(tc.rate),
				Frequency:    tc.freq,
				Method:       tc.method,
				Installments: tc.n,
				Precision:    tc.precision,
			})
			require.NoError(t, err)
			require.Len(t, sched, tc.n)

			assert.True(t, model.ScheduleTotals(sched).Principal.Equal(dec(tc.principal)))
			for i, e := range sched {
				assert.False(t, e.PrincipalDue.IsNegative(), "installment %d", i+1)
				assert.False(t, e.InterestDue.IsNegative(), "installment %d", i+1)
				assert.True(t, e.PrincipalDue.Equal(e.PrincipalDue.Round(tc.precision)), "installment %d not rounded", i+1)
				if i > 0 {
					assert.True(t, e.DueDate.After(sched[i-1].DueDate))
				}
			}
		})
	}
}

func TestGenerateSchedule_Bullet(t *testing.T) {
	sched, err := model.GenerateSchedule(flatParams("500", 1))
	require.NoError(t, err)
	require.Len(t, sched, 1)
	assert.True(t, sched[0].PrincipalDue.Equal(dec("500")))
	assert.True(t, sched[0].InterestDue.Equal(dec("5")))

	p := flatParams("500", 1)
	p.Method = valueobject.InterestMethodReducingBalance
	sched, err = model.GenerateSchedule(p)
	require.NoError(t, err)
	require.Len(t, sched, 1)
	assert.True(t, sched[0].PrincipalDue.Equal(dec("500")))
	assert.True(t, sched[0].InterestDue.Equal(dec("5")))
}

func TestGenerateSchedule_Grace(t *testing.T) {
	p := flatParams("1200", 12)
	p.GracePeriods = 2

	sched, err := model.GenerateSchedule(p)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), sched[0].DueDate)
	assert.True(t, model.ScheduleTotals(sched).Interest.Equal(dec("144")), "grace without accrual keeps total interest")

	p.InterestDuringGrace = true
	sched, err = model.GenerateSchedule(p)
	require.NoError(t, err)
	assert.True(t, sched[0].InterestDue.Equal(dec("36")), "two grace months of interest land on the first installment")
	assert.True(t, model.ScheduleTotals(sched).Interest.Equal(dec("168")))
}

func TestGenerateSchedule_InstallmentFees(t *testing.T) {
	p := flatParams("1200", 12)
	p.InstallmentFees = []model.FeeDefinition{
		{Name: "ledger", Kind: valueobject.FeeKindFlat, Amount: dec("1.5"), Trigger: valueobject.FeeTriggerInstallment},
		{Name: "insurance", Kind: valueobject.FeeKindPercentage, Amount: dec("0.01"), Trigger: valueobject.FeeTriggerInstallment},
		{Name: "processing", Kind: valueobject.FeeKindFlat, Amount: dec("50"), Trigger: valueobject.FeeTriggerDisbursement},
	}
	sched, err := model.GenerateSchedule(p)
	require.NoError(t, err)
	for _, e := range sched {
		assert.True(t, e.FeeDue.Equal(dec("2.5")), "fee %s", e.FeeDue)
	}
}

func TestGenerateSchedule_InvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.ScheduleParams)
		field  string
	}{
		{"negative rate", func(p *model.ScheduleParams) { p.AnnualRate = dec("-0.01") }, "annual_rate"},
		{"zero term", func(p *model.ScheduleParams) { p.Installments = 0 }, "installments"},
		{"negative term", func(p *model.ScheduleParams) { p.Installments = -3 }, "installments"},
		{"zero principal", func(p *model.ScheduleParams) { p.Principal = decimal.Zero }, "principal"},
		{"negative principal", func(p *model.ScheduleParams) { p.Principal = dec("-5") }, "principal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := flatParams("1200", 12)
			tc.mutate(&p)
			_, err := model.GenerateSchedule(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidScheduleParameters))
			assert.True(t, errors.Is(err, model.ErrValidation))

			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestScheduleEntry_Status(t *testing.T) {
	e := model.ScheduleEntry{
		Sequence:     1,
		DueDate:      jan1,
		PrincipalDue: dec("100"),
		InterestDue:  dec("12"),
	}
	before := jan1.AddDate(0, 0, -1)
	after := jan1.AddDate(0, 0, 1)

	assert.Equal(t, valueobject.InstallmentPending, e.Status(before))
	assert.Equal(t, valueobject.InstallmentOverdue, e.Status(after))

	e.InterestPaid = dec("12")
	assert.Equal(t, valueobject.InstallmentPartiallyPaid, e.Status(before))

	e.PrincipalPaid = dec("100")
	assert.Equal(t, valueobject.InstallmentPaid, e.Status(after))

	waived := model.ScheduleEntry{DueDate: jan1, FeeDue: dec("3"), FeeWaived: dec("3")}
	assert.Equal(t, valueobject.InstallmentWaived, waived.Status(after))
}
