package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/money"
)

// ScheduleParams is the input to GenerateSchedule.
type ScheduleParams struct {
	StartDate           time.Time
	Principal           decimal.Decimal
	AnnualRate          decimal.Decimal
	Frequency           valueobject.RepaymentFrequency
	Method              valueobject.InterestMethod
	InstallmentFees     []FeeDefinition
	Installments        int
	GracePeriods        int
	Generation          int
	Precision           int32
	InterestDuringGrace bool
}

func (p ScheduleParams) validate() error {
	switch {
	case !p.Principal.IsPositive():
		return invalidSchedule("principal", "must be positive")
	case p.AnnualRate.IsNegative():
		return invalidSchedule("annual_rate", "must not be negative")
	case p.Installments <= 0:
		return invalidSchedule("installments", "must be positive")
	case p.GracePeriods < 0:
		return invalidSchedule("grace_periods", "must not be negative")
	case p.Frequency.IsZero():
		return invalidSchedule("frequency", "is required")
	case p.Method.IsZero():
		return invalidSchedule("interest_method", "is required")
	case p.Precision < 0:
		return invalidSchedule("precision", "must not be negative")
	}
	return nil
}

// GenerateSchedule builds the installment schedule for the given terms.
//
// Principal per installment is rounded down to the currency precision and the
// final installment absorbs the remainder, so the principal column always sums
// to exactly p.Principal.
//
//	FLAT:              interest = principal * periodicRate * n, spread evenly
//	REDUCING_BALANCE:  payment  = B * r * (1+r)^m / ((1+r)^m - 1), recomputed
//	                   from the actual balance B and remaining periods m
func GenerateSchedule(p ScheduleParams) ([]ScheduleEntry, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	n := p.Installments
	rate := p.AnnualRate.Div(decimal.NewFromInt(p.Frequency.PeriodsPerYear()))

	var principals, interests []decimal.Decimal
	if p.Method.Equal(valueobject.InterestMethodFlat) {
		principals = money.SplitEvenly(p.Principal, n, p.Precision)
		totalInterest := money.Round(p.Principal.Mul(rate).Mul(decimal.NewFromInt(int64(n))), p.Precision)
		interests = money.SplitEvenly(totalInterest, n, p.Precision)
	} else {
		principals, interests = reducingBalance(p.Principal, rate, n, p.Precision)
	}

	if p.InterestDuringGrace && p.GracePeriods > 0 {
		graceInterest := money.Round(p.Principal.Mul(rate).Mul(decimal.NewFromInt(int64(p.GracePeriods))), p.Precision)
		interests[0] = interests[0].Add(graceInterest)
	}

	entries := make([]ScheduleEntry, n)
	for k := 0; k < n; k++ {
		fee := decimal.Zero
		for _, f := range p.InstallmentFees {
			if f.Trigger == valueobject.FeeTriggerInstallment {
				fee = fee.Add(f.Charge(principals[k], p.Precision))
			}
		}
		entries[k] = ScheduleEntry{
			Sequence:     k + 1,
			Generation:   p.Generation,
			DueDate:      p.Frequency.DueDate(p.StartDate, p.GracePeriods+k+1),
			PrincipalDue: principals[k],
			InterestDue:  interests[k],
			FeeDue:       fee,
		}
	}
	return entries, nil
}

func reducingBalance(principal, rate decimal.Decimal, n int, places int32) ([]decimal.Decimal, []decimal.Decimal) {
	principals := make([]decimal.Decimal, n)
	interests := make([]decimal.Decimal, n)
	remaining := principal

	for k := 0; k < n; k++ {
		periodsLeft := n - k
		interest := money.Round(remaining.Mul(rate), places)

		var part decimal.Decimal
		switch {
		case periodsLeft == 1:
			part = remaining
		case rate.IsZero():
			part = money.RoundDown(remaining.Div(decimal.NewFromInt(int64(periodsLeft))), places)
		default:
			part = money.RoundDown(annuityPayment(remaining, rate, periodsLeft).Sub(interest), places)
		}
		part = money.Min(money.NonNegative(part), remaining)

		principals[k] = part
		interests[k] = interest
		remaining = remaining.Sub(part)
	}
	return principals, interests
}

// annuityPayment is the level payment retiring balance over periods at rate.
func annuityPayment(balance, rate decimal.Decimal, periods int) decimal.Decimal {
	factor := compound(decimal.NewFromInt(1).Add(rate), periods)
	return balance.Mul(rate).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
}

func compound(base decimal.Decimal, periods int) decimal.Decimal {
	out := decimal.NewFromInt(1)
	for i := 0; i < periods; i++ {
		out = out.Mul(base).Truncate(24)
	}
	return out
}
