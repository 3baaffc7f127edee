package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/money"
)

// ScheduleEntry is one installment of a loan's repayment schedule. Paid and
// waived amounts are cumulative; the installment status is derived from them.
type ScheduleEntry struct {
	DueDate         time.Time       `json:"due_date"`
	PrincipalDue    decimal.Decimal `json:"principal_due"`
	InterestDue     decimal.Decimal `json:"interest_due"`
	FeeDue          decimal.Decimal `json:"fee_due"`
	PenaltyDue      decimal.Decimal `json:"penalty_due"`
	PrincipalPaid   decimal.Decimal `json:"principal_paid"`
	InterestPaid    decimal.Decimal `json:"interest_paid"`
	FeePaid         decimal.Decimal `json:"fee_paid"`
	PenaltyPaid     decimal.Decimal `json:"penalty_paid"`
	InterestWaived  decimal.Decimal `json:"interest_waived"`
	FeeWaived       decimal.Decimal `json:"fee_waived"`
	PenaltyWaived   decimal.Decimal `json:"penalty_waived"`
	Sequence        int             `json:"sequence"`
	Generation      int             `json:"generation"`
	PenaltyAssessed bool            `json:"penalty_assessed"`
}

// Due returns the amount charged for component c.
func (e ScheduleEntry) Due(c valueobject.Component) decimal.Decimal {
	switch c {
	case valueobject.ComponentPenalty:
		return e.PenaltyDue
	case valueobject.ComponentFee:
		return e.FeeDue
	case valueobject.ComponentInterest:
		return e.InterestDue
	default:
		return e.PrincipalDue
	}
}

// Paid returns the cumulative amount paid against component c.
func (e ScheduleEntry) Paid(c valueobject.Component) decimal.Decimal {
	switch c {
	case valueobject.ComponentPenalty:
		return e.PenaltyPaid
	case valueobject.ComponentFee:
		return e.FeePaid
	case valueobject.ComponentInterest:
		return e.InterestPaid
	default:
		return e.PrincipalPaid
	}
}

// Waived returns the amount forgiven on component c. Principal is never
// waived on an individual installment.
func (e ScheduleEntry) Waived(c valueobject.Component) decimal.Decimal {
	switch c {
	case valueobject.ComponentPenalty:
		return e.PenaltyWaived
	case valueobject.ComponentFee:
		return e.FeeWaived
	case valueobject.ComponentInterest:
		return e.InterestWaived
	default:
		return decimal.Zero
	}
}

// Remaining is what is still owed on component c.
func (e ScheduleEntry) Remaining(c valueobject.Component) decimal.Decimal {
	return e.Due(c).Sub(e.Paid(c)).Sub(e.Waived(c))
}

// RemainingTotal is what is still owed on the installment.
func (e ScheduleEntry) RemainingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range valueobject.DefaultComponentOrder {
		total = total.Add(e.Remaining(c))
	}
	return total
}

// TotalDue is the full installment amount including any assessed penalty.
func (e ScheduleEntry) TotalDue() decimal.Decimal {
	return money.Sum(e.PrincipalDue, e.InterestDue, e.FeeDue, e.PenaltyDue)
}

func (e ScheduleEntry) totalPaid() decimal.Decimal {
	return money.Sum(e.PrincipalPaid, e.InterestPaid, e.FeePaid, e.PenaltyPaid)
}

func (e ScheduleEntry) totalWaived() decimal.Decimal {
	return money.Sum(e.InterestWaived, e.FeeWaived, e.PenaltyWaived)
}

// IsSettled reports whether nothing remains owed.
func (e ScheduleEntry) IsSettled() bool {
	return !e.RemainingTotal().IsPositive()
}

// IsDue reports whether the installment has fallen due on or before asOf.
func (e ScheduleEntry) IsDue(asOf time.Time) bool {
	return !e.DueDate.After(asOf)
}

// Status derives the installment status at asOf.
func (e ScheduleEntry) Status(asOf time.Time) valueobject.InstallmentStatus {
	if e.IsSettled() {
		if e.totalWaived().IsPositive() && e.totalPaid().IsZero() {
			return valueobject.InstallmentWaived
		}
		return valueobject.InstallmentPaid
	}
	if e.DueDate.Before(asOf) {
		return valueobject.InstallmentOverdue
	}
	if e.totalPaid().IsPositive() {
		return valueobject.InstallmentPartiallyPaid
	}
	return valueobject.InstallmentPending
}

func (e *ScheduleEntry) addPaid(c valueobject.Component, amount decimal.Decimal) {
	switch c {
	case valueobject.ComponentPenalty:
		e.PenaltyPaid = e.PenaltyPaid.Add(amount)
	case valueobject.ComponentFee:
		e.FeePaid = e.FeePaid.Add(amount)
	case valueobject.ComponentInterest:
		e.InterestPaid = e.InterestPaid.Add(amount)
	default:
		e.PrincipalPaid = e.PrincipalPaid.Add(amount)
	}
}

// balancesNonNegative reports the first component whose paid or remaining
// amount is negative, if any.
func (e ScheduleEntry) balancesNonNegative() (valueobject.Component, bool) {
	for _, c := range valueobject.DefaultComponentOrder {
		if e.Paid(c).IsNegative() || e.Remaining(c).IsNegative() {
			return c, false
		}
	}
	return "", true
}

// ScheduleTotals sums the charged components of a schedule.
func ScheduleTotals(entries []ScheduleEntry) Balances {
	var b Balances
	for _, e := range entries {
		b.Principal = b.Principal.Add(e.PrincipalDue)
		b.Interest = b.Interest.Add(e.InterestDue)
		b.Fees = b.Fees.Add(e.FeeDue)
		b.Penalties = b.Penalties.Add(e.PenaltyDue)
	}
	return b
}

// OutstandingBalances sums what is still owed across a schedule.
func OutstandingBalances(entries []ScheduleEntry) Balances {
	var b Balances
	for _, e := range entries {
		b.Principal = b.Principal.Add(e.Remaining(valueobject.ComponentPrincipal))
		b.Interest = b.Interest.Add(e.Remaining(valueobject.ComponentInterest))
		b.Fees = b.Fees.Add(e.Remaining(valueobject.ComponentFee))
		b.Penalties = b.Penalties.Add(e.Remaining(valueobject.ComponentPenalty))
	}
	return b
}

func cloneEntries(entries []ScheduleEntry) []ScheduleEntry {
	if entries == nil {
		return nil
	}
	out := make([]ScheduleEntry, len(entries))
	copy(out, entries)
	return out
}

// Balances groups the four money components of a loan.
type Balances struct {
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Fees      decimal.Decimal `json:"fees"`
	Penalties decimal.Decimal `json:"penalties"`
}

// Total returns the sum of all components.
func (b Balances) Total() decimal.Decimal {
	return money.Sum(b.Principal, b.Interest, b.Fees, b.Penalties)
}

// IsZero reports whether every component is zero.
func (b Balances) IsZero() bool {
	return b.Principal.IsZero() && b.Interest.IsZero() && b.Fees.IsZero() && b.Penalties.IsZero()
}

// Sub returns b minus o, component-wise.
func (b Balances) Sub(o Balances) Balances {
	return Balances{
		Principal: b.Principal.Sub(o.Principal),
		Interest:  b.Interest.Sub(o.Interest),
		Fees:      b.Fees.Sub(o.Fees),
		Penalties: b.Penalties.Sub(o.Penalties),
	}
}
