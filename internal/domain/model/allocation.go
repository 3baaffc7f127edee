package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/money"
)

// AllocationRequest is everything the allocation engine needs to split one
// payment. It is built from a loan snapshot and holds no references back into
// the aggregate.
type AllocationRequest struct {
	PaidAt       time.Time
	Amount       decimal.Decimal
	PeriodicRate decimal.Decimal
	Method       valueobject.InterestMethod
	Policy       valueobject.AllocationPolicy
	Entries      []ScheduleEntry
	Order        []valueobject.Component
	Precision    int32
}

// InstallmentAllocation is the delta one payment applies to one installment.
// InterestAdjustment is zero or negative: future interest removed because an
// advance payment reduced the balance it accrues on.
type InstallmentAllocation struct {
	Penalty            decimal.Decimal `json:"penalty"`
	Fee                decimal.Decimal `json:"fee"`
	Interest           decimal.Decimal `json:"interest"`
	Principal          decimal.Decimal `json:"principal"`
	InterestAdjustment decimal.Decimal `json:"interest_adjustment"`
	Sequence           int             `json:"sequence"`
}

// Amount returns the part applied to component c.
func (a InstallmentAllocation) Amount(c valueobject.Component) decimal.Decimal {
	switch c {
	case valueobject.ComponentPenalty:
		return a.Penalty
	case valueobject.ComponentFee:
		return a.Fee
	case valueobject.ComponentInterest:
		return a.Interest
	default:
		return a.Principal
	}
}

// Add credits amount to component c.
func (a *InstallmentAllocation) Add(c valueobject.Component, amount decimal.Decimal) {
	switch c {
	case valueobject.ComponentPenalty:
		a.Penalty = a.Penalty.Add(amount)
	case valueobject.ComponentFee:
		a.Fee = a.Fee.Add(amount)
	case valueobject.ComponentInterest:
		a.Interest = a.Interest.Add(amount)
	default:
		a.Principal = a.Principal.Add(amount)
	}
}

// Total is the money applied to the installment.
func (a InstallmentAllocation) Total() decimal.Decimal {
	return money.Sum(a.Penalty, a.Fee, a.Interest, a.Principal)
}

// IsEmpty reports whether the allocation touches nothing.
func (a InstallmentAllocation) IsEmpty() bool {
	return a.Total().IsZero() && a.InterestAdjustment.IsZero()
}

// Allocation is the deterministic split of one payment.
type Allocation struct {
	Installments []InstallmentAllocation `json:"installments"`
}

// Totals sums the allocation per component.
func (a Allocation) Totals() Balances {
	var b Balances
	for _, ia := range a.Installments {
		b.Penalties = b.Penalties.Add(ia.Penalty)
		b.Fees = b.Fees.Add(ia.Fee)
		b.Interest = b.Interest.Add(ia.Interest)
		b.Principal = b.Principal.Add(ia.Principal)
	}
	return b
}

// Total is the money allocated.
func (a Allocation) Total() decimal.Decimal {
	return a.Totals().Total()
}

// Breakdown converts the totals into the event payload shape.
func (a Allocation) Breakdown() event.Breakdown {
	return a.Totals().Breakdown()
}

// Breakdown converts balances into the event payload shape.
func (b Balances) Breakdown() event.Breakdown {
	return event.Breakdown{Penalty: b.Penalties, Fee: b.Fees, Interest: b.Interest, Principal: b.Principal}
}

// Allocator splits a payment across a schedule without side effects.
type Allocator interface {
	Allocate(req AllocationRequest) (Allocation, error)
}

// applyAllocation returns a copy of entries with alloc applied. sign is +1 to
// apply and -1 to reverse. Any paid or remaining amount going negative aborts
// the whole operation.
func applyAllocation(loanID string, entries []ScheduleEntry, alloc Allocation, sign int64) ([]ScheduleEntry, error) {
	out := cloneEntries(entries)
	index := make(map[int]int, len(out))
	for i, e := range out {
		index[e.Sequence] = i
	}
	s := decimal.NewFromInt(sign)

	for _, ia := range alloc.Installments {
		i, ok := index[ia.Sequence]
		if !ok {
			return nil, &AllocationInvariantError{LoanID: loanID, Sequence: ia.Sequence, Invariant: "installment not in current schedule"}
		}
		e := &out[i]
		for _, c := range valueobject.DefaultComponentOrder {
			if amt := ia.Amount(c); !amt.IsZero() {
				e.addPaid(c, amt.Mul(s))
			}
		}
		e.InterestDue = e.InterestDue.Add(ia.InterestAdjustment.Mul(s))
		if c, ok := e.balancesNonNegative(); !ok {
			return nil, &AllocationInvariantError{
				LoanID:    loanID,
				Sequence:  e.Sequence,
				Invariant: string(c) + " balance would become negative",
			}
		}
	}
	return out, nil
}
