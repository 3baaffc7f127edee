package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/money"
)

// ---------------------------------------------------------------------------
// AllocationEngine – pure repayment allocation
// ---------------------------------------------------------------------------

// AllocationEngine splits a payment across a schedule. It holds no state and
// is safe for concurrent use.
type AllocationEngine struct{}

// NewAllocationEngine returns a new engine instance.
func NewAllocationEngine() *AllocationEngine {
	return &AllocationEngine{}
}

var _ model.Allocator = (*AllocationEngine)(nil)

// Allocate produces the deterministic split of req.Amount.
//
//  1. Installments due on or before the payment date, oldest first, in the
//     configured component order. STRICT_OLDEST_FIRST finishes one
//     installment before the next; FILL_ANY_DUE settles each component
//     across all due installments before moving to the next component.
//  2. Any remainder prepays principal of future installments, earliest
//     first. On reducing-balance loans the interest of each future
//     installment is reduced by the prepaid balance times the periodic rate.
//  3. Anything still left prepays the remaining future charges.
//
// A payment larger than everything owed is rejected.
func (e *AllocationEngine) Allocate(req model.AllocationRequest) (model.Allocation, error) {
	if !req.Amount.IsPositive() {
		return model.Allocation{}, model.NewValidationError("amount", "must be positive")
	}
	order := req.Order
	if len(order) == 0 {
		order = valueobject.DefaultComponentOrder
	}
	if err := valueobject.ValidateComponentOrder(order); err != nil {
		return model.Allocation{}, model.NewValidationError("allocation_order", "%v", err)
	}
	policy, err := valueobject.NewAllocationPolicy(string(req.Policy))
	if err != nil {
		return model.Allocation{}, model.NewValidationError("allocation_policy", "%v", err)
	}

	entries := append([]model.ScheduleEntry(nil), req.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].DueDate.Equal(entries[j].DueDate) {
			return entries[i].Sequence < entries[j].Sequence
		}
		return entries[i].DueDate.Before(entries[j].DueDate)
	})

	w := &allocation{
		entries:   entries,
		parts:     make([]model.InstallmentAllocation, len(entries)),
		remaining: req.Amount,
	}
	for i, en := range entries {
		w.parts[i].Sequence = en.Sequence
	}

	var due, future []int
	for i, en := range entries {
		if en.IsDue(req.PaidAt) {
			due = append(due, i)
		} else {
			future = append(future, i)
		}
	}

	if policy == valueobject.AllocationFillAnyDue {
		for _, c := range order {
			for _, i := range due {
				w.pay(i, c)
			}
		}
	} else {
		for _, i := range due {
			for _, c := range order {
				w.pay(i, c)
			}
		}
	}

	if w.remaining.IsPositive() && len(future) > 0 {
		for _, i := range future {
			w.pay(i, valueobject.ComponentPrincipal)
		}
		if req.Method.Equal(valueobject.InterestMethodReducingBalance) && req.PeriodicRate.IsPositive() {
			w.reduceFutureInterest(future, req.PeriodicRate, req.Precision)
		}
		for _, i := range future {
			for _, c := range order {
				if c != valueobject.ComponentPrincipal {
					w.pay(i, c)
				}
			}
		}
	}

	if w.remaining.IsPositive() {
		return model.Allocation{}, model.NewValidationError("amount",
			"payment exceeds outstanding obligation by %s", w.remaining)
	}
	return w.result(), nil
}

type allocation struct {
	entries   []model.ScheduleEntry
	parts     []model.InstallmentAllocation
	remaining decimal.Decimal
}

// owed is what installment i still owes on c after this allocation so far.
func (w *allocation) owed(i int, c valueobject.Component) decimal.Decimal {
	left := w.entries[i].Remaining(c).Sub(w.parts[i].Amount(c))
	if c == valueobject.ComponentInterest {
		left = left.Add(w.parts[i].InterestAdjustment)
	}
	return left
}

func (w *allocation) pay(i int, c valueobject.Component) {
	if !w.remaining.IsPositive() {
		return
	}
	owed := w.owed(i, c)
	if !owed.IsPositive() {
		return
	}
	x := money.Min(owed, w.remaining)
	w.parts[i].Add(c, x)
	w.remaining = w.remaining.Sub(x)
}

// reduceFutureInterest lowers the interest of each future installment by the
// interest the prepaid principal would have accrued in that period. The
// balance outstanding during period k drops by the principal prepaid on
// installments k..n. Interest never falls below what is paid or waived.
func (w *allocation) reduceFutureInterest(future []int, rate decimal.Decimal, places int32) {
	prepaidFrom := decimal.Zero
	for j := len(future) - 1; j >= 0; j-- {
		i := future[j]
		prepaidFrom = prepaidFrom.Add(w.parts[i].Principal)
		if !prepaidFrom.IsPositive() {
			continue
		}
		reduction := money.Round(prepaidFrom.Mul(rate), places)
		reduction = money.Min(reduction, money.NonNegative(w.owed(i, valueobject.ComponentInterest)))
		if reduction.IsPositive() {
			w.parts[i].InterestAdjustment = w.parts[i].InterestAdjustment.Sub(reduction)
		}
	}
}

func (w *allocation) result() model.Allocation {
	var out model.Allocation
	for _, p := range w.parts {
		if !p.IsEmpty() {
			out.Installments = append(out.Installments, p)
		}
	}
	sort.Slice(out.Installments, func(i, j int) bool {
		return out.Installments[i].Sequence < out.Installments[j].Sequence
	})
	return out
}
