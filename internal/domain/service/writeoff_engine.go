package service

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// WriteOffEngine assesses write-off amounts and allocates recoveries.
type WriteOffEngine struct {
	allocator model.Allocator
}

// NewWriteOffEngine returns an engine that allocates recoveries with allocator.
func NewWriteOffEngine(allocator model.Allocator) *WriteOffEngine {
	return &WriteOffEngine{allocator: allocator}
}

// Assess returns the balances a write-off would remove from the book.
func (e *WriteOffEngine) Assess(loan model.Loan) (model.Balances, error) {
	b := model.OutstandingBalances(loan.Schedule())
	for _, v := range []decimal.Decimal{b.Principal, b.Interest, b.Fees, b.Penalties} {
		if v.IsNegative() {
			return model.Balances{}, &model.AllocationInvariantError{LoanID: loan.ID(), Invariant: "negative balance cannot be written off"}
		}
	}
	if b.IsZero() {
		return model.Balances{}, model.NewValidationError("loan_id", "nothing is outstanding")
	}
	return b, nil
}

// AllocateRecovery splits a recovery payment against the synthetic recovery
// schedule of the loan's processed write-off.
func (e *WriteOffEngine) AllocateRecovery(loan model.Loan, amount decimal.Decimal, paidAt time.Time) (model.Allocation, error) {
	wo, ok := loan.ProcessedWriteOff()
	if !ok {
		return model.Allocation{}, &model.AllocationInvariantError{LoanID: loan.ID(), Invariant: "no processed write-off to recover against"}
	}
	if paidAt.Before(wo.ProcessedAt) {
		paidAt = wo.ProcessedAt
	}
	terms := loan.Terms()
	alloc, err := e.allocator.Allocate(model.AllocationRequest{
		PaidAt:    paidAt,
		Amount:    amount,
		Method:    valueobject.InterestMethodFlat,
		Policy:    valueobject.AllocationStrictOldestFirst,
		Entries:   wo.RecoverySchedule(),
		Order:     terms.AllocationOrder,
		Precision: terms.Currency.Precision(),
	})
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) && verr.Field == "amount" && amount.IsPositive() {
			return model.Allocation{}, model.NewValidationError("amount",
				"recovery exceeds remaining written-off balance %s", wo.Remaining().Total())
		}
		return model.Allocation{}, err
	}
	return alloc, nil
}
