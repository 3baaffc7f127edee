package service

import (
	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// TrancheManager decides whether a tranche may be drawn.
type TrancheManager struct{}

// NewTrancheManager returns a new manager instance.
func NewTrancheManager() *TrancheManager {
	return &TrancheManager{}
}

// Authorize checks a draw of amount on tranche sequence. A zero amount draws
// the full planned amount. Tranches go out strictly in sequence, never above
// their planned amount and only after their milestone is verified. The draw
// is final when it completes the principal or is the last tranche.
func (m *TrancheManager) Authorize(loan model.Loan, sequence int, amount decimal.Decimal) (model.TrancheDisbursement, error) {
	if err := loan.RequireStatus("disburse tranche",
		valueobject.LoanStatusApproved, valueobject.LoanStatusPartiallyDisbursed); err != nil {
		return model.TrancheDisbursement{}, err
	}
	tranches := loan.Tranches()
	if len(tranches) == 0 {
		return model.TrancheDisbursement{}, model.NewValidationError("sequence", "loan has no tranche plan")
	}
	next, ok := nextTranche(tranches)
	if !ok {
		return model.TrancheDisbursement{}, model.NewValidationError("sequence", "every tranche is already disbursed")
	}
	if next.Sequence != sequence {
		return model.TrancheDisbursement{}, model.NewValidationError("sequence",
			"tranches are disbursed in order; next is %d", next.Sequence)
	}
	if next.Verification != valueobject.VerificationVerified {
		return model.TrancheDisbursement{}, model.NewValidationError("sequence",
			"milestone %q is %s", next.Milestone, next.Verification)
	}
	if amount.IsZero() {
		amount = next.PlannedAmount
	}
	if amount.IsNegative() || amount.GreaterThan(next.PlannedAmount) {
		return model.TrancheDisbursement{}, model.NewValidationError("amount",
			"must be between 0 and the planned %s", next.PlannedAmount)
	}

	total := loan.TotalDisbursed().Add(amount)
	if total.GreaterThan(loan.Principal()) {
		return model.TrancheDisbursement{}, &model.AllocationInvariantError{
			LoanID:    loan.ID(),
			Sequence:  sequence,
			Invariant: "total disbursed would exceed principal",
		}
	}
	final := total.Equal(loan.Principal()) || sequence == tranches[len(tranches)-1].Sequence
	if final && total.LessThan(loan.Principal()) && !loan.Terms().AllowUnderDisbursement {
		return model.TrancheDisbursement{}, model.NewValidationError("amount",
			"final tranche leaves %s undisbursed and the product does not allow under-disbursement",
			loan.Principal().Sub(total))
	}
	return model.TrancheDisbursement{Sequence: sequence, Amount: amount, Final: final}, nil
}

// Undisbursed is the approved principal not yet drawn.
func (m *TrancheManager) Undisbursed(loan model.Loan) decimal.Decimal {
	return loan.Principal().Sub(loan.TotalDisbursed())
}

func nextTranche(tranches []model.Tranche) (model.Tranche, bool) {
	for _, t := range tranches {
		if !t.IsDisbursed() {
			return t, true
		}
	}
	return model.Tranche{}, false
}
