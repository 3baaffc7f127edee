package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/port"
)

// MakePaymentUseCase applies repayments to a loan and reverses them.
type MakePaymentUseCase struct {
	loans     loanStore
	allocator model.Allocator
}

// NewMakePaymentUseCase wires dependencies.
func NewMakePaymentUseCase(
	loanRepo port.LoanRepository,
	allocator model.Allocator,
	clock port.Clock,
) *MakePaymentUseCase {
	return &MakePaymentUseCase{
		loans:     loanStore{repo: loanRepo, clock: clock},
		allocator: allocator,
	}
}

// Execute allocates and records one payment. Replaying a reference returns
// the original record with Duplicate set and changes nothing.
func (uc *MakePaymentUseCase) Execute(ctx context.Context, req dto.MakePaymentRequest) (dto.RepaymentResponse, error) {
	var (
		rec       model.Repayment
		duplicate bool
	)
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		paidAt := paymentTime(req.PaidAt, now)

		// 1. Split the payment unless it is a replay or the loan is not
		// repayable; the aggregate reports both cases itself.
		var alloc model.Allocation
		if _, replay := l.RepaymentByReference(req.Reference); !replay && l.Status().AcceptsRepayments() {
			var err error
			alloc, err = uc.allocator.Allocate(l.AllocationRequest(req.Amount, paidAt))
			if err != nil {
				return l, fmt.Errorf("allocate payment: %w", err)
			}
		}

		// 2. Commit the split to the schedule and ledger.
		next, r, err := l.ApplyRepayment(req.Reference, req.Amount, paidAt, alloc, now)
		if err != nil {
			return l, err
		}
		rec, duplicate = r, !next.HasChanges()
		return next, nil
	})
	if err != nil {
		return dto.RepaymentResponse{}, err
	}
	return toRepaymentResponse(loan, rec, duplicate), nil
}

// Reverse appends a compensating record for an earlier payment.
func (uc *MakePaymentUseCase) Reverse(ctx context.Context, req dto.ReverseRepaymentRequest) (dto.RepaymentResponse, error) {
	var rec model.Repayment
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		next, r, err := l.ReverseRepayment(req.RepaymentID, req.Reason, now)
		if err != nil {
			return l, err
		}
		rec = r
		return next, nil
	})
	if err != nil {
		return dto.RepaymentResponse{}, err
	}
	return toRepaymentResponse(loan, rec, false), nil
}
