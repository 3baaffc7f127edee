package usecase

import (
	"context"
	"time"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/port"
	"github.com/bibbank/microfinance/internal/domain/service"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// DisburseLoanUseCase moves approved funds to the member, in one draw or
// tranche by tranche against verified milestones.
type DisburseLoanUseCase struct {
	loans    loanStore
	tranches *service.TrancheManager
}

// NewDisburseLoanUseCase wires dependencies.
func NewDisburseLoanUseCase(
	loanRepo port.LoanRepository,
	tranches *service.TrancheManager,
	clock port.Clock,
) *DisburseLoanUseCase {
	return &DisburseLoanUseCase{
		loans:    loanStore{repo: loanRepo, clock: clock},
		tranches: tranches,
	}
}

// PlanTranches records a staged disbursement plan on an approved loan.
func (uc *DisburseLoanUseCase) PlanTranches(ctx context.Context, req dto.PlanTranchesRequest) (dto.LoanResponse, error) {
	items := make([]model.TranchePlanItem, len(req.Tranches))
	for i, t := range req.Tranches {
		items[i] = model.TranchePlanItem{Amount: t.Amount, Milestone: t.Milestone}
	}
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		return l.PlanTranches(items, now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}

// RecordMilestone stores the outcome of a milestone verification.
func (uc *DisburseLoanUseCase) RecordMilestone(ctx context.Context, req dto.RecordMilestoneRequest) (dto.LoanResponse, error) {
	status, err := valueobject.NewVerificationStatus(req.Status)
	if err != nil {
		return dto.LoanResponse{}, model.NewValidationError("status", "%v", err)
	}
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		return l.RecordMilestone(req.Sequence, status, req.VerifiedBy, now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}

// Disburse pays out an approved loan in a single draw and starts its
// schedule. A zero amount disburses the full principal.
func (uc *DisburseLoanUseCase) Disburse(ctx context.Context, req dto.DisburseLoanRequest) (dto.LoanResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		amount := req.Amount
		if amount.IsZero() {
			amount = l.Principal()
		}
		return l.Disburse(amount, paymentTime(req.DisbursedAt, now), now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}

// DisburseTranche draws the next tranche once its milestone is verified.
func (uc *DisburseLoanUseCase) DisburseTranche(ctx context.Context, req dto.DisburseTrancheRequest) (dto.LoanResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		draw, err := uc.tranches.Authorize(l, req.Sequence, req.Amount)
		if err != nil {
			return l, err
		}
		return l.DisburseTranche(draw, paymentTime(req.DisbursedAt, now), now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}
