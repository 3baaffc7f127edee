package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/port"
)

// OriginateLoanUseCase takes a loan from draft to an approval decision.
type OriginateLoanUseCase struct {
	loans     loanStore
	products  productLookup
	authority port.ApprovalAuthority
}

// NewOriginateLoanUseCase wires dependencies. cache may be nil.
func NewOriginateLoanUseCase(
	loanRepo port.LoanRepository,
	productRepo port.ProductRepository,
	cache port.ProductCache,
	authority port.ApprovalAuthority,
	clock port.Clock,
	logger *slog.Logger,
) *OriginateLoanUseCase {
	return &OriginateLoanUseCase{
		loans:     loanStore{repo: loanRepo, clock: clock},
		products:  productLookup{repo: productRepo, cache: cache, logger: logger},
		authority: authority,
	}
}

// Create opens a draft loan against the latest version of a product.
func (uc *OriginateLoanUseCase) Create(ctx context.Context, req dto.CreateLoanRequest) (dto.LoanResponse, error) {
	now := uc.loans.clock.Now()

	// 1. Resolve the product the member is applying for.
	product, err := uc.products.latest(ctx, req.TenantID, req.ProductID)
	if err != nil {
		return dto.LoanResponse{}, err
	}

	// 2. Open the draft.
	loan, err := model.NewLoan(req.TenantID, req.MemberID, product, req.RequestedAmount, req.Installments, req.Purpose, now)
	if err != nil {
		return dto.LoanResponse{}, err
	}
	if len(req.CollateralIDs) > 0 || len(req.GuarantorIDs) > 0 {
		loan, err = loan.UpdateDraft(model.DraftChanges{
			CollateralIDs: req.CollateralIDs,
			GuarantorIDs:  req.GuarantorIDs,
		}, now)
		if err != nil {
			return dto.LoanResponse{}, err
		}
	}

	// 3. Persist with its LoanCreated event.
	loan, err = uc.loans.create(ctx, loan)
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, now), nil
}

// UpdateDraft edits a draft loan.
func (uc *OriginateLoanUseCase) UpdateDraft(ctx context.Context, req dto.UpdateDraftRequest) (dto.LoanResponse, error) {
	changes := model.DraftChanges{
		RequestedAmount: req.RequestedAmount,
		Installments:    req.Installments,
		Purpose:         req.Purpose,
		CollateralIDs:   req.CollateralIDs,
		GuarantorIDs:    req.GuarantorIDs,
	}
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		return l.UpdateDraft(changes, now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}

// Submit sends a draft for approval.
func (uc *OriginateLoanUseCase) Submit(ctx context.Context, req dto.LoanActionRequest) (dto.LoanResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, model.Loan.Submit)
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}

// Approve approves a pending loan on behalf of the caller. The approver's
// identity and limit come from the approval authority, never the request.
func (uc *OriginateLoanUseCase) Approve(ctx context.Context, req dto.ApproveLoanRequest) (dto.LoanResponse, error) {
	// 1. Resolve who is approving and up to what amount.
	grant, err := uc.authority.Authorize(ctx, req.TenantID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("authorize approval: %w", err)
	}

	// 2. Approve against the latest product version, which the loan snapshots.
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		product, err := uc.products.latest(ctx, req.TenantID, l.ProductID())
		if err != nil {
			return l, err
		}
		amount := req.ApprovedAmount
		if amount.IsZero() {
			amount = l.RequestedAmount()
		}
		return l.Approve(product, amount, grant.ApproverID, grant.Limit, now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}

// Reject declines a pending loan.
func (uc *OriginateLoanUseCase) Reject(ctx context.Context, req dto.RejectLoanRequest) (dto.LoanResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		return l.Reject(req.RejectedBy, req.Reason, now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}
