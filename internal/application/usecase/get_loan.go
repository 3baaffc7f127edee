package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/port"
)

// GetLoanUseCase retrieves loans.
type GetLoanUseCase struct {
	loanRepo port.LoanRepository
	clock    port.Clock
}

// NewGetLoanUseCase wires dependencies.
func NewGetLoanUseCase(loanRepo port.LoanRepository, clock port.Clock) *GetLoanUseCase {
	return &GetLoanUseCase{loanRepo: loanRepo, clock: clock}
}

// Execute returns a loan response for the given ID. Installment statuses are
// derived as of now.
func (uc *GetLoanUseCase) Execute(
	ctx context.Context,
	req dto.GetLoanRequest,
) (dto.LoanResponse, error) {
	loan, err := uc.loanRepo.FindByID(ctx, req.TenantID, req.LoanID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("find loan: %w", err)
	}
	return toLoanResponse(loan, uc.clock.Now()), nil
}

// ListByMember returns every loan of a member, newest first.
func (uc *GetLoanUseCase) ListByMember(
	ctx context.Context,
	req dto.ListLoansRequest,
) (dto.ListLoansResponse, error) {
	loans, err := uc.loanRepo.FindByMember(ctx, req.TenantID, req.MemberID)
	if err != nil {
		return dto.ListLoansResponse{}, fmt.Errorf("find loans: %w", err)
	}
	now := uc.clock.Now()
	out := dto.ListLoansResponse{Loans: make([]dto.LoanResponse, 0, len(loans))}
	for _, l := range loans {
		out.Loans = append(out.Loans, toLoanResponse(l, now))
	}
	return out, nil
}
