package usecase

import (
	"context"
	"time"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/port"
)

// ServiceLoanUseCase covers collections work on a running loan: penalties,
// waivers, default and manual closure.
type ServiceLoanUseCase struct {
	loans loanStore
}

// NewServiceLoanUseCase wires dependencies.
func NewServiceLoanUseCase(loanRepo port.LoanRepository, clock port.Clock) *ServiceLoanUseCase {
	return &ServiceLoanUseCase{loans: loanStore{repo: loanRepo, clock: clock}}
}

// AssessOverdue charges penalties on installments that fell due before AsOf.
// A zero AsOf assesses as of now.
func (uc *ServiceLoanUseCase) AssessOverdue(ctx context.Context, req dto.AssessOverdueRequest) (dto.LoanResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		return l.AssessOverdue(paymentTime(req.AsOf, now), now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, paymentTime(req.AsOf, loan.UpdatedAt())), nil
}

// WaiveInstallment forgives interest, fees or penalties on one installment.
func (uc *ServiceLoanUseCase) WaiveInstallment(ctx context.Context, req dto.WaiveInstallmentRequest) (dto.LoanResponse, error) {
	components, err := parseComponents("components", req.Components)
	if err != nil {
		return dto.LoanResponse{}, err
	}
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		return l.WaiveInstallment(req.Sequence, components, req.WaivedBy, req.Reason, now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}

// MarkDefaulted moves a loan to DEFAULTED.
func (uc *ServiceLoanUseCase) MarkDefaulted(ctx context.Context, req dto.MarkDefaultedRequest) (dto.LoanResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		return l.MarkDefaulted(req.Reason, now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}

// Close closes a loan with nothing left outstanding.
func (uc *ServiceLoanUseCase) Close(ctx context.Context, req dto.LoanActionRequest) (dto.LoanResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, model.Loan.Close)
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}
