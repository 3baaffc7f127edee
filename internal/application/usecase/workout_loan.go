package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/port"
	"github.com/bibbank/microfinance/internal/domain/service"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// Restructure
// ---------------------------------------------------------------------------

// RestructureLoanUseCase runs the maker-checker restructure workflow.
type RestructureLoanUseCase struct {
	loans  loanStore
	engine *service.RestructureEngine
}

// NewRestructureLoanUseCase wires dependencies.
func NewRestructureLoanUseCase(
	loanRepo port.LoanRepository,
	engine *service.RestructureEngine,
	clock port.Clock,
) *RestructureLoanUseCase {
	return &RestructureLoanUseCase{
		loans:  loanStore{repo: loanRepo, clock: clock},
		engine: engine,
	}
}

// Submit opens a restructure request.
func (uc *RestructureLoanUseCase) Submit(ctx context.Context, req dto.SubmitRestructureRequest) (dto.WorkflowResponse, error) {
	terms, err := restructureTermsFromDTO(req.Terms)
	if err != nil {
		return dto.WorkflowResponse{}, err
	}
	var rec model.Restructure
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		next, r, err := l.SubmitRestructure(terms, req.SubmittedBy, req.Reason, now)
		rec = r
		return next, err
	})
	if err != nil {
		return dto.WorkflowResponse{}, err
	}
	return toRestructureResponse(loan.ID(), rec), nil
}

// Approve records the checker's approval.
func (uc *RestructureLoanUseCase) Approve(ctx context.Context, req dto.DecisionRequest) (dto.WorkflowResponse, error) {
	return uc.decide(ctx, req, model.Loan.ApproveRestructure)
}

// Reject closes the request without touching the schedule.
func (uc *RestructureLoanUseCase) Reject(ctx context.Context, req dto.DecisionRequest) (dto.WorkflowResponse, error) {
	return uc.decide(ctx, req, model.Loan.RejectRestructure)
}

type workoutDecision func(l model.Loan, id, approver, note string, now time.Time) (model.Loan, error)

func (uc *RestructureLoanUseCase) decide(ctx context.Context, req dto.DecisionRequest, fn workoutDecision) (dto.WorkflowResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		return fn(l, req.RequestID, req.DecidedBy, req.Note, now)
	})
	if err != nil {
		return dto.WorkflowResponse{}, err
	}
	return restructureResponse(loan, req.RequestID)
}

// Activate computes the replacement schedule and swaps it in. A zero start
// date starts the new schedule now.
func (uc *RestructureLoanUseCase) Activate(ctx context.Context, req dto.ActivateRestructureRequest) (dto.LoanResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		if err := l.RequireStatus("activate restructure",
			valueobject.LoanStatusActive, valueobject.LoanStatusDefaulted); err != nil {
			return l, err
		}

		// 1. Plan the new schedule from the loan's current balances.
		in, err := l.RestructureInput(req.RequestID, paymentTime(req.StartDate, now))
		if err != nil {
			return l, err
		}
		plan, err := uc.engine.Plan(in)
		if err != nil {
			return l, fmt.Errorf("plan restructure: %w", err)
		}

		// 2. Commit it; the old schedule is archived.
		return l.ActivateRestructure(req.RequestID, plan, req.Actor, now)
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}
	return toLoanResponse(loan, loan.UpdatedAt()), nil
}

func restructureResponse(loan model.Loan, id string) (dto.WorkflowResponse, error) {
	for _, r := range loan.Restructures() {
		if r.ID == id {
			return toRestructureResponse(loan.ID(), r), nil
		}
	}
	return dto.WorkflowResponse{}, fmt.Errorf("restructure %s: %w", id, model.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Write-off
// ---------------------------------------------------------------------------

// WriteOffLoanUseCase runs the maker-checker write-off workflow and records
// recoveries afterwards.
type WriteOffLoanUseCase struct {
	loans  loanStore
	engine *service.WriteOffEngine
}

// NewWriteOffLoanUseCase wires dependencies.
func NewWriteOffLoanUseCase(
	loanRepo port.LoanRepository,
	engine *service.WriteOffEngine,
	clock port.Clock,
) *WriteOffLoanUseCase {
	return &WriteOffLoanUseCase{
		loans:  loanStore{repo: loanRepo, clock: clock},
		engine: engine,
	}
}

// Submit opens a write-off request.
func (uc *WriteOffLoanUseCase) Submit(ctx context.Context, req dto.SubmitWriteOffRequest) (dto.WorkflowResponse, error) {
	var rec model.WriteOff
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		next, w, err := l.SubmitWriteOff(req.SubmittedBy, req.Reason, now)
		rec = w
		return next, err
	})
	if err != nil {
		return dto.WorkflowResponse{}, err
	}
	return toWriteOffResponse(loan.ID(), rec), nil
}

// Approve records the checker's approval.
func (uc *WriteOffLoanUseCase) Approve(ctx context.Context, req dto.DecisionRequest) (dto.WorkflowResponse, error) {
	return uc.decide(ctx, req, model.Loan.ApproveWriteOff)
}

// Reject closes the request; the loan stays on the book.
func (uc *WriteOffLoanUseCase) Reject(ctx context.Context, req dto.DecisionRequest) (dto.WorkflowResponse, error) {
	return uc.decide(ctx, req, model.Loan.RejectWriteOff)
}

func (uc *WriteOffLoanUseCase) decide(ctx context.Context, req dto.DecisionRequest, fn workoutDecision) (dto.WorkflowResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		return fn(l, req.RequestID, req.DecidedBy, req.Note, now)
	})
	if err != nil {
		return dto.WorkflowResponse{}, err
	}
	return writeOffResponse(loan, req.RequestID)
}

// Process removes the loan's outstanding balances from the book.
func (uc *WriteOffLoanUseCase) Process(ctx context.Context, req dto.ProcessWriteOffRequest) (dto.WorkflowResponse, error) {
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		if err := l.RequireStatus("process write-off",
			valueobject.LoanStatusActive, valueobject.LoanStatusRestructured, valueobject.LoanStatusDefaulted); err != nil {
			return l, err
		}
		amounts, err := uc.engine.Assess(l)
		if err != nil {
			return l, fmt.Errorf("assess write-off: %w", err)
		}
		return l.ProcessWriteOff(req.RequestID, amounts, req.Actor, now)
	})
	if err != nil {
		return dto.WorkflowResponse{}, err
	}
	return writeOffResponse(loan, req.RequestID)
}

// Recover records money collected on a written-off loan. Replaying a
// reference returns the original record with Duplicate set.
func (uc *WriteOffLoanUseCase) Recover(ctx context.Context, req dto.RecoveryRequest) (dto.RepaymentResponse, error) {
	var (
		rec       model.Repayment
		duplicate bool
	)
	loan, err := uc.loans.update(ctx, req.TenantID, req.LoanID, func(l model.Loan, now time.Time) (model.Loan, error) {
		paidAt := paymentTime(req.PaidAt, now)

		var alloc model.Allocation
		if _, replay := l.RepaymentByReference(req.Reference); !replay && l.Status().Equal(valueobject.LoanStatusWrittenOff) {
			var err error
			alloc, err = uc.engine.AllocateRecovery(l, req.Amount, paidAt)
			if err != nil {
				return l, fmt.Errorf("allocate recovery: %w", err)
			}
		}

		next, r, err := l.ApplyRecovery(req.Reference, req.Amount, paidAt, alloc, now)
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

func writeOffResponse(loan model.Loan, id string) (dto.WorkflowResponse, error) {
	for _, w := range loan.WriteOffs() {
		if w.ID == id {
			return toWriteOffResponse(loan.ID(), w), nil
		}
	}
	return dto.WorkflowResponse{}, fmt.Errorf("write-off %s: %w", id, model.ErrNotFound)
}
